package recipe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"

	"github.com/racecomms/jelbuild/pkg/extbuilder"
)

// Option is a recipe option declared with option()
type Option struct {
	Default string
	Help    string
}

type recipeCtx struct {
	ctx       context.Context
	builder   *extbuilder.Builder
	filename  string
	options   map[string]Option
	artifact  *extbuilder.Artifact
	initPhase bool
}

// Recipe is a loaded build.star script
type Recipe struct {
	Filename string
	// Options lists the options the recipe declared
	Options map[string]Option

	thread  *starlark.Thread
	globals starlark.StringDict
	state   *recipeCtx
}

func getCtx(thread *starlark.Thread) *recipeCtx {
	return thread.Local("recipeCtx").(*recipeCtx)
}

func predeclared(a *extbuilder.Args) starlark.StringDict {
	return starlark.StringDict{
		"NAME":        starlark.String(a.Name),
		"VERSION":     starlark.String(a.Version),
		"REVISION":    starlark.MakeInt(a.Revision),
		"TARGET":      starlark.String(a.Target.String()),
		"TARGET_OS":   starlark.String(a.Target.OS),
		"TARGET_ARCH": starlark.String(a.Target.Arch),
		"TRIPLE":      starlark.String(a.Target.Triple()),
		"ANDROID":     starlark.Bool(a.Target.IsAndroid()),
		"PREFIX":      starlark.String(a.Target.Prefix()),
		"CODE_DIR":    starlark.String(a.CodeDir),
		"SOURCE_DIR":  starlark.String(a.SourceDir),
		"BUILD_DIR":   starlark.String(a.BuildDir),
		"INSTALL_DIR": starlark.String(a.InstallDir),
		"JOBS":        starlark.MakeInt(a.Jobs),
		"DRY_RUN":     starlark.Bool(a.DryRun),

		"info":             starlark.NewBuiltin("info", starInfo),
		"warn":             starlark.NewBuiltin("warn", starWarn),
		"error":            starlark.NewBuiltin("error", starError),
		"option":           starlark.NewBuiltin("option", option),
		"getenv":           starlark.NewBuiltin("getenv", getenv),
		"isdir":            starlark.NewBuiltin("isdir", starIsdir),
		"isfile":           starlark.NewBuiltin("isfile", starIsfile),
		"path_join":        starlark.NewBuiltin("path_join", pathJoin),
		"install_packages": starlark.NewBuiltin("install_packages", installPackages),
		"standard_env":     starlark.NewBuiltin("standard_env", standardEnv),
		"copy":             starlark.NewBuiltin("copy", starCopy),
		"execute":          starlark.NewBuiltin("execute", starExecute),
		"output":           starlark.NewBuiltin("output", starOutput),
		"replace_in_file":  starlark.NewBuiltin("replace_in_file", replaceInFile),
		"fetch_deps":       starlark.NewBuiltin("fetch_deps", fetchDeps),
		"swig_extension":   starlark.NewBuiltin("swig_extension", swigExtension),
		"create_package":   starlark.NewBuiltin("create_package", createPackage),
	}
}

func evalError(err error, msg string, args ...interface{}) error {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return eris.Errorf("%s:\n%s", fmt.Sprintf(msg, args...), evalErr.Backtrace())
	}
	return eris.Wrapf(err, msg, args...)
}

// Load executes the global scope of a recipe. src may be nil in which case the
// recipe is read from filename. Option values are taken from the builder's args.
func Load(ctx context.Context, b *extbuilder.Builder, filename string, src []byte) (*Recipe, error) {
	state := &recipeCtx{
		ctx:       ctx,
		builder:   b,
		filename:  filename,
		options:   make(map[string]Option),
		initPhase: true,
	}

	thread := &starlark.Thread{
		Name: "recipe",
		Print: func(thread *starlark.Thread, msg string) {
			extbuilder.Log(ctx).Info().Str("thread", thread.Name).Msg(msg)
		},
	}
	thread.SetLocal("recipeCtx", state)

	var source interface{}
	if src != nil {
		source = src
	}

	globals, err := starlark.ExecFile(thread, filename, source, predeclared(b.Args))
	if err != nil {
		return nil, evalError(err, "failed to execute %s", filename)
	}

	unknown := []string{}
	for name := range b.Args.Options {
		if _, ok := state.options[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		extbuilder.Log(ctx).Warn().Msgf("%s does not declare the options %s", filename, strings.Join(unknown, ", "))
	}

	return &Recipe{
		Filename: filename,
		Options:  state.options,
		thread:   thread,
		globals:  globals,
		state:    state,
	}, nil
}

// Build calls the recipe's build() function and returns the package it created, if
// any.
func (r *Recipe) Build() (*extbuilder.Artifact, error) {
	build, ok := r.globals["build"]
	if !ok {
		return nil, eris.Errorf("%s did not declare a build function", r.Filename)
	}

	buildFunc, ok := build.(starlark.Callable)
	if !ok {
		return nil, eris.Errorf("%s did declare a build value but it's not a function", r.Filename)
	}

	// Ctrl-C cancels the context; stop the interpreter as well
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-r.state.ctx.Done():
			r.thread.Cancel("interrupted")
		case <-done:
		}
	}()

	r.state.initPhase = false
	_, err := starlark.Call(r.thread, buildFunc, starlark.Tuple{}, nil)
	if err != nil {
		if ctxErr := r.state.ctx.Err(); ctxErr != nil {
			return nil, eris.Wrap(ctxErr, "build interrupted")
		}
		return nil, evalError(err, "build of %s failed", r.state.builder.Args.Name)
	}

	return r.state.artifact, nil
}

// Run loads a recipe and calls its build function
func Run(ctx context.Context, b *extbuilder.Builder, filename string, src []byte) (*extbuilder.Artifact, error) {
	r, err := Load(ctx, b, filename, src)
	if err != nil {
		return nil, err
	}

	return r.Build()
}
