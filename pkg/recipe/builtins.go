package recipe

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"

	"github.com/racecomms/jelbuild/pkg/extbuilder"
)

func starInfo(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message)
	if err != nil {
		return nil, err
	}

	log(getCtx(thread).ctx).Info().Msgf("%s: %s", position(thread), message)
	return starlark.None, nil
}

func starWarn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message)
	if err != nil {
		return nil, err
	}

	log(getCtx(thread).ctx).Warn().Msgf("%s: %s", position(thread), message)
	return starlark.None, nil
}

func starError(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message)
	if err != nil {
		return nil, err
	}

	return nil, eris.New(message)
}

func option(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var defaultValue starlark.String
	var help string

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "default?", &defaultValue, "help?", &help)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	if !ctx.initPhase {
		return nil, eris.New("can only be called during the init phase (in the global scope)")
	}

	ctx.options[name] = Option{
		Default: defaultValue.GoString(),
		Help:    help,
	}

	value, ok := ctx.builder.Args.Options[name]
	if ok {
		return starlark.String(value), nil
	}

	return defaultValue, nil
}

func getenv(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key string
	var defaultValue string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &key, &defaultValue)
	if err != nil {
		return nil, err
	}

	value, ok := os.LookupEnv(key)
	if !ok {
		value = defaultValue
	}

	return starlark.String(value), nil
}

func starIsdir(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var dirPath string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &dirPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolvePath(getCtx(thread), dirPath))
	return starlark.Bool(err == nil && info.IsDir()), nil
}

func starIsfile(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var filePath string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &filePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolvePath(getCtx(thread), filePath))
	return starlark.Bool(err == nil && info.Mode().IsRegular()), nil
}

func pathJoin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, eris.Errorf("%s: unexpected keyword arguments", fn.Name())
	}

	if len(args) < 1 {
		return nil, eris.Errorf("%s: expects at least one argument", fn.Name())
	}

	parts := make([]string, len(args))
	for idx, part := range args {
		value, ok := part.(starlark.String)
		if !ok {
			return nil, eris.Errorf("%s: only accepts string arguments but argument %d was a %s", fn.Name(), idx, part.Type())
		}
		parts[idx] = value.GoString()
	}

	return starlark.String(resolvePath(getCtx(thread), filepath.Join(parts...))), nil
}

// install_packages([("autoconf", None, False), "swig"])
func installPackages(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var packages *starlark.List

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "packages", &packages)
	if err != nil {
		return nil, err
	}

	reqs := make([]extbuilder.PackageReq, 0, packages.Len())
	iter := packages.Iterate()
	defer iter.Done()

	var item starlark.Value
	for iter.Next(&item) {
		switch value := item.(type) {
		case starlark.String:
			reqs = append(reqs, extbuilder.PackageReq{Name: value.GoString()})
		case starlark.Tuple:
			req, err := packageReq(value)
			if err != nil {
				return nil, eris.Wrapf(err, "%s: invalid package %s", fn.Name(), value.String())
			}
			reqs = append(reqs, req)
		default:
			return nil, eris.Errorf("%s: unexpected type %s, only strings and tuples are valid", fn.Name(), item.Type())
		}
	}

	ctx := getCtx(thread)
	err = ctx.builder.InstallPackages(ctx.ctx, reqs)
	if err != nil {
		return nil, err
	}

	return starlark.None, nil
}

func packageReq(tuple starlark.Tuple) (extbuilder.PackageReq, error) {
	req := extbuilder.PackageReq{}
	if len(tuple) < 1 || len(tuple) > 3 {
		return req, eris.New("expected (name, version, linux_only)")
	}

	name, ok := tuple[0].(starlark.String)
	if !ok {
		return req, eris.Errorf("package name must be a string, not %s", tuple[0].Type())
	}
	req.Name = name.GoString()

	if len(tuple) > 1 {
		switch version := tuple[1].(type) {
		case starlark.String:
			req.Version = version.GoString()
		case starlark.NoneType:
		default:
			return req, eris.Errorf("package version must be a string or None, not %s", tuple[1].Type())
		}
	}

	if len(tuple) > 2 {
		req.LinuxOnly = bool(tuple[2].Truth())
	}

	return req, nil
}

func standardEnv(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0)
	if err != nil {
		return nil, err
	}

	return stringMap2dict(getCtx(thread).builder.StandardEnv())
}

func starCopy(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var src string
	var dest string

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "src", &src, "dest?", &dest)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	if dest == "" {
		dest = ctx.builder.Args.SourceDir
	}

	err = ctx.builder.Copy(ctx.ctx, resolvePath(ctx, src), resolvePath(ctx, dest))
	if err != nil {
		return nil, err
	}

	return starlark.None, nil
}

func unpackCommand(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) ([]string, string, map[string]string, error) {
	var command starlark.Value
	var cwd string
	var env *starlark.Dict

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "command", &command, "cwd?", &cwd, "env?", &env)
	if err != nil {
		return nil, "", nil, err
	}

	envMap, err := dict2stringMap(env, "env")
	if err != nil {
		return nil, "", nil, err
	}

	argv, err := commandParts(command, envMap)
	if err != nil {
		return nil, "", nil, eris.Wrap(err, fn.Name())
	}

	if cwd != "" {
		cwd = resolvePath(getCtx(thread), cwd)
	}

	return argv, cwd, envMap, nil
}

// execute(["./configure", "--prefix="], cwd="jel2", env=env)
func starExecute(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	argv, cwd, env, err := unpackCommand(thread, fn, args, kwargs)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	err = ctx.builder.Execute(ctx.ctx, argv, cwd, env)
	if err != nil {
		return nil, err
	}

	return starlark.None, nil
}

func starOutput(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	argv, cwd, env, err := unpackCommand(thread, fn, args, kwargs)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	out, err := ctx.builder.Output(ctx.ctx, argv, cwd, env)
	if err != nil {
		return nil, err
	}

	return starlark.String(out), nil
}

func replaceInFile(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path, pattern, repl string

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "path", &path, "pattern", &pattern, "repl", &repl)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	count, err := ctx.builder.ReplaceInFile(ctx.ctx, resolvePath(ctx, path), pattern, repl)
	if err != nil {
		return nil, err
	}

	return starlark.MakeInt(count), nil
}

func fetchDeps(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var depsFile string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &depsFile)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	err = ctx.builder.FetchDeps(ctx.ctx, resolvePath(ctx, depsFile))
	if err != nil {
		return nil, err
	}

	return starlark.None, nil
}

func swigExtension(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var ext extbuilder.SwigExtension
	var sources, includeDirs, libraries, libraryDirs, pyModules starlark.Value
	var env *starlark.Dict

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "module", &ext.Module, "interface", &ext.Interface,
		"sources", &sources, "dir?", &ext.Dir, "include_dirs?", &includeDirs, "libraries?", &libraries,
		"library_dirs?", &libraryDirs, "py_modules?", &pyModules, "python_includes?", &ext.PythonIncludes,
		"env?", &env)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	ext.Dir = resolvePath(ctx, ext.Dir)

	ext.Sources, err = iterable2stringSlice(sources, "sources")
	if err != nil {
		return nil, err
	}

	ext.IncludeDirs, err = iterable2stringSlice(includeDirs, "include_dirs")
	if err != nil {
		return nil, err
	}

	ext.Libraries, err = iterable2stringSlice(libraries, "libraries")
	if err != nil {
		return nil, err
	}

	ext.LibraryDirs, err = iterable2stringSlice(libraryDirs, "library_dirs")
	if err != nil {
		return nil, err
	}

	ext.PyModules, err = iterable2stringSlice(pyModules, "py_modules")
	if err != nil {
		return nil, err
	}

	envMap, err := dict2stringMap(env, "env")
	if err != nil {
		return nil, err
	}

	libPath, err := ctx.builder.BuildSwigExtension(ctx.ctx, ext, envMap)
	if err != nil {
		return nil, err
	}

	return starlark.String(libPath), nil
}

func createPackage(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	artifact, err := ctx.builder.CreatePackage(ctx.ctx)
	if err != nil {
		return nil, err
	}

	ctx.artifact = artifact
	return starlark.String(artifact.Path), nil
}
