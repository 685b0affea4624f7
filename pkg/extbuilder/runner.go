package extbuilder

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Command is a single process invocation
type Command struct {
	Args []string
	Dir  string
	Env  map[string]string
	// Stdout overrides the runner's stdout if set
	Stdout io.Writer
}

// CallExpr converts the command into a shell AST node. Arguments are never expanded
// by the shell; anything that isn't a plain word is single-quoted.
func (c Command) CallExpr() *syntax.CallExpr {
	call := new(syntax.CallExpr)
	call.Args = make([]*syntax.Word, len(c.Args))

	for idx, arg := range c.Args {
		var part syntax.WordPart
		if needsQuoting(arg) {
			part = &syntax.SglQuoted{Value: arg}
		} else {
			part = &syntax.Lit{Value: arg}
		}

		call.Args[idx] = &syntax.Word{Parts: []syntax.WordPart{part}}
	}

	return call
}

func (c Command) String() string {
	buffer := strings.Builder{}
	printer := syntax.NewPrinter(syntax.Minify(true))
	err := printer.Print(&buffer, c.CallExpr())
	if err != nil {
		return strings.Join(c.Args, " ")
	}

	return buffer.String()
}

func needsQuoting(arg string) bool {
	if arg == "" {
		return true
	}

	for _, r := range arg {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("_-./=+:,@%", r):
		default:
			return true
		}
	}
	return false
}

// Runner executes commands
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ShellRunner executes commands through the mvdan.cc/sh interpreter
type ShellRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	// SelfExe is the path of the jelbuild binary. If set, mv, rm and mkdir are
	// routed to its cross-platform implementations.
	SelfExe string
}

// NewShellRunner returns a runner writing to the process' stdout and stderr
func NewShellRunner() *ShellRunner {
	return &ShellRunner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

var defaultExecHandler = interp.DefaultExecHandler(2)

func (r *ShellRunner) execHandler(ctx context.Context, args []string) error {
	if len(args) > 0 && r.SelfExe != "" {
		switch args[0] {
		case "mv", "rm", "mkdir":
			args = append([]string{r.SelfExe}, args...)
		}
	}

	return defaultExecHandler(ctx, args)
}

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

// Run implements Runner
func (r *ShellRunner) Run(ctx context.Context, cmd Command) error {
	if len(cmd.Args) == 0 {
		return eris.New("Can't run an empty command")
	}

	stdout := r.Stdout
	if cmd.Stdout != nil {
		stdout = cmd.Stdout
	}

	runner, err := interp.New(
		interp.Dir(cmd.Dir),
		interp.Env(expand.ListEnviron(mergeEnv(os.Environ(), cmd.Env)...)),
		interp.ExecHandler(r.execHandler),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, stdout, r.Stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "Failed to initialize runner")
	}

	err = runner.Run(ctx, cmd.CallExpr())
	if err != nil {
		if status, ok := interp.IsExitStatus(err); ok {
			return eris.Errorf("exited with status %d", status)
		}
		return eris.Wrap(err, "failed to run")
	}

	return nil
}

// mergeEnv returns base with all entries of overrides applied. Overridden entries are
// removed from base instead of appended twice to avoid conflicts.
func mergeEnv(base []string, overrides map[string]string) []string {
	result := make([]string, 0, len(base)+len(overrides))
	for _, item := range base {
		parts := strings.SplitN(item, "=", 2)
		if runtime.GOOS == "windows" {
			parts[0] = strings.ToUpper(parts[0])
		}

		if _, present := overrides[parts[0]]; !present {
			result = append(result, item)
		}
	}

	for k, v := range overrides {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}

	return result
}

// Recorder is a Runner which only records the commands it receives. Stdout is
// answered from Outputs, keyed by the joined command line.
type Recorder struct {
	Commands []Command
	Outputs  map[string]string
	// Fail makes every command whose joined command line equals the key fail
	Fail map[string]error
	// OnRun is called with every recorded command
	OnRun func(cmd Command)

	lock sync.Mutex
}

// Run implements Runner
func (r *Recorder) Run(ctx context.Context, cmd Command) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.Commands = append(r.Commands, cmd)
	line := strings.Join(cmd.Args, " ")
	if r.OnRun != nil {
		r.OnRun(cmd)
	}

	if cmd.Stdout != nil && r.Outputs != nil {
		if out, ok := r.Outputs[line]; ok {
			_, err := io.WriteString(cmd.Stdout, out)
			if err != nil {
				return err
			}
		}
	}

	if r.Fail != nil {
		if err, ok := r.Fail[line]; ok {
			return err
		}
	}

	return nil
}

// Lines returns the recorded commands as "<dir>$ <args>" strings
func (r *Recorder) Lines() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	lines := make([]string, len(r.Commands))
	for idx, cmd := range r.Commands {
		lines[idx] = cmd.Dir + "$ " + strings.Join(cmd.Args, " ")
	}
	return lines
}
