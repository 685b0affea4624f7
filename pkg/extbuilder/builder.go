package extbuilder

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/racecomms/jelbuild/pkg/config"
)

// Builder runs the individual build steps for one library and target
type Builder struct {
	Args   *Args
	Config *config.Config
	Runner Runner
	Client *http.Client
	// Progress receives the progress bars for downloads. Defaults to stderr.
	Progress io.Writer

	now func() time.Time
}

// New returns a Builder for normalized args
func New(args *Args, cfg *config.Config, runner Runner) *Builder {
	return &Builder{
		Args:     args,
		Config:   cfg,
		Runner:   runner,
		Client:   &http.Client{Timeout: 30 * time.Minute},
		Progress: os.Stderr,
		now:      time.Now,
	}
}

// MakeDirs creates the directory layout of the build. With --force, old source and
// install trees are removed first so that nothing from a previous build leaks into
// the package.
func (b *Builder) MakeDirs(ctx context.Context) error {
	a := b.Args
	if a.Force && !a.DryRun {
		for _, dir := range []string{a.SourceDir, a.BuildDir, a.InstallDir} {
			log(ctx).Debug().Str("path", dir).Msgf("Removing %s", dir)
			err := os.RemoveAll(dir)
			if err != nil {
				return eris.Wrapf(err, "Failed to remove %s", dir)
			}
		}
	}

	for _, dir := range []string{a.SourceDir, a.BuildDir, a.InstallDir, a.LogDir, a.PackageDir} {
		err := os.MkdirAll(dir, 0o755)
		if err != nil {
			return eris.Wrapf(err, "Failed to create %s", dir)
		}
	}

	return nil
}

// Execute runs a single command in cwd. env is applied on top of the process'
// environment. A non-zero exit code aborts the build; nothing is retried.
func (b *Builder) Execute(ctx context.Context, argv []string, cwd string, env map[string]string) error {
	return b.run(ctx, Command{Args: argv, Dir: cwd, Env: env})
}

// Output works like Execute but returns the command's stdout. It returns an empty
// string during dry runs.
func (b *Builder) Output(ctx context.Context, argv []string, cwd string, env map[string]string) (string, error) {
	buffer := strings.Builder{}
	err := b.run(ctx, Command{Args: argv, Dir: cwd, Env: env, Stdout: &buffer})
	if err != nil {
		return "", err
	}

	return buffer.String(), nil
}

func (b *Builder) run(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if cmd.Dir == "" {
		cmd.Dir = b.Args.SourceDir
	}

	line := cmd.String()
	log(ctx).Info().
		Bool("command", true).
		Str("path", cmd.Dir).
		Msg(line)

	if b.Args.DryRun {
		return nil
	}

	err := b.Runner.Run(ctx, cmd)
	if err != nil {
		return eris.Wrapf(err, "Command %s failed in %s", line, cmd.Dir)
	}

	return nil
}

// StandardEnv returns the environment variables every build step of the target needs:
// the cross toolchain, position independent code, the install location (DESTDIR) and
// the number of parallel make jobs.
func (b *Builder) StandardEnv() map[string]string {
	a := b.Args
	tc := b.Config.Toolchain
	env := map[string]string{
		"DESTDIR":   a.InstallDir,
		"MAKEFLAGS": "-j" + strconv.Itoa(a.Jobs),
		"CFLAGS":    "-fPIC -O2",
		"CXXFLAGS":  "-fPIC -O2",
		"LDFLAGS":   "",
	}

	var cc, cxx string
	if a.Target.IsAndroid() {
		toolchain := filepath.Join(tc.NDKDir, "toolchains", "llvm", "prebuilt", "linux-x86_64")
		bin := filepath.Join(toolchain, "bin")
		wrapper := filepath.Join(bin, a.Target.Triple()+strconv.Itoa(tc.AndroidAPI))

		cc = wrapper + "-clang"
		cxx = wrapper + "-clang++"
		env["AR"] = filepath.Join(bin, "llvm-ar")
		env["RANLIB"] = filepath.Join(bin, "llvm-ranlib")
		env["STRIP"] = filepath.Join(bin, "llvm-strip")
		env["LD"] = filepath.Join(bin, "ld.lld")
		env["SYSROOT"] = filepath.Join(toolchain, "sysroot")
		env["ANDROID_NDK"] = tc.NDKDir
		env["PATH"] = bin + string(os.PathListSeparator) + os.Getenv("PATH")
	} else if a.Target.Arch == "x86_64" {
		cc = "gcc"
		cxx = "g++"
	} else {
		prefix := a.Target.Triple() + "-"
		cc = prefix + "gcc"
		cxx = prefix + "g++"
		env["AR"] = prefix + "ar"
		env["RANLIB"] = prefix + "ranlib"
		env["STRIP"] = prefix + "strip"
	}

	if tc.Ccache {
		cc = "ccache " + cc
		cxx = "ccache " + cxx
	}

	env["CC"] = cc
	env["CXX"] = cxx
	env["PKG_CONFIG_PATH"] = filepath.Join(a.InstallDir+a.Target.Prefix(), "lib", "pkgconfig")

	return env
}

// PackageReq is an OS package a build needs
type PackageReq struct {
	Name    string
	Version string
	// LinuxOnly packages are not installed for Android builds
	LinuxOnly bool
}

func (p PackageReq) spec() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + "=" + p.Version
}

// InstallPackages installs the given packages with apt-get
func (b *Builder) InstallPackages(ctx context.Context, reqs []PackageReq) error {
	if b.Args.SkipInstall {
		log(ctx).Info().Msg("Skipping package installation")
		return nil
	}

	specs := make([]string, 0, len(reqs))
	for _, req := range reqs {
		if req.LinuxOnly && b.Args.Target.IsAndroid() {
			log(ctx).Debug().Msgf("Skipping %s for %s", req.Name, b.Args.Target)
			continue
		}

		specs = append(specs, req.spec())
	}

	if len(specs) == 0 {
		return nil
	}

	aptGet := strings.Fields(b.Config.Packages.AptGet)
	if len(aptGet) == 0 {
		aptGet = []string{"apt-get"}
	}
	env := map[string]string{"DEBIAN_FRONTEND": "noninteractive"}

	log(ctx).Info().Msgf("Installing %s", strings.Join(specs, ", "))
	err := b.Execute(ctx, append(aptGet[:len(aptGet):len(aptGet)], "update"), b.Args.BuildRoot, env)
	if err != nil {
		return eris.Wrap(err, "Failed to update the package index")
	}

	cmd := append(aptGet[:len(aptGet):len(aptGet)], "install", "-y", "--no-install-recommends")
	err = b.Execute(ctx, append(cmd, specs...), b.Args.BuildRoot, env)
	if err != nil {
		return eris.Wrap(err, "Failed to install packages")
	}

	return nil
}
