package extbuilder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

func newTestBuilder(c *qt.C, target string) (*Builder, *Recorder) {
	args := &Args{
		Name:       "jel2",
		Version:    "1.0.0",
		Revision:   1,
		TargetName: target,
		CodeDir:    c.TempDir(),
		CacheDir:   c.TempDir(),
		Jobs:       4,
	}
	c.Assert(args.Normalize(testConfig()), qt.IsNil)

	rec := &Recorder{}
	b := New(args, testConfig(), rec)
	b.Progress = nil
	b.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return b, rec
}

func testCtx() context.Context {
	logger := zerolog.Nop()
	return WithLogger(context.Background(), &logger)
}

func TestStandardEnv_Linux(t *testing.T) {
	c := qt.New(t)
	b, _ := newTestBuilder(c, "linux-x86_64")

	env := b.StandardEnv()
	c.Assert(env["CC"], qt.Equals, "gcc")
	c.Assert(env["CXX"], qt.Equals, "g++")
	c.Assert(env["DESTDIR"], qt.Equals, b.Args.InstallDir)
	c.Assert(env["MAKEFLAGS"], qt.Equals, "-j4")
	c.Assert(env["CFLAGS"], qt.Contains, "-fPIC")
	c.Assert(env["PKG_CONFIG_PATH"], qt.Equals, filepath.Join(b.Args.InstallDir, "lib", "pkgconfig"))
	_, hasAR := env["AR"]
	c.Assert(hasAR, qt.IsFalse)
}

func TestStandardEnv_LinuxCross(t *testing.T) {
	c := qt.New(t)
	b, _ := newTestBuilder(c, "linux-arm64-v8a")
	b.Config.Toolchain.Ccache = true

	env := b.StandardEnv()
	c.Assert(env["CC"], qt.Equals, "ccache aarch64-linux-gnu-gcc")
	c.Assert(env["CXX"], qt.Equals, "ccache aarch64-linux-gnu-g++")
	c.Assert(env["AR"], qt.Equals, "aarch64-linux-gnu-ar")
	c.Assert(env["STRIP"], qt.Equals, "aarch64-linux-gnu-strip")
}

func TestStandardEnv_Android(t *testing.T) {
	c := qt.New(t)
	b, _ := newTestBuilder(c, "android-arm64-v8a")

	env := b.StandardEnv()
	bin := "/opt/ndk/toolchains/llvm/prebuilt/linux-x86_64/bin"
	c.Assert(env["CC"], qt.Equals, bin+"/aarch64-linux-android29-clang")
	c.Assert(env["CXX"], qt.Equals, bin+"/aarch64-linux-android29-clang++")
	c.Assert(env["AR"], qt.Equals, bin+"/llvm-ar")
	c.Assert(env["RANLIB"], qt.Equals, bin+"/llvm-ranlib")
	c.Assert(env["ANDROID_NDK"], qt.Equals, "/opt/ndk")
	c.Assert(strings.HasPrefix(env["PATH"], bin+string(os.PathListSeparator)), qt.IsTrue)
	c.Assert(env["PKG_CONFIG_PATH"], qt.Equals, filepath.Join(b.Args.InstallDir+"/android/arm64-v8a", "lib", "pkgconfig"))
}

func TestExecute(t *testing.T) {
	c := qt.New(t)
	b, rec := newTestBuilder(c, "linux-x86_64")
	ctx := testCtx()

	c.Run("passes command, dir and env", func(c *qt.C) {
		err := b.Execute(ctx, []string{"make", "install"}, "/src", map[string]string{"A": "b"})
		c.Assert(err, qt.IsNil)
		c.Assert(rec.Commands, qt.HasLen, 1)
		c.Assert(rec.Commands[0].Args, qt.DeepEquals, []string{"make", "install"})
		c.Assert(rec.Commands[0].Dir, qt.Equals, "/src")
		c.Assert(rec.Commands[0].Env, qt.DeepEquals, map[string]string{"A": "b"})
	})

	c.Run("defaults to the source dir", func(c *qt.C) {
		rec.Commands = nil
		c.Assert(b.Execute(ctx, []string{"make"}, "", nil), qt.IsNil)
		c.Assert(rec.Commands[0].Dir, qt.Equals, b.Args.SourceDir)
	})

	c.Run("failure names the command", func(c *qt.C) {
		rec.Fail = map[string]error{"make": eris.New("exited with status 2")}
		defer func() { rec.Fail = nil }()

		err := b.Execute(ctx, []string{"make"}, "/src", nil)
		c.Assert(err, qt.ErrorMatches, `Command make failed in /src: exited with status 2`)
	})

	c.Run("dry run only logs", func(c *qt.C) {
		rec.Commands = nil
		b.Args.DryRun = true
		defer func() { b.Args.DryRun = false }()

		c.Assert(b.Execute(ctx, []string{"make"}, "/src", nil), qt.IsNil)
		out, err := b.Output(ctx, []string{"python3-config", "--includes"}, "/src", nil)
		c.Assert(err, qt.IsNil)
		c.Assert(out, qt.Equals, "")
		c.Assert(rec.Commands, qt.HasLen, 0)
	})

	c.Run("cancelled context", func(c *qt.C) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		c.Assert(b.Execute(cctx, []string{"make"}, "/src", nil), qt.Equals, context.Canceled)
	})
}

func TestOutput(t *testing.T) {
	c := qt.New(t)
	b, rec := newTestBuilder(c, "linux-x86_64")
	rec.Outputs = map[string]string{"python3-config --includes": "-I/usr/include/python3.10\n"}

	out, err := b.Output(testCtx(), []string{"python3-config", "--includes"}, "/src", nil)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "-I/usr/include/python3.10\n")
}

func TestInstallPackages(t *testing.T) {
	c := qt.New(t)
	reqs := []PackageReq{
		{Name: "autoconf"},
		{Name: "libjpeg-turbo8-dev", LinuxOnly: true},
		{Name: "swig", Version: "4.0.2-1"},
	}

	c.Run("linux installs everything", func(c *qt.C) {
		b, rec := newTestBuilder(c, "linux-x86_64")
		c.Assert(b.InstallPackages(testCtx(), reqs), qt.IsNil)
		c.Assert(rec.Lines(), qt.DeepEquals, []string{
			b.Args.BuildRoot + "$ apt-get update",
			b.Args.BuildRoot + "$ apt-get install -y --no-install-recommends autoconf libjpeg-turbo8-dev swig=4.0.2-1",
		})
		c.Assert(rec.Commands[1].Env["DEBIAN_FRONTEND"], qt.Equals, "noninteractive")
	})

	c.Run("android skips linux-only packages", func(c *qt.C) {
		b, rec := newTestBuilder(c, "android-arm64-v8a")
		b.Config.Packages.AptGet = "sudo apt-get"
		c.Assert(b.InstallPackages(testCtx(), reqs), qt.IsNil)
		c.Assert(rec.Lines(), qt.DeepEquals, []string{
			b.Args.BuildRoot + "$ sudo apt-get update",
			b.Args.BuildRoot + "$ sudo apt-get install -y --no-install-recommends autoconf swig=4.0.2-1",
		})
	})

	c.Run("skip install", func(c *qt.C) {
		b, rec := newTestBuilder(c, "linux-x86_64")
		b.Args.SkipInstall = true
		c.Assert(b.InstallPackages(testCtx(), reqs), qt.IsNil)
		c.Assert(rec.Commands, qt.HasLen, 0)
	})

	c.Run("nothing left to install", func(c *qt.C) {
		b, rec := newTestBuilder(c, "android-x86_64")
		c.Assert(b.InstallPackages(testCtx(), reqs[1:2]), qt.IsNil)
		c.Assert(rec.Commands, qt.HasLen, 0)
	})
}

func TestMakeDirs(t *testing.T) {
	c := qt.New(t)
	b, _ := newTestBuilder(c, "linux-x86_64")
	ctx := testCtx()

	c.Assert(b.MakeDirs(ctx), qt.IsNil)
	for _, dir := range []string{b.Args.SourceDir, b.Args.BuildDir, b.Args.InstallDir, b.Args.LogDir, b.Args.PackageDir} {
		info, err := os.Stat(dir)
		c.Assert(err, qt.IsNil)
		c.Assert(info.IsDir(), qt.IsTrue)
	}

	stale := filepath.Join(b.Args.InstallDir, "stale.txt")
	c.Assert(os.WriteFile(stale, []byte("old"), 0o644), qt.IsNil)

	c.Assert(b.MakeDirs(ctx), qt.IsNil)
	_, err := os.Stat(stale)
	c.Assert(err, qt.IsNil)

	b.Args.Force = true
	c.Assert(b.MakeDirs(ctx), qt.IsNil)
	_, err = os.Stat(stale)
	c.Assert(os.IsNotExist(err), qt.IsTrue)
}
