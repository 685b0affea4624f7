package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/racecomms/jelbuild/pkg/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{CacheDir: "/build/cache"}
	cfg.Log.Level = "info"
	cfg.Toolchain.NDKDir = "/opt/ndk"
	cfg.Toolchain.AndroidAPI = 29
	cfg.Packages.AptGet = "apt-get"
	cfg.Packages.Format = "tar.gz"
	return cfg
}

func testCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	addBuildFlags(cmd)
	addPackageFlags(cmd)
	cmd.Flags().BoolP("force", "f", false, "")
	return cmd
}

func TestReadArgs(t *testing.T) {
	c := qt.New(t)
	codeDir := c.TempDir()
	cacheDir := c.TempDir()

	cmd := testCommand()
	c.Assert(cmd.ParseFlags([]string{
		"-t", "android-arm64-v8a",
		"-r", "3",
		"--code-dir", codeDir,
		"--cache-dir", cacheDir,
		"--format", "tar.xz",
		"-f",
	}), qt.IsNil)

	a, err := readArgs(cmd, []string{"python=yes", "extra=a=b"}, testConfig())
	c.Assert(err, qt.IsNil)
	c.Assert(a.Name, qt.Equals, "jel2")
	c.Assert(a.Version, qt.Equals, "1.0.0")
	c.Assert(a.Revision, qt.Equals, 3)
	c.Assert(a.Target.String(), qt.Equals, "android-arm64-v8a")
	c.Assert(a.Format, qt.Equals, "tar.xz")
	c.Assert(a.Force, qt.IsTrue)
	c.Assert(a.DryRun, qt.IsFalse)
	c.Assert(a.SkipInstall, qt.IsFalse)
	c.Assert(a.Options, qt.DeepEquals, map[string]string{"python": "yes", "extra": "a=b"})
	c.Assert(a.BuildRoot, qt.Equals, filepath.Join(cacheDir, "jel2", "1.0.0-3", "android-arm64-v8a"))
}

func TestReadArgs_Errors(t *testing.T) {
	c := qt.New(t)
	cfg := testConfig()

	cmd := testCommand()
	c.Assert(cmd.ParseFlags([]string{"--code-dir", c.TempDir()}), qt.IsNil)
	_, err := readArgs(cmd, []string{"python"}, cfg)
	c.Assert(err, qt.ErrorMatches, `Unexpected argument python, options are passed as key=value`)

	cmd = testCommand()
	c.Assert(cmd.ParseFlags([]string{"--code-dir", c.TempDir(), "-t", "windows-x86_64"}), qt.IsNil)
	_, err = readArgs(cmd, nil, cfg)
	c.Assert(err, qt.ErrorMatches, `Unsupported target windows-x86_64.*`)

	cmd = testCommand()
	c.Assert(cmd.ParseFlags([]string{"--code-dir", c.TempDir(), "-v", "one"}), qt.IsNil)
	_, err = readArgs(cmd, nil, cfg)
	c.Assert(err, qt.ErrorMatches, `Invalid version "one".*`)
}

func TestConsoleWriter(t *testing.T) {
	c := qt.New(t)
	c.Setenv("JELBUILD_DEBUG", "")

	buffer := bytes.Buffer{}
	logger := zerolog.New(NewConsoleWriter(&buffer))
	logger.Info().Str("task", "jel2/linux-x86_64").Msg("Configuring")
	c.Assert(buffer.String(), qt.Contains, "jel2/linux-x86_64: Configuring")

	buffer.Reset()
	logger.Info().Bool("command", true).Msg("make install")
	c.Assert(buffer.String(), qt.Matches, `(?s).*\$.*make install.*`)

	buffer.Reset()
	logger.Error().Msg("Build failed")
	c.Assert(buffer.String(), qt.Contains, "Error: Build failed")
}

func TestPrintTargets(t *testing.T) {
	c := qt.New(t)
	buffer := bytes.Buffer{}
	c.Assert(printTargets(&buffer), qt.IsNil)

	out := buffer.String()
	c.Assert(out, qt.Matches, `(?s)TARGET +TRIPLE +ABI +PREFIX\n.*`)
	c.Assert(out, qt.Matches, `(?s).*linux-x86_64 +x86_64-linux-gnu +- +/\n.*`)
	c.Assert(out, qt.Matches, `(?s).*android-arm64-v8a +aarch64-linux-android +arm64-v8a +/android/arm64-v8a\n.*`)
}
