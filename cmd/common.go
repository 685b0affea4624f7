package cmd

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/racecomms/jelbuild/pkg"
	"github.com/racecomms/jelbuild/pkg/config"
	"github.com/racecomms/jelbuild/pkg/extbuilder"
	"github.com/racecomms/jelbuild/recipes"
)

// addBuildFlags registers the flags identifying a single build
func addBuildFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("name", "jel2", "library to build, selects the bundled recipe")
	flags.StringP("target", "t", "linux-x86_64", "target platform (see 'jelbuild targets')")
	flags.StringP("version", "v", "1.0.0", "library version")
	flags.IntP("revision", "r", 1, "package revision")
	flags.String("code-dir", "", "directory containing the vendored sources (searched upwards from the working directory by default)")
	flags.String("cache-dir", "", "root of the build sandbox (overrides cache_dir)")
	flags.BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	flags.IntP("jobs", "j", 0, "parallel make jobs (overrides toolchain.jobs)")
}

func addPackageFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "", "package format: tar.gz, tar.xz, tar.br or tar.zst (overrides packages.format)")
	cmd.Flags().String("publish", "", "upload the package to this s3://bucket/prefix URL (overrides publish.url)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	files, err := cmd.Flags().GetStringSlice("config")
	if err != nil {
		return nil, err
	}

	return config.Load(files...)
}

func flagString(cmd *cobra.Command, name string) (string, error) {
	if cmd.Flags().Lookup(name) == nil {
		return "", nil
	}
	return cmd.Flags().GetString(name)
}

func flagBool(cmd *cobra.Command, name string) (bool, error) {
	if cmd.Flags().Lookup(name) == nil {
		return false, nil
	}
	return cmd.Flags().GetBool(name)
}

// readArgs converts flags and trailing key=value arguments into normalized build
// arguments
func readArgs(cmd *cobra.Command, positional []string, cfg *config.Config) (*extbuilder.Args, error) {
	a := &extbuilder.Args{Options: map[string]string{}}
	var err error

	for _, part := range positional {
		key, value, ok := strings.Cut(part, "=")
		if !ok || key == "" {
			return nil, eris.Errorf("Unexpected argument %s, options are passed as key=value", part)
		}
		a.Options[key] = value
	}

	strFlags := map[string]*string{
		"name":      &a.Name,
		"target":    &a.TargetName,
		"version":   &a.Version,
		"code-dir":  &a.CodeDir,
		"cache-dir": &a.CacheDir,
		"format":    &a.Format,
		"publish":   &a.Publish,
	}
	for name, dest := range strFlags {
		*dest, err = flagString(cmd, name)
		if err != nil {
			return nil, err
		}
	}

	boolFlags := map[string]*bool{
		"dry":          &a.DryRun,
		"force":        &a.Force,
		"skip-install": &a.SkipInstall,
	}
	for name, dest := range boolFlags {
		*dest, err = flagBool(cmd, name)
		if err != nil {
			return nil, err
		}
	}

	a.Revision, err = cmd.Flags().GetInt("revision")
	if err != nil {
		return nil, err
	}

	a.Jobs, err = cmd.Flags().GetInt("jobs")
	if err != nil {
		return nil, err
	}

	if a.CodeDir == "" {
		a.CodeDir, err = pkg.FindCodeDir(".", a.Name)
		if err != nil {
			return nil, eris.Wrap(err, "Pass --code-dir to point at the vendored sources")
		}
	}

	err = a.Normalize(cfg)
	if err != nil {
		return nil, err
	}

	return a, nil
}

// setupBuilder creates the sandbox and the build log and returns a builder together
// with a context carrying the build logger
func setupBuilder(ctx context.Context, cfg *config.Config, a *extbuilder.Args) (*extbuilder.Builder, context.Context, io.Closer, error) {
	var console io.Writer = NewConsoleWriter(os.Stderr)
	if cfg.Log.JSON {
		console = os.Stderr
	}

	consoleLogger := zerolog.New(console).Level(cfg.LogLevel())
	runner := extbuilder.NewShellRunner()
	self, err := os.Executable()
	if err == nil {
		runner.SelfExe = self
	}

	b := extbuilder.New(a, cfg, runner)
	err = b.MakeDirs(extbuilder.WithLogger(ctx, &consoleLogger))
	if err != nil {
		return nil, nil, nil, err
	}

	logger, closer, err := extbuilder.SetupLogger(a, console, cfg.LogLevel())
	if err != nil {
		return nil, nil, nil, err
	}

	return b, extbuilder.WithLogger(ctx, &logger), closer, nil
}

// loadRecipe returns the file name and source of the recipe for a build. A nil source
// means the file has to be read from disk.
func loadRecipe(cmd *cobra.Command, name string) (string, []byte, error) {
	path, err := flagString(cmd, "recipe")
	if err != nil {
		return "", nil, err
	}

	if path != "" {
		return path, nil, nil
	}

	src, err := recipes.Get(name)
	if err != nil {
		return "", nil, err
	}

	return name + "/build.star", src, nil
}
