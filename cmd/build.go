package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/racecomms/jelbuild/pkg"
	"github.com/racecomms/jelbuild/pkg/extbuilder"
	"github.com/racecomms/jelbuild/pkg/recipe"
)

var buildCmd = &cobra.Command{
	Use:   "build [key=value...]",
	Short: "Builds a library and packages the result",
	Long: `Runs the library's recipe for the given target: installs the required OS packages,
copies the vendored sources into the sandbox, configures, builds and installs the
library and packages the install tree. Trailing key=value arguments are passed to the
recipe as options (jel2 understands python=yes).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		a, err := readArgs(cmd, args, cfg)
		if err != nil {
			return err
		}

		filename, src, err := loadRecipe(cmd, a.Name)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b, ctx, logFile, err := setupBuilder(ctx, cfg, a)
		if err != nil {
			return err
		}
		defer logFile.Close()

		logger := extbuilder.Log(ctx)
		pkg.PrintTask(fmt.Sprintf("Building %s %s for %s", a.Name, a.VersionString(), a.Target))
		logger.Debug().
			Str("source", a.SourceDir).
			Str("install", a.InstallDir).
			Interface("options", a.Options).
			Msgf("Using recipe %s", filename)

		artifact, err := recipe.Run(ctx, b, filename, src)
		if err != nil {
			logger.Error().Err(err).Msg("Build failed")
			return reportedError{err}
		}

		if artifact == nil {
			logger.Warn().Msgf("%s did not call create_package(), nothing to publish", filename)
			return nil
		}

		if a.Publish != "" {
			pkg.PrintTask("Publishing " + a.PackageName())
			err = b.Publish(ctx, a.Publish, artifact)
			if err != nil {
				logger.Error().Err(err).Msg("Publishing failed")
				return reportedError{err}
			}
		}

		pkg.PrintTask("Done: " + artifact.Path)
		return nil
	},
}

func init() {
	addBuildFlags(buildCmd)
	addPackageFlags(buildCmd)
	buildCmd.Flags().String("recipe", "", "build.star to run instead of the bundled recipe")
	buildCmd.Flags().BoolP("force", "f", false, "remove the previous source, build and install trees first")
	buildCmd.Flags().Bool("skip-install", false, "don't install OS packages")

	rootCmd.AddCommand(buildCmd)
}
