package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/racecomms/jelbuild/pkg"
)

var fetchDepsCmd = &cobra.Command{
	Use:   "fetch-deps [deps.yml]",
	Short: "Downloads and unpacks source archives",
	Long: `Downloads, verifies and unpacks the archives listed in a deps.yml file into the
source directory of the build. Defaults to <code dir>/<name>/deps.yml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg.PrintTask("Loading config")
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		a, err := readArgs(cmd, nil, cfg)
		if err != nil {
			return err
		}

		depsFile := filepath.Join(a.CodeDir, a.Name, "deps.yml")
		if len(args) > 0 {
			depsFile = args[0]
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		b, ctx, logFile, err := setupBuilder(ctx, cfg, a)
		if err != nil {
			return err
		}
		defer logFile.Close()

		pkg.PrintTask("Downloading dependencies")
		err = b.FetchDeps(ctx, depsFile)
		if err != nil {
			return err
		}

		pkg.PrintTask("Done")
		return nil
	},
}

func init() {
	addBuildFlags(fetchDepsCmd)
	rootCmd.AddCommand(fetchDepsCmd)
}
