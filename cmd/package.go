package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/racecomms/jelbuild/pkg"
)

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Packages an existing install tree",
	Long: `Archives the install directory of a previous build without building anything and
optionally publishes the package.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		a, err := readArgs(cmd, nil, cfg)
		if err != nil {
			return err
		}

		b, ctx, logFile, err := setupBuilder(context.Background(), cfg, a)
		if err != nil {
			return err
		}
		defer logFile.Close()

		pkg.PrintTask("Packaging " + a.PackageName())
		artifact, err := b.CreatePackage(ctx)
		if err != nil {
			return err
		}

		if a.Publish != "" {
			pkg.PrintSubtask("Publishing to " + a.Publish)
			err = b.Publish(ctx, a.Publish, artifact)
			if err != nil {
				return err
			}
		}

		pkg.PrintTask("Done: " + artifact.Path)
		return nil
	},
}

func init() {
	addBuildFlags(packageCmd)
	addPackageFlags(packageCmd)
	rootCmd.AddCommand(packageCmd)
}
