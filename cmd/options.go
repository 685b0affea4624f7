package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/racecomms/jelbuild/pkg/extbuilder"
	"github.com/racecomms/jelbuild/pkg/recipe"
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Lists the options a recipe accepts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		a, err := readArgs(cmd, nil, cfg)
		if err != nil {
			return err
		}
		// only the global scope runs, nothing may touch the sandbox
		a.DryRun = true

		filename, src, err := loadRecipe(cmd, a.Name)
		if err != nil {
			return err
		}

		b := extbuilder.New(a, cfg, extbuilder.NewShellRunner())
		r, err := recipe.Load(context.Background(), b, filename, src)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(r.Options))
		maxNameLen := 0
		for name := range r.Options {
			names = append(names, name)
			if len(name) > maxNameLen {
				maxNameLen = len(name)
			}
		}
		sort.Strings(names)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Options of %s:\n", filename)
		lineFmt := fmt.Sprintf(" * %%-%ds %%s (default: %%q)\n", maxNameLen+3)
		for _, name := range names {
			opt := r.Options[name]
			fmt.Fprintf(out, lineFmt, name+":", opt.Help, opt.Default)
		}

		return nil
	},
}

func init() {
	addBuildFlags(optionsCmd)
	optionsCmd.Flags().String("recipe", "", "build.star to inspect instead of the bundled recipe")
	rootCmd.AddCommand(optionsCmd)
}
