package cmd

import (
	"errors"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/racecomms/jelbuild/pkg"
)

var rootCmd = &cobra.Command{
	Use:   "jelbuild",
	Short: "Builds jel2 and its Python binding",
	Long: `This command builds the jel2 JPEG steganography library (and optionally its
SWIG generated Python binding) for Linux and Android targets and packages the result.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// reportedError marks errors which were already logged
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config files to load (defaults to jelbuild.toml if present)")
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			pkg.PrintError(eris.ToString(err, debugEnabled()))
		}
		os.Exit(1)
	}
}
