package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/racecomms/jelbuild/pkg/extbuilder"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Lists the supported targets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printTargets(cmd.OutOrStdout())
	},
}

func printTargets(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tTRIPLE\tABI\tPREFIX")
	for _, name := range extbuilder.SupportedTargets {
		target, err := extbuilder.ParseTarget(name)
		if err != nil {
			return err
		}

		abi := target.ABI()
		if abi == "" {
			abi = "-"
		}
		prefix := target.Prefix()
		if prefix == "" {
			prefix = "/"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", target, target.Triple(), abi, prefix)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(targetsCmd)
}
