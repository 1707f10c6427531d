package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgopt/internal/encoder"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List output formats and their quality parameters",
	Args:  cobra.NoArgs,
	RunE:  runFormats,
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(cmd *cobra.Command, _ []string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMAT\tAVAILABLE\tRANGE\tDIRECTION\tDEFAULT")
	for _, enc := range encoder.Builtin() {
		r := enc.QualityRange()
		avail := "yes"
		if !enc.Available() {
			avail = "no"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d..%d\t%s\t%d\n",
			enc.Format(), avail, r.Min, r.Max, enc.Direction(), enc.DefaultQuality())
	}
	return tw.Flush()
}
