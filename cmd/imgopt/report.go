package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgopt/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report <out_dir_or_report>",
	Short: "Display statistics for a batch output directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

// reportPath resolves a directory argument to the report inside it.
func reportPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return filepath.Join(path, report.FileName), nil
	}
	return path, nil
}

func runReport(cmd *cobra.Command, args []string) error {
	path, err := reportPath(args[0])
	if err != nil {
		return err
	}
	rep, err := report.Read(path)
	if err != nil {
		return err
	}
	printStats(cmd.OutOrStdout(), rep)
	return nil
}

func printStats(w io.Writer, rep *report.Report) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Report version:   %d\n", rep.Version)
	fmt.Fprintf(w, "  Generated:        %s\n", rep.GeneratedAt)
	if rep.BuildInfo != nil {
		fmt.Fprintf(w, "  imgopt:           %s\n", rep.BuildInfo.Version)
		fmt.Fprintf(w, "  Workers:          %d\n", rep.BuildInfo.Workers)
	}
	c := rep.Constraint
	if c.MaxBytes > 0 {
		fmt.Fprintf(w, "  max_bytes:        %s\n", humanize.IBytes(uint64(c.MaxBytes)))
	}
	if c.MaxDiff != nil {
		fmt.Fprintf(w, "  max_diff:         %g (%s)\n", *c.MaxDiff, c.Metric)
	}
	fmt.Fprintln(w)

	s := rep.Stats
	fmt.Fprintf(w, "  Total images:     %d\n", s.TotalAssets)
	fmt.Fprintf(w, "  Passed:           %d\n", s.Passed)
	fmt.Fprintf(w, "  Not passed:       %d\n", s.Failed)
	fmt.Fprintf(w, "  Skipped:          %d\n", s.Skipped)
	fmt.Fprintf(w, "  Errors:           %d\n", s.Errors)
	fmt.Fprintf(w, "  Input size:       %s\n", humanize.IBytes(uint64(s.TotalInputBytes)))
	fmt.Fprintf(w, "  Output size:      %s\n", humanize.IBytes(uint64(s.TotalOutputBytes)))
	if s.TotalInputBytes > 0 {
		ratio := float64(s.TotalOutputBytes) / float64(s.TotalInputBytes) * 100
		fmt.Fprintf(w, "  Compression:      %.1f%% of original\n", ratio)
	}
	fmt.Fprintln(w)

	// Per-format breakdown.
	formatStats := map[string]struct {
		count int
		bytes int64
	}{}
	for _, a := range rep.Assets {
		if a.Output == nil {
			continue
		}
		fs := formatStats[a.Output.Format]
		fs.count++
		fs.bytes += a.Output.Size
		formatStats[a.Output.Format] = fs
	}
	fmt.Fprintln(w, "  Format breakdown:")
	for _, f := range []string{"avif", "webp", "jpeg", "png"} {
		if fs, ok := formatStats[f]; ok {
			fmt.Fprintf(w, "    %-6s  %4d files  %s\n", f, fs.count, humanize.IBytes(uint64(fs.bytes)))
		}
	}
	fmt.Fprintln(w)

	// Images that did not meet the constraint or failed outright.
	var warnings []string
	for _, key := range assetKeys(rep) {
		a := rep.Assets[key]
		switch {
		case a.Error != "":
			warnings = append(warnings, fmt.Sprintf("%s: %s", key, a.Error))
		case !a.Passed && !a.Skipped:
			warnings = append(warnings, fmt.Sprintf("%s: %s", key, a.Reason))
		}
	}
	if len(warnings) > 0 {
		fmt.Fprintf(w, "  Warnings (%d):\n", len(warnings))
		for _, msg := range warnings {
			fmt.Fprintf(w, "    ⚠ %s\n", msg)
		}
		fmt.Fprintln(w)
	}
}
