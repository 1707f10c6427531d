package main

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AnyUserName/imgopt/internal/batch"
	"github.com/AnyUserName/imgopt/internal/report"
)

var (
	batchOutDir    string
	batchWorkers   int
	batchNoRegress bool
	batchFlags     constraintFlags
)

var batchCmd = &cobra.Command{
	Use:   "batch <input_dir>",
	Short: "Optimize every image in a directory and write a report",
	Long: `Scans the input directory for images (png, jpg, jpeg, webp, gif, bmp,
tiff), optimizes each one under the same constraint with a shared result
cache, and writes the outputs plus imgopt.report.json to the output
directory.

Output filenames are content-addressed: <key>.<hash>.ext`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchOutDir, "out", "o", "./imgopt_out", "output directory")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "images optimized at once (0 = NumCPU)")
	batchCmd.Flags().BoolVar(&batchNoRegress, "no-regress-size", true, "keep the original when the output is not smaller")
	batchFlags.register(batchCmd.Flags())
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	start := time.Now()

	absInput, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}
	absOutput, err := filepath.Abs(batchOutDir)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}
	tmpl, err := batchFlags.request(cmd)
	if err != nil {
		return err
	}

	logger.Debug("batch",
		zap.String("input", absInput),
		zap.String("output", absOutput),
		zap.String("constraint", describeConstraint(tmpl)))

	if err := os.MkdirAll(absOutput, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	opt, err := newOptimizer()
	if err != nil {
		return err
	}
	defer opt.Close()

	r := batch.New(batch.Config{
		InputDir:      absInput,
		OutputDir:     absOutput,
		Workers:       batchWorkers,
		Template:      tmpl,
		NoRegressSize: batchNoRegress,
	}, opt, logger)

	rep, err := r.Run()
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}

	reportPath := filepath.Join(absOutput, report.FileName)
	if err := report.WriteJSON(rep, reportPath); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	printBatchReport(cmd.OutOrStdout(), rep, time.Since(start))
	return nil
}

func printBatchReport(w io.Writer, rep *report.Report, elapsed time.Duration) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║              imgopt batch complete               ║")
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════╝")
	fmt.Fprintln(w)

	s := rep.Stats
	ratio := float64(0)
	if s.TotalInputBytes > 0 {
		ratio = float64(s.TotalOutputBytes) / float64(s.TotalInputBytes) * 100
	}

	fmt.Fprintf(w, "  Images:      %d\n", s.TotalAssets)
	fmt.Fprintf(w, "  Passed:      %d\n", s.Passed)
	if s.Failed > 0 {
		fmt.Fprintf(w, "  Not passed:  %d (closest candidate written)\n", s.Failed)
	}
	if s.Skipped > 0 {
		fmt.Fprintf(w, "  Skipped:     %d (output not smaller than original)\n", s.Skipped)
	}
	if s.Errors > 0 {
		fmt.Fprintf(w, "  Errors:      %d\n", s.Errors)
	}
	fmt.Fprintf(w, "  Input size:  %s\n", humanize.IBytes(uint64(s.TotalInputBytes)))
	fmt.Fprintf(w, "  Output size: %s\n", humanize.IBytes(uint64(s.TotalOutputBytes)))
	fmt.Fprintf(w, "  Ratio:       %.1f%% of original\n", ratio)
	fmt.Fprintf(w, "  Time:        %s\n", elapsed.Round(time.Millisecond))
	if rep.BuildInfo != nil {
		fmt.Fprintf(w, "  Workers:     %d\n", rep.BuildInfo.Workers)
	}
	fmt.Fprintln(w)

	// Top 10 heaviest images.
	keys := assetKeys(rep)
	slices.SortStableFunc(keys, func(a, b string) int {
		return cmp.Compare(rep.Assets[b].Original.Size, rep.Assets[a].Original.Size)
	})
	n := min(len(keys), 10)
	if n > 0 {
		fmt.Fprintf(w, "  Top %d heaviest (original → optimized):\n", n)
		for _, key := range keys[:n] {
			a := rep.Assets[key]
			after := "kept"
			switch {
			case a.Error != "":
				after = "error"
			case a.Output != nil:
				after = humanize.IBytes(uint64(a.Output.Size))
			}
			fmt.Fprintf(w, "    %-40s %10s → %10s  (−%.0f%%)\n",
				truncKey(key, 40),
				humanize.IBytes(uint64(a.Original.Size)),
				after,
				a.Reduction()*100,
			)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "  Formats:     %s\n", strings.Join(detectOutputFormats(rep), ", "))
	fmt.Fprintln(w)

	data, _ := json.Marshal(rep)
	fmt.Fprintf(w, "  Report:      %s (%s)\n", report.FileName, humanize.IBytes(uint64(len(data))))
	fmt.Fprintln(w)
}

func assetKeys(rep *report.Report) []string {
	keys := make([]string, 0, len(rep.Assets))
	for k := range rep.Assets {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func detectOutputFormats(rep *report.Report) []string {
	set := map[string]bool{}
	for _, a := range rep.Assets {
		if a.Output != nil {
			set[a.Output.Format] = true
		}
	}
	var out []string
	for _, f := range []string{"avif", "webp", "jpeg", "png"} {
		if set[f] {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return []string{"none"}
	}
	return out
}

func truncKey(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
