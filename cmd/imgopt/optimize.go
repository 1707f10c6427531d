package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgopt"
	"github.com/AnyUserName/imgopt/internal/metric"
)

var (
	optimizeOut    string
	optimizeStrict bool
	optimizeFlags  constraintFlags
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize <input>",
	Short: "Optimize one image under a size and/or difference bound",
	Long: `Re-encodes <input> ("-" reads stdin) into every candidate format,
searching each format's quality range for the smallest output that meets
--max-bytes and --max-diff, and saves the winner.

The output defaults to <input>.opt.<ext> next to the input.`,
	Args: cobra.ExactArgs(1),
	RunE: runOptimize,
}

func init() {
	optimizeCmd.Flags().StringVarP(&optimizeOut, "out", "o", "", "output path")
	optimizeCmd.Flags().BoolVar(&optimizeStrict, "strict", false, "exit non-zero when the bounds cannot be met")
	optimizeFlags.register(optimizeCmd.Flags())
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	input := args[0]

	req, err := optimizeFlags.request(cmd)
	if err != nil {
		return err
	}
	var stdin *countingReader
	if input == "-" {
		if optimizeOut == "" {
			return errors.New("--out is required when reading stdin")
		}
		stdin = &countingReader{r: cmd.InOrStdin()}
		req.Reader = stdin
	} else {
		fromFile, err := imgopt.RequestFromFile(input)
		if err != nil {
			return err
		}
		req.Input = fromFile.Input
	}

	opt, err := newOptimizer()
	if err != nil {
		return err
	}
	defer opt.Close()

	res, err := opt.Optimize(req)
	if err != nil {
		return err
	}
	originalSize := int64(len(req.Input))
	if stdin != nil {
		originalSize = stdin.n
	}

	out := optimizeOut
	if out == "" {
		out = strings.TrimSuffix(input, filepath.Ext(input)) + ".opt." + res.Extension()
	}
	if err := res.Save(out); err != nil {
		return err
	}

	printVerdict(cmd.OutOrStdout(), req, res, originalSize, out)
	if optimizeStrict && !res.Passed {
		return fmt.Errorf("constraint not met: %s", res.Reason)
	}
	return nil
}

func printVerdict(w io.Writer, req imgopt.Request, res *imgopt.Result, originalSize int64, path string) {
	verdict := "passed"
	if !res.Passed {
		verdict = "NOT passed (closest candidate saved)"
	}
	saved := float64(0)
	if originalSize > 0 {
		saved = (1 - float64(res.Size)/float64(originalSize)) * 100
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Constraint: %s\n", describeConstraint(req))
	fmt.Fprintf(w, "  Verdict:    %s\n", verdict)
	fmt.Fprintf(w, "  Format:     %s (quality %d)\n", res.Format, res.Quality)
	fmt.Fprintf(w, "  Size:       %s → %s  (%+.0f%%)\n",
		humanize.IBytes(uint64(originalSize)), humanize.IBytes(uint64(res.Size)), -saved)
	if res.HasDiff {
		if k, _ := metric.Parse(req.Metric); k == metric.SSIMULACRA2 {
			fmt.Fprintf(w, "  Diff:       %.6g (score %.1f)\n", res.DiffValue, metric.Score100(res.DiffValue))
		} else {
			fmt.Fprintf(w, "  Diff:       %.6g\n", res.DiffValue)
		}
	}
	if res.Cached {
		fmt.Fprintln(w, "  Cached:     yes")
	}
	if res.Reason != "" {
		fmt.Fprintf(w, "  Reason:     %s\n", res.Reason)
	}
	fmt.Fprintf(w, "  Output:     %s\n", path)
	fmt.Fprintln(w)
}

// countingReader remembers how many bytes the optimizer pulled from stdin.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
