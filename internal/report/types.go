package report

// Report is the top-level output of an imgopt batch run.
type Report struct {
	Version     int              `json:"version"`
	GeneratedAt string           `json:"generated_at"`
	Constraint  Constraint       `json:"constraint"`
	BuildInfo   *BuildInfo       `json:"build_info,omitempty"`
	Assets      map[string]Asset `json:"assets"`
	Stats       Stats            `json:"stats"`
}

// Constraint records the bounds every asset was optimized against.
type Constraint struct {
	MaxBytes int64    `json:"max_bytes,omitempty"`
	MaxDiff  *float64 `json:"max_diff,omitempty"`
	Metric   string   `json:"metric"`
	Formats  []string `json:"formats"`
}

// BuildInfo captures run parameters for diagnostics.
type BuildInfo struct {
	Workers     int    `json:"workers"`
	Concurrency int    `json:"concurrency"` // per-image format searches, 0 = NumCPU
	Version     string `json:"imgopt_version"`
}

// Asset describes one source image and its optimized output.
type Asset struct {
	Original OriginalInfo `json:"original"`
	Output   *Output      `json:"output,omitempty"` // nil on hard failure or skip
	Passed   bool         `json:"passed"`
	Cached   bool         `json:"cached,omitempty"`
	Skipped  bool         `json:"skipped,omitempty"` // output not smaller than the original
	Reason   string       `json:"reason,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// OriginalInfo holds metadata about the source file.
type OriginalInfo struct {
	Path   string `json:"path"` // relative to the input directory
	Format string `json:"format"`
	Size   int64  `json:"size"`
}

// Output is the optimized file written for an asset.
type Output struct {
	Format  string   `json:"format"`
	Quality int      `json:"quality"`
	Size    int64    `json:"size"`           // bytes on disk
	Diff    *float64 `json:"diff,omitempty"` // nil when no metric was computed
	Hash    string   `json:"hash"`           // first 16 hex chars of xxhash64
	Path    string   `json:"path"`           // relative to the report
}

// Reduction is the fraction of the original size saved, in [0, 1) for
// outputs smaller than the original.
func (a Asset) Reduction() float64 {
	if a.Output == nil || a.Original.Size <= 0 {
		return 0
	}
	return 1 - float64(a.Output.Size)/float64(a.Original.Size)
}

// Stats aggregates run metrics.
type Stats struct {
	TotalInputBytes  int64 `json:"total_input_bytes"`
	TotalOutputBytes int64 `json:"total_output_bytes"`
	TotalAssets      int   `json:"total_assets"`
	Passed           int   `json:"passed"`
	Failed           int   `json:"failed"` // closest candidate written, bounds not met
	Errors           int   `json:"errors"`
	Skipped          int   `json:"skipped,omitempty"`
}

// SupportedReportVersion is the current schema version.
const SupportedReportVersion = 1

// FileName is the report's name inside the output directory.
const FileName = "imgopt.report.json"
