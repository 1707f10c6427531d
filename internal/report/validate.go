package report

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// Validate checks r for internal consistency and that every output it
// references exists under baseDir with the recorded size. It returns one
// message per problem, sorted by asset key.
func Validate(r *Report, baseDir string) []string {
	var errs []string

	if r.Version != SupportedReportVersion {
		errs = append(errs, fmt.Sprintf("unsupported report version: %d", r.Version))
	}

	keys := make([]string, 0, len(r.Assets))
	for key := range r.Assets {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	seenPaths := map[string]string{}
	for _, key := range keys {
		a := r.Assets[key]
		if a.Original.Size <= 0 {
			errs = append(errs, fmt.Sprintf("asset %q: invalid original size %d", key, a.Original.Size))
		}
		if a.Error != "" {
			if a.Output != nil {
				errs = append(errs, fmt.Sprintf("asset %q: has both an error and an output", key))
			}
			continue
		}
		if a.Skipped {
			continue
		}
		if a.Output == nil {
			errs = append(errs, fmt.Sprintf("asset %q: no output", key))
			continue
		}

		out := a.Output
		if out.Format == "" {
			errs = append(errs, fmt.Sprintf("asset %q: empty format", key))
		}
		if out.Hash == "" {
			errs = append(errs, fmt.Sprintf("asset %q: missing hash", key))
		}
		if a.Passed && r.Constraint.MaxBytes > 0 && out.Size > r.Constraint.MaxBytes {
			errs = append(errs, fmt.Sprintf("asset %q: passed but %d bytes exceeds max_bytes %d",
				key, out.Size, r.Constraint.MaxBytes))
		}
		if a.Passed && r.Constraint.MaxDiff != nil && out.Diff != nil && *out.Diff > *r.Constraint.MaxDiff {
			errs = append(errs, fmt.Sprintf("asset %q: passed but diff %.6g exceeds max_diff %.6g",
				key, *out.Diff, *r.Constraint.MaxDiff))
		}
		if !a.Passed && a.Reason == "" {
			errs = append(errs, fmt.Sprintf("asset %q: not passed and no reason given", key))
		}
		if out.Path == "" {
			errs = append(errs, fmt.Sprintf("asset %q: missing path", key))
			continue
		}

		if other, dup := seenPaths[out.Path]; dup {
			errs = append(errs, fmt.Sprintf("asset %q: duplicate path %q (also %q)", key, out.Path, other))
		}
		seenPaths[out.Path] = key

		info, err := os.Stat(filepath.Join(baseDir, filepath.FromSlash(out.Path)))
		if err != nil {
			errs = append(errs, fmt.Sprintf("asset %q: file not found: %s", key, out.Path))
		} else if info.Size() != out.Size {
			errs = append(errs, fmt.Sprintf("asset %q: size mismatch: report=%d, disk=%d",
				key, out.Size, info.Size()))
		}
	}

	if r.Stats.TotalAssets != len(r.Assets) {
		errs = append(errs, fmt.Sprintf("stats.total_assets mismatch: %d != %d", r.Stats.TotalAssets, len(r.Assets)))
	}
	return errs
}
