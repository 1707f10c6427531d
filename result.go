package imgopt

import (
	"fmt"

	"github.com/AnyUserName/imgopt/internal/cache"
	apperrors "github.com/AnyUserName/imgopt/internal/errors"
	"github.com/AnyUserName/imgopt/internal/fsutil"
	"github.com/AnyUserName/imgopt/internal/selector"
)

// Result is the response to a Request.
//
// Passed is true iff every bound set in the request holds for Output. A
// result with Passed false and an empty ErrorMessage still carries the
// closest candidate found, with Reason explaining what could not be met.
// ErrorMessage is set only on hard failures, in which case Output is empty.
type Result struct {
	Version int

	Passed bool
	Format string
	// Quality is the native encoder parameter the output was produced with.
	Quality int
	Size    int64
	// DiffValue is the metric distance of Output from the source; only
	// meaningful when HasDiff is set.
	DiffValue float64
	HasDiff   bool
	Output    []byte

	ErrorMessage string
	Reason       string
	// Cached is set when the result was served from the result cache.
	Cached bool

	ext string
}

// Extension returns the file extension of the encoder that produced Output,
// without the leading dot. It falls back to Format.
func (r *Result) Extension() string {
	if r.ext != "" {
		return r.ext
	}
	return r.Format
}

// Save writes Output to path atomically: a temporary file in the destination
// directory is synced and then renamed over path.
func (r *Result) Save(path string) error {
	if len(r.Output) == 0 {
		return apperrors.New(apperrors.CategoryStorage, "save", apperrors.ErrNoOutput)
	}
	if err := fsutil.WriteFile(path, r.Output, 0o644); err != nil {
		return apperrors.New(apperrors.CategoryStorage, "save",
			fmt.Errorf("%w: %v", apperrors.ErrDestination, err))
	}
	return nil
}

func (r *Result) clone() *Result {
	c := *r
	c.Output = append([]byte(nil), r.Output...)
	return &c
}

// failure builds the result of a hard failure.
func failure(err error) *Result {
	return &Result{Version: ContractVersion, ErrorMessage: err.Error()}
}

// assemble turns a selection into a Result.
func assemble(sel selector.Selection) *Result {
	if sel.Winner == nil {
		err := sel.Err
		if err == nil {
			err = apperrors.New(apperrors.CategoryEncode, "assemble", apperrors.ErrNoOutput)
		}
		return failure(err)
	}
	w := sel.Winner
	return &Result{
		Version:   ContractVersion,
		Passed:    sel.Passed,
		Format:    w.Format,
		Quality:   w.Quality,
		Size:      w.Size,
		DiffValue: w.Diff,
		HasDiff:   w.HasDiff,
		Output:    w.Data,
		Reason:    sel.Reason,
	}
}

func (r *Result) toEntry() *cache.Entry {
	return &cache.Entry{
		Format:  r.Format,
		Quality: r.Quality,
		Size:    r.Size,
		Diff:    r.DiffValue,
		HasDiff: r.HasDiff,
		Passed:  r.Passed,
		Reason:  r.Reason,
		Output:  r.Output,
	}
}

func fromEntry(e *cache.Entry) *Result {
	return &Result{
		Version:   ContractVersion,
		Passed:    e.Passed,
		Format:    e.Format,
		Quality:   e.Quality,
		Size:      e.Size,
		DiffValue: e.Diff,
		HasDiff:   e.HasDiff,
		Output:    e.Output,
		Reason:    e.Reason,
		Cached:    true,
	}
}
