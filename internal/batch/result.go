package batch

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/ah-its-andy/avifsort/internal/worker"
)

// Failure records one failed job.
type Failure struct {
	Path     string
	Output   string
	Category worker.Category
	Reason   string
}

// Result aggregates job outcomes in the order they complete.
type Result struct {
	RunID       string
	Root        string
	Discovered  int
	Succeeded   int
	Failed      int
	Skipped     int
	Interrupted bool
	ByCategory  map[worker.Category]int
	Failures    []Failure
	SourceBytes int64
	OutputBytes int64
	Started     time.Time
	Finished    time.Time
}

func newResult(runID, root string) *Result {
	return &Result{
		RunID:      runID,
		Root:       root,
		ByCategory: make(map[worker.Category]int),
		Started:    time.Now(),
	}
}

// Add folds one job result into the aggregate.
func (r *Result) Add(res worker.Result) {
	if res.OK() {
		r.Succeeded++
		r.SourceBytes += res.SourceBytes
		r.OutputBytes += res.OutputBytes
		return
	}
	cat := worker.CategoryOf(res.Err)
	r.Failed++
	r.ByCategory[cat]++
	r.Failures = append(r.Failures, Failure{
		Path:     res.Path,
		Output:   res.Output,
		Category: cat,
		Reason:   res.Err.Err.Error(),
	})
}

// Merge adds the counts of o into r. Used to keep a running total across the
// initial batch and watch mode.
func (r *Result) Merge(o *Result) {
	r.Discovered += o.Discovered
	r.Succeeded += o.Succeeded
	r.Failed += o.Failed
	r.Skipped += o.Skipped
	r.Interrupted = r.Interrupted || o.Interrupted
	for c, n := range o.ByCategory {
		r.ByCategory[c] += n
	}
	r.Failures = append(r.Failures, o.Failures...)
	r.SourceBytes += o.SourceBytes
	r.OutputBytes += o.OutputBytes
	if o.Finished.After(r.Finished) {
		r.Finished = o.Finished
	}
}

func (r *Result) Processed() int { return r.Succeeded + r.Failed }

// Reduction is the percentage saved by successful conversions.
func (r *Result) Reduction() float64 {
	if r.SourceBytes == 0 {
		return 0
	}
	return (1 - float64(r.OutputBytes)/float64(r.SourceBytes)) * 100
}

// CleanupFailures returns the jobs whose output was written but whose
// original could not be removed.
func (r *Result) CleanupFailures() []Failure {
	var out []Failure
	for _, f := range r.Failures {
		if f.Category == worker.CleanupFailed {
			out = append(out, f)
		}
	}
	return out
}

// Print writes the human-readable summary. Failures go to errw.
func (r *Result) Print(w, errw io.Writer) {
	if len(r.Failures) > 0 {
		failures := append([]Failure(nil), r.Failures...)
		sort.Slice(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })
		fmt.Fprintf(errw, "\n%d file(s) failed:\n", len(failures))
		for _, f := range failures {
			fmt.Fprintf(errw, "  - [%s] %s: %s\n", f.Category, f.Path, f.Reason)
		}
		if cf := r.CleanupFailures(); len(cf) > 0 {
			fmt.Fprintf(errw, "\n%d original(s) could not be deleted after conversion; both files remain, reconcile manually:\n", len(cf))
			for _, f := range cf {
				fmt.Fprintf(errw, "  - %s (converted: %s)\n", f.Path, filepath.Base(f.Output))
			}
		}
	}

	fmt.Fprintf(w, "\nRun %s finished", r.RunID)
	if r.Interrupted {
		fmt.Fprint(w, " (interrupted)")
	}
	fmt.Fprintf(w, " in %v\n", r.Finished.Sub(r.Started).Round(time.Millisecond))
	fmt.Fprintf(w, "  Discovered: %d\n", r.Discovered)
	fmt.Fprintf(w, "  Converted:  %d\n", r.Succeeded)
	fmt.Fprintf(w, "  Failed:     %d\n", r.Failed)
	for _, c := range worker.Categories {
		if n := r.ByCategory[c]; n > 0 {
			fmt.Fprintf(w, "    %-22s %d\n", c, n)
		}
	}
	if r.Skipped > 0 {
		fmt.Fprintf(w, "  Not started: %d\n", r.Skipped)
	}
	if r.Succeeded > 0 && r.SourceBytes > 0 {
		fmt.Fprintf(w, "  Size: %.2f MB -> %.2f MB (%.1f%% reduction)\n",
			float64(r.SourceBytes)/(1024*1024),
			float64(r.OutputBytes)/(1024*1024),
			r.Reduction())
	}
}
