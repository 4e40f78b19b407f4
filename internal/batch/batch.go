package batch

import (
	"context"
	"log"
	"time"

	"github.com/ah-its-andy/avifsort/internal/worker"
	"github.com/google/uuid"
)

// Orchestrator runs one File Job per discovered file across a fixed pool.
type Orchestrator struct {
	workers int
	job     *worker.Job

	// lastScan is when the most recent Run started discovery.
	lastScan time.Time
}

func New(workers int, job *worker.Job) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{workers: workers, job: job}
}

// Run converts every supported file under root. Only an unreadable root is
// returned as an error; job failures are recorded in the Result. When ctx is
// cancelled no new jobs start, in-flight jobs finish, and the partial Result
// is returned with Interrupted set.
func (o *Orchestrator) Run(ctx context.Context, root string) (*Result, error) {
	res := newResult(uuid.NewString(), root)
	prefix := "[" + res.RunID[:8] + "] "

	o.lastScan = time.Now()
	paths, err := Discover(root)
	if err != nil {
		return nil, err
	}
	res.Discovered = len(paths)
	log.Printf("%sfound %d image file(s) under %s", prefix, len(paths), root)
	if len(paths) == 0 {
		res.Finished = time.Now()
		return res, nil
	}

	q := worker.NewQueue(o.workers)
	results := worker.NewPool(o.workers, q, o.job).Run(ctx)

	go func() {
		defer q.Close()
		for _, p := range paths {
			if ctx.Err() != nil {
				return
			}
			q.Enqueue(ctx, p)
		}
	}()

	o.collect(prefix, results, res)
	res.Skipped = res.Discovered - res.Processed()
	res.Interrupted = ctx.Err() != nil
	res.Finished = time.Now()
	if res.Interrupted {
		log.Printf("%sinterrupted: %d finished, %d not started", prefix, res.Processed(), res.Skipped)
	}
	return res, nil
}

func (o *Orchestrator) collect(prefix string, results <-chan worker.Result, res *Result) {
	for r := range results {
		res.Add(r)
		log.Printf("%s[%d/%d] %s", prefix, res.Processed(), res.Discovered, outcome(r))
	}
}

func outcome(r worker.Result) string {
	if r.OK() {
		return r.Path + " -> " + r.Output
	}
	return r.Path + " " + string(r.Err.Category)
}
