package batch

import (
	"context"
	"log"
	"time"

	"github.com/ah-its-andy/avifsort/internal/watcher"
	"github.com/ah-its-andy/avifsort/internal/worker"
	"github.com/google/uuid"
)

// Watch converts image files as they appear under root until ctx is done.
// After a Run, files that changed since that Run's discovery are queued once
// the watches are in place; older files are left to Run.
func (o *Orchestrator) Watch(ctx context.Context, root string, stabilityDelay time.Duration) (*Result, error) {
	res := newResult(uuid.NewString(), root)
	prefix := "[" + res.RunID[:8] + "] "

	q := worker.NewQueue(o.workers)
	w, err := watcher.NewRecursiveWatcher([]string{root}, q, stabilityDelay)
	if err != nil {
		return nil, err
	}
	defer w.Close()
	if !o.lastScan.IsZero() {
		w.SweepChangedSince(o.lastScan)
	}

	results := worker.NewPool(o.workers, q, o.job).Run(ctx)
	stopped := make(chan error, 1)
	go func() {
		err := w.Start(ctx)
		q.Close()
		stopped <- err
	}()

	log.Printf("%swatching %s for new images", prefix, root)
	for r := range results {
		res.Add(r)
		res.Discovered++
		log.Printf("%s%s", prefix, outcome(r))
	}
	if err := <-stopped; err != nil {
		return nil, err
	}
	res.Interrupted = ctx.Err() != nil
	res.Finished = time.Now()
	return res, nil
}
