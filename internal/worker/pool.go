package worker

import (
	"context"
	"log"
	"path/filepath"
	"sync"
)

// Pool runs a fixed number of workers over a Queue.
type Pool struct {
	workers int
	queue   *Queue
	job     *Job
}

func NewPool(workers int, q *Queue, job *Job) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers, queue: q, job: job}
}

// Run starts the workers and returns a channel that yields one Result per
// finished job, in completion order. The channel is closed once the queue is
// closed and drained, or ctx is done and every in-flight job has finished.
// Cancelling ctx never interrupts a job that has started.
func (p *Pool) Run(ctx context.Context) <-chan Result {
	results := make(chan Result, p.workers)
	jobCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			p.worker(ctx, jobCtx, idx, results)
		}(i)
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

func (p *Pool) worker(ctx, jobCtx context.Context, idx int, results chan<- Result) {
	for {
		path, ok := p.next(ctx)
		if !ok {
			return
		}
		results <- p.handle(jobCtx, idx, path)
	}
}

// next takes the next path to start. It reports false once the queue is
// closed and drained or ctx is done; a path received after cancellation is
// left unstarted.
func (p *Pool) next(ctx context.Context) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	select {
	case <-ctx.Done():
		return "", false
	case path, ok := <-p.queue.Chan():
		if !ok {
			return "", false
		}
		if ctx.Err() != nil {
			p.queue.Dequeued(path)
			return "", false
		}
		return path, true
	}
}

func (p *Pool) handle(ctx context.Context, idx int, path string) Result {
	defer p.queue.Dequeued(path)
	log.Printf("[Worker %d] Processing: %s", idx, path)

	res := p.job.Run(ctx, path)
	switch {
	case res.OK():
		log.Printf("[Worker %d] %s -> %s in %v", idx, filepath.Base(path), filepath.Base(res.Output), res.Duration)
	case res.Err.Category == CleanupFailed:
		log.Printf("[Worker %d] %s converted to %s but original remains: %v", idx, path, filepath.Base(res.Output), res.Err.Err)
	default:
		log.Printf("[Worker %d] %s failed (%s): %v", idx, path, res.Err.Category, res.Err.Err)
	}
	return res
}
