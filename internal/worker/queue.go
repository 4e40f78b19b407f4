package worker

import (
	"context"
	"sync"
)

// Queue feeds source paths to the pool. A path that is already queued or
// running is not queued again.
type Queue struct {
	ch        chan string
	mu        sync.Mutex
	enqueued  map[string]struct{}
	accepting bool
	sending   sync.WaitGroup
	closeOnce sync.Once
}

func NewQueue(buf int) *Queue {
	return &Queue{
		ch:        make(chan string, buf*2+10),
		enqueued:  make(map[string]struct{}),
		accepting: true,
	}
}

// Enqueue blocks until path is queued or ctx is done. It returns false if the
// path was not queued.
func (q *Queue) Enqueue(ctx context.Context, path string) bool {
	q.mu.Lock()
	if !q.accepting {
		q.mu.Unlock()
		return false
	}
	if _, ok := q.enqueued[path]; ok {
		q.mu.Unlock()
		return false
	}
	q.enqueued[path] = struct{}{}
	q.sending.Add(1)
	q.mu.Unlock()
	defer q.sending.Done()

	select {
	case q.ch <- path:
		return true
	case <-ctx.Done():
		q.Dequeued(path)
		return false
	}
}

// Dequeued forgets path once its job has finished.
func (q *Queue) Dequeued(path string) {
	q.mu.Lock()
	delete(q.enqueued, path)
	q.mu.Unlock()
}

func (q *Queue) StopAccepting() {
	q.mu.Lock()
	q.accepting = false
	q.mu.Unlock()
}

// Close stops accepting, waits for pending Enqueue calls, and closes the
// channel so workers exit once it is drained.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.StopAccepting()
		q.sending.Wait()
		close(q.ch)
	})
}

func (q *Queue) Chan() <-chan string { return q.ch }

// Len is the number of paths queued or running.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.enqueued)
}
