package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ah-its-andy/avifsort/internal/converter"
	"github.com/ah-its-andy/avifsort/internal/utils"
	"github.com/ah-its-andy/avifsort/internal/worker"
	"github.com/djherbis/times"
	"github.com/fsnotify/fsnotify"
)

// Watcher queues image files that appear under its roots after startup.
type Watcher struct {
	queue *worker.Queue
	w     *fsnotify.Watcher
	roots []string
	delay time.Duration
	since time.Time

	mu      sync.Mutex
	pending map[string]struct{}
	wg      sync.WaitGroup
}

func NewRecursiveWatcher(roots []string, q *worker.Queue, stabilityDelay time.Duration) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		queue:   q,
		w:       w,
		roots:   roots,
		delay:   stabilityDelay,
		pending: make(map[string]struct{}),
	}, nil
}

// SweepChangedSince makes Start queue image files already present whose
// change time is at or after t, once the watches are registered. This covers
// files that arrive between an earlier scan and the watch starting.
func (wr *Watcher) SweepChangedSince(t time.Time) { wr.since = t }

// Start registers every directory under the roots and handles events until
// ctx is done. Settle goroutines are awaited before it returns.
func (wr *Watcher) Start(ctx context.Context) error {
	defer wr.wg.Wait()
	for _, root := range wr.roots {
		if err := wr.addTree(root); err != nil {
			return err
		}
	}
	if !wr.since.IsZero() {
		for _, root := range wr.roots {
			wr.sweep(ctx, root)
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-wr.w.Events:
			if !ok {
				return nil
			}
			wr.handleEvent(ctx, ev)
		case err, ok := <-wr.w.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher error: %v", err)
		}
	}
}

func (wr *Watcher) Close() error { return wr.w.Close() }

func (wr *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if err := wr.w.Add(path); err != nil {
				log.Printf("watcher: add %s: %v", path, err)
			}
		}
		return nil
	})
}

func (wr *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	fi, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if fi.IsDir() {
		if ev.Has(fsnotify.Create) {
			// files created before the watch was added are picked up by the walk
			_ = wr.addTree(ev.Name)
			wr.queueExisting(ctx, ev.Name)
		}
		return
	}
	if converter.IsSupported(ev.Name) {
		wr.settle(ctx, ev.Name)
	}
}

func (wr *Watcher) queueExisting(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err == nil && d.Type().IsRegular() && converter.IsSupported(path) {
			wr.settle(ctx, path)
		}
		return nil
	})
}

func (wr *Watcher) sweep(ctx context.Context, root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() || !converter.IsSupported(path) {
			return nil
		}
		ts, err := times.Stat(path)
		if err != nil {
			return nil
		}
		changed := ts.ModTime()
		if ts.HasChangeTime() && ts.ChangeTime().After(changed) {
			changed = ts.ChangeTime()
		}
		if !changed.Before(wr.since) {
			wr.settle(ctx, path)
		}
		return nil
	})
}

// settle waits for path to stop growing and then queues it. Repeated events
// for a path already settling are dropped.
func (wr *Watcher) settle(ctx context.Context, path string) {
	wr.mu.Lock()
	if _, ok := wr.pending[path]; ok {
		wr.mu.Unlock()
		return
	}
	wr.pending[path] = struct{}{}
	wr.mu.Unlock()

	wr.wg.Add(1)
	go func() {
		defer wr.wg.Done()
		defer func() {
			wr.mu.Lock()
			delete(wr.pending, path)
			wr.mu.Unlock()
		}()

		select {
		case <-ctx.Done():
			return
		case <-time.After(wr.delay):
		}
		if err := utils.WaitFileStable(path, wr.delay); err != nil {
			return
		}
		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			return
		}
		if wr.queue.Enqueue(ctx, path) {
			log.Printf("watcher: queued %s", path)
		}
	}()
}
