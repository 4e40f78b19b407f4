package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ah-its-andy/avifsort/internal/converter"
	"github.com/ah-its-andy/avifsort/internal/livelog"
	"github.com/ah-its-andy/avifsort/internal/naming"
	"github.com/ah-its-andy/avifsort/internal/timestamp"
	"github.com/ah-its-andy/avifsort/internal/utils"
)

// Result is the outcome of one Job. Err is nil exactly when State is
// OriginalDeleted.
type Result struct {
	Path        string
	Output      string // full path of the written file, set from Written on
	State       State
	Instant     timestamp.CaptureInstant
	SourceBytes int64
	OutputBytes int64
	Duration    time.Duration
	Err         *JobError
}

func (r Result) OK() bool { return r.Err == nil }

// Job runs one source file through the pipeline. A Job holds no per-file
// state, so one value is shared by every worker.
type Job struct {
	resolver     *timestamp.Resolver
	alloc        *naming.Allocator
	conv         converter.Converter
	opts         converter.Options
	live         *livelog.Manager
	md5ChunkSize int
	debug        bool

	write  func(dir, name string, data []byte) error
	remove func(path string) error
}

type JobConfig struct {
	Resolver     *timestamp.Resolver
	Allocator    *naming.Allocator
	Converter    converter.Converter
	Options      converter.Options
	Live         *livelog.Manager
	MD5ChunkSize int
	Debug        bool
}

func NewJob(cfg JobConfig) *Job {
	j := &Job{
		resolver:     cfg.Resolver,
		alloc:        cfg.Allocator,
		conv:         cfg.Converter,
		opts:         cfg.Options,
		live:         cfg.Live,
		md5ChunkSize: cfg.MD5ChunkSize,
		debug:        cfg.Debug,
		write:        utils.WriteFileNoOverwrite,
		remove:       os.Remove,
	}
	if j.resolver == nil {
		j.resolver = timestamp.NewResolver()
	}
	if j.alloc == nil {
		j.alloc = naming.NewAllocator()
	}
	if j.live == nil {
		j.live = livelog.NewManager()
	}
	return j
}

// Live exposes the in-flight tracker.
func (j *Job) Live() *livelog.Manager { return j.live }

// Run converts path and deletes it. On failure before the write is confirmed
// the original is untouched and no output exists. A panic in any step is
// recovered and reported against the step that was running.
func (j *Job) Run(ctx context.Context, path string) (res Result) {
	start := time.Now()
	res = Result{Path: path, State: Discovered}
	step := DecodeFailed
	var dir, name string
	claimed := false

	j.live.StartTask(path, Discovered.String())
	defer j.live.EndTask(path)

	advance := func(s State) {
		res.State = s
		j.live.SetState(path, s.String())
		if j.debug {
			log.Printf("job: %s -> %s", path, s)
		}
	}
	fail := func(c Category, err error) Result {
		if claimed {
			j.alloc.Release(dir, name)
			claimed = false
		}
		res.State = Failed
		res.Err = &JobError{Path: path, Category: c, Err: err}
		res.Duration = time.Since(start)
		j.live.SetState(path, Failed.String())
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			res = fail(step, fmt.Errorf("panic: %v", r))
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(DecodeFailed, fmt.Errorf("read source: %w", err))
	}
	res.SourceBytes = int64(len(data))

	step = TimestampUnavailable
	instant, err := j.resolver.Resolve(path, data)
	if err != nil {
		return fail(TimestampUnavailable, err)
	}
	res.Instant = instant
	advance(TimestampResolved)

	step = DecodeFailed
	img, err := converter.Decode(path, data)
	if err != nil {
		return fail(DecodeFailed, err)
	}
	advance(Decoded)

	step = EncodeFailed
	encoded, err := j.conv.Encode(ctx, img, j.opts)
	if err != nil {
		return fail(EncodeFailed, err)
	}
	if len(encoded) == 0 {
		return fail(EncodeFailed, fmt.Errorf("%s produced no output", j.conv.Name()))
	}
	advance(Encoded)

	step = NameAllocationFailed
	dir = filepath.Dir(path)
	name, err = j.alloc.Allocate(instant, dir)
	if err != nil {
		return fail(NameAllocationFailed, err)
	}
	claimed = true

	step = WriteFailed
	out := filepath.Join(dir, name)
	if err := j.write(dir, name, encoded); err != nil {
		return fail(WriteFailed, err)
	}
	if err := j.verify(out, encoded); err != nil {
		if rerr := j.remove(out); rerr != nil && !os.IsNotExist(rerr) {
			// the name is occupied on disk, keep it claimed
			claimed = false
			res.Output = out
			return fail(WriteFailed, fmt.Errorf("%w; unverified output %s left on disk: %v", err, out, rerr))
		}
		return fail(WriteFailed, err)
	}
	claimed = false
	res.Output = out
	res.OutputBytes = int64(len(encoded))
	advance(Written)

	step = CleanupFailed
	if err := j.remove(path); err != nil {
		return fail(CleanupFailed, fmt.Errorf("converted to %s but could not delete original: %w", name, err))
	}
	advance(OriginalDeleted)
	res.Duration = time.Since(start)
	return res
}

// verify re-reads the placed file and compares it with what was encoded.
func (j *Job) verify(out string, want []byte) error {
	got, err := utils.MD5File(out, j.md5ChunkSize)
	if err != nil {
		return fmt.Errorf("verify output: %w", err)
	}
	if exp := utils.MD5Bytes(want); got != exp {
		return fmt.Errorf("verify output: md5 %s, expected %s", got, exp)
	}
	return nil
}
