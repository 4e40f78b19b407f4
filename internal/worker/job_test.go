package worker

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ah-its-andy/avifsort/internal/converter"
	"github.com/ah-its-andy/avifsort/internal/naming"
	"github.com/ah-its-andy/avifsort/internal/testutil"
	"github.com/ah-its-andy/avifsort/internal/timestamp"
	"github.com/djherbis/times"
)

const capture = "2024:03:05 10:19:11"
const baseName = "2024年03月05日 10-19-11.avif"

type fakeConverter struct {
	out   []byte
	err   error
	panic bool
	delay time.Duration
}

func (f *fakeConverter) Name() string                { return "fake" }
func (f *fakeConverter) CanConvert(path string) bool { return converter.IsSupported(path) }
func (f *fakeConverter) TargetFormat() string        { return "avif" }

func (f *fakeConverter) Encode(ctx context.Context, img image.Image, opts converter.Options) ([]byte, error) {
	if f.panic {
		panic("encoder blew up")
	}
	time.Sleep(f.delay)
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func newTestJob(conv converter.Converter) *Job {
	return NewJob(JobConfig{
		Allocator:    naming.NewAllocator(),
		Converter:    conv,
		Options:      converter.DefaultOptions(),
		MD5ChunkSize: 1024,
	})
}

func writeSource(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestJobSuccess(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "photo.jpg", testutil.JPEGWithDateTimeOriginal(16, 16, capture))
	job := newTestJob(&fakeConverter{out: []byte("AVIFDATA")})

	res := job.Run(context.Background(), src)
	if !res.OK() {
		t.Fatalf("Job failed: %v", res.Err)
	}
	if res.State != OriginalDeleted {
		t.Errorf("Expected state OriginalDeleted, got %s", res.State)
	}
	if res.Output != filepath.Join(dir, baseName) {
		t.Errorf("Expected output %s, got %s", baseName, res.Output)
	}
	if res.Instant.Source != timestamp.SourceExif {
		t.Errorf("Expected exif timestamp, got %s", res.Instant.Source)
	}
	if res.OutputBytes != 8 || res.SourceBytes == 0 {
		t.Errorf("Unexpected byte counts %d -> %d", res.SourceBytes, res.OutputBytes)
	}

	if got := listDir(t, dir); len(got) != 1 || got[0] != baseName {
		t.Fatalf("Expected only %s in dir, got %v", baseName, got)
	}
	data, _ := os.ReadFile(res.Output)
	if string(data) != "AVIFDATA" {
		t.Errorf("Unexpected output content %q", data)
	}
	if len(job.Live().Active()) != 0 {
		t.Error("Finished job still tracked as active")
	}
}

func TestJobSameInstantGetsSuffix(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.jpg", testutil.JPEGWithDateTimeOriginal(8, 8, capture))
	b := writeSource(t, dir, "b.jpg", testutil.JPEGWithDateTimeOriginal(8, 8, capture))
	job := newTestJob(&fakeConverter{out: []byte("x"), delay: 5 * time.Millisecond})

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i, p := range []string{a, b} {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			results[i] = job.Run(context.Background(), p)
		}(i, p)
	}
	wg.Wait()

	for _, r := range results {
		if !r.OK() {
			t.Fatalf("Job %s failed: %v", r.Path, r.Err)
		}
	}
	want := []string{baseName, "2024年03月05日 10-19-11(1).avif"}
	if got := listDir(t, dir); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestJobCorruptJPEG(t *testing.T) {
	dir := t.TempDir()
	corrupt := testutil.JPEGWithDateTimeOriginal(16, 16, capture)
	corrupt = corrupt[:len(corrupt)/2]
	src := writeSource(t, dir, "broken.jpg", corrupt)
	job := newTestJob(&fakeConverter{out: []byte("x")})

	res := job.Run(context.Background(), src)
	assertFailed(t, res, DecodeFailed)
	if got := listDir(t, dir); len(got) != 1 || got[0] != "broken.jpg" {
		t.Errorf("Expected original untouched and no output, got %v", got)
	}
}

func TestJobMissingSource(t *testing.T) {
	job := newTestJob(&fakeConverter{out: []byte("x")})
	res := job.Run(context.Background(), filepath.Join(t.TempDir(), "gone.png"))
	assertFailed(t, res, DecodeFailed)
}

func TestJobEncodeFailed(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "p.png", testutil.PNG(8, 8))
	alloc := naming.NewAllocator()
	job := NewJob(JobConfig{Allocator: alloc, Converter: &fakeConverter{err: errors.New("out of memory")}})

	res := job.Run(context.Background(), src)
	assertFailed(t, res, EncodeFailed)
	if got := listDir(t, dir); len(got) != 1 || got[0] != "p.png" {
		t.Errorf("Expected original untouched and no output, got %v", got)
	}
	if alloc.Claimed(dir) != 0 {
		t.Errorf("Encode failure should not hold a name claim")
	}
}

func TestJobEmptyEncoderOutput(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "p.png", testutil.PNG(8, 8))
	res := newTestJob(&fakeConverter{}).Run(context.Background(), src)
	assertFailed(t, res, EncodeFailed)
}

func TestJobEncoderPanicIsContained(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "p.tiff", testutil.TIFF(8, 8))
	res := newTestJob(&fakeConverter{panic: true}).Run(context.Background(), src)
	assertFailed(t, res, EncodeFailed)
	if _, err := os.Stat(src); err != nil {
		t.Errorf("Original should remain after a panic: %v", err)
	}
}

func TestJobTimestampUnavailable(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "p.png", testutil.PNG(8, 8))
	resolver := timestamp.NewResolverWithStat(func(string) (times.Timespec, error) {
		return nil, errors.New("metadata unavailable")
	})
	job := NewJob(JobConfig{Resolver: resolver, Converter: &fakeConverter{out: []byte("x")}})

	res := job.Run(context.Background(), src)
	assertFailed(t, res, TimestampUnavailable)
	if got := listDir(t, dir); len(got) != 1 {
		t.Errorf("Expected only the original, got %v", got)
	}
}

func TestJobWriteFailedReleasesClaim(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "a.jpg", testutil.JPEGWithDateTimeOriginal(8, 8, capture))
	alloc := naming.NewAllocator()
	job := NewJob(JobConfig{Allocator: alloc, Converter: &fakeConverter{out: []byte("x")}})
	job.write = func(string, string, []byte) error { return errors.New("disk full") }

	res := job.Run(context.Background(), src)
	assertFailed(t, res, WriteFailed)
	if alloc.Claimed(dir) != 0 {
		t.Errorf("Expected claim released after write failure, %d held", alloc.Claimed(dir))
	}
	if got := listDir(t, dir); len(got) != 1 || got[0] != "a.jpg" {
		t.Errorf("Expected original untouched and no output, got %v", got)
	}
}

func TestJobWriteVerificationMismatch(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "a.jpg", testutil.JPEGWithDateTimeOriginal(8, 8, capture))
	job := newTestJob(&fakeConverter{out: []byte("expected")})
	job.write = func(dir, name string, data []byte) error {
		return os.WriteFile(filepath.Join(dir, name), []byte("torn"), 0644)
	}

	res := job.Run(context.Background(), src)
	assertFailed(t, res, WriteFailed)
	if got := listDir(t, dir); len(got) != 1 || got[0] != "a.jpg" {
		t.Errorf("Expected unverified output removed, got %v", got)
	}
}

func TestJobWriteVerificationMismatchRemoveFails(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "a.jpg", testutil.JPEGWithDateTimeOriginal(8, 8, capture))
	alloc := naming.NewAllocator()
	job := NewJob(JobConfig{Allocator: alloc, Converter: &fakeConverter{out: []byte("expected")}})
	job.write = func(dir, name string, data []byte) error {
		return os.WriteFile(filepath.Join(dir, name), []byte("torn"), 0644)
	}
	job.remove = func(string) error { return errors.New("device busy") }

	res := job.Run(context.Background(), src)
	assertFailed(t, res, WriteFailed)
	out := filepath.Join(dir, baseName)
	if res.Output != out {
		t.Errorf("Expected leftover output %q reported, got %q", out, res.Output)
	}
	if !strings.Contains(res.Err.Error(), "left on disk") || !strings.Contains(res.Err.Error(), "device busy") {
		t.Errorf("Reason should name the leftover and the remove error, got %v", res.Err)
	}
	if alloc.Claimed(dir) != 1 {
		t.Errorf("Leftover name should stay claimed, %d held", alloc.Claimed(dir))
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("Original should be untouched: %v", err)
	}
}

func TestJobCleanupFailed(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "a.jpg", testutil.JPEGWithDateTimeOriginal(8, 8, capture))
	job := newTestJob(&fakeConverter{out: []byte("x")})
	job.remove = func(string) error { return errors.New("read-only filesystem") }

	res := job.Run(context.Background(), src)
	assertFailed(t, res, CleanupFailed)
	if res.Output != filepath.Join(dir, baseName) {
		t.Errorf("CleanupFailed result should name the written output, got %q", res.Output)
	}
	if got := listDir(t, dir); len(got) != 2 {
		t.Errorf("Expected original and output to coexist, got %v", got)
	}
}

func assertFailed(t *testing.T, res Result, want Category) {
	t.Helper()
	if res.OK() {
		t.Fatalf("Expected %s failure, job succeeded", want)
	}
	if res.State != Failed {
		t.Errorf("Expected state Failed, got %s", res.State)
	}
	if res.Err.Category != want {
		t.Fatalf("Expected category %s, got %s (%v)", want, res.Err.Category, res.Err)
	}
	if CategoryOf(res.Err) != want {
		t.Errorf("CategoryOf = %s, expected %s", CategoryOf(res.Err), want)
	}
}
