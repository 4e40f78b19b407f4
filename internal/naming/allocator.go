package naming

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ah-its-andy/avifsort/internal/timestamp"
)

const (
	// Layout renders a CaptureInstant as "YYYY年MM月DD日 HH-mm-ss".
	Layout = "2006年01月02日 15-04-05"
	Ext    = ".avif"

	MaxSuffix = 10000
)

var ErrExhausted = errors.New("no free name")

// BaseName is the unsuffixed target name for t, extension included.
func BaseName(t timestamp.CaptureInstant) string {
	return t.Format(Layout) + Ext
}

// SuffixedName returns stem(k).avif, or the base name for k == 0.
func SuffixedName(t timestamp.CaptureInstant, k int) string {
	if k == 0 {
		return BaseName(t)
	}
	return fmt.Sprintf("%s(%d)%s", t.Format(Layout), k, Ext)
}

type dirClaims struct {
	mu     sync.Mutex
	claims map[string]struct{}
}

// Allocator hands out collision-free output names. Each directory has its own
// lock; the free check and the claim happen under it, so jobs targeting
// different directories never wait on each other.
type Allocator struct {
	mu   sync.Mutex
	dirs map[string]*dirClaims

	// exists reports whether name is already taken on disk.
	exists func(path string) (bool, error)
}

func NewAllocator() *Allocator {
	return &Allocator{
		dirs:   make(map[string]*dirClaims),
		exists: onDisk,
	}
}

func onDisk(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (a *Allocator) dir(dir string) *dirClaims {
	key := dirKey(dir)
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.dirs[key]
	if !ok {
		d = &dirClaims{claims: make(map[string]struct{})}
		a.dirs[key] = d
	}
	return d
}

// Allocate claims the lowest free name for t in dir: base, base(1), base(2)...
func (a *Allocator) Allocate(t timestamp.CaptureInstant, dir string) (string, error) {
	d := a.dir(dir)
	d.mu.Lock()
	defer d.mu.Unlock()

	for k := 0; k <= MaxSuffix; k++ {
		name := SuffixedName(t, k)
		if _, claimed := d.claims[name]; claimed {
			continue
		}
		taken, err := a.exists(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("check %s: %w", name, err)
		}
		if taken {
			continue
		}
		d.claims[name] = struct{}{}
		return name, nil
	}
	return "", fmt.Errorf("%w for %s in %s after %d attempts", ErrExhausted, BaseName(t), dir, MaxSuffix+1)
}

// Release drops a claim made by a job that never wrote its output.
func (a *Allocator) Release(dir, name string) {
	d := a.dir(dir)
	d.mu.Lock()
	delete(d.claims, name)
	d.mu.Unlock()
}

// Claimed reports the number of names currently claimed in dir.
func (a *Allocator) Claimed(dir string) int {
	d := a.dir(dir)
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.claims)
}

func dirKey(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}
