package utils

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ErrTargetExists is returned when the destination of a no-overwrite write is
// already present.
var ErrTargetExists = errors.New("target already exists")

func WaitFileStable(path string, delay time.Duration) error {
	// Wait for two consecutive identical sizes separated by delay
	var lastSize int64 = -1
	for i := 0; i < 5; i++ { // up to ~5 cycles
		fi, err := os.Stat(path)
		if err != nil {
			return err
		}
		sz := fi.Size()
		if lastSize == sz {
			return nil
		}
		lastSize = sz
		time.Sleep(delay)
	}
	return nil
}

// linkFile is os.Link; tests replace it.
var linkFile = os.Link

// WriteFileNoOverwrite writes data to dir/name through a hidden temp file in
// the same directory. The temp file is synced and closed, then hard-linked to
// dir/name, which fails if dir/name already exists. Filesystems without hard
// links fall back to a checked rename. On any error nothing is left behind
// under either name.
func WriteFileNoOverwrite(dir, name string, data []byte) error {
	dst := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	renamed := false
	defer func() {
		_ = tmp.Close()
		if !renamed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	err = linkFile(tmpName, dst)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %s", ErrTargetExists, dst)
	default:
		// no hard links here (FAT, some network mounts)
		if _, serr := os.Lstat(dst); serr == nil {
			return fmt.Errorf("%w: %s", ErrTargetExists, dst)
		} else if !os.IsNotExist(serr) {
			return serr
		}
		if err := os.Rename(tmpName, dst); err != nil {
			return err
		}
		renamed = true
	}

	// best-effort, not all platforms can fsync a directory
	_ = syncDir(dir)
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
