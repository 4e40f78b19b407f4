package timestamp

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/djherbis/times"
	"github.com/rwcarlsen/goexif/exif"
)

// ExifLayout is the on-disk format of DateTimeOriginal.
const ExifLayout = "2006:01:02 15:04:05"

// ErrNoExifDate is returned when the bytes carry no usable DateTimeOriginal.
var ErrNoExifDate = errors.New("no DateTimeOriginal in exif")

type Source string

const (
	SourceExif       Source = "exif"
	SourceFilesystem Source = "filesystem"
)

// CaptureInstant is a timezone-naive wall-clock time. Time always carries the
// UTC location so that its fields read back exactly as captured.
type CaptureInstant struct {
	Time   time.Time
	Source Source
}

func (c CaptureInstant) Format(layout string) string { return c.Time.Format(layout) }

func (c CaptureInstant) String() string {
	return fmt.Sprintf("%s (%s)", c.Time.Format("2006-01-02 15:04:05"), c.Source)
}

// StatFunc returns filesystem times for a path.
type StatFunc func(path string) (times.Timespec, error)

// Resolver picks one CaptureInstant per file: EXIF DateTimeOriginal wins when
// present and well formed, filesystem birth time (or mtime) otherwise.
type Resolver struct {
	stat StatFunc
}

func NewResolver() *Resolver {
	return &Resolver{stat: times.Stat}
}

// NewResolverWithStat is used by tests to control filesystem times.
func NewResolverWithStat(stat StatFunc) *Resolver {
	return &Resolver{stat: stat}
}

// Resolve never reports a malformed tag as an error: it falls through to the
// filesystem exactly as if the tag were missing.
func (r *Resolver) Resolve(path string, data []byte) (CaptureInstant, error) {
	if t, err := ExifDateTime(data); err == nil {
		return CaptureInstant{Time: t, Source: SourceExif}, nil
	}

	ts, err := r.stat(path)
	if err != nil {
		return CaptureInstant{}, fmt.Errorf("stat %s: %w", path, err)
	}
	var t time.Time
	if ts.HasBirthTime() {
		t = ts.BirthTime()
	} else {
		t = ts.ModTime()
	}
	if t.IsZero() {
		return CaptureInstant{}, fmt.Errorf("no filesystem time for %s", path)
	}
	return CaptureInstant{Time: naive(t.Local()), Source: SourceFilesystem}, nil
}

// ExifDateTime extracts DateTimeOriginal from raw image bytes without
// applying any timezone. Malformed EXIF blobs that make the decoder panic
// are reported as ErrNoExifDate.
func ExifDateTime(data []byte) (t time.Time, err error) {
	defer func() {
		if r := recover(); r != nil {
			t, err = time.Time{}, ErrNoExifDate
		}
	}()
	// a broken GPS or Interop sub-IFD is a non-critical error; the Exif IFD
	// is already loaded by then
	x, err := exif.Decode(bytes.NewReader(data))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return time.Time{}, ErrNoExifDate
	}
	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return time.Time{}, ErrNoExifDate
	}
	s, err := tag.StringVal()
	if err != nil {
		return time.Time{}, ErrNoExifDate
	}
	return ParseExifDateTime(s)
}

// ParseExifDateTime parses "YYYY:MM:DD HH:MM:SS". Cameras without a clock
// write all zeros; that is treated as absent.
func ParseExifDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	if s == "" || strings.HasPrefix(s, "0000") {
		return time.Time{}, ErrNoExifDate
	}
	t, err := time.ParseInLocation(ExifLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrNoExifDate, err)
	}
	return t, nil
}

func naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
