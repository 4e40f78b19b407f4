package converter

import (
	"context"
	"fmt"
	"image"
)

const (
	DefaultQuality = 80
	DefaultSpeed   = 6
)

// Options holds encoder parameters.
type Options struct {
	Quality int // 0-100, higher is better
	Speed   int // 0-10, higher is faster
}

func DefaultOptions() Options {
	return Options{Quality: DefaultQuality, Speed: DefaultSpeed}
}

func (o Options) Validate() error {
	if o.Quality < 0 || o.Quality > 100 {
		return fmt.Errorf("quality %d out of range 0-100", o.Quality)
	}
	if o.Speed < 0 || o.Speed > 10 {
		return fmt.Errorf("speed %d out of range 0-10", o.Speed)
	}
	return nil
}

// ConverterInfo describes a registered converter.
type ConverterInfo struct {
	Name         string
	TargetFormat string
	Enabled      bool
}

// Converter encodes decoded pixels into a target format.
type Converter interface {
	// Name returns the unique name of this converter
	Name() string

	// CanConvert checks if this converter accepts the given source file
	CanConvert(srcPath string) bool

	// TargetFormat returns the file extension of the output format (without dot)
	TargetFormat() string

	// Encode compresses img. It must not touch the filesystem outside its own
	// temporary files; the caller owns placing the result.
	Encode(ctx context.Context, img image.Image, opts Options) ([]byte, error)
}
