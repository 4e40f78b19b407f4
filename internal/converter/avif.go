package converter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/gen2brain/avif"
)

// AVIFConverter encodes in-process with libavif compiled to WASM, so it needs
// no external tools.
type AVIFConverter struct{}

func NewAVIFConverter() *AVIFConverter {
	return &AVIFConverter{}
}

func (c *AVIFConverter) Name() string {
	return "avif"
}

func (c *AVIFConverter) CanConvert(srcPath string) bool {
	return IsSupported(srcPath)
}

func (c *AVIFConverter) TargetFormat() string {
	return "avif"
}

func (c *AVIFConverter) Encode(ctx context.Context, img image.Image, opts Options) (out []byte, err error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("avif encoder panic: %v", r)
		}
	}()

	var buf bytes.Buffer
	err = avif.Encode(&buf, img, avif.Options{
		Quality:           opts.Quality,
		QualityAlpha:      opts.Quality,
		Speed:             opts.Speed,
		ChromaSubsampling: image.YCbCrSubsampleRatio420,
	})
	if err != nil {
		return nil, fmt.Errorf("avif encode: %w", err)
	}
	return buf.Bytes(), nil
}

// supportedExts are the inputs the pipeline accepts.
var supportedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tiff": true,
}

// IsSupported reports whether path has one of the accepted input extensions,
// compared case-insensitively.
func IsSupported(path string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(path))]
}
