package converter

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// AVIFEncConverter shells out to libavif's avifenc. The decoded image is
// handed over as a lossless PNG in a private temp directory.
type AVIFEncConverter struct {
	bin     string
	tempDir string
}

func NewAVIFEncConverter() *AVIFEncConverter {
	return &AVIFEncConverter{bin: "avifenc"}
}

func (c *AVIFEncConverter) Name() string {
	return "avifenc"
}

func (c *AVIFEncConverter) CanConvert(srcPath string) bool {
	return IsSupported(srcPath)
}

func (c *AVIFEncConverter) TargetFormat() string {
	return "avif"
}

// Available reports whether the avifenc binary can be found.
func (c *AVIFEncConverter) Available() bool {
	_, err := exec.LookPath(c.bin)
	return err == nil
}

func (c *AVIFEncConverter) Encode(ctx context.Context, img image.Image, opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp(c.tempDir, "avifenc-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	in := filepath.Join(tmpDir, "in.png")
	out := filepath.Join(tmpDir, "out.avif")

	f, err := os.Create(in)
	if err != nil {
		return nil, err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return nil, fmt.Errorf("write intermediate png: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, c.bin,
		"-q", strconv.Itoa(opts.Quality),
		"-s", strconv.Itoa(opts.Speed),
		in, out)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w, output: %s", c.bin, err, string(output))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%s did not create output file: %w", c.bin, err)
	}
	return data, nil
}
