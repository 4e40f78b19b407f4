package converter

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os/exec"
	"strings"
	"testing"

	"github.com/ah-its-andy/avifsort/internal/testutil"
)

func init() {
	Register(NewAVIFConverter())
}

func TestConverterRegistry(t *testing.T) {
	if len(List()) == 0 {
		t.Fatal("No converters registered")
	}

	c, err := FindConverter("avif", "")
	if err != nil {
		t.Fatalf("avif converter not found: %v", err)
	}
	if c.Name() != "avif" {
		t.Errorf("Expected converter name 'avif', got '%s'", c.Name())
	}
	if c.TargetFormat() != "avif" {
		t.Errorf("Expected target format 'avif', got '%s'", c.TargetFormat())
	}

	found := false
	for _, info := range ListInfo() {
		if info.Name == "avif" {
			found = true
			if !info.Enabled {
				t.Error("avif should be enabled")
			}
		}
	}
	if !found {
		t.Error("ListInfo missing avif")
	}
}

func TestConverterCanConvert(t *testing.T) {
	c, err := FindConverter("avif", "")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path     string
		expected bool
	}{
		{"test.jpg", true},
		{"test.jpeg", true},
		{"test.JPG", true},
		{"test.JPEG", true},
		{"test.png", true},
		{"test.PNG", true},
		{"test.tiff", true},
		{"test.TIFF", true},
		{"test.tif", false},
		{"test.gif", false},
		{"test.avif", false},
		{"test", false},
	}

	for _, tt := range tests {
		if got := c.CanConvert(tt.path); got != tt.expected {
			t.Errorf("CanConvert(%s) = %v, expected %v", tt.path, got, tt.expected)
		}
	}
}

func TestConverterFindConverter(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		shouldFind   bool
		expectedName string
	}{
		{"", "test.jpg", true, "avif"},
		{"avif", "test.png", true, "avif"},
		{"avif", "", true, "avif"},
		{"", "test.txt", false, ""},
		{"missing", "test.jpg", false, ""},
		{"avif", "test.gif", false, ""},
	}

	for _, tt := range tests {
		conv, err := FindConverter(tt.name, tt.path)
		if tt.shouldFind {
			if err != nil {
				t.Errorf("FindConverter(%q, %s) unexpected error: %v", tt.name, tt.path, err)
				continue
			}
			if conv.Name() != tt.expectedName {
				t.Errorf("FindConverter(%q, %s) = %s, expected %s", tt.name, tt.path, conv.Name(), tt.expectedName)
			}
		} else if err == nil {
			t.Errorf("FindConverter(%q, %s) should have returned error", tt.name, tt.path)
		}
	}
}

func TestConverterEnableDisable(t *testing.T) {
	name := "avif"

	if !IsEnabled(name) {
		t.Error("Converter should be enabled by default")
	}
	if err := Disable(name); err != nil {
		t.Fatalf("Failed to disable converter: %v", err)
	}
	if IsEnabled(name) {
		t.Error("Converter should be disabled")
	}
	if _, err := FindConverter(name, "a.jpg"); err == nil {
		t.Error("Disabled converter should not be found")
	}
	if err := Enable(name); err != nil {
		t.Fatalf("Failed to enable converter: %v", err)
	}
	if !IsEnabled(name) {
		t.Error("Converter should be enabled")
	}
	if err := Disable("nope"); err == nil {
		t.Error("Disabling an unknown converter should fail")
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		opts  Options
		valid bool
	}{
		{DefaultOptions(), true},
		{Options{Quality: 0, Speed: 0}, true},
		{Options{Quality: 100, Speed: 10}, true},
		{Options{Quality: 101, Speed: 6}, false},
		{Options{Quality: 80, Speed: -1}, false},
		{Options{Quality: 80, Speed: 11}, false},
	}
	for _, tt := range tests {
		if err := tt.opts.Validate(); (err == nil) != tt.valid {
			t.Errorf("Validate(%+v) = %v, expected valid=%v", tt.opts, err, tt.valid)
		}
	}
	if d := DefaultOptions(); d.Quality != 80 || d.Speed != 6 {
		t.Errorf("Unexpected defaults %+v", d)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		path string
		data []byte
	}{
		{"a.jpg", testutil.JPEG(16, 8)},
		{"a.JPEG", testutil.JPEG(16, 8)},
		{"a.png", testutil.PNG(16, 8)},
		{"a.tiff", testutil.TIFF(16, 8)},
	}
	for _, tt := range tests {
		img, err := Decode(tt.path, tt.data)
		if err != nil {
			t.Errorf("Decode(%s) failed: %v", tt.path, err)
			continue
		}
		if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
			t.Errorf("Decode(%s) bounds = %v", tt.path, b)
		}
	}
}

func TestDecodeCorrupt(t *testing.T) {
	corrupt := testutil.JPEG(16, 16)[:40]
	if _, err := Decode("bad.jpg", corrupt); err == nil {
		t.Error("Expected error decoding truncated jpeg")
	}
	if _, err := Decode("bad.png", []byte("definitely not a png")); err == nil {
		t.Error("Expected error decoding garbage png")
	}
	if _, err := Decode("a.gif", nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestAVIFEncodeInvalidOptions(t *testing.T) {
	c := NewAVIFConverter()
	if _, err := c.Encode(context.Background(), testutil.Gradient(4, 4), Options{Quality: 200}); err == nil {
		t.Error("Expected error for out-of-range quality")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Encode(ctx, testutil.Gradient(4, 4), DefaultOptions()); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

// Integration test - runs the WASM encoder
func TestAVIFEncode(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping encoder test in short mode")
	}

	c := NewAVIFConverter()
	out, err := c.Encode(context.Background(), testutil.Gradient(32, 32), DefaultOptions())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(out) < 12 || !bytes.Equal(out[4:8], []byte("ftyp")) {
		t.Fatalf("Output is not an ISOBMFF file: % x", out[:min(len(out), 16)])
	}
	if !bytes.Contains(out[8:32], []byte("avif")) {
		t.Errorf("Expected avif brand in ftyp box, got %q", out[8:32])
	}
}

// Integration test - requires avifenc on PATH
func TestAVIFEncEncode(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if _, err := exec.LookPath("avifenc"); err != nil {
		t.Skip("External tool avifenc not available")
	}

	c := NewAVIFEncConverter()
	c.tempDir = t.TempDir()
	var img image.Image = testutil.Gradient(16, 16)
	out, err := c.Encode(context.Background(), img, DefaultOptions())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(out) < 8 || !bytes.Equal(out[4:8], []byte("ftyp")) {
		t.Fatal("Output is not an ISOBMFF file")
	}
}

func TestRegisterBuiltinConverters(t *testing.T) {
	RegisterBuiltinConverters()

	_, onPath := exec.LookPath("avifenc")
	if got, want := IsEnabled("avifenc"), onPath == nil; got != want {
		t.Errorf("avifenc enabled = %v, expected %v", got, want)
	}
	if _, err := FindConverter("avifenc", ""); (err == nil) != (onPath == nil) {
		t.Errorf("FindConverter(avifenc) error = %v with avifenc on PATH = %v", err, onPath == nil)
	}
	if d := Describe(); !strings.Contains(d, "avif (enabled)") || !strings.Contains(d, "avifenc (") {
		t.Errorf("Unexpected registry description %q", d)
	}
}

func TestDisableAll(t *testing.T) {
	defer Enable("avif")

	if err := DisableAll([]string{"avif"}); err != nil {
		t.Fatalf("DisableAll failed: %v", err)
	}
	if IsEnabled("avif") {
		t.Error("avif should be disabled")
	}
	if !strings.Contains(Describe(), "avif (disabled)") {
		t.Errorf("Describe should report avif disabled, got %q", Describe())
	}
	if err := DisableAll([]string{"heic"}); err == nil {
		t.Error("Disabling an unknown converter should fail")
	}
}
