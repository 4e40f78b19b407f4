// Package testutil builds small in-memory images for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/tiff"
)

func Gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func JPEG(w, h int) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Gradient(w, h), &jpeg.Options{Quality: 90}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func PNG(w, h int) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Gradient(w, h)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func TIFF(w, h int) []byte {
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, Gradient(w, h), nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// JPEGWithDateTimeOriginal returns a decodable JPEG whose APP1 segment holds
// a single DateTimeOriginal tag with the given raw value.
func JPEGWithDateTimeOriginal(w, h int, value string) []byte {
	return withAPP1(JPEG(w, h), exifSegment(value, 0))
}

// JPEGWithBrokenGPS is like JPEGWithDateTimeOriginal but IFD0 also carries a
// GPS IFD pointer at gpsOffset, which may point past the end of the data.
func JPEGWithBrokenGPS(w, h int, value string, gpsOffset uint32) []byte {
	return withAPP1(JPEG(w, h), exifSegment(value, gpsOffset))
}

func withAPP1(plain, app1 []byte) []byte {
	out := make([]byte, 0, len(plain)+len(app1))
	out = append(out, plain[:2]...) // SOI
	out = append(out, app1...)
	out = append(out, plain[2:]...)
	return out
}

func exifSegment(value string, gpsOffset uint32) []byte {
	str := append([]byte(value), 0)
	le := binary.LittleEndian

	var tiffBuf bytes.Buffer
	put16 := func(v uint16) { _ = binary.Write(&tiffBuf, le, v) }
	put32 := func(v uint32) { _ = binary.Write(&tiffBuf, le, v) }

	entries := uint32(1)
	if gpsOffset != 0 {
		entries = 2
	}
	const ifd0 = 8
	exifIFD := ifd0 + 2 + 12*entries + 4
	strOff := exifIFD + 2 + 12 + 4

	tiffBuf.WriteString("II")
	put16(42)
	put32(ifd0)

	// IFD0: ExifIFDPointer, then optionally GPSInfoIFDPointer
	put16(uint16(entries))
	put16(0x8769)
	put16(4)
	put32(1)
	put32(exifIFD)
	if gpsOffset != 0 {
		put16(0x8825)
		put16(4)
		put32(1)
		put32(gpsOffset)
	}
	put32(0)

	// Exif IFD: DateTimeOriginal
	put16(1)
	put16(0x9003)
	put16(2)
	put32(uint32(len(str)))
	if len(str) <= 4 {
		var inline [4]byte
		copy(inline[:], str)
		tiffBuf.Write(inline[:])
		str = nil
	} else {
		put32(strOff)
	}
	put32(0)
	tiffBuf.Write(str)

	payload := append([]byte("Exif\x00\x00"), tiffBuf.Bytes()...)
	seg := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	return append(seg, payload...)
}
