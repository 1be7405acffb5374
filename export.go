package tilemask

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
)

// ErrDimensions is returned when a decoded mask does not match the size of
// the buffer it is restored into.
var ErrDimensions = errors.New("tilemask: mask dimensions do not match tile")

// EncodeMask encodes buf's class array as an 8-bit grayscale PNG whose
// pixel values are class ids.
func EncodeMask(buf *MaskBuffer) ([]byte, error) {
	img := &image.Gray{
		Pix:    buf.classes,
		Stride: buf.width,
		Rect:   buf.Bounds(),
	}
	var out bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("encode mask %s: %w", buf.key, err)
	}
	return out.Bytes(), nil
}

// DecodeMask restores buf from a PNG produced by EncodeMask. Paletted images
// are accepted too, with palette indices taken as class ids. The color
// surface is rebuilt from the palette. buf is left untouched on error.
func DecodeMask(data []byte, buf *MaskBuffer) error {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode mask %s: %w", buf.key, err)
	}
	b := img.Bounds()
	if b.Dx() != buf.width || b.Dy() != buf.height {
		return fmt.Errorf("decode mask %s: %dx%d into %dx%d: %w",
			buf.key, b.Dx(), b.Dy(), buf.width, buf.height, ErrDimensions)
	}

	var classAt func(x, y int) uint8
	switch m := img.(type) {
	case *image.Gray:
		classAt = func(x, y int) uint8 { return m.GrayAt(x, y).Y }
	case *image.Gray16:
		classAt = func(x, y int) uint8 { return uint8(m.Gray16At(x, y).Y >> 8) }
	case *image.Paletted:
		classAt = func(x, y int) uint8 { return m.ColorIndexAt(x, y) }
	default:
		return fmt.Errorf("decode mask %s: unsupported image type %T", buf.key, img)
	}

	for y := 0; y < buf.height; y++ {
		row := y * buf.width
		for x := 0; x < buf.width; x++ {
			buf.set(row+x, classAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	buf.edits++
	return nil
}
