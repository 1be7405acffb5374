package tilemask

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Palette maps class ids to display colors. Entries are stored
// premultiplied, ready to be written into an *image.RGBA surface.
type Palette struct {
	colors [256]color.RGBA
}

// defaultPaletteHex is the stock palette: 0 background, 1 vegetation,
// 2 bare soil, 3 crop.
var defaultPaletteHex = map[int]string{
	0: "#00000000",
	1: "#00ff00ff",
	2: "#ffa500ff",
	3: "#ffff00ff",
}

// DefaultPalette returns the stock palette. Classes without an entry render
// transparent.
func DefaultPalette() *Palette {
	p := &Palette{}
	for class, hex := range defaultPaletteHex {
		c, _ := ParseHexColor(hex)
		p.Set(uint8(class), c)
	}
	return p
}

// NewPalette builds a palette from a class -> "#rrggbb[aa]" table on top of
// the stock palette. Keys must be decimal class ids in [0, 255].
func NewPalette(entries map[string]string) (*Palette, error) {
	p := DefaultPalette()
	for k, hex := range entries {
		class, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || class < 0 || class > 255 {
			return nil, fmt.Errorf("palette: invalid class %q", k)
		}
		c, err := ParseHexColor(hex)
		if err != nil {
			return nil, fmt.Errorf("palette: class %d: %w", class, err)
		}
		p.Set(uint8(class), c)
	}
	return p, nil
}

// Set assigns the straight-alpha color c to class.
func (p *Palette) Set(class uint8, c color.NRGBA) {
	p.colors[class] = color.RGBAModel.Convert(c).(color.RGBA)
}

// Color returns the premultiplied color for class.
func (p *Palette) Color(class uint8) color.RGBA {
	return p.colors[class]
}

// ParseHexColor parses "#rrggbb" or "#rrggbbaa". Six digits mean opaque.
func ParseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 && len(s) != 8 {
		return color.NRGBA{}, fmt.Errorf("parse color %q: want #rrggbb or #rrggbbaa", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	if len(s) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}
