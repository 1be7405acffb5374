package tilemask

import (
	"image"
	"math"

	"seehuhn.de/go/geom/vec"
)

// Brush size limits, in screen pixels.
const (
	MinBrushSize     = 2
	MaxBrushSize     = 256
	DefaultBrushSize = 24
)

// strokeSpacing is the largest gap between interpolated stamp centers as a
// fraction of the brush diameter.
const strokeSpacing = 0.35

// BrushState is the current brush. Size is a diameter in screen pixels and
// is converted to image pixels per stamp, since the screen-to-image scale
// depends on zoom.
type BrushState struct {
	Size  float64
	Class uint8
	Erase bool
}

// DefaultBrush returns a 24px brush painting class 1.
func DefaultBrush() BrushState {
	return BrushState{Size: DefaultBrushSize, Class: 1}
}

// SetSize sets the diameter, clamped to [MinBrushSize, MaxBrushSize].
func (b *BrushState) SetSize(size float64) {
	b.Size = math.Max(MinBrushSize, math.Min(size, MaxBrushSize))
}

// ScreenRadius returns the stamp radius in screen pixels, at least 1.
func (b BrushState) ScreenRadius() float64 {
	return math.Max(1, b.Size*0.5)
}

// PaintStamp rasterizes one circular stamp of the given image-space radius
// into buf. With a non-nil clip, a stamp whose center lies outside the clip
// is rejected whole and nothing is written. Erase, or class 0, writes
// background and transparent pixels; otherwise the low 8 bits of class are
// written together with the palette color. Pixels are replaced, never
// blended, so repeating a stamp changes nothing. Reports whether the stamp
// was applied.
func PaintStamp(buf *MaskBuffer, clip *ClipRegion, center image.Point, radius, class int, erase bool) bool {
	if buf == nil {
		return false
	}
	if clip != nil && !clip.Contains(float64(center.X), float64(center.Y)) {
		return false
	}
	radius = max(radius, 1)
	value := uint8(class & 0xff)
	if erase {
		value = 0
	}

	box := image.Rect(center.X-radius, center.Y-radius, center.X+radius+1, center.Y+radius+1).
		Intersect(buf.Bounds())
	r2 := radius * radius
	for y := box.Min.Y; y < box.Max.Y; y++ {
		dy := y - center.Y
		row := y * buf.width
		for x := box.Min.X; x < box.Max.X; x++ {
			dx := x - center.X
			if dx*dx+dy*dy <= r2 {
				buf.paint(row+x, value)
			}
		}
	}
	buf.touch()
	return true
}

// StrokeSteps returns the stamp centers needed to continue a stroke from
// from to to with a brush of the given screen diameter: ceil(dist/step)
// evenly spaced points ending at to, where step is 35% of the diameter but
// at least 2 pixels. Returns nil when the points coincide.
func StrokeSteps(from, to vec.Vec2, size float64) []vec.Vec2 {
	d := to.Sub(from)
	dist := d.Length()
	if dist == 0 {
		return nil
	}
	step := math.Max(2, size*strokeSpacing)
	n := int(math.Ceil(dist / step))
	pts := make([]vec.Vec2, n)
	for i := 1; i <= n; i++ {
		pts[i-1] = from.Add(d.Mul(float64(i) / float64(n)))
	}
	return pts
}
