package tilemask

import (
	"image"
	"math"

	"github.com/paulmach/orb"
	"seehuhn.de/go/geom/vec"
)

// identityTransform is the identity affine matrix.
var identityTransform = [6]float64{1, 0, 0, 1, 0, 0}

// multiplyAffine multiplies two 2D affine matrices: result = p * c.
//
//	Matrix layout: [a, b, c, d, tx, ty]
//	| a  c  tx |
//	| b  d  ty |
//	| 0  0   1 |
func multiplyAffine(p, c [6]float64) [6]float64 {
	return [6]float64{
		p[0]*c[0] + p[2]*c[1],
		p[1]*c[0] + p[3]*c[1],
		p[0]*c[2] + p[2]*c[3],
		p[1]*c[2] + p[3]*c[3],
		p[0]*c[4] + p[2]*c[5] + p[4],
		p[1]*c[4] + p[3]*c[5] + p[5],
	}
}

// invertAffine computes the inverse of a 2D affine matrix.
// Returns the identity matrix if the matrix is singular.
func invertAffine(m [6]float64) [6]float64 {
	det := m[0]*m[3] - m[2]*m[1]
	if det > -1e-12 && det < 1e-12 {
		return identityTransform
	}
	invDet := 1.0 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	return [6]float64{
		a, b, c, d,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + d*m[5]),
	}
}

// transformPoint applies an affine matrix to a point.
func transformPoint(m [6]float64, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// ScreenRect is an axis-aligned rectangle in container screen pixels.
type ScreenRect struct {
	Left, Top, Right, Bottom float64
}

// Width returns Right - Left.
func (r ScreenRect) Width() float64 { return r.Right - r.Left }

// Height returns Bottom - Top.
func (r ScreenRect) Height() float64 { return r.Bottom - r.Top }

// Empty reports whether the rectangle has non-positive width or height.
func (r ScreenRect) Empty() bool {
	return !(r.Right > r.Left) || !(r.Bottom > r.Top)
}

// TileScreenRect projects the north-west and south-east corners of the tile's
// geographic bounds and returns the screen rectangle they span. ok is false
// when the projection collapses the tile to a non-positive area.
func TileScreenRect(tile TileSpec, proj Projection) (ScreenRect, bool) {
	nw := proj.Project(orb.Point{tile.Bounds.Min[0], tile.Bounds.Max[1]})
	se := proj.Project(orb.Point{tile.Bounds.Max[0], tile.Bounds.Min[1]})
	r := ScreenRect{Left: nw.X, Top: nw.Y, Right: se.X, Bottom: se.Y}
	if r.Empty() || math.IsNaN(r.Left) || math.IsNaN(r.Top) {
		return r, false
	}
	return r, true
}

// ScreenToImage maps a container screen point to the nearest pixel of the
// tile's image. Positions outside the tile clamp to its edges. ok is false
// when the tile's projected rectangle is degenerate.
func ScreenToImage(pt vec.Vec2, tile TileSpec, proj Projection) (image.Point, bool) {
	r, ok := TileScreenRect(tile, proj)
	if !ok {
		return image.Point{}, false
	}
	return screenToImageIn(pt, r, tile.Pixels.W, tile.Pixels.H), true
}

// screenToImageIn is ScreenToImage against an already projected rectangle.
// The rectangle's edges map to pixel centers 0 and w-1, while the
// compositor draws pixel i over [i, i+1) of w spans; the two differ by up
// to half a pixel and ImageToScreen round-trips this mapping, not the
// compositor's.
func screenToImageIn(pt vec.Vec2, r ScreenRect, w, h int) image.Point {
	fx := clamp01((pt.X - r.Left) / r.Width())
	fy := clamp01((pt.Y - r.Top) / r.Height())
	return image.Point{
		X: int(math.Round(fx * float64(w-1))),
		Y: int(math.Round(fy * float64(h-1))),
	}
}

// ImageToScreen maps a tile pixel back to container screen space. It is the
// inverse of ScreenToImage for points inside the tile.
func ImageToScreen(ip image.Point, tile TileSpec, proj Projection) (vec.Vec2, bool) {
	r, ok := TileScreenRect(tile, proj)
	if !ok {
		return vec.Vec2{}, false
	}
	var fx, fy float64
	if tile.Pixels.W > 1 {
		fx = float64(ip.X) / float64(tile.Pixels.W-1)
	}
	if tile.Pixels.H > 1 {
		fy = float64(ip.Y) / float64(tile.Pixels.H-1)
	}
	return vec.Vec2{
		X: r.Left + fx*r.Width(),
		Y: r.Top + fy*r.Height(),
	}, true
}

// ScreenRadiusToImageRadius converts a brush radius given in screen pixels
// at pt into tile image pixels. The result is never below 1.
func ScreenRadiusToImageRadius(pt vec.Vec2, radius float64, tile TileSpec, proj Projection) (int, bool) {
	a, ok := ScreenToImage(pt, tile, proj)
	if !ok {
		return 0, false
	}
	b, _ := ScreenToImage(pt.Add(vec.Vec2{X: radius}), tile, proj)
	d := math.Round(math.Hypot(float64(b.X-a.X), float64(b.Y-a.Y)))
	return max(1, int(d)), true
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}
