package tilemask

import (
	"math"

	"github.com/paulmach/orb"
	"seehuhn.de/go/geom/vec"
)

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

// linearProjection maps a geographic bound linearly onto a screen rectangle,
// north up. It stands in for the host's map in tests where exact numbers
// matter more than Mercator distortion.
type linearProjection struct {
	geo    orb.Bound
	screen ScreenRect
	size   vec.Vec2
}

func newLinearProjection(geo orb.Bound, screen ScreenRect, w, h float64) *linearProjection {
	return &linearProjection{geo: geo, screen: screen, size: vec.Vec2{X: w, Y: h}}
}

func (p *linearProjection) Project(g orb.Point) vec.Vec2 {
	fx := (g[0] - p.geo.Min[0]) / (p.geo.Max[0] - p.geo.Min[0])
	fy := (p.geo.Max[1] - g[1]) / (p.geo.Max[1] - p.geo.Min[1])
	return vec.Vec2{
		X: p.screen.Left + fx*p.screen.Width(),
		Y: p.screen.Top + fy*p.screen.Height(),
	}
}

func (p *linearProjection) Unproject(s vec.Vec2) orb.Point {
	fx := (s.X - p.screen.Left) / p.screen.Width()
	fy := (s.Y - p.screen.Top) / p.screen.Height()
	return orb.Point{
		p.geo.Min[0] + fx*(p.geo.Max[0]-p.geo.Min[0]),
		p.geo.Max[1] - fy*(p.geo.Max[1]-p.geo.Min[1]),
	}
}

func (p *linearProjection) Size() vec.Vec2 { return p.size }

func (p *linearProjection) PanBy(d vec.Vec2) {
	p.screen.Left += d.X
	p.screen.Right += d.X
	p.screen.Top += d.Y
	p.screen.Bottom += d.Y
}

// testBounds is a 0.9°×0.9° scene so every 3×3 tile spans 0.3°.
var testBounds = orb.Bound{Min: orb.Point{50, 35}, Max: orb.Point{50.9, 35.9}}

// oneToOne returns a projection that shows testBounds at one screen pixel per
// image pixel of a 900×900 scene, offset by (left, top).
func oneToOne(left, top float64) *linearProjection {
	return newLinearProjection(testBounds,
		ScreenRect{Left: left, Top: top, Right: left + 900, Bottom: top + 900}, 1200, 1000)
}
