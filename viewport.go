package tilemask

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"seehuhn.de/go/geom/vec"
)

// Projection maps geographic coordinates (lon, lat) to container screen
// pixels and back. It is owned by the host's map component; the engine only
// reads it.
type Projection interface {
	Project(p orb.Point) vec.Vec2
	Unproject(s vec.Vec2) orb.Point
	// Size returns the container size in screen pixels.
	Size() vec.Vec2
}

// Panner is implemented by projections that can be dragged in pan mode.
type Panner interface {
	PanBy(d vec.Vec2)
}

// TileSize is the edge length in pixels of one web map tile at integer zoom.
// At zoom z the whole world spans TileSize * 2^z pixels.
const TileSize = 256

const earthCircumference = 2 * math.Pi * orb.EarthRadius

// flyAnim interpolates the viewport between two views. The tween runs on a
// 0..1 fraction so the float32 precision of gween does not quantize
// Mercator meters.
type flyAnim struct {
	tween    *gween.Tween
	from, to orb.Point // Mercator meters
	fromZoom float64
	toZoom   float64
}

// Viewport is a Web Mercator map view: a geographic center, a fractional
// zoom level and a container size. It implements [Projection] and [Panner].
type Viewport struct {
	// Center is the geographic point shown at the middle of the container.
	Center orb.Point
	// Zoom is the web map zoom level (0 shows the whole world in one tile).
	Zoom float64
	// MinZoom and MaxZoom bound Zoom for ZoomAround and FitBounds.
	MinZoom, MaxZoom float64

	width, height float64

	viewMatrix    [6]float64
	invViewMatrix [6]float64
	dirty         bool
	lastCenter    orb.Point
	lastZoom      float64

	// view as of the previous Update, for change detection
	seenCenter orb.Point
	seenZoom   float64
	seenSize   vec.Vec2

	fly *flyAnim
}

// NewViewport creates a viewport of the given container size centered on
// (0, 0) at zoom 2.
func NewViewport(width, height float64) *Viewport {
	return &Viewport{
		Zoom:    2,
		MinZoom: 0,
		MaxZoom: 22,
		width:   width,
		height:  height,
		dirty:   true,
	}
}

// Size returns the container size in screen pixels.
func (v *Viewport) Size() vec.Vec2 {
	return vec.Vec2{X: v.width, Y: v.height}
}

// Resize changes the container size. The center stays in the middle.
func (v *Viewport) Resize(width, height float64) {
	if width == v.width && height == v.height {
		return
	}
	v.width, v.height = width, height
	v.dirty = true
}

// SetView jumps to the given center and zoom, cancelling any animation.
func (v *Viewport) SetView(center orb.Point, zoom float64) {
	v.fly = nil
	v.Center = center
	v.Zoom = v.clampZoom(zoom)
	v.dirty = true
}

// MarkDirty forces a recomputation of the view matrix. Call it after
// changing Center or Zoom directly.
func (v *Viewport) MarkDirty() {
	v.dirty = true
}

// scale returns screen pixels per Mercator meter at the current zoom.
func (v *Viewport) scale() float64 {
	return TileSize * math.Exp2(v.Zoom) / earthCircumference
}

// computeViewMatrix recomputes the cached view matrix if dirty.
//
// viewMatrix = Translate(w/2, h/2) * Scale(s, -s) * Translate(-cx, -cy)
// where (cx, cy) is the center in Mercator meters.
func (v *Viewport) computeViewMatrix() [6]float64 {
	if !v.dirty && v.Center == v.lastCenter && v.Zoom == v.lastZoom {
		return v.viewMatrix
	}
	v.dirty = false
	v.lastCenter = v.Center
	v.lastZoom = v.Zoom

	c := project.WGS84.ToMercator(v.Center)
	s := v.scale()
	center := [6]float64{1, 0, 0, 1, v.width / 2, v.height / 2}
	scale := [6]float64{s, 0, 0, -s, 0, 0}
	origin := [6]float64{1, 0, 0, 1, -c[0], -c[1]}
	v.viewMatrix = multiplyAffine(center, multiplyAffine(scale, origin))
	v.invViewMatrix = invertAffine(v.viewMatrix)
	return v.viewMatrix
}

// Project converts a geographic point to container screen pixels.
func (v *Viewport) Project(p orb.Point) vec.Vec2 {
	m := project.WGS84.ToMercator(p)
	x, y := transformPoint(v.computeViewMatrix(), m[0], m[1])
	return vec.Vec2{X: x, Y: y}
}

// Unproject converts container screen pixels to a geographic point.
func (v *Viewport) Unproject(s vec.Vec2) orb.Point {
	v.computeViewMatrix()
	x, y := transformPoint(v.invViewMatrix, s.X, s.Y)
	return project.Mercator.ToWGS84(orb.Point{x, y})
}

// VisibleBounds returns the geographic bounds of the container.
func (v *Viewport) VisibleBounds() orb.Bound {
	nw := v.Unproject(vec.Vec2{})
	se := v.Unproject(vec.Vec2{X: v.width, Y: v.height})
	return orb.Bound{
		Min: orb.Point{nw[0], se[1]},
		Max: orb.Point{se[0], nw[1]},
	}
}

// PanBy moves the view so content follows a pointer drag of d screen pixels.
func (v *Viewport) PanBy(d vec.Vec2) {
	if d.X == 0 && d.Y == 0 {
		return
	}
	v.fly = nil
	mid := vec.Vec2{X: v.width / 2, Y: v.height / 2}
	v.Center = v.Unproject(mid.Sub(d))
	v.dirty = true
}

// ZoomAround changes the zoom by delta levels while keeping the geographic
// point under the screen position pt fixed.
func (v *Viewport) ZoomAround(pt vec.Vec2, delta float64) {
	z := v.clampZoom(v.Zoom + delta)
	if z == v.Zoom {
		return
	}
	v.fly = nil
	anchor := project.WGS84.ToMercator(v.Unproject(pt))
	v.Zoom = z
	s := v.scale()
	cx := anchor[0] - (pt.X-v.width/2)/s
	cy := anchor[1] + (pt.Y-v.height/2)/s
	v.Center = project.Mercator.ToWGS84(orb.Point{cx, cy})
	v.dirty = true
}

// FitZoom returns the largest zoom at which b fits inside the container,
// clamped to [MinZoom, MaxZoom].
func (v *Viewport) FitZoom(b orb.Bound) float64 {
	lo := project.WGS84.ToMercator(b.Min)
	hi := project.WGS84.ToMercator(b.Max)
	bw, bh := hi[0]-lo[0], hi[1]-lo[1]
	if bw <= 0 || bh <= 0 || v.width <= 0 || v.height <= 0 {
		return v.Zoom
	}
	s0 := TileSize / earthCircumference
	z := math.Log2(math.Min(v.width/(bw*s0), v.height/(bh*s0)))
	return v.clampZoom(z)
}

// FitBounds centers the view on b, padded on every side by pad times its
// size, at the zoom returned by FitZoom. A zero duration jumps immediately.
func (v *Viewport) FitBounds(b orb.Bound, pad float64, duration float32, easeFn ease.TweenFunc) {
	b = padBound(b, pad)
	lo := project.WGS84.ToMercator(b.Min)
	hi := project.WGS84.ToMercator(b.Max)
	center := project.Mercator.ToWGS84(orb.Point{(lo[0] + hi[0]) / 2, (lo[1] + hi[1]) / 2})
	v.FlyTo(center, v.FitZoom(b), duration, easeFn)
}

// FlyTo animates the view to the given center and zoom over duration
// seconds. A zero duration jumps immediately.
func (v *Viewport) FlyTo(center orb.Point, zoom float64, duration float32, easeFn ease.TweenFunc) {
	if duration <= 0 {
		v.SetView(center, zoom)
		return
	}
	if easeFn == nil {
		easeFn = ease.OutCubic
	}
	v.fly = &flyAnim{
		tween:    gween.New(0, 1, duration, easeFn),
		from:     project.WGS84.ToMercator(v.Center),
		to:       project.WGS84.ToMercator(center),
		fromZoom: v.Zoom,
		toZoom:   v.clampZoom(zoom),
	}
}

// Animating reports whether a FlyTo or FitBounds animation is running.
func (v *Viewport) Animating() bool {
	return v.fly != nil
}

// Update advances a running animation by dt seconds and reports whether the
// view (center, zoom or size) changed since the previous Update.
func (v *Viewport) Update(dt float32) bool {
	if v.fly != nil {
		f, done := v.fly.tween.Update(dt)
		t := float64(f)
		if done {
			t = 1
		}
		x := v.fly.from[0] + (v.fly.to[0]-v.fly.from[0])*t
		y := v.fly.from[1] + (v.fly.to[1]-v.fly.from[1])*t
		v.Center = project.Mercator.ToWGS84(orb.Point{x, y})
		v.Zoom = v.fly.fromZoom + (v.fly.toZoom-v.fly.fromZoom)*t
		if done {
			v.fly = nil
		}
	}
	size := v.Size()
	changed := v.Center != v.seenCenter || v.Zoom != v.seenZoom || size != v.seenSize
	v.seenCenter, v.seenZoom, v.seenSize = v.Center, v.Zoom, size
	v.computeViewMatrix()
	return changed
}

func (v *Viewport) clampZoom(z float64) float64 {
	return math.Max(v.MinZoom, math.Min(z, v.MaxZoom))
}

// padBound grows b on every side by ratio times its width and height.
func padBound(b orb.Bound, ratio float64) orb.Bound {
	dx := (b.Max[0] - b.Min[0]) * ratio
	dy := (b.Max[1] - b.Min[1]) * ratio
	return orb.Bound{
		Min: orb.Point{b.Min[0] - dx, b.Min[1] - dy},
		Max: orb.Point{b.Max[0] + dx, b.Max[1] + dy},
	}
}
