package tilemask

import (
	"image"
	"math"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Compositor owns the screen-sized overlay the active tile's mask is drawn
// into. The overlay is a plain *image.RGBA; hosts upload it to the GPU when
// Version changes.
type Compositor struct {
	overlay *image.RGBA
	version uint64
	stats   compositeStats
	debug   bool
}

// NewCompositor creates a compositor with a w×h overlay.
func NewCompositor(w, h int) *Compositor {
	return &Compositor{overlay: image.NewRGBA(image.Rect(0, 0, max(w, 0), max(h, 0)))}
}

// Overlay returns the overlay image. It is rewritten by every Recomposite.
func (c *Compositor) Overlay() *image.RGBA { return c.overlay }

// Version increases every time the overlay pixels may have changed.
func (c *Compositor) Version() uint64 { return c.version }

// SetDebug enables per-composite timing logs at debug level.
func (c *Compositor) SetDebug(on bool) { c.debug = on }

// Resize replaces the overlay with a cleared w×h image. The old overlay is
// dropped rather than resized in place.
func (c *Compositor) Resize(w, h int) {
	w, h = max(w, 0), max(h, 0)
	if b := c.overlay.Bounds(); b.Dx() == w && b.Dy() == h {
		return
	}
	c.overlay = image.NewRGBA(image.Rect(0, 0, w, h))
	c.version++
}

// Clear makes the overlay fully transparent.
func (c *Compositor) Clear() {
	clear(c.overlay.Pix)
	c.version++
}

// Recomposite redraws the overlay for the tile as it currently appears
// through proj: the visible part of the tile's screen rectangle receives a
// nearest-neighbor scaled copy of the matching part of buf's color surface
// and everything else is transparent. Calling it again with the same inputs
// produces the same pixels. Reports whether anything was drawn.
func (c *Compositor) Recomposite(tile TileSpec, buf *MaskBuffer, proj Projection) bool {
	start := time.Now()
	c.Clear()
	c.stats = compositeStats{}
	defer func() {
		c.stats.duration = time.Since(start)
		c.debugLog(tile)
	}()

	if buf == nil {
		return false
	}
	r, ok := TileScreenRect(tile, proj)
	if !ok {
		return false
	}

	ob := c.overlay.Bounds()
	dx0 := clampf(r.Left, 0, float64(ob.Dx()))
	dy0 := clampf(r.Top, 0, float64(ob.Dy()))
	dx1 := clampf(r.Right, 0, float64(ob.Dx()))
	dy1 := clampf(r.Bottom, 0, float64(ob.Dy()))
	if dx1 <= dx0 || dy1 <= dy0 {
		return false
	}

	bw, bh := float64(buf.Width()), float64(buf.Height())
	src := image.Rect(
		int(math.Floor((dx0-r.Left)*bw/r.Width())),
		int(math.Floor((dy0-r.Top)*bh/r.Height())),
		int(math.Min(bw, math.Ceil((dx1-r.Left)*bw/r.Width()))),
		int(math.Min(bh, math.Ceil((dy1-r.Top)*bh/r.Height()))),
	).Intersect(buf.Bounds())
	if src.Empty() {
		return false
	}
	dst := image.Rect(
		int(math.Floor(dx0)), int(math.Floor(dy0)),
		int(math.Ceil(dx1)), int(math.Ceil(dy1)),
	)
	c.stats.src, c.stats.dst = src, dst

	// Source pixels map through the full tile transform so sub-pixel pan
	// offsets stay exact; the dst sub-image bounds the work to the visible
	// part. The whole surface is passed as the source rectangle because
	// the transform only reads pixels that land inside dst.
	s2d := f64.Aff3{
		r.Width() / bw, 0, r.Left,
		0, r.Height() / bh, r.Top,
	}
	target := c.overlay.SubImage(dst).(*image.RGBA)
	xdraw.NearestNeighbor.Transform(target, s2d, buf.Surface(), buf.Bounds(), xdraw.Src, nil)
	return true
}

func clampf(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
