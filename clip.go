package tilemask

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ClipRegion restricts painting to the inside of one or more rings given in
// the pixel space of a tile's mask buffer. Containment uses the even-odd
// rule across all rings, so holes and multi-part polygons need no special
// casing.
type ClipRegion struct {
	rings []orb.Ring
	bound orb.Bound
}

// NewClipRegion builds a clip from pixel-space rings. Rings with fewer than
// three points are dropped. Returns nil when no ring remains.
func NewClipRegion(rings ...orb.Ring) *ClipRegion {
	c := &ClipRegion{}
	for _, r := range rings {
		if len(r) < 3 {
			continue
		}
		if len(c.rings) == 0 {
			c.bound = r.Bound()
		} else {
			c.bound = c.bound.Union(r.Bound())
		}
		c.rings = append(c.rings, r)
	}
	if len(c.rings) == 0 {
		return nil
	}
	return c
}

// BuildClipRegion converts a geographic polygon into the pixel space of tile
// as it currently appears through proj. ok is false when the tile's projected
// rectangle is degenerate or the polygon has no usable ring.
func BuildClipRegion(poly orb.MultiPolygon, tile TileSpec, proj Projection) (*ClipRegion, bool) {
	r, ok := TileScreenRect(tile, proj)
	if !ok {
		return nil, false
	}
	sx := float64(tile.Pixels.W-1) / r.Width()
	sy := float64(tile.Pixels.H-1) / r.Height()

	var rings []orb.Ring
	for _, p := range poly {
		for _, ring := range p {
			px := make(orb.Ring, len(ring))
			for i, g := range ring {
				s := proj.Project(g)
				px[i] = orb.Point{(s.X - r.Left) * sx, (s.Y - r.Top) * sy}
			}
			rings = append(rings, px)
		}
	}
	c := NewClipRegion(rings...)
	return c, c != nil
}

// Contains reports whether the pixel-space point (x, y) is inside the region.
func (c *ClipRegion) Contains(x, y float64) bool {
	pt := orb.Point{x, y}
	if !c.bound.Contains(pt) {
		return false
	}
	inside := false
	for _, r := range c.rings {
		if planar.RingContains(r, pt) {
			inside = !inside
		}
	}
	return inside
}

// Bound returns the pixel-space bounding box of all rings.
func (c *ClipRegion) Bound() orb.Bound { return c.bound }

// Rings returns the pixel-space rings. The slice must not be modified.
func (c *ClipRegion) Rings() []orb.Ring { return c.rings }
