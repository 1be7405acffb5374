package tilemask

import (
	"fmt"
	"image"
	"math"

	"github.com/paulmach/orb"
)

// Scene describes one georeferenced backdrop image. Scenes are immutable once
// loaded and replaced wholesale on a scene switch.
type Scene struct {
	ID string
	// Bounds is the geographic extent (lon/lat) of the backdrop image.
	Bounds orb.Bound
	// Width and Height are the backdrop's full-resolution pixel dimensions.
	Width, Height int
}

// PixelRect is a rectangle inside the scene's pixel space.
type PixelRect struct {
	X0, Y0, W, H int
}

// Rect returns the rectangle as an image.Rectangle in scene pixels.
func (r PixelRect) Rect() image.Rectangle {
	return image.Rect(r.X0, r.Y0, r.X0+r.W, r.Y0+r.H)
}

// TileKey addresses a tile by row and column.
type TileKey struct {
	Row, Col int
}

func (k TileKey) String() string {
	return fmt.Sprintf("r%d_c%d", k.Row, k.Col)
}

// TileSpec is one cell of the grid: its geographic bounds and the matching
// rectangle of scene pixels. Row 0 is the northern edge of the scene.
type TileSpec struct {
	Row, Col int
	Bounds   orb.Bound
	Pixels   PixelRect
}

// Key returns the tile's address.
func (t TileSpec) Key() TileKey {
	return TileKey{Row: t.Row, Col: t.Col}
}

// BuildGrid partitions a scene of w×h pixels covering bounds into rows×cols
// tiles, returned row-major. Pixel edges are floor(i/n * size), so the tiles
// cover [0,w)×[0,h) exactly. Geographic edges are derived from the same pixel
// edges so both spaces line up. Returns nil for non-positive arguments or
// when a tile would be empty.
func BuildGrid(rows, cols int, bounds orb.Bound, w, h int) []TileSpec {
	if rows <= 0 || cols <= 0 || w < cols || h < rows {
		return nil
	}
	lonSpan := bounds.Max[0] - bounds.Min[0]
	latSpan := bounds.Max[1] - bounds.Min[1]

	tiles := make([]TileSpec, 0, rows*cols)
	for r := 0; r < rows; r++ {
		y0 := splitEdge(r, rows, h)
		y1 := splitEdge(r+1, rows, h)
		north := bounds.Max[1] - latSpan*float64(y0)/float64(h)
		south := bounds.Max[1] - latSpan*float64(y1)/float64(h)
		if r == rows-1 {
			south = bounds.Min[1]
		}
		for c := 0; c < cols; c++ {
			x0 := splitEdge(c, cols, w)
			x1 := splitEdge(c+1, cols, w)
			west := bounds.Min[0] + lonSpan*float64(x0)/float64(w)
			east := bounds.Min[0] + lonSpan*float64(x1)/float64(w)
			if c == cols-1 {
				east = bounds.Max[0]
			}
			tiles = append(tiles, TileSpec{
				Row:    r,
				Col:    c,
				Bounds: orb.Bound{Min: orb.Point{west, south}, Max: orb.Point{east, north}},
				Pixels: PixelRect{X0: x0, Y0: y0, W: x1 - x0, H: y1 - y0},
			})
		}
	}
	return tiles
}

// splitEdge returns floor(i/n * size) without floating point error.
func splitEdge(i, n, size int) int {
	return i * size / n
}

// Grid is the tile layout of one scene plus the active tile. At most one
// tile is active at a time.
type Grid struct {
	scene      Scene
	rows, cols int
	tiles      []TileSpec

	active    TileKey
	hasActive bool
}

// NewGrid builds the rows×cols grid of scene. The grid is empty when the
// arguments are invalid (see BuildGrid).
func NewGrid(scene Scene, rows, cols int) *Grid {
	tiles := BuildGrid(rows, cols, scene.Bounds, scene.Width, scene.Height)
	if tiles == nil {
		rows, cols = 0, 0
	}
	return &Grid{scene: scene, rows: rows, cols: cols, tiles: tiles}
}

// Scene returns the scene the grid was built from.
func (g *Grid) Scene() Scene { return g.scene }

// Rows returns the number of tile rows.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of tile columns.
func (g *Grid) Cols() int { return g.cols }

// Len returns the number of tiles.
func (g *Grid) Len() int { return len(g.tiles) }

// Tiles returns all tiles in row-major order. The slice must not be modified.
func (g *Grid) Tiles() []TileSpec { return g.tiles }

// Contains reports whether (row, col) addresses a tile.
func (g *Grid) Contains(row, col int) bool {
	return row >= 0 && row < g.rows && col >= 0 && col < g.cols
}

// Tile returns the tile at (row, col). Out-of-range addresses return the zero
// TileSpec; check with Contains first.
func (g *Grid) Tile(row, col int) TileSpec {
	if !g.Contains(row, col) {
		return TileSpec{}
	}
	return g.tiles[row*g.cols+col]
}

// Active returns the active tile, if any.
func (g *Grid) Active() (TileSpec, bool) {
	if !g.hasActive {
		return TileSpec{}, false
	}
	return g.Tile(g.active.Row, g.active.Col), true
}

// SetActive marks (row, col) as the active tile. Returns false and leaves the
// active tile unchanged if the address is out of range.
func (g *Grid) SetActive(row, col int) bool {
	if !g.Contains(row, col) {
		return false
	}
	g.active = TileKey{Row: row, Col: col}
	g.hasActive = true
	return true
}

// ClearActive deactivates the active tile.
func (g *Grid) ClearActive() {
	g.hasActive = false
}

// PickNearestTile returns the tile whose geographic center is closest, by
// Euclidean distance in lon/lat, to center. ok is false for an empty grid.
func (g *Grid) PickNearestTile(center orb.Point) (TileKey, bool) {
	best := -1
	bestD := math.Inf(1)
	for i, t := range g.tiles {
		c := t.Bounds.Center()
		dx, dy := c[0]-center[0], c[1]-center[1]
		if d := dx*dx + dy*dy; d < bestD {
			best, bestD = i, d
		}
	}
	if best < 0 {
		return TileKey{}, false
	}
	return g.tiles[best].Key(), true
}

// MoveActive returns the tile dRow rows and dCol columns away from the
// active tile. With wrap the target wraps around the grid edges; without it
// a target outside the grid returns ok=false. With no active tile the move
// starts from (0, 0).
func (g *Grid) MoveActive(dRow, dCol int, wrap bool) (TileKey, bool) {
	if len(g.tiles) == 0 {
		return TileKey{}, false
	}
	r, c := g.active.Row+dRow, g.active.Col+dCol
	if !g.hasActive {
		r, c = dRow, dCol
	}
	if wrap {
		r = ((r % g.rows) + g.rows) % g.rows
		c = ((c % g.cols) + g.cols) % g.cols
	} else if !g.Contains(r, c) {
		return TileKey{}, false
	}
	return TileKey{Row: r, Col: c}, true
}

// TileByNumber returns the n-th tile counting row-major from 1.
func (g *Grid) TileByNumber(n int) (TileKey, bool) {
	i := n - 1
	if i < 0 || i >= len(g.tiles) {
		return TileKey{}, false
	}
	return TileKey{Row: i / g.cols, Col: i % g.cols}, true
}
