package tilemask

import (
	"image"
	"sort"
)

// MaskBuffer is the class mask of one tile: one class id per tile pixel and
// a color surface of the same size. Every write goes to both, so the two
// never disagree. A buffer's dimensions never change; a tile whose pixel
// rect changes gets a new buffer.
type MaskBuffer struct {
	key           TileKey
	width, height int
	classes       []uint8
	surface       *image.RGBA
	palette       *Palette

	dirty bool
	edits uint64

	// painted marks pixels written by the user while a stored mask is
	// being restored; nil when no restore is outstanding.
	painted []uint64
}

func newMaskBuffer(key TileKey, w, h int, p *Palette) *MaskBuffer {
	return &MaskBuffer{
		key:     key,
		width:   w,
		height:  h,
		classes: make([]uint8, w*h),
		surface: image.NewRGBA(image.Rect(0, 0, w, h)),
		palette: p,
	}
}

// Key returns the tile the buffer belongs to.
func (b *MaskBuffer) Key() TileKey { return b.key }

// Width returns the buffer width in pixels.
func (b *MaskBuffer) Width() int { return b.width }

// Height returns the buffer height in pixels.
func (b *MaskBuffer) Height() int { return b.height }

// Bounds returns the buffer rectangle, origin at (0, 0).
func (b *MaskBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.width, b.height)
}

// Surface returns the color surface. Callers must treat it as read-only.
func (b *MaskBuffer) Surface() *image.RGBA { return b.surface }

// Classes returns the row-major class array. Callers must treat it as
// read-only.
func (b *MaskBuffer) Classes() []uint8 { return b.classes }

// ClassOf returns the class at (x, y), or 0 outside the buffer.
func (b *MaskBuffer) ClassOf(x, y int) uint8 {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return 0
	}
	return b.classes[y*b.width+x]
}

// SetClass writes class at (x, y) and its palette color to the surface.
// Writes outside the buffer are ignored.
func (b *MaskBuffer) SetClass(x, y int, class uint8) {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return
	}
	b.paint(y*b.width+x, class)
	b.touch()
}

// paint is set for user writes: the pixel also keeps its value when an
// outstanding restore is merged.
func (b *MaskBuffer) paint(i int, class uint8) {
	b.set(i, class)
	if b.painted != nil {
		b.painted[i>>6] |= 1 << (i & 63)
	}
}

// set writes pixel i of both planes without bounds checks.
func (b *MaskBuffer) set(i int, class uint8) {
	b.classes[i] = class
	c := b.palette.Color(class)
	o := i * 4
	px := b.surface.Pix[o : o+4 : o+4]
	px[0], px[1], px[2], px[3] = c.R, c.G, c.B, c.A
}

// Clear resets every pixel to class 0 and fully transparent.
func (b *MaskBuffer) Clear() {
	clear(b.classes)
	clear(b.surface.Pix)
	for i := range b.painted {
		b.painted[i] = ^uint64(0)
	}
	b.touch()
}

// beginRestore starts recording user writes so a stored mask that arrives
// later can be merged under them. It is a no-op if already recording.
func (b *MaskBuffer) beginRestore() {
	if b.painted == nil {
		b.painted = make([]uint64, (len(b.classes)+63)/64)
	}
}

// restoring reports whether a stored mask is still outstanding.
func (b *MaskBuffer) restoring() bool { return b.painted != nil }

// endRestore stops recording user writes.
func (b *MaskBuffer) endRestore() { b.painted = nil }

// mergeStored copies the classes of stored into every pixel the user has
// not written since beginRestore and ends the restore. The dirty flag is
// left alone. stored must have the same dimensions.
func (b *MaskBuffer) mergeStored(stored *MaskBuffer) {
	for i, class := range stored.classes {
		if b.painted != nil && b.painted[i>>6]&(1<<(i&63)) != 0 {
			continue
		}
		b.set(i, class)
	}
	b.painted = nil
	b.edits++
}

// Repaint rebuilds the color surface from the class array, e.g. after the
// palette changed.
func (b *MaskBuffer) Repaint() {
	for i, class := range b.classes {
		b.set(i, class)
	}
}

// Histogram returns the number of pixels per class.
func (b *MaskBuffer) Histogram() [256]int {
	var h [256]int
	for _, c := range b.classes {
		h[c]++
	}
	return h
}

// Dirty reports whether the buffer changed since the last MarkClean.
func (b *MaskBuffer) Dirty() bool { return b.dirty }

// MarkClean records that the current contents are persisted.
func (b *MaskBuffer) MarkClean() { b.dirty = false }

// Edits returns the number of mutations since the buffer was created.
func (b *MaskBuffer) Edits() uint64 { return b.edits }

func (b *MaskBuffer) touch() {
	b.dirty = true
	b.edits++
}

// Store owns the mask buffers of one scene, keyed by tile.
type Store struct {
	palette *Palette
	buffers map[TileKey]*MaskBuffer
}

// NewStore creates an empty store that colors buffers with p. A nil palette
// selects DefaultPalette.
func NewStore(p *Palette) *Store {
	if p == nil {
		p = DefaultPalette()
	}
	return &Store{palette: p, buffers: make(map[TileKey]*MaskBuffer)}
}

// Palette returns the store's palette.
func (s *Store) Palette() *Palette { return s.palette }

// Ensure returns the buffer for tile, allocating a cleared one on first use.
// An existing buffer is reused when its size matches the tile's pixel rect;
// otherwise it is replaced by a new cleared buffer.
func (s *Store) Ensure(tile TileSpec) *MaskBuffer {
	key := tile.Key()
	w, h := tile.Pixels.W, tile.Pixels.H
	if b, ok := s.buffers[key]; ok && b.width == w && b.height == h {
		return b
	}
	b := newMaskBuffer(key, w, h, s.palette)
	s.buffers[key] = b
	return b
}

// Get returns the buffer for key if one was allocated.
func (s *Store) Get(key TileKey) (*MaskBuffer, bool) {
	b, ok := s.buffers[key]
	return b, ok
}

// Len returns the number of allocated buffers.
func (s *Store) Len() int { return len(s.buffers) }

// Reset discards every buffer. Used when the scene changes.
func (s *Store) Reset() {
	clear(s.buffers)
}

// DirtyBuffers returns the buffers with unsaved changes, ordered by row then
// column.
func (s *Store) DirtyBuffers() []*MaskBuffer {
	var out []*MaskBuffer
	for _, b := range s.buffers {
		if b.dirty {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].key, out[j].key
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
	return out
}
