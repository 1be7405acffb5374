package tilemask

import (
	"seehuhn.de/go/geom/vec"
)

// Event is an input to Engine.Dispatch.
type Event interface {
	event()
}

// PointerDown starts a brush stroke or a pan drag at Pos, in container
// screen pixels.
type PointerDown struct{ Pos vec.Vec2 }

// PointerMove continues the stroke or drag started by PointerDown. Moves
// without a preceding PointerDown are ignored.
type PointerMove struct{ Pos vec.Vec2 }

// PointerUp ends the stroke or drag.
type PointerUp struct{ Pos vec.Vec2 }

// ViewportChanged reports that the projection panned, zoomed or resized.
type ViewportChanged struct{}

// TileRequested activates a tile by row and column.
type TileRequested struct {
	Row, Col int
	Fit      bool
}

// TileStepped moves the active tile by a row and column offset.
type TileStepped struct {
	DRow, DCol int
	Wrap       bool
}

// TileNumbered activates the N-th tile counting row-major from 1.
type TileNumbered struct{ N int }

// ModeToggled switches between pan and brush.
type ModeToggled struct{}

// ModeSet selects a mode.
type ModeSet struct{ Mode Mode }

// FeatureSelected reports that the selected feature changed. When the
// feature source supports selection by id, ID is selected first; an empty
// ID clears the selection.
type FeatureSelected struct{ ID string }

// Key identifies a key for KeyPressed. Printable keys use their rune.
type Key rune

// Non-printable keys.
const (
	KeyArrowUp Key = -1 - iota
	KeyArrowDown
	KeyArrowLeft
	KeyArrowRight
)

// KeyPressed is a keyboard shortcut.
//
//	0-9      set the brush class
//	Alt+1-9  activate tile number n
//	b / v    brush / pan mode
//	e        toggle erase
//	[ / ]    brush size -1 / +1
//	arrows   step the active tile, wrapping at the grid edge
//	n / p    next / previous tile in the row
//	s        save every changed tile
type KeyPressed struct {
	Key Key
	Alt bool
}

func (PointerDown) event()     {}
func (PointerMove) event()     {}
func (PointerUp) event()       {}
func (ViewportChanged) event() {}
func (TileRequested) event()   {}
func (TileStepped) event()     {}
func (TileNumbered) event()    {}
func (ModeToggled) event()     {}
func (ModeSet) event()         {}
func (FeatureSelected) event() {}
func (KeyPressed) event()      {}

// featureSelector is implemented by feature sources that select by id,
// such as FeatureSet.
type featureSelector interface {
	Select(id string) bool
}

// Dispatch processes one event synchronously. Events that do not apply in
// the current state are dropped.
func (e *Engine) Dispatch(ev Event) {
	switch ev := ev.(type) {
	case PointerDown:
		e.pointerDown(ev.Pos)
	case PointerMove:
		e.pointerMove(ev.Pos)
	case PointerUp:
		e.pointerUp(ev.Pos)
	case ViewportChanged:
		e.viewportChanged()
	case TileRequested:
		e.Activate(ev.Row, ev.Col, ev.Fit)
	case TileStepped:
		e.Step(ev.DRow, ev.DCol, ev.Wrap)
	case TileNumbered:
		e.ActivateNumber(ev.N)
	case ModeToggled:
		if e.mode == ModeBrush {
			e.SetMode(ModePan)
		} else {
			e.SetMode(ModeBrush)
		}
	case ModeSet:
		e.SetMode(ev.Mode)
	case FeatureSelected:
		if s, ok := e.svc.Features.(featureSelector); ok {
			s.Select(ev.ID)
		}
		e.rebuildClip()
	case KeyPressed:
		e.keyPressed(ev)
	}
}

func (e *Engine) pointerDown(pos vec.Vec2) {
	if e.state != StateReady {
		return
	}
	switch e.mode {
	case ModeBrush:
		e.endStroke()
		e.beginStroke(pos)
	case ModePan:
		e.panning = true
		e.panLast = pos
	}
}

func (e *Engine) pointerMove(pos vec.Vec2) {
	switch {
	case e.stroke.open:
		e.continueStroke(pos)
	case e.panning:
		p, ok := e.proj.(Panner)
		if !ok {
			return
		}
		d := pos.Sub(e.panLast)
		e.panLast = pos
		p.PanBy(d)
		e.viewportChanged()
	}
}

func (e *Engine) pointerUp(pos vec.Vec2) {
	if e.stroke.open {
		e.continueStroke(pos)
		e.endStroke()
	}
	if e.panning {
		e.pointerMove(pos)
		e.panning = false
	}
}

func (e *Engine) keyPressed(ev KeyPressed) {
	k := ev.Key
	if k >= '0' && k <= '9' {
		n := int(k - '0')
		if ev.Alt {
			e.ActivateNumber(n)
		} else {
			e.brush.Class = uint8(n)
		}
		return
	}
	switch k {
	case 'b', 'B':
		e.SetMode(ModeBrush)
	case 'v', 'V':
		e.SetMode(ModePan)
	case 'e', 'E':
		e.brush.Erase = !e.brush.Erase
	case '[':
		e.brush.SetSize(e.brush.Size - 1)
	case ']':
		e.brush.SetSize(e.brush.Size + 1)
	case KeyArrowUp:
		e.Step(-1, 0, true)
	case KeyArrowDown:
		e.Step(1, 0, true)
	case KeyArrowLeft:
		e.Step(0, -1, true)
	case KeyArrowRight:
		e.Step(0, 1, true)
	case 'n', 'N':
		e.Step(0, 1, true)
	case 'p', 'P':
		e.Step(0, -1, true)
	case 's', 'S':
		if e.state == StateReady {
			e.saveDirtyAsync()
		}
	}
}
