package view

import (
	"github.com/hajimehoshi/ebiten/v2"
	"seehuhn.de/go/geom/vec"

	"github.com/phanxgames/tilemask"
)

// zoomStep is the zoom change per wheel notch.
const zoomStep = 0.25

// pointerTracker turns the polled state of one pointer into down, move and
// up events.
type pointerTracker struct {
	down bool
	last vec.Vec2
}

// events returns the engine events for this frame's pointer state. A move
// is reported only while the pointer is down and has changed position.
func (p *pointerTracker) events(pressed bool, pos vec.Vec2) []tilemask.Event {
	switch {
	case pressed && !p.down:
		p.down = true
		p.last = pos
		return []tilemask.Event{tilemask.PointerDown{Pos: pos}}
	case pressed && pos != p.last:
		p.last = pos
		return []tilemask.Event{tilemask.PointerMove{Pos: pos}}
	case !pressed && p.down:
		p.down = false
		return []tilemask.Event{tilemask.PointerUp{Pos: pos}}
	}
	return nil
}

// keyMap maps ebiten keys to engine shortcut keys.
var keyMap = map[ebiten.Key]tilemask.Key{
	ebiten.KeyDigit0:       '0',
	ebiten.KeyDigit1:       '1',
	ebiten.KeyDigit2:       '2',
	ebiten.KeyDigit3:       '3',
	ebiten.KeyDigit4:       '4',
	ebiten.KeyDigit5:       '5',
	ebiten.KeyDigit6:       '6',
	ebiten.KeyDigit7:       '7',
	ebiten.KeyDigit8:       '8',
	ebiten.KeyDigit9:       '9',
	ebiten.KeyNumpad0:      '0',
	ebiten.KeyNumpad1:      '1',
	ebiten.KeyNumpad2:      '2',
	ebiten.KeyNumpad3:      '3',
	ebiten.KeyNumpad4:      '4',
	ebiten.KeyNumpad5:      '5',
	ebiten.KeyNumpad6:      '6',
	ebiten.KeyNumpad7:      '7',
	ebiten.KeyNumpad8:      '8',
	ebiten.KeyNumpad9:      '9',
	ebiten.KeyB:            'b',
	ebiten.KeyV:            'v',
	ebiten.KeyE:            'e',
	ebiten.KeyN:            'n',
	ebiten.KeyP:            'p',
	ebiten.KeyS:            's',
	ebiten.KeyBracketLeft:  '[',
	ebiten.KeyBracketRight: ']',
	ebiten.KeyArrowUp:      tilemask.KeyArrowUp,
	ebiten.KeyArrowDown:    tilemask.KeyArrowDown,
	ebiten.KeyArrowLeft:    tilemask.KeyArrowLeft,
	ebiten.KeyArrowRight:   tilemask.KeyArrowRight,
}

// keyEvents converts the keys pressed this frame to KeyPressed events.
// Unmapped keys are skipped.
func keyEvents(keys []ebiten.Key, alt bool) []tilemask.Event {
	var evs []tilemask.Event
	for _, k := range keys {
		if mk, ok := keyMap[k]; ok {
			evs = append(evs, tilemask.KeyPressed{Key: mk, Alt: alt})
		}
	}
	return evs
}

// wheelZoom converts a vertical wheel offset to a zoom delta.
func wheelZoom(dy float64) float64 {
	return dy * zoomStep
}
