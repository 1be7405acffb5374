package tilemask

import (
	"seehuhn.de/go/geom/vec"
)

type pointerPhase int

const (
	phaseDown pointerPhase = iota
	phaseMove
	phaseUp
)

// syntheticPointerEvent is one injected pointer event in container screen
// coordinates.
type syntheticPointerEvent struct {
	pos   vec.Vec2
	phase pointerPhase
}

// InjectPress queues a pointer press at the given screen coordinates. The
// event is dispatched on the next Update.
func (e *Engine) InjectPress(x, y float64) {
	e.injectQueue = append(e.injectQueue, syntheticPointerEvent{pos: vec.Vec2{X: x, Y: y}, phase: phaseDown})
}

// InjectMove queues a pointer move with the button held. Use it between
// InjectPress and InjectRelease to simulate a drag.
func (e *Engine) InjectMove(x, y float64) {
	e.injectQueue = append(e.injectQueue, syntheticPointerEvent{pos: vec.Vec2{X: x, Y: y}, phase: phaseMove})
}

// InjectRelease queues a pointer release at the given screen coordinates.
func (e *Engine) InjectRelease(x, y float64) {
	e.injectQueue = append(e.injectQueue, syntheticPointerEvent{pos: vec.Vec2{X: x, Y: y}, phase: phaseUp})
}

// InjectDrag queues a press at (fromX, fromY), frames-2 linearly
// interpolated moves and a release at (toX, toY). The sequence consumes
// frames Updates; the minimum is 2.
func (e *Engine) InjectDrag(fromX, fromY, toX, toY float64, frames int) {
	if frames < 2 {
		frames = 2
	}
	e.InjectPress(fromX, fromY)
	steps := frames - 2
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps+1)
		e.InjectMove(fromX+(toX-fromX)*t, fromY+(toY-fromY)*t)
	}
	e.InjectRelease(toX, toY)
}

// Pending reports whether injected events are still queued.
func (e *Engine) Pending() bool { return len(e.injectQueue) > 0 }

// processInjectedInput dispatches one queued event. Returns true if an
// event was consumed, so hosts can skip real device input for the frame.
func (e *Engine) processInjectedInput() bool {
	if len(e.injectQueue) == 0 {
		return false
	}
	evt := e.injectQueue[0]
	copy(e.injectQueue, e.injectQueue[1:])
	e.injectQueue = e.injectQueue[:len(e.injectQueue)-1]

	switch evt.phase {
	case phaseDown:
		e.Dispatch(PointerDown{Pos: evt.pos})
	case phaseMove:
		e.Dispatch(PointerMove{Pos: evt.pos})
	case phaseUp:
		e.Dispatch(PointerUp{Pos: evt.pos})
	}
	return true
}
