package tilemask

import (
	"encoding/json"
	"fmt"
)

// scriptStep is a single action in a replay script.
type scriptStep struct {
	Action string  `json:"action"`
	Label  string  `json:"label,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	FromX  float64 `json:"fromX,omitempty"`
	FromY  float64 `json:"fromY,omitempty"`
	ToX    float64 `json:"toX,omitempty"`
	ToY    float64 `json:"toY,omitempty"`
	Frames int     `json:"frames,omitempty"`
	Row    int     `json:"row,omitempty"`
	Col    int     `json:"col,omitempty"`
	DRow   int     `json:"dRow,omitempty"`
	DCol   int     `json:"dCol,omitempty"`
	N      int     `json:"n,omitempty"`
	Fit    bool    `json:"fit,omitempty"`
	Mode   string  `json:"mode,omitempty"`
	Key    string  `json:"key,omitempty"`
	Alt    bool    `json:"alt,omitempty"`
	Class  int     `json:"class,omitempty"`
	Size   float64 `json:"size,omitempty"`
	On     bool    `json:"on,omitempty"`
	ID     string  `json:"id,omitempty"`
}

type script struct {
	Steps []scriptStep `json:"steps"`
}

var scriptActions = map[string]bool{
	"press": true, "move": true, "release": true, "drag": true,
	"tile": true, "step": true, "number": true, "mode": true,
	"key": true, "class": true, "size": true, "erase": true,
	"feature": true, "clear": true, "snapshot": true, "save": true,
	"wait": true,
}

var namedKeys = map[string]Key{
	"ArrowUp":    KeyArrowUp,
	"ArrowDown":  KeyArrowDown,
	"ArrowLeft":  KeyArrowLeft,
	"ArrowRight": KeyArrowRight,
}

// ScriptRunner replays a JSON script of input and engine actions across
// Updates. Attach it with Engine.SetScriptRunner.
type ScriptRunner struct {
	steps     []scriptStep
	cursor    int
	waitCount int
	done      bool

	// Snapshots lists the files written by snapshot steps.
	Snapshots []string
	// Errors collects failures of snapshot and save steps.
	Errors []error
}

// LoadScript parses a JSON replay script.
func LoadScript(jsonData []byte) (*ScriptRunner, error) {
	var s script
	if err := json.Unmarshal(jsonData, &s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("parse script: no steps")
	}
	for i, st := range s.Steps {
		if !scriptActions[st.Action] {
			return nil, fmt.Errorf("parse script: step %d: unknown action %q", i, st.Action)
		}
		if st.Action == "key" {
			if _, ok := parseKey(st.Key); !ok {
				return nil, fmt.Errorf("parse script: step %d: unknown key %q", i, st.Key)
			}
		}
	}
	return &ScriptRunner{steps: s.Steps}, nil
}

func parseKey(s string) (Key, bool) {
	if k, ok := namedKeys[s]; ok {
		return k, true
	}
	r := []rune(s)
	if len(r) != 1 {
		return 0, false
	}
	return Key(r[0]), true
}

// SetScriptRunner attaches a runner. Its step runs at the start of every
// Update.
func (e *Engine) SetScriptRunner(r *ScriptRunner) {
	e.script = r
}

// Done reports whether every step has run and the injected input drained.
func (r *ScriptRunner) Done() bool {
	return r.done
}

// step advances the runner by one frame.
func (r *ScriptRunner) step(e *Engine) {
	if r.done {
		return
	}
	// injected pointer events drain before the next step
	if len(e.injectQueue) > 0 {
		return
	}
	if r.waitCount > 0 {
		r.waitCount--
		return
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++
	r.run(e, st)

	if r.cursor >= len(r.steps) && r.waitCount == 0 && len(e.injectQueue) == 0 {
		r.done = true
	}
}

func (r *ScriptRunner) run(e *Engine, st scriptStep) {
	switch st.Action {
	case "press":
		e.InjectPress(st.X, st.Y)
	case "move":
		e.InjectMove(st.X, st.Y)
	case "release":
		e.InjectRelease(st.X, st.Y)
	case "drag":
		e.InjectDrag(st.FromX, st.FromY, st.ToX, st.ToY, st.Frames)
	case "tile":
		e.Dispatch(TileRequested{Row: st.Row, Col: st.Col, Fit: st.Fit})
	case "step":
		e.Dispatch(TileStepped{DRow: st.DRow, DCol: st.DCol, Wrap: true})
	case "number":
		e.Dispatch(TileNumbered{N: st.N})
	case "mode":
		switch st.Mode {
		case "brush":
			e.Dispatch(ModeSet{Mode: ModeBrush})
		case "pan":
			e.Dispatch(ModeSet{Mode: ModePan})
		default:
			e.Dispatch(ModeToggled{})
		}
	case "key":
		k, _ := parseKey(st.Key)
		e.Dispatch(KeyPressed{Key: k, Alt: st.Alt})
	case "class":
		b := e.Brush()
		b.Class = uint8(st.Class)
		e.SetBrush(b)
	case "size":
		b := e.Brush()
		b.Size = st.Size
		e.SetBrush(b)
	case "erase":
		b := e.Brush()
		b.Erase = st.On
		e.SetBrush(b)
	case "feature":
		e.Dispatch(FeatureSelected{ID: st.ID})
	case "clear":
		e.ClearTile()
	case "snapshot":
		path, err := WriteSnapshot(e.cfg.SnapshotDir, st.Label, e.Overlay())
		if err != nil {
			Logger().Warn("script snapshot failed", "label", st.Label, "err", err)
			r.Errors = append(r.Errors, err)
			return
		}
		r.Snapshots = append(r.Snapshots, path)
	case "save":
		// stored masks still loading would hold their tiles back
		e.Settle()
		if err := e.Save(e.ctx); err != nil {
			Logger().Warn("script save failed", "err", err)
			r.Errors = append(r.Errors, err)
		}
	case "wait":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1 // this frame counts as one
		}
	}
}
