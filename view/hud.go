package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/phanxgames/tilemask"
)

// fpsRefresh is how often the FPS line is recomputed, in seconds.
const fpsRefresh = 0.5

type hudNotice struct {
	text    string
	expires time.Time
}

// hud collects the text drawn in the top-left corner: a status line, the
// loading indicator, recent notices and optionally FPS.
type hud struct {
	ttl     time.Duration
	notices []hudNotice
	loading bool

	showFPS  bool
	fpsText  string
	fpsTimer float64
}

func newHUD(ttl time.Duration, showFPS bool) *hud {
	return &hud{ttl: ttl, showFPS: showFPS}
}

// push records a notice that stays visible until ttl has passed.
func (h *hud) push(n tilemask.Notice, now time.Time) {
	h.notices = append(h.notices, hudNotice{text: n.String(), expires: now.Add(h.ttl)})
}

// expire drops notices whose time has passed.
func (h *hud) expire(now time.Time) {
	kept := h.notices[:0]
	for _, n := range h.notices {
		if now.Before(n.expires) {
			kept = append(kept, n)
		}
	}
	h.notices = kept
}

// tick refreshes the FPS text every fpsRefresh seconds.
func (h *hud) tick(dt float64, fps, tps float64) {
	if !h.showFPS {
		return
	}
	h.fpsTimer += dt
	if h.fpsText != "" && h.fpsTimer < fpsRefresh {
		return
	}
	h.fpsTimer = 0
	h.fpsText = fmt.Sprintf("FPS: %.1f  TPS: %.1f", fps, tps)
}

// text returns the HUD lines for the engine's current state.
func (h *hud) text(eng *tilemask.Engine) string {
	var sb strings.Builder
	sb.WriteString(statusLine(eng))
	if h.loading {
		sb.WriteString("\nloading backdrop...")
	}
	for _, n := range h.notices {
		sb.WriteString("\n")
		sb.WriteString(n.text)
	}
	if h.fpsText != "" {
		sb.WriteString("\n")
		sb.WriteString(h.fpsText)
	}
	return sb.String()
}

// statusLine summarizes the engine state on one line.
func statusLine(eng *tilemask.Engine) string {
	if eng.State() != tilemask.StateReady {
		return eng.State().String()
	}
	tile := "none"
	if t, ok := eng.ActiveTile(); ok {
		tile = t.Key().String()
	}
	b := eng.Brush()
	erase := "off"
	if b.Erase {
		erase = "on"
	}
	return fmt.Sprintf("%s %s  mode %s  class %d  size %.0f  erase %s",
		eng.SceneID(), tile, eng.Mode(), b.Class, b.Size, erase)
}
