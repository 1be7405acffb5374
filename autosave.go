package tilemask

import (
	"time"
)

// autosaver is a deadline-based debounce. Each schedule moves the deadline
// to now+delay, so a burst of strokes produces one export after the burst
// ends. It is polled from Engine.Update rather than driven by a timer.
type autosaver struct {
	delay    time.Duration
	now      func() time.Time
	key      TileKey
	deadline time.Time
	pending  bool
}

func newAutosaver(delay time.Duration, now func() time.Time) *autosaver {
	if now == nil {
		now = time.Now
	}
	return &autosaver{delay: delay, now: now}
}

// schedule (re)arms the debounce for key. A pending save for a different
// key is replaced.
func (a *autosaver) schedule(key TileKey) {
	if a.delay <= 0 {
		return
	}
	a.key = key
	a.deadline = a.now().Add(a.delay)
	a.pending = true
}

// cancel drops the pending save, if any, and reports whether there was one.
func (a *autosaver) cancel() bool {
	was := a.pending
	a.pending = false
	return was
}

// due reports the key whose quiet period has elapsed and disarms it.
func (a *autosaver) due() (TileKey, bool) {
	if !a.pending || a.now().Before(a.deadline) {
		return TileKey{}, false
	}
	a.pending = false
	return a.key, true
}

// take disarms and returns the pending key regardless of the deadline.
func (a *autosaver) take() (TileKey, bool) {
	if !a.pending {
		return TileKey{}, false
	}
	a.pending = false
	return a.key, true
}
