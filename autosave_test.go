package tilemask

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func TestAutosaverDebounce(t *testing.T) {
	clk := newFakeClock()
	a := newAutosaver(450*time.Millisecond, clk.now)
	key := TileKey{1, 1}

	a.schedule(key)
	clk.advance(300 * time.Millisecond)
	if _, ok := a.due(); ok {
		t.Fatal("due after 300ms, want pending")
	}
	// a second stroke inside the window pushes the deadline out
	a.schedule(key)
	clk.advance(300 * time.Millisecond)
	if _, ok := a.due(); ok {
		t.Fatal("due 300ms after reschedule, want pending")
	}
	clk.advance(150 * time.Millisecond)
	got, ok := a.due()
	if !ok || got != key {
		t.Fatalf("due = %v, %v, want %v, true", got, ok, key)
	}
	if _, ok := a.due(); ok {
		t.Error("due fired twice for one schedule")
	}
}

func TestAutosaverCancel(t *testing.T) {
	clk := newFakeClock()
	a := newAutosaver(time.Second, clk.now)
	a.schedule(TileKey{0, 0})
	if !a.cancel() {
		t.Error("cancel() = false with a pending save")
	}
	clk.advance(2 * time.Second)
	if _, ok := a.due(); ok {
		t.Error("cancelled save became due")
	}
	if a.cancel() {
		t.Error("cancel() = true with nothing pending")
	}
}

func TestAutosaverReplacesKey(t *testing.T) {
	clk := newFakeClock()
	a := newAutosaver(time.Second, clk.now)
	a.schedule(TileKey{0, 0})
	a.schedule(TileKey{0, 1})
	got, ok := a.take()
	if !ok || got != (TileKey{0, 1}) {
		t.Errorf("take = %v, %v, want r0_c1", got, ok)
	}
	if _, ok := a.take(); ok {
		t.Error("take twice returned a key")
	}
}

func TestAutosaverDisabled(t *testing.T) {
	a := newAutosaver(0, nil)
	a.schedule(TileKey{0, 0})
	if _, ok := a.take(); ok {
		t.Error("zero delay scheduled a save")
	}
}
