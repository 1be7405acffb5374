package tilemask

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"seehuhn.de/go/geom/vec"
)

type fakeScenes struct {
	scene Scene
	err   error
}

func (f fakeScenes) Scene(ctx context.Context, id string) (Scene, error) {
	if f.err != nil {
		return Scene{}, f.err
	}
	s := f.scene
	s.ID = id
	return s, nil
}

type fakeBackdrops struct {
	mu   sync.Mutex
	urls []string
	gate chan struct{}
	fail error
}

func (f *fakeBackdrops) BackdropURL(sceneID string, row, col int, token string) string {
	return fmt.Sprintf("mem:%s/%d/%d?t=%s", sceneID, row, col, token)
}

func (f *fakeBackdrops) FetchBackdrop(ctx context.Context, url string) (image.Image, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail != nil {
		return nil, f.fail
	}
	return image.NewGray(image.Rect(0, 0, 300, 300)), nil
}

type memStore struct {
	mu      sync.Mutex
	saved   map[TileKey][]byte
	saves   int
	loads   map[TileKey]int
	gate     chan struct{}
	saveGate chan struct{}
	saveErr  error
	loadErr error
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[TileKey][]byte), loads: make(map[TileKey]int)}
}

func (m *memStore) SaveMask(ctx context.Context, sceneID string, tile TileSpec, data []byte) error {
	m.mu.Lock()
	gate := m.saveGate
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[tile.Key()] = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *memStore) LoadMask(ctx context.Context, sceneID string, row, col int) ([]byte, error) {
	m.mu.Lock()
	key := TileKey{row, col}
	m.loads[key]++
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	data, ok := m.saved[key]
	if !ok {
		return nil, ErrNoMask
	}
	return data, nil
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *memStore) loadCount(key TileKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads[key]
}

// newTestEngine initializes an engine over a 900×900 scene split 3×3, shown
// one to one by proj (oneToOne(0, 0) when nil).
func newTestEngine(t *testing.T, cfg Config, proj *linearProjection, svc Services) (*Engine, *fakeClock) {
	t.Helper()
	if proj == nil {
		proj = oneToOne(0, 0)
	}
	if svc.Scenes == nil {
		svc.Scenes = fakeScenes{scene: Scene{Bounds: testBounds, Width: 900, Height: 900}}
	}
	e := NewEngine(cfg, proj, svc)
	clk := newFakeClock()
	e.now = clk.now
	t.Cleanup(e.Close)
	if err := e.Init(context.Background(), "s"); err != nil {
		t.Fatal(err)
	}
	e.Settle()
	return e, clk
}

func classesOf(e *Engine, key TileKey) []uint8 {
	b, ok := e.Store().Get(key)
	if !ok {
		return nil
	}
	return append([]uint8(nil), b.Classes()...)
}

func pt(x, y float64) vec.Vec2 { return vec.Vec2{X: x, Y: y} }

func TestEngineUninitialized(t *testing.T) {
	e := NewEngine(DefaultConfig(), oneToOne(0, 0), Services{})
	defer e.Close()
	if e.State() != StateUninitialized {
		t.Errorf("State = %v, want uninitialized", e.State())
	}
	e.Dispatch(ModeSet{Mode: ModeBrush})
	e.Dispatch(PointerDown{Pos: pt(10, 10)})
	e.Dispatch(PointerUp{Pos: pt(10, 10)})
	if e.Activate(0, 0, false) {
		t.Error("Activate before Init = true")
	}
	if err := e.Save(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("Save err = %v, want ErrNotReady", err)
	}
	if err := e.Init(context.Background(), "s"); err == nil {
		t.Error("Init without scene service err = nil")
	}
}

func TestEngineInit(t *testing.T) {
	var changes []TileKey
	svc := Services{Scenes: fakeScenes{scene: Scene{Bounds: testBounds, Width: 900, Height: 900}}}
	e := NewEngine(DefaultConfig(), oneToOne(0, 0), svc)
	defer e.Close()
	e.OnTileChange = func(tile TileSpec) { changes = append(changes, tile.Key()) }
	if err := e.Init(context.Background(), "S2A"); err != nil {
		t.Fatal(err)
	}
	if e.State() != StateReady || e.Mode() != ModePan {
		t.Errorf("state = %v/%v, want ready/pan", e.State(), e.Mode())
	}
	tile, ok := e.ActiveTile()
	if !ok || tile.Key() != (TileKey{0, 0}) {
		t.Errorf("active = %v, %v, want r0_c0", tile.Key(), ok)
	}
	if len(changes) != 1 || changes[0] != (TileKey{0, 0}) {
		t.Errorf("tile changes = %v, want [r0_c0]", changes)
	}
	if e.Grid().Len() != 9 || e.SceneID() != "S2A" {
		t.Errorf("grid = %d tiles, scene %q", e.Grid().Len(), e.SceneID())
	}
}

func TestEngineInitFailure(t *testing.T) {
	e := NewEngine(DefaultConfig(), oneToOne(0, 0), Services{Scenes: fakeScenes{err: errors.New("offline")}})
	defer e.Close()
	if err := e.Init(context.Background(), "s"); err == nil || !strings.Contains(err.Error(), "offline") {
		t.Errorf("Init err = %v, want offline", err)
	}
	if e.State() != StateUninitialized {
		t.Errorf("State = %v, want uninitialized", e.State())
	}

	small := NewEngine(DefaultConfig(), oneToOne(0, 0), Services{Scenes: fakeScenes{scene: Scene{Bounds: testBounds, Width: 2, Height: 2}}})
	defer small.Close()
	if err := small.Init(context.Background(), "s"); err == nil {
		t.Error("Init with an image smaller than the grid err = nil")
	}
}

func TestEngineSceneChangeResetsBuffers(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig(), nil, Services{})
	e.Dispatch(ModeSet{Mode: ModeBrush})
	e.Dispatch(PointerDown{Pos: pt(150, 150)})
	e.Dispatch(PointerUp{Pos: pt(150, 150)})
	if e.Store().Len() != 1 {
		t.Fatalf("buffers = %d, want 1", e.Store().Len())
	}
	if err := e.Init(context.Background(), "s"); err != nil {
		t.Fatal(err)
	}
	if b, _ := e.ActiveBuffer(); b.ClassOf(150, 150) != 1 {
		t.Error("re-init of the same scene dropped the buffer")
	}
	if err := e.Init(context.Background(), "other"); err != nil {
		t.Fatal(err)
	}
	if b, _ := e.ActiveBuffer(); b.ClassOf(150, 150) != 0 {
		t.Error("scene change kept the old buffer")
	}
}

func TestEngineActivate(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig(), nil, Services{})
	if e.Activate(0, 0, false) {
		t.Error("re-activating the active tile = true, want no-op")
	}
	if e.Activate(3, 0, false) || e.Activate(0, -1, false) {
		t.Error("out of range Activate = true")
	}
	v := e.OverlayVersion()
	if !e.Activate(2, 1, false) {
		t.Fatal("Activate(2,1) = false")
	}
	if tile, _ := e.ActiveTile(); tile.Key() != (TileKey{2, 1}) {
		t.Errorf("active = %v, want r2_c1", tile.Key())
	}
	if e.OverlayVersion() == v {
		t.Error("Activate did not recomposite")
	}
	if e.Backdrop().Tile != (TileKey{2, 1}) || e.Backdrop().Bounds != e.Grid().Tile(2, 1).Bounds {
		t.Errorf("backdrop = %+v, want retargeted to r2_c1", e.Backdrop())
	}
}

func TestEngineBrushStroke(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig(), nil, Services{})
	e.Dispatch(ModeSet{Mode: ModeBrush})
	e.Dispatch(PointerDown{Pos: pt(100, 150)})
	if !e.Stroking() {
		t.Fatal("no stroke open after PointerDown")
	}
	e.Dispatch(PointerMove{Pos: pt(200, 150)})
	e.Dispatch(PointerUp{Pos: pt(200, 150)})
	if e.Stroking() {
		t.Error("stroke open after PointerUp")
	}
	b, _ := e.ActiveBuffer()
	// interpolated stamps leave no gap along the drag
	for x := 100; x <= 199; x += 3 {
		if got := b.ClassOf(x, 150); got != 1 {
			t.Fatalf("ClassOf(%d,150) = %d, want 1", x, got)
		}
	}
	if b.ClassOf(150, 180) != 0 {
		t.Error("paint reached 30px off the stroke with an 11px radius")
	}
	if !b.Dirty() {
		t.Error("buffer not dirty after a stroke")
	}
	if got := e.Overlay().RGBAAt(150, 150); got != DefaultPalette().Color(1) {
		t.Errorf("overlay(150,150) = %v, want class 1", got)
	}
}

func TestEnginePanMode(t *testing.T) {
	proj := oneToOne(0, 0)
	e, _ := newTestEngine(t, DefaultConfig(), proj, Services{})
	e.Dispatch(PointerDown{Pos: pt(150, 150)})
	e.Dispatch(PointerMove{Pos: pt(170, 140)})
	e.Dispatch(PointerUp{Pos: pt(170, 140)})
	if proj.screen.Left != 20 || proj.screen.Top != -10 {
		t.Errorf("screen origin = (%v,%v), want (20,-10)", proj.screen.Left, proj.screen.Top)
	}
	if b, _ := e.ActiveBuffer(); b.Dirty() {
		t.Error("pan mode painted")
	}
	e.Dispatch(ModeToggled{})
	if e.Mode() != ModeBrush {
		t.Errorf("Mode after toggle = %v, want brush", e.Mode())
	}
}

// Scenario D: a tile switch mid-stroke closes the stroke and later paint
// only reaches the new tile.
func TestEngineSwitchMidStroke(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig(), nil, Services{})
	e.Dispatch(ModeSet{Mode: ModeBrush})
	e.Dispatch(PointerDown{Pos: pt(150, 150)})
	e.Dispatch(PointerMove{Pos: pt(170, 150)})
	before := classesOf(e, TileKey{0, 0})

	e.Dispatch(TileRequested{Row: 0, Col: 1})
	if e.Stroking() {
		t.Fatal("stroke still open after tile switch")
	}
	e.Dispatch(PointerMove{Pos: pt(250, 150)})
	e.Dispatch(PointerUp{Pos: pt(250, 150)})
	e.Dispatch(PointerDown{Pos: pt(450, 150)})
	e.Dispatch(PointerUp{Pos: pt(450, 150)})

	if !bytes.Equal(classesOf(e, TileKey{0, 0}), before) {
		t.Error("buffer of the left tile changed after the switch")
	}
	b01, _ := e.Store().Get(TileKey{0, 1})
	if b01.ClassOf(150, 150) != 1 {
		t.Error("paint after the switch did not reach r0_c1")
	}
	if e.Mode() != ModeBrush {
		t.Error("tile switch changed the mode")
	}
}

func TestEngineAutosaveDebounce(t *testing.T) {
	store := newMemStore()
	e, clk := newTestEngine(t, DefaultConfig(), nil, Services{Masks: store})
	e.Dispatch(ModeSet{Mode: ModeBrush})

	stroke := func(x float64) {
		e.Dispatch(PointerDown{Pos: pt(x, 150)})
		e.Dispatch(PointerUp{Pos: pt(x, 150)})
	}
	stroke(100)
	clk.advance(300 * time.Millisecond)
	e.Update()
	stroke(200)
	clk.advance(300 * time.Millisecond)
	e.Update()
	e.Settle()
	if n := store.saveCount(); n != 0 {
		t.Fatalf("saves = %d before the quiet period ended, want 0", n)
	}
	clk.advance(200 * time.Millisecond)
	e.Update()
	e.Settle()
	if n := store.saveCount(); n != 1 {
		t.Fatalf("saves = %d, want 1", n)
	}
	b, _ := e.ActiveBuffer()
	if b.Dirty() {
		t.Error("buffer dirty after a successful save")
	}
	restored := newMaskBuffer(TileKey{0, 0}, 300, 300, DefaultPalette())
	if err := DecodeMask(store.saved[TileKey{0, 0}], restored); err != nil {
		t.Fatal(err)
	}
	if restored.ClassOf(100, 150) != 1 || restored.ClassOf(200, 150) != 1 {
		t.Error("saved mask is missing a stroke")
	}
}

func TestEngineSwitchCancelsAutosave(t *testing.T) {
	store := newMemStore()
	e, clk := newTestEngine(t, DefaultConfig(), nil, Services{Masks: store})
	e.Dispatch(ModeSet{Mode: ModeBrush})
	e.Dispatch(PointerDown{Pos: pt(150, 150)})
	e.Dispatch(PointerUp{Pos: pt(150, 150)})
	e.Dispatch(KeyPressed{Key: KeyArrowRight})
	clk.advance(time.Second)
	e.Update()
	e.Settle()
	if n := store.saveCount(); n != 0 {
		t.Fatalf("saves = %d after a tile switch, want 0", n)
	}
	b, _ := e.Store().Get(TileKey{0, 0})
	if !b.Dirty() {
		t.Fatal("left tile lost its dirty flag")
	}
	if err := e.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := store.saveCount(); n != 1 || b.Dirty() {
		t.Errorf("after Save: saves = %d, dirty = %v, want 1, false", n, b.Dirty())
	}
}

func TestEngineFlush(t *testing.T) {
	store := newMemStore()
	e, _ := newTestEngine(t, DefaultConfig(), nil, Services{Masks: store})
	e.Dispatch(ModeSet{Mode: ModeBrush})
	e.Dispatch(PointerDown{Pos: pt(150, 150)})
	e.Dispatch(PointerUp{Pos: pt(150, 150)})
	if err := e.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := store.saveCount(); n != 1 {
		t.Errorf("saves = %d, want 1", n)
	}
	if err := e.Flush(context.Background()); err != nil || store.saveCount() != 1 {
		t.Error("second Flush saved again")
	}
}

func TestEngineSaveFailure(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("disk full")
	var notices []Notice
	e, clk := newTestEngine(t, DefaultConfig(), nil, Services{Masks: store})
	e.OnNotice = func(n Notice) { notices = append(notices, n) }
	e.Dispatch(ModeSet{Mode: ModeBrush})
	e.Dispatch(PointerDown{Pos: pt(150, 150)})
	e.Dispatch(PointerUp{Pos: pt(150, 150)})
	clk.advance(time.Second)
	e.Update()
	e.Settle()

	if len(notices) != 1 || notices[0].Kind != NoticeSaveFailed {
		t.Fatalf("notices = %v, want one save failure", notices)
	}
	b, _ := e.ActiveBuffer()
	if !b.Dirty() || b.ClassOf(150, 150) != 1 {
		t.Error("failed save rolled back or cleaned the buffer")
	}
	if err := e.Save(context.Background()); err == nil {
		t.Error("Save err = nil with a failing store")
	}
}

func TestEngineRestoresMask(t *testing.T) {
	store := newMemStore()
	src := newMaskBuffer(TileKey{0, 1}, 300, 300, DefaultPalette())
	src.SetClass(10, 10, 3)
	data, _ := EncodeMask(src)
	store.saved[TileKey{0, 1}] = data

	e, _ := newTestEngine(t, DefaultConfig(), nil, Services{Masks: store})
	e.Activate(0, 1, false)
	e.Settle()
	b, _ := e.ActiveBuffer()
	if b.ClassOf(10, 10) != 3 {
		t.Errorf("restored ClassOf(10,10) = %d, want 3", b.ClassOf(10, 10))
	}
	if b.Dirty() {
		t.Error("restored buffer is dirty")
	}

	e.Activate(0, 0, false)
	e.Activate(0, 1, false)
	e.Settle()
	if n := store.loadCount(TileKey{0, 1}); n != 1 {
		t.Errorf("loads of r0_c1 = %d, want 1", n)
	}
}

func storedMask(t *testing.T, store *memStore, key TileKey) *MaskBuffer {
	t.Helper()
	store.mu.Lock()
	data := store.saved[key]
	store.mu.Unlock()
	b := newMaskBuffer(key, 300, 300, DefaultPalette())
	if err := DecodeMask(data, b); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestEngineRestoreMergesUnderEarlyPaint(t *testing.T) {
	store := newMemStore()
	src := newMaskBuffer(TileKey{0, 0}, 300, 300, DefaultPalette())
	src.SetClass(20, 20, 3)
	src.SetClass(150, 150, 3)
	data, _ := EncodeMask(src)
	store.saved[TileKey{0, 0}] = data
	store.gate = make(chan struct{})

	e := NewEngine(DefaultConfig(), oneToOne(0, 0), Services{
		Scenes: fakeScenes{scene: Scene{Bounds: testBounds, Width: 900, Height: 900}},
		Masks:  store,
	})
	clk := newFakeClock()
	e.now = clk.now
	defer e.Close()
	if err := e.Init(context.Background(), "s"); err != nil {
		t.Fatal(err)
	}
	e.Dispatch(ModeSet{Mode: ModeBrush})
	e.Dispatch(PointerDown{Pos: pt(150, 150)})
	e.Dispatch(PointerUp{Pos: pt(150, 150)})

	// the autosave is held while the stored mask is outstanding
	clk.advance(time.Second)
	e.Update()
	if n := store.saveCount(); n != 0 {
		t.Fatalf("saves = %d before the restore arrived, want 0", n)
	}

	close(store.gate)
	e.Settle()
	b, _ := e.ActiveBuffer()
	if b.ClassOf(20, 20) != 3 {
		t.Errorf("ClassOf(20,20) = %d, want the stored 3", b.ClassOf(20, 20))
	}
	if b.ClassOf(150, 150) != 1 {
		t.Errorf("ClassOf(150,150) = %d, want the painted 1 over the stored 3", b.ClassOf(150, 150))
	}
	if !b.Dirty() {
		t.Error("merged buffer with paint is not dirty")
	}

	clk.advance(time.Second)
	e.Update()
	e.Settle()
	if n := store.saveCount(); n != 1 {
		t.Fatalf("saves = %d after the restore, want 1", n)
	}
	saved := storedMask(t, store, TileKey{0, 0})
	if saved.ClassOf(20, 20) != 3 || saved.ClassOf(150, 150) != 1 {
		t.Errorf("saved (20,20) = %d, (150,150) = %d, want 3 and 1",
			saved.ClassOf(20, 20), saved.ClassOf(150, 150))
	}
}

func TestEngineFailedRestoreBlocksSave(t *testing.T) {
	store := newMemStore()
	src := newMaskBuffer(TileKey{0, 0}, 300, 300, DefaultPalette())
	src.SetClass(20, 20, 3)
	data, _ := EncodeMask(src)
	store.saved[TileKey{0, 0}] = data
	store.loadErr = errors.New("offline")

	e, clk := newTestEngine(t, DefaultConfig(), nil, Services{Masks: store})
	e.Dispatch(ModeSet{Mode: ModeBrush})
	e.Dispatch(PointerDown{Pos: pt(150, 150)})
	e.Dispatch(PointerUp{Pos: pt(150, 150)})
	clk.advance(time.Second)
	e.Update()
	e.Settle()
	if n := store.saveCount(); n != 0 {
		t.Fatalf("autosaves = %d after a failed restore, want 0", n)
	}
	if err := e.Save(context.Background()); !errors.Is(err, ErrRestorePending) {
		t.Errorf("Save err = %v, want ErrRestorePending", err)
	}

	store.mu.Lock()
	store.loadErr = nil
	store.mu.Unlock()
	e.Activate(0, 1, false)
	e.Activate(0, 0, false)
	e.Settle()
	if err := e.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	saved := storedMask(t, store, TileKey{0, 0})
	if saved.ClassOf(20, 20) != 3 || saved.ClassOf(150, 150) != 1 {
		t.Errorf("saved (20,20) = %d, (150,150) = %d, want 3 and 1",
			saved.ClassOf(20, 20), saved.ClassOf(150, 150))
	}
}

func TestEngineOneSaveInFlightPerTile(t *testing.T) {
	store := newMemStore()
	e, clk := newTestEngine(t, DefaultConfig(), nil, Services{Masks: store})
	store.mu.Lock()
	store.saveGate = make(chan struct{})
	store.mu.Unlock()
	e.Dispatch(ModeSet{Mode: ModeBrush})

	e.Dispatch(PointerDown{Pos: pt(100, 150)})
	e.Dispatch(PointerUp{Pos: pt(100, 150)})
	clk.advance(time.Second)
	e.Update() // first upload starts and blocks

	e.Dispatch(PointerDown{Pos: pt(200, 150)})
	e.Dispatch(PointerUp{Pos: pt(200, 150)})
	clk.advance(time.Second)
	e.Update() // held behind the first
	if e.pending != 1 {
		t.Fatalf("background tasks = %d, want one upload in flight", e.pending)
	}

	close(store.saveGate)
	e.Settle()
	if n := store.saveCount(); n != 2 {
		t.Fatalf("saves = %d, want the held save to follow the first", n)
	}
	saved := storedMask(t, store, TileKey{0, 0})
	if saved.ClassOf(100, 150) != 1 || saved.ClassOf(200, 150) != 1 {
		t.Error("last stored mask is missing a stroke")
	}
	if b, _ := e.ActiveBuffer(); b.Dirty() {
		t.Error("buffer dirty after both saves")
	}
}

func TestEngineRestoreCancelledOnSwitch(t *testing.T) {
	store := newMemStore()
	store.gate = make(chan struct{})
	e := NewEngine(DefaultConfig(), oneToOne(0, 0), Services{
		Scenes: fakeScenes{scene: Scene{Bounds: testBounds, Width: 900, Height: 900}},
		Masks:  store,
	})
	defer e.Close()
	if err := e.Init(context.Background(), "s"); err != nil {
		t.Fatal(err)
	}
	e.Activate(0, 1, false)
	close(store.gate)
	e.Settle()
	e.Activate(0, 0, false)
	e.Settle()
	if n := store.loadCount(TileKey{0, 0}); n != 2 {
		t.Errorf("loads of r0_c0 = %d, want a retry after the cancelled restore", n)
	}
}

func TestEngineBackdropLoading(t *testing.T) {
	bd := &fakeBackdrops{}
	var loading []bool
	svc := Services{
		Scenes:    fakeScenes{scene: Scene{Bounds: testBounds, Width: 900, Height: 900}},
		Backdrops: bd,
	}
	e := NewEngine(DefaultConfig(), oneToOne(0, 0), svc)
	defer e.Close()
	e.OnLoading = func(on bool) { loading = append(loading, on) }
	if err := e.Init(context.Background(), "s"); err != nil {
		t.Fatal(err)
	}
	if !e.Backdrop().Loading {
		t.Error("backdrop not loading right after activation")
	}
	e.Settle()
	if e.Backdrop().Loading || e.Backdrop().Image == nil {
		t.Errorf("backdrop = %+v, want loaded", e.Backdrop())
	}
	if len(loading) != 2 || !loading[0] || loading[1] {
		t.Errorf("loading signals = %v, want [true false]", loading)
	}

	first := e.Backdrop()
	e.Activate(1, 1, false)
	if e.Backdrop() != first {
		t.Error("tile switch replaced the backdrop instead of retargeting it")
	}
	if !strings.Contains(first.URL, "s/1/1?t=") {
		t.Errorf("URL = %q, want scene/row/col with token", first.URL)
	}
}

func TestEngineBackdropFailureNotice(t *testing.T) {
	bd := &fakeBackdrops{fail: errors.New("404")}
	var notices []Notice
	svc := Services{
		Scenes:    fakeScenes{scene: Scene{Bounds: testBounds, Width: 900, Height: 900}},
		Backdrops: bd,
	}
	e := NewEngine(DefaultConfig(), oneToOne(0, 0), svc)
	defer e.Close()
	e.OnNotice = func(n Notice) { notices = append(notices, n) }
	if err := e.Init(context.Background(), "s"); err != nil {
		t.Fatal(err)
	}
	e.Settle()
	if len(notices) != 1 || notices[0].Kind != NoticeBackdropFailed {
		t.Fatalf("notices = %v, want one backdrop failure", notices)
	}
	if e.Backdrop().Loading {
		t.Error("loading still set after a failed fetch")
	}
	e.Update()
	if len(notices) != 1 {
		t.Errorf("notices = %d after another Update, want 1", len(notices))
	}
}

func TestEngineDropsStaleBackdrop(t *testing.T) {
	bd := &fakeBackdrops{gate: make(chan struct{})}
	var notices []Notice
	svc := Services{
		Scenes:    fakeScenes{scene: Scene{Bounds: testBounds, Width: 900, Height: 900}},
		Backdrops: bd,
	}
	e := NewEngine(DefaultConfig(), oneToOne(0, 0), svc)
	defer e.Close()
	e.OnNotice = func(n Notice) { notices = append(notices, n) }
	if err := e.Init(context.Background(), "s"); err != nil {
		t.Fatal(err)
	}
	e.Activate(0, 1, false)
	close(bd.gate)
	e.Settle()
	if len(notices) != 0 {
		t.Errorf("notices = %v, want none for the cancelled fetch", notices)
	}
	b := e.Backdrop()
	if b.Tile != (TileKey{0, 1}) || b.Image == nil || b.Loading {
		t.Errorf("backdrop = %+v, want loaded r0_c1", b)
	}
}

func TestEngineRequireClip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireClip = true
	e, _ := newTestEngine(t, cfg, nil, Services{})
	e.Dispatch(ModeSet{Mode: ModeBrush})
	e.Dispatch(PointerDown{Pos: pt(150, 150)})
	e.Dispatch(PointerUp{Pos: pt(150, 150)})
	b, _ := e.ActiveBuffer()
	if b.Dirty() || b.Edits() != 0 {
		t.Error("paint without a selected feature reached the buffer")
	}
	if _, ok := e.autosave.take(); ok {
		t.Error("rejected stroke scheduled an autosave")
	}
}

func TestEngineFeatureClip(t *testing.T) {
	fs, err := ParseFeatureSet([]byte(testFeatures))
	if err != nil {
		t.Fatal(err)
	}
	e, _ := newTestEngine(t, DefaultConfig(), nil, Services{Features: fs})
	e.Activate(1, 1, false)
	e.Dispatch(FeatureSelected{ID: "field-7"})
	if e.Clip() == nil {
		t.Fatal("no clip after selecting a feature")
	}
	e.Dispatch(ModeSet{Mode: ModeBrush})
	// inside field-7 (tile pixel ~50,~50)
	e.Dispatch(PointerDown{Pos: pt(350, 350)})
	e.Dispatch(PointerUp{Pos: pt(350, 350)})
	// outside it
	e.Dispatch(PointerDown{Pos: pt(550, 550)})
	e.Dispatch(PointerUp{Pos: pt(550, 550)})
	b, _ := e.ActiveBuffer()
	if b.ClassOf(50, 50) != 1 {
		t.Error("stamp inside the clip was rejected")
	}
	if b.ClassOf(250, 250) != 0 {
		t.Error("stamp outside the clip was painted")
	}

	e.Dispatch(FeatureSelected{})
	if e.Clip() != nil {
		t.Error("clip kept after clearing the selection")
	}
}

func TestEngineKeyboard(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig(), nil, Services{})
	e.Dispatch(KeyPressed{Key: '3'})
	if e.Brush().Class != 3 {
		t.Errorf("Class = %d, want 3", e.Brush().Class)
	}
	e.Dispatch(KeyPressed{Key: 'b'})
	if e.Mode() != ModeBrush {
		t.Error("b did not select brush mode")
	}
	e.Dispatch(KeyPressed{Key: 'V'})
	if e.Mode() != ModePan {
		t.Error("V did not select pan mode")
	}
	e.Dispatch(KeyPressed{Key: 'e'})
	if !e.Brush().Erase {
		t.Error("e did not toggle erase")
	}
	e.Dispatch(KeyPressed{Key: '['})
	e.Dispatch(KeyPressed{Key: '['})
	e.Dispatch(KeyPressed{Key: ']'})
	if e.Brush().Size != DefaultBrushSize-1 {
		t.Errorf("Size = %v, want %v", e.Brush().Size, DefaultBrushSize-1)
	}

	e.Dispatch(KeyPressed{Key: '5', Alt: true})
	if tile, _ := e.ActiveTile(); tile.Key() != (TileKey{1, 1}) {
		t.Errorf("Alt+5 active = %v, want r1_c1", tile.Key())
	}
	e.Dispatch(KeyPressed{Key: KeyArrowRight})
	e.Dispatch(KeyPressed{Key: KeyArrowRight})
	if tile, _ := e.ActiveTile(); tile.Key() != (TileKey{1, 0}) {
		t.Errorf("arrows active = %v, want wrap to r1_c0", tile.Key())
	}
	e.Dispatch(KeyPressed{Key: KeyArrowUp})
	e.Dispatch(KeyPressed{Key: KeyArrowUp})
	if tile, _ := e.ActiveTile(); tile.Key() != (TileKey{2, 0}) {
		t.Errorf("arrows active = %v, want wrap to r2_c0", tile.Key())
	}
}

func TestEngineEraseStroke(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig(), nil, Services{})
	e.Dispatch(ModeSet{Mode: ModeBrush})
	e.Dispatch(KeyPressed{Key: '2'})
	e.Dispatch(PointerDown{Pos: pt(150, 150)})
	e.Dispatch(PointerUp{Pos: pt(150, 150)})
	e.Dispatch(KeyPressed{Key: 'e'})
	e.Dispatch(PointerDown{Pos: pt(150, 150)})
	e.Dispatch(PointerUp{Pos: pt(150, 150)})
	b, _ := e.ActiveBuffer()
	if b.ClassOf(150, 150) != 0 {
		t.Errorf("ClassOf after erase = %d, want 0", b.ClassOf(150, 150))
	}
	if got := e.Overlay().RGBAAt(150, 150); got.A != 0 {
		t.Errorf("overlay after erase = %v, want transparent", got)
	}
}

func TestEngineAutoFollow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoFollow = true
	proj := newLinearProjection(testBounds, ScreenRect{Left: 0, Top: 0, Right: 900, Bottom: 900}, 900, 900)
	e, _ := newTestEngine(t, cfg, proj, Services{})
	if tile, _ := e.ActiveTile(); tile.Key() != (TileKey{1, 1}) {
		t.Fatalf("initial active = %v, want r1_c1 under the view center", tile.Key())
	}
	proj.PanBy(pt(300, 0))
	e.Dispatch(ViewportChanged{})
	if tile, _ := e.ActiveTile(); tile.Key() != (TileKey{1, 0}) {
		t.Errorf("active after pan = %v, want r1_c0", tile.Key())
	}
}

func TestEngineViewportChangedRecomposites(t *testing.T) {
	proj := oneToOne(0, 0)
	e, _ := newTestEngine(t, DefaultConfig(), proj, Services{})
	e.Dispatch(ModeSet{Mode: ModeBrush})
	e.Dispatch(PointerDown{Pos: pt(150, 150)})
	e.Dispatch(PointerUp{Pos: pt(150, 150)})

	proj.PanBy(pt(100, 0))
	e.Dispatch(ViewportChanged{})
	if got := e.Overlay().RGBAAt(250, 150); got != DefaultPalette().Color(1) {
		t.Errorf("overlay(250,150) after pan = %v, want class 1", got)
	}
	if got := e.Overlay().RGBAAt(140, 150); got.A != 0 {
		t.Errorf("overlay(140,150) after pan = %v, want transparent", got)
	}
}

func TestEngineClearTile(t *testing.T) {
	store := newMemStore()
	e, _ := newTestEngine(t, DefaultConfig(), nil, Services{Masks: store})
	e.Dispatch(ModeSet{Mode: ModeBrush})
	e.Dispatch(PointerDown{Pos: pt(150, 150)})
	e.Dispatch(PointerUp{Pos: pt(150, 150)})
	if !e.ClearTile() {
		t.Fatal("ClearTile = false")
	}
	b, _ := e.ActiveBuffer()
	if h := b.Histogram(); h[0] != 300*300 {
		t.Errorf("background pixels = %d after clear, want all", h[0])
	}
	if err := e.Flush(context.Background()); err != nil || store.saveCount() != 1 {
		t.Errorf("Flush after clear: err %v, saves %d", err, store.saveCount())
	}
}
