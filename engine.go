package tilemask

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/tanema/gween/ease"
	"seehuhn.de/go/geom/vec"
)

// State is the engine lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// Mode selects what pointer drags do while the engine is ready.
type Mode int

const (
	// ModePan forwards drags to the projection's Panner. Painting is off.
	ModePan Mode = iota
	// ModeBrush paints into the active tile. Panning is off.
	ModeBrush
)

func (m Mode) String() string {
	if m == ModeBrush {
		return "brush"
	}
	return "pan"
}

// Fitter is implemented by projections that can frame a geographic bound,
// such as Viewport.
type Fitter interface {
	FitBounds(b orb.Bound, pad float64, duration float32, easeFn ease.TweenFunc)
}

// Services are the collaborators an Engine talks to. Features may be nil,
// in which case painting is unclipped unless Config.RequireClip is set.
type Services struct {
	Scenes    SceneService
	Backdrops BackdropService
	Masks     MaskStore
	Features  FeatureSource
}

// Backdrop is the image layer drawn under the mask overlay for the active
// tile. The engine keeps one Backdrop and retargets it on every tile switch.
type Backdrop struct {
	Tile    TileKey
	URL     string
	Bounds  orb.Bound
	Image   image.Image
	Loading bool
	Err     error
	// Version changes whenever URL or Image changes.
	Version uint64
}

type stroke struct {
	open     bool
	key      TileKey
	last     vec.Vec2
	stamps   int
	rejected int
}

type resultKind int

const (
	resultBackdrop resultKind = iota
	resultRestore
	resultSave
)

// asyncResult carries the outcome of background I/O back to the engine
// goroutine.
type asyncResult struct {
	kind  resultKind
	gen   uint64
	key   TileKey
	url   string
	img   image.Image
	data  []byte
	buf   *MaskBuffer
	edits uint64
	err   error
}

// Engine is one mask editing session: a scene grid, its mask buffers, the
// brush and the compositor. Dispatch and Update must be called from the
// same goroutine.
type Engine struct {
	cfg  Config
	proj Projection
	svc  Services

	state    State
	mode     Mode
	sceneID  string
	grid     *Grid
	store    *Store
	restored map[TileKey]bool
	saving   map[TileKey]bool
	resave   map[TileKey]context.Context
	brush    BrushState
	comp     *Compositor
	clip     *ClipRegion
	backdrop *Backdrop
	stroke   stroke
	panning  bool
	panLast  vec.Vec2

	autosave *autosaver
	now      func() time.Time

	ctx        context.Context
	cancel     context.CancelFunc
	tileCtx    context.Context
	tileCancel context.CancelFunc
	gen        uint64
	token      uint64
	results    chan asyncResult
	pending    int
	wg         sync.WaitGroup

	injectQueue []syntheticPointerEvent
	script      *ScriptRunner

	// OnLoading is called when the backdrop loading signal turns on or off.
	OnLoading func(loading bool)
	// OnTileChange is called after a tile becomes active.
	OnTileChange func(tile TileSpec)
	// OnNotice receives one-time messages about background failures and
	// completed saves.
	OnNotice func(n Notice)
}

// NewEngine creates an uninitialized engine. Call Init to load a scene.
// An invalid palette in cfg falls back to the default palette.
func NewEngine(cfg Config, proj Projection, svc Services) *Engine {
	pal, err := NewPalette(cfg.Palette)
	if err != nil {
		Logger().Warn("engine: invalid palette, using default", "err", err)
		pal = DefaultPalette()
	}
	brush := BrushState{Class: cfg.BrushClass}
	brush.SetSize(cfg.BrushSize)

	size := proj.Size()
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:      cfg,
		proj:     proj,
		svc:      svc,
		store:    NewStore(pal),
		restored: make(map[TileKey]bool),
		saving:   make(map[TileKey]bool),
		resave:   make(map[TileKey]context.Context),
		brush:    brush,
		comp:     NewCompositor(int(size.X), int(size.Y)),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		results:  make(chan asyncResult, 64),
	}
	e.autosave = newAutosaver(cfg.AutosaveDelay, func() time.Time { return e.now() })
	e.tileCtx, e.tileCancel = context.WithCancel(ctx)
	return e
}

// State returns the lifecycle state.
func (e *Engine) State() State { return e.state }

// Mode returns the interaction mode.
func (e *Engine) Mode() Mode { return e.mode }

// SceneID returns the id of the loaded scene.
func (e *Engine) SceneID() string { return e.sceneID }

// Grid returns the scene grid, or nil before Init.
func (e *Engine) Grid() *Grid { return e.grid }

// Store returns the mask buffers of the scene.
func (e *Engine) Store() *Store { return e.store }

// Brush returns the current brush.
func (e *Engine) Brush() BrushState { return e.brush }

// SetBrush replaces the brush. The size is clamped.
func (e *Engine) SetBrush(b BrushState) {
	e.brush = b
	e.brush.SetSize(b.Size)
}

// Overlay returns the screen-sized mask overlay.
func (e *Engine) Overlay() *image.RGBA { return e.comp.Overlay() }

// OverlayVersion changes every time the overlay is redrawn.
func (e *Engine) OverlayVersion() uint64 { return e.comp.Version() }

// Compositor returns the engine's compositor.
func (e *Engine) Compositor() *Compositor { return e.comp }

// Backdrop returns the backdrop layer, or nil before the first activation.
func (e *Engine) Backdrop() *Backdrop { return e.backdrop }

// Clip returns the clip region of the selected feature on the active tile.
func (e *Engine) Clip() *ClipRegion { return e.clip }

// Projection returns the projection the engine maps through.
func (e *Engine) Projection() Projection { return e.proj }

// Stroking reports whether a brush stroke is open.
func (e *Engine) Stroking() bool { return e.stroke.open }

// ActiveTile returns the active tile.
func (e *Engine) ActiveTile() (TileSpec, bool) {
	if e.grid == nil {
		return TileSpec{}, false
	}
	return e.grid.Active()
}

// ActiveBuffer returns the mask buffer of the active tile.
func (e *Engine) ActiveBuffer() (*MaskBuffer, bool) {
	tile, ok := e.ActiveTile()
	if !ok {
		return nil, false
	}
	return e.store.Get(tile.Key())
}

// Init loads scene metadata, builds the grid and activates the first tile,
// or the tile nearest the view center when auto-follow is on. Buffers are
// discarded when the scene id changes. On failure an engine that already
// had a scene stays on it.
func (e *Engine) Init(ctx context.Context, sceneID string) error {
	if e.svc.Scenes == nil {
		return fmt.Errorf("init %s: no scene service", sceneID)
	}
	prev := e.state
	e.state = StateInitializing
	scene, err := e.svc.Scenes.Scene(ctx, sceneID)
	if err != nil {
		e.state = prev
		return fmt.Errorf("init %s: %w", sceneID, err)
	}
	grid := NewGrid(scene, e.cfg.Rows, e.cfg.Cols)
	if grid.Len() == 0 {
		e.state = prev
		return fmt.Errorf("init %s: %dx%d grid does not fit a %dx%d image",
			sceneID, e.cfg.Rows, e.cfg.Cols, scene.Width, scene.Height)
	}

	e.endStroke()
	e.autosave.cancel()
	e.resetTileContext()
	if sceneID != e.sceneID {
		e.store.Reset()
		e.backdrop = nil
	}
	clear(e.restored)
	e.sceneID = sceneID
	e.grid = grid
	e.clip = nil
	e.mode = ModePan
	e.panning = false
	e.state = StateReady
	Logger().Info("scene initialized", "scene", sceneID,
		"width", scene.Width, "height", scene.Height,
		"rows", grid.Rows(), "cols", grid.Cols())

	if e.cfg.AutoFollow {
		if key, ok := e.nearestTile(); ok {
			e.Activate(key.Row, key.Col, false)
			return nil
		}
	}
	e.Activate(0, 0, true)
	return nil
}

// Activate makes (row, col) the active tile and reports whether anything
// happened. It is a no-op for the active tile once its backdrop exists.
// Switching closes the open stroke, cancels the pending autosave and the
// background requests of the tile being left, retargets the backdrop and
// recomposites at once; the backdrop image follows asynchronously. With fit
// the view is framed on the tile when the projection supports it.
func (e *Engine) Activate(row, col int, fit bool) bool {
	if e.state != StateReady {
		return false
	}
	if !e.grid.Contains(row, col) {
		Logger().Warn("activate: tile out of range", "row", row, "col", col)
		return false
	}
	key := TileKey{Row: row, Col: col}
	cur, hasCur := e.grid.Active()
	if hasCur && cur.Key() == key && e.backdrop != nil {
		return false
	}

	e.endStroke()
	if !hasCur || cur.Key() != key {
		e.autosave.cancel()
	}
	e.resetTileContext()
	e.grid.SetActive(row, col)
	tile := e.grid.Tile(row, col)

	e.retargetBackdrop(tile)
	buf := e.store.Ensure(tile)
	if !e.restored[key] && (buf.Edits() == 0 || buf.restoring()) && e.svc.Masks != nil {
		e.restoreMask(buf)
	}

	Logger().Info("tile activated", "scene", e.sceneID, "tile", key.String())
	if e.OnTileChange != nil {
		e.OnTileChange(tile)
	}
	if fit {
		e.fitTile(tile)
	}
	e.rebuildClip()
	e.recomposite()
	return true
}

// resetTileContext cancels the requests tied to the current tile and starts
// a new generation.
func (e *Engine) resetTileContext() {
	e.tileCancel()
	e.tileCtx, e.tileCancel = context.WithCancel(e.ctx)
	e.gen++
}

func (e *Engine) retargetBackdrop(tile TileSpec) {
	if e.backdrop == nil {
		e.backdrop = &Backdrop{}
	}
	e.token++
	b := e.backdrop
	b.Tile = tile.Key()
	b.Bounds = tile.Bounds
	b.Image = nil
	b.Err = nil
	b.Version++
	if e.svc.Backdrops == nil {
		b.URL = ""
		b.Loading = false
		return
	}
	b.URL = e.svc.Backdrops.BackdropURL(e.sceneID, tile.Row, tile.Col, strconv.FormatUint(e.token, 10))
	b.Loading = true
	e.setLoading(true)

	url, gen, svc := b.URL, e.gen, e.svc.Backdrops
	e.goAsync(e.tileCtx, func(ctx context.Context) asyncResult {
		img, err := svc.FetchBackdrop(ctx, url)
		return asyncResult{kind: resultBackdrop, gen: gen, key: tile.Key(), url: url, img: img, err: err}
	})
}

// restoreMask loads the tile's stored mask in the background. Paint made
// before it arrives is recorded and kept on top of the stored classes.
func (e *Engine) restoreMask(buf *MaskBuffer) {
	buf.beginRestore()
	sceneID, key, gen, masks := e.sceneID, buf.Key(), e.gen, e.svc.Masks
	e.goAsync(e.tileCtx, func(ctx context.Context) asyncResult {
		data, err := masks.LoadMask(ctx, sceneID, key.Row, key.Col)
		return asyncResult{kind: resultRestore, gen: gen, key: key, buf: buf, data: data, err: err}
	})
}

func (e *Engine) fitTile(tile TileSpec) {
	f, ok := e.proj.(Fitter)
	if !ok {
		return
	}
	f.FitBounds(tile.Bounds, e.cfg.FitPadding, float32(e.cfg.FitDuration.Seconds()), ease.OutCubic)
}

func (e *Engine) nearestTile() (TileKey, bool) {
	size := e.proj.Size()
	center := e.proj.Unproject(vec.Vec2{X: size.X / 2, Y: size.Y / 2})
	return e.grid.PickNearestTile(center)
}

// Step moves the active tile by (dRow, dCol).
func (e *Engine) Step(dRow, dCol int, wrap bool) bool {
	if e.state != StateReady {
		return false
	}
	key, ok := e.grid.MoveActive(dRow, dCol, wrap)
	if !ok {
		return false
	}
	return e.Activate(key.Row, key.Col, e.cfg.FitOnSwitch)
}

// ActivateNumber activates the n-th tile counting row-major from 1.
func (e *Engine) ActivateNumber(n int) bool {
	if e.state != StateReady {
		return false
	}
	key, ok := e.grid.TileByNumber(n)
	if !ok {
		return false
	}
	return e.Activate(key.Row, key.Col, e.cfg.FitOnSwitch)
}

// SetMode switches between pan and brush. An open stroke or drag ends.
func (e *Engine) SetMode(m Mode) {
	if m == e.mode {
		return
	}
	e.endStroke()
	e.panning = false
	e.mode = m
}

// ClearTile resets the active tile's mask to background and schedules an
// autosave.
func (e *Engine) ClearTile() bool {
	buf, ok := e.ActiveBuffer()
	if !ok {
		return false
	}
	e.endStroke()
	buf.Clear()
	e.autosave.schedule(buf.Key())
	e.recomposite()
	return true
}

// recomposite redraws the overlay for the active tile, or clears it when
// there is none.
func (e *Engine) recomposite() {
	tile, ok := e.ActiveTile()
	if !ok {
		e.comp.Clear()
		return
	}
	buf, _ := e.store.Get(tile.Key())
	e.comp.Recomposite(tile, buf, e.proj)
}

// rebuildClip converts the selected feature to the active tile's pixel
// space. It runs on every viewport change since the mapping goes through
// screen space.
func (e *Engine) rebuildClip() {
	e.clip = nil
	if e.svc.Features == nil {
		return
	}
	tile, ok := e.ActiveTile()
	if !ok {
		return
	}
	poly, ok := e.svc.Features.Selected()
	if !ok {
		return
	}
	if clip, ok := BuildClipRegion(poly, tile, e.proj); ok {
		e.clip = clip
	}
}

// viewportChanged resizes the overlay, re-follows the view when
// auto-follow is on and recomposites.
func (e *Engine) viewportChanged() {
	size := e.proj.Size()
	e.comp.Resize(int(size.X), int(size.Y))
	if e.state != StateReady {
		return
	}
	if e.cfg.AutoFollow && !e.stroke.open {
		if key, ok := e.nearestTile(); ok {
			e.Activate(key.Row, key.Col, false)
		}
	}
	e.rebuildClip()
	e.recomposite()
}

// beginStroke opens a stroke on the active tile and paints its first stamp.
func (e *Engine) beginStroke(pos vec.Vec2) {
	tile, ok := e.ActiveTile()
	if !ok {
		return
	}
	e.stroke = stroke{open: true, key: tile.Key(), last: pos}
	e.dab(pos)
	e.recomposite()
}

// continueStroke paints interpolated stamps from the last position to pos.
func (e *Engine) continueStroke(pos vec.Vec2) {
	if !e.stroke.open {
		return
	}
	if tile, ok := e.ActiveTile(); !ok || tile.Key() != e.stroke.key {
		e.endStroke()
		return
	}
	steps := StrokeSteps(e.stroke.last, pos, e.brush.Size)
	if len(steps) == 0 {
		return
	}
	for _, p := range steps {
		e.dab(p)
	}
	e.stroke.last = pos
	e.recomposite()
}

// endStroke closes the open stroke, if any, and schedules an autosave when
// it changed the buffer.
func (e *Engine) endStroke() {
	if !e.stroke.open {
		return
	}
	s := e.stroke
	e.stroke = stroke{}
	debugStroke(s.key, s.stamps, s.rejected)
	if s.stamps > 0 {
		e.autosave.schedule(s.key)
	}
}

// dab paints one stamp at a screen position into the stroke's buffer.
func (e *Engine) dab(pos vec.Vec2) {
	tile := e.grid.Tile(e.stroke.key.Row, e.stroke.key.Col)
	buf, ok := e.store.Get(tile.Key())
	if !ok || (e.cfg.RequireClip && e.clip == nil) {
		e.stroke.rejected++
		return
	}
	center, ok := ScreenToImage(pos, tile, e.proj)
	if !ok {
		e.stroke.rejected++
		return
	}
	radius, _ := ScreenRadiusToImageRadius(pos, e.brush.ScreenRadius(), tile, e.proj)
	if PaintStamp(buf, e.clip, center, radius, int(e.brush.Class), e.brush.Erase) {
		e.stroke.stamps++
	} else {
		e.stroke.rejected++
	}
}

// Update applies finished background work, fires a due autosave and
// advances injected input and the attached script. Call once per frame.
func (e *Engine) Update() {
	if e.script != nil {
		e.script.step(e)
	}
	e.processInjectedInput()
	e.drain()
	if key, ok := e.autosave.due(); ok {
		e.saveAsync(e.tileCtx, key)
	}
}

// Settle blocks until all background work has finished and applies the
// results. Used by headless replays and tests.
func (e *Engine) Settle() {
	for e.pending > 0 {
		select {
		case r := <-e.results:
			e.receive(r)
		case <-e.ctx.Done():
			return
		}
	}
}

// Flush saves the tile with a pending autosave now, on the calling
// goroutine.
func (e *Engine) Flush(ctx context.Context) error {
	key, ok := e.autosave.take()
	if !ok {
		return nil
	}
	buf, ok := e.store.Get(key)
	if !ok {
		return nil
	}
	return e.saveNow(ctx, buf)
}

// Save writes every buffer with unsaved changes and cancels the pending
// autosave. Errors of individual tiles are joined.
func (e *Engine) Save(ctx context.Context) error {
	if e.state != StateReady {
		return ErrNotReady
	}
	e.endStroke()
	e.autosave.cancel()
	var errs []error
	for _, buf := range e.store.DirtyBuffers() {
		if err := e.saveNow(ctx, buf); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close cancels background work and waits for it to stop. Unsaved changes
// are not written; call Save first.
func (e *Engine) Close() {
	e.autosave.cancel()
	e.cancel()
	e.wg.Wait()
	e.state = StateUninitialized
}

func (e *Engine) saveNow(ctx context.Context, buf *MaskBuffer) error {
	if e.svc.Masks == nil {
		return fmt.Errorf("save %s: no mask store", buf.Key())
	}
	if buf.restoring() {
		return fmt.Errorf("save %s: %w", buf.Key(), ErrRestorePending)
	}
	delete(e.resave, buf.Key())
	if err := e.awaitSave(ctx, buf.Key()); err != nil {
		return fmt.Errorf("save %s: %w", buf.Key(), err)
	}
	data, err := EncodeMask(buf)
	if err != nil {
		return err
	}
	edits := buf.Edits()
	tile := e.grid.Tile(buf.Key().Row, buf.Key().Col)
	err = e.svc.Masks.SaveMask(ctx, e.sceneID, tile, data)
	e.applySave(asyncResult{kind: resultSave, key: buf.Key(), buf: buf, edits: edits, err: err})
	if err != nil {
		return fmt.Errorf("save %s: %w", buf.Key(), err)
	}
	return nil
}

// awaitSave applies results until no background save of key is in flight.
func (e *Engine) awaitSave(ctx context.Context, key TileKey) error {
	for e.saving[key] {
		select {
		case r := <-e.results:
			e.receive(r)
		case <-ctx.Done():
			return ctx.Err()
		case <-e.ctx.Done():
			return e.ctx.Err()
		}
	}
	return nil
}

// saveAsync encodes the buffer of key on the engine goroutine and uploads
// it in the background. At most one upload per tile is in flight; a save
// requested meanwhile runs when the current one finishes. Buffers still
// waiting for their stored mask are not saved.
func (e *Engine) saveAsync(ctx context.Context, key TileKey) {
	buf, ok := e.store.Get(key)
	if !ok || e.svc.Masks == nil {
		return
	}
	if buf.restoring() {
		Logger().Debug("save deferred until restore", "tile", key.String())
		return
	}
	if e.saving[key] {
		e.resave[key] = ctx
		return
	}
	data, err := EncodeMask(buf)
	if err != nil {
		e.notify(Notice{Kind: NoticeSaveFailed, Tile: key, Err: err})
		return
	}
	edits, sceneID, masks := buf.Edits(), e.sceneID, e.svc.Masks
	tile := e.grid.Tile(key.Row, key.Col)
	e.saving[key] = true
	e.goAsync(ctx, func(ctx context.Context) asyncResult {
		err := masks.SaveMask(ctx, sceneID, tile, data)
		return asyncResult{kind: resultSave, key: key, buf: buf, edits: edits, err: err}
	})
}

// saveDirtyAsync uploads every dirty buffer in the background, outside any
// tile's lifetime.
func (e *Engine) saveDirtyAsync() {
	e.autosave.cancel()
	for _, buf := range e.store.DirtyBuffers() {
		e.saveAsync(e.ctx, buf.Key())
	}
}

func (e *Engine) goAsync(ctx context.Context, fn func(context.Context) asyncResult) {
	e.pending++
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		r := fn(ctx)
		select {
		case e.results <- r:
		case <-e.ctx.Done():
		}
	}()
}

func (e *Engine) drain() {
	for {
		select {
		case r := <-e.results:
			e.receive(r)
		default:
			return
		}
	}
}

func (e *Engine) receive(r asyncResult) {
	e.pending--
	e.apply(r)
}

func (e *Engine) apply(r asyncResult) {
	switch r.kind {
	case resultBackdrop:
		e.applyBackdrop(r)
	case resultRestore:
		e.applyRestore(r)
	case resultSave:
		e.finishSave(r)
	}
}

// finishSave applies a background save and starts the save that was
// requested while it was in flight.
func (e *Engine) finishSave(r asyncResult) {
	delete(e.saving, r.key)
	e.applySave(r)
	ctx, again := e.resave[r.key]
	delete(e.resave, r.key)
	if !again || ctx.Err() != nil {
		return
	}
	if buf, ok := e.store.Get(r.key); ok && buf.Dirty() {
		e.saveAsync(ctx, r.key)
	}
}

func (e *Engine) applyBackdrop(r asyncResult) {
	b := e.backdrop
	if r.gen != e.gen || b == nil || b.URL != r.url {
		return
	}
	b.Loading = false
	b.Image = r.img
	b.Err = r.err
	b.Version++
	e.setLoading(false)
	if r.err != nil {
		Logger().Warn("backdrop fetch failed", "tile", r.key.String(), "err", r.err)
		e.notify(Notice{Kind: NoticeBackdropFailed, Tile: r.key, Err: r.err})
	}
}

func (e *Engine) applyRestore(r asyncResult) {
	if r.gen != e.gen {
		return
	}
	cur, ok := e.store.Get(r.key)
	if !ok || cur != r.buf {
		return
	}
	if errors.Is(r.err, ErrNoMask) {
		e.restored[r.key] = true
		r.buf.endRestore()
		e.resumeAutosave(r.buf)
		return
	}
	if r.err != nil {
		// paint keeps being recorded; the next activation retries
		Logger().Warn("mask restore failed", "tile", r.key.String(), "err", r.err)
		e.notify(Notice{Kind: NoticeRestoreFailed, Tile: r.key, Err: r.err})
		return
	}
	e.restored[r.key] = true
	stored := newMaskBuffer(r.key, r.buf.Width(), r.buf.Height(), e.store.Palette())
	if err := DecodeMask(r.data, stored); err != nil {
		Logger().Warn("mask restore failed", "tile", r.key.String(), "err", err)
		e.notify(Notice{Kind: NoticeRestoreFailed, Tile: r.key, Err: err})
		r.buf.endRestore()
		e.resumeAutosave(r.buf)
		return
	}
	r.buf.mergeStored(stored)
	Logger().Info("mask restored", "tile", r.key.String())
	e.resumeAutosave(r.buf)
	if tile, ok := e.ActiveTile(); ok && tile.Key() == r.key {
		e.recomposite()
	}
}

// resumeAutosave schedules the save that was held back while buf waited
// for its stored mask.
func (e *Engine) resumeAutosave(buf *MaskBuffer) {
	if !buf.Dirty() {
		return
	}
	if tile, ok := e.ActiveTile(); ok && tile.Key() == buf.Key() {
		e.autosave.schedule(buf.Key())
	}
}

func (e *Engine) applySave(r asyncResult) {
	if r.err != nil {
		if errors.Is(r.err, context.Canceled) {
			Logger().Debug("mask save cancelled", "tile", r.key.String())
			return
		}
		Logger().Warn("mask save failed", "tile", r.key.String(), "err", r.err)
		e.notify(Notice{Kind: NoticeSaveFailed, Tile: r.key, Err: r.err})
		return
	}
	if r.buf.Edits() == r.edits {
		r.buf.MarkClean()
	}
	Logger().Info("mask saved", "scene", e.sceneID, "tile", r.key.String())
	e.notify(Notice{Kind: NoticeSaved, Tile: r.key})
}

func (e *Engine) setLoading(on bool) {
	if e.OnLoading != nil {
		e.OnLoading(on)
	}
}

func (e *Engine) notify(n Notice) {
	if e.OnNotice != nil {
		e.OnNotice(n)
	}
}
