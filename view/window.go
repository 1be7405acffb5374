// Package view hosts a tilemask Engine in an ebiten window. It polls the
// mouse and keyboard, drives the Viewport animation, uploads the overlay
// when it changes and draws the backdrop, the overlay and a text HUD.
package view

import (
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"seehuhn.de/go/geom/vec"

	"github.com/phanxgames/tilemask"
)

// Options configures a Window.
type Options struct {
	Title  string
	Width  int
	Height int
	// ShowFPS adds an FPS line to the HUD.
	ShowFPS bool
	// NoticeTTL is how long notices stay on screen. Zero means 4 seconds.
	NoticeTTL time.Duration
	// Background fills the screen under the backdrop.
	Background color.Color
}

// Window implements ebiten.Game for one engine and its viewport.
type Window struct {
	eng  *tilemask.Engine
	vp   *tilemask.Viewport
	opts Options

	ptr     pointerTracker
	keys    []ebiten.Key
	hud     *hud
	closing bool

	overlay        *ebiten.Image
	overlayVersion uint64
	overlaySynced  bool

	backdrop        *ebiten.Image
	backdropVersion uint64
}

// New creates a window for eng. vp must be the projection eng was created
// with. The engine's OnLoading and OnNotice hooks are taken over by the
// window.
func New(eng *tilemask.Engine, vp *tilemask.Viewport, opts Options) *Window {
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = 4 * time.Second
	}
	if opts.Background == nil {
		opts.Background = color.RGBA{0x20, 0x20, 0x20, 0xff}
	}
	w := &Window{
		eng:  eng,
		vp:   vp,
		opts: opts,
		hud:  newHUD(opts.NoticeTTL, opts.ShowFPS),
	}
	eng.OnLoading = func(on bool) { w.hud.loading = on }
	eng.OnNotice = func(n tilemask.Notice) { w.hud.push(n, time.Now()) }
	return w
}

// Run opens the window and blocks until it is closed.
func (w *Window) Run() error {
	ebiten.SetWindowTitle(w.opts.Title)
	ebiten.SetWindowSize(w.opts.Width, w.opts.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)
	return ebiten.RunGame(w)
}

// Close ends the game loop after the current frame.
func (w *Window) Close() {
	w.closing = true
}

// Update polls input and advances the viewport and the engine by one tick.
func (w *Window) Update() error {
	if w.closing || ebiten.IsWindowBeingClosed() || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	dt := 1 / float64(ebiten.TPS())

	mx, my := ebiten.CursorPosition()
	pos := vec.Vec2{X: float64(mx), Y: float64(my)}
	if _, wy := ebiten.Wheel(); wy != 0 {
		w.vp.ZoomAround(pos, wheelZoom(wy))
	}
	if w.vp.Update(float32(dt)) {
		w.eng.Dispatch(tilemask.ViewportChanged{})
	}

	pressed := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	for _, ev := range w.ptr.events(pressed, pos) {
		w.eng.Dispatch(ev)
	}

	w.keys = inpututil.AppendJustPressedKeys(w.keys[:0])
	alt := ebiten.IsKeyPressed(ebiten.KeyAlt)
	for _, ev := range keyEvents(w.keys, alt) {
		w.eng.Dispatch(ev)
	}

	w.eng.Update()
	w.hud.expire(time.Now())
	w.hud.tick(dt, ebiten.ActualFPS(), ebiten.ActualTPS())
	return nil
}

// Draw renders the backdrop, the mask overlay and the HUD.
func (w *Window) Draw(screen *ebiten.Image) {
	screen.Fill(w.opts.Background)
	w.drawBackdrop(screen)
	w.syncOverlay()
	if w.overlay != nil {
		screen.DrawImage(w.overlay, nil)
	}
	ebitenutil.DebugPrintAt(screen, w.hud.text(w.eng), 4, 4)
}

// Layout makes the screen match the window and resizes the viewport.
func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	w.vp.Resize(float64(outsideWidth), float64(outsideHeight))
	return outsideWidth, outsideHeight
}

// syncOverlay uploads the engine overlay when its version changed. The
// overlay is premultiplied RGBA, the layout WritePixels expects.
func (w *Window) syncOverlay() {
	src := w.eng.Overlay()
	v := w.eng.OverlayVersion()
	if w.overlaySynced && v == w.overlayVersion {
		return
	}
	b := src.Bounds()
	if b.Empty() {
		return
	}
	if w.overlay == nil || w.overlay.Bounds().Size() != b.Size() {
		if w.overlay != nil {
			w.overlay.Deallocate()
		}
		w.overlay = ebiten.NewImage(b.Dx(), b.Dy())
	}
	w.overlay.WritePixels(src.Pix)
	w.overlayVersion = v
	w.overlaySynced = true
}

// drawBackdrop draws the active tile's backdrop image stretched over the
// tile's screen rectangle.
func (w *Window) drawBackdrop(screen *ebiten.Image) {
	bd := w.eng.Backdrop()
	if bd == nil {
		return
	}
	if bd.Version != w.backdropVersion {
		if w.backdrop != nil {
			w.backdrop.Deallocate()
			w.backdrop = nil
		}
		if bd.Image != nil {
			w.backdrop = ebiten.NewImageFromImage(bd.Image)
		}
		w.backdropVersion = bd.Version
	}
	if w.backdrop == nil {
		return
	}
	tile, ok := w.eng.ActiveTile()
	if !ok || tile.Key() != bd.Tile {
		return
	}
	r, ok := tilemask.TileScreenRect(tile, w.eng.Projection())
	if !ok {
		return
	}
	size := w.backdrop.Bounds().Size()
	op := &ebiten.DrawImageOptions{GeoM: backdropGeoM(r, size.X, size.Y)}
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(w.backdrop, op)
}

// backdropGeoM maps a w×h image onto the screen rectangle r.
func backdropGeoM(r tilemask.ScreenRect, w, h int) ebiten.GeoM {
	var m ebiten.GeoM
	if w <= 0 || h <= 0 {
		return m
	}
	m.Scale(r.Width()/float64(w), r.Height()/float64(h))
	m.Translate(r.Left, r.Top)
	return m
}
