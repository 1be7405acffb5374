// Package tilemask is a tile-grid raster mask engine for painting
// class-labeled masks over large georeferenced images.
//
// A scene's backdrop image is partitioned into an R×C [Grid] of tiles. Each
// tile owns a full-resolution [MaskBuffer]: one class id per source pixel plus
// a color surface kept in sync with it. The [Engine] converts pointer input
// from viewport screen space into tile pixels through a [Projection],
// rasterizes circular brush stamps (optionally restricted to a [ClipRegion]
// built from a selected polygon), and re-composites the active tile's mask
// onto a screen-sized overlay whenever the viewport changes.
//
// # Quick start
//
//	vp := tilemask.NewViewport(1280, 800)
//	eng := tilemask.NewEngine(tilemask.DefaultConfig(), vp, tilemask.Services{
//		Scenes:    scenes,
//		Backdrops: backdrops,
//		Masks:     tilemask.NewDirStore("output"),
//	})
//	if err := eng.Init(ctx, "S2A_T39SWU"); err != nil {
//		log.Fatal(err)
//	}
//
// The host then feeds typed events and calls [Engine.Update] once per frame:
//
//	eng.Dispatch(tilemask.ModeSet{Mode: tilemask.ModeBrush})
//	eng.Dispatch(tilemask.PointerDown{Pos: vec.Vec2{X: 400, Y: 300}})
//	eng.Dispatch(tilemask.PointerMove{Pos: vec.Vec2{X: 420, Y: 310}})
//	eng.Dispatch(tilemask.PointerUp{Pos: vec.Vec2{X: 420, Y: 310}})
//	eng.Update()
//
// The view subpackage provides an [ebiten.Game] host that does this for a
// desktop window.
//
// # Threading
//
// All engine state is mutated from Dispatch and Update, which must be called
// from a single goroutine. Backdrop fetches, mask restores and autosave
// uploads run in the background; their results are applied during Update.
//
// # Persistence
//
// Masks are exported as single-channel PNG images whose pixel values are the
// class ids (0 = background). Autosave is debounced: every completed stroke
// reschedules one export of the active tile.
//
// [ebiten.Game]: https://pkg.go.dev/github.com/hajimehoshi/ebiten/v2#Game
package tilemask
