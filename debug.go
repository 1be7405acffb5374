package tilemask

import (
	"context"
	"image"
	"log/slog"
	"time"
)

// compositeStats holds the timing and rectangles of the last Recomposite.
// Only logged when the compositor's debug flag is set.
type compositeStats struct {
	duration time.Duration
	src, dst image.Rectangle
}

// debugLog writes the last composite's stats at debug level.
func (c *Compositor) debugLog(tile TileSpec) {
	if !c.debug {
		return
	}
	l := Logger()
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.Debug("recomposite",
		"tile", tile.Key().String(),
		"src", c.stats.src.String(),
		"dst", c.stats.dst.String(),
		"took", c.stats.duration)
}

// debugStroke logs one completed stroke at debug level.
func debugStroke(key TileKey, stamps, rejected int) {
	Logger().Debug("stroke closed", "tile", key.String(), "stamps", stamps, "rejected", rejected)
}
