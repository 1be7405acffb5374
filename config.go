package tilemask

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the engine settings. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	Rows int `toml:"rows"`
	Cols int `toml:"cols"`

	BrushSize  float64 `toml:"brush_size"`
	BrushClass uint8   `toml:"brush_class"`

	// AutosaveDelay is the quiet period after a stroke before the tile's
	// mask is exported. Zero disables autosave.
	AutosaveDelay time.Duration `toml:"autosave_delay"`

	// RequireClip rejects paint while no feature is selected.
	RequireClip bool `toml:"require_clip"`
	// AutoFollow activates the tile nearest the viewport center whenever
	// the viewport changes and no stroke is open.
	AutoFollow  bool    `toml:"auto_follow"`
	FitOnSwitch bool    `toml:"fit_on_switch"`
	FitPadding  float64 `toml:"fit_padding"`

	// FitDuration animates framing a tile. Zero jumps.
	FitDuration time.Duration `toml:"fit_duration"`

	ServerURL   string `toml:"server_url"`
	CacheSize   int    `toml:"cache_size"`
	SnapshotDir string `toml:"snapshot_dir"`

	// Palette overrides class colors, e.g. "3" = "#ff000080".
	Palette map[string]string `toml:"palette"`
}

// DefaultConfig returns the stock settings: a 3x3 grid, a 24px brush
// painting class 1 and a 450ms autosave delay.
func DefaultConfig() Config {
	return Config{
		Rows:          3,
		Cols:          3,
		BrushSize:     DefaultBrushSize,
		BrushClass:    1,
		AutosaveDelay: 450 * time.Millisecond,
		FitOnSwitch:   true,
		FitPadding:    0.02,
		FitDuration:   250 * time.Millisecond,
		CacheSize:     32,
		SnapshotDir:   "snapshots",
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig and validates the
// result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as TOML to path.
func (c Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Validate reports the first setting that is out of range.
func (c Config) Validate() error {
	switch {
	case c.Rows <= 0 || c.Cols <= 0:
		return fmt.Errorf("grid %dx%d: rows and cols must be positive", c.Rows, c.Cols)
	case c.BrushSize < MinBrushSize || c.BrushSize > MaxBrushSize:
		return fmt.Errorf("brush_size %v outside [%d, %d]", c.BrushSize, MinBrushSize, MaxBrushSize)
	case c.AutosaveDelay < 0:
		return fmt.Errorf("autosave_delay %v is negative", c.AutosaveDelay)
	case c.FitPadding < 0:
		return fmt.Errorf("fit_padding %v is negative", c.FitPadding)
	case c.FitDuration < 0:
		return fmt.Errorf("fit_duration %v is negative", c.FitDuration)
	case c.CacheSize < 0:
		return fmt.Errorf("cache_size %d is negative", c.CacheSize)
	}
	if _, err := NewPalette(c.Palette); err != nil {
		return err
	}
	return nil
}
