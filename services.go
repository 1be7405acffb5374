package tilemask

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/paulmach/orb"
	_ "golang.org/x/image/tiff"
)

var (
	// ErrNoMask is returned by MaskStore.LoadMask when nothing was saved for
	// the tile yet. It is a normal outcome, not a failure.
	ErrNoMask = errors.New("tilemask: no mask stored")

	// ErrNotReady is returned by operations that need an initialized scene.
	ErrNotReady = errors.New("tilemask: engine not ready")

	// ErrRestorePending is returned when saving a tile whose stored mask
	// has not been merged yet. Saving it would overwrite the stored labels.
	ErrRestorePending = errors.New("tilemask: stored mask not restored yet")
)

// SceneService returns the geographic bounds and backdrop pixel size of a
// scene.
type SceneService interface {
	Scene(ctx context.Context, id string) (Scene, error)
}

// BackdropService addresses and loads tile backdrop images. The token
// defeats caches between activations.
type BackdropService interface {
	BackdropURL(sceneID string, row, col int, token string) string
	FetchBackdrop(ctx context.Context, url string) (image.Image, error)
}

// MaskStore persists exported tile masks.
type MaskStore interface {
	SaveMask(ctx context.Context, sceneID string, tile TileSpec, data []byte) error
	LoadMask(ctx context.Context, sceneID string, row, col int) ([]byte, error)
}

// NoticeKind classifies a Notice.
type NoticeKind int

const (
	NoticeBackdropFailed NoticeKind = iota
	NoticeRestoreFailed
	NoticeSaveFailed
	NoticeSaved
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeBackdropFailed:
		return "backdrop failed"
	case NoticeRestoreFailed:
		return "restore failed"
	case NoticeSaveFailed:
		return "save failed"
	case NoticeSaved:
		return "saved"
	}
	return "unknown"
}

// Notice is a one-time message for the UI layer about an asynchronous
// outcome.
type Notice struct {
	Kind NoticeKind
	Tile TileKey
	Err  error
}

func (n Notice) String() string {
	if n.Err != nil {
		return fmt.Sprintf("%s %s: %v", n.Tile, n.Kind, n.Err)
	}
	return fmt.Sprintf("%s %s", n.Tile, n.Kind)
}

// DirStore is a MaskStore that keeps masks under a directory as
// <root>/masks/<scene>/r<row>_c<col>.png.
type DirStore struct {
	root string
}

// NewDirStore returns a store rooted at dir. The directory is created on
// the first save.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: dir}
}

// Path returns the file a tile's mask is stored in.
func (d *DirStore) Path(sceneID string, row, col int) string {
	return filepath.Join(d.root, "masks", sanitizeLabel(sceneID), TileKey{row, col}.String()+".png")
}

// SaveMask writes data through a temporary file so readers never observe a
// partial mask.
func (d *DirStore) SaveMask(ctx context.Context, sceneID string, tile TileSpec, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := d.Path(sceneID, tile.Row, tile.Col)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save mask: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".mask-*")
	if err != nil {
		return fmt.Errorf("save mask: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save mask %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save mask %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save mask %s: %w", path, err)
	}
	return nil
}

// LoadMask reads a stored mask. A missing file yields ErrNoMask.
func (d *DirStore) LoadMask(ctx context.Context, sceneID string, row, col int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.Path(sceneID, row, col))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoMask
	}
	if err != nil {
		return nil, fmt.Errorf("load mask: %w", err)
	}
	return data, nil
}

// SlicedBackdrops serves scenes from local image files (PNG, JPEG or TIFF)
// and cuts tile backdrops out of them by pixel rect. It implements both
// SceneService and BackdropService. Decoded scene images are kept in an LRU
// cache.
type SlicedBackdrops struct {
	rows, cols int
	scenes     map[string]localScene
	images     *lru.Cache
}

type localScene struct {
	path   string
	bounds orb.Bound
}

// NewSlicedBackdrops returns a service that slices every scene into a
// rows x cols grid, caching up to cacheSize decoded scene images.
func NewSlicedBackdrops(rows, cols, cacheSize int) (*SlicedBackdrops, error) {
	cache, err := lru.New(max(cacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("backdrop cache: %w", err)
	}
	return &SlicedBackdrops{
		rows:   rows,
		cols:   cols,
		scenes: make(map[string]localScene),
		images: cache,
	}, nil
}

// Register adds a scene backed by the image at path covering bounds.
func (s *SlicedBackdrops) Register(id, path string, bounds orb.Bound) {
	s.scenes[id] = localScene{path: path, bounds: bounds}
	s.images.Remove(id)
}

// Scene returns the scene's bounds and the pixel size read from the image
// header.
func (s *SlicedBackdrops) Scene(ctx context.Context, id string) (Scene, error) {
	ls, ok := s.scenes[id]
	if !ok {
		return Scene{}, fmt.Errorf("scene %q: not registered", id)
	}
	if err := ctx.Err(); err != nil {
		return Scene{}, err
	}
	f, err := os.Open(ls.path)
	if err != nil {
		return Scene{}, fmt.Errorf("scene %q: %w", id, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Scene{}, fmt.Errorf("scene %q: decode header: %w", id, err)
	}
	return Scene{ID: id, Bounds: ls.bounds, Width: cfg.Width, Height: cfg.Height}, nil
}

// BackdropURL returns a "slice:" URL naming the tile.
func (s *SlicedBackdrops) BackdropURL(sceneID string, row, col int, token string) string {
	u := url.URL{
		Scheme:   "slice",
		Opaque:   fmt.Sprintf("%s/%d/%d", url.PathEscape(sceneID), row, col),
		RawQuery: url.Values{"t": {token}}.Encode(),
	}
	return u.String()
}

// FetchBackdrop decodes the scene image, through the cache, and returns the
// tile's pixel rect of it.
func (s *SlicedBackdrops) FetchBackdrop(ctx context.Context, rawURL string) (image.Image, error) {
	sceneID, row, col, err := parseSliceURL(rawURL)
	if err != nil {
		return nil, err
	}
	img, err := s.sceneImage(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	grid := BuildGrid(s.rows, s.cols, orb.Bound{}, b.Dx(), b.Dy())
	if grid == nil || row < 0 || row >= s.rows || col < 0 || col >= s.cols {
		return nil, fmt.Errorf("backdrop %s: tile out of range", rawURL)
	}
	r := grid[row*s.cols+col].Pixels.Rect().Add(b.Min)
	sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("backdrop %s: %T cannot be sliced", rawURL, img)
	}
	return sub.SubImage(r), nil
}

// SliceToDir writes every tile of a scene as <dir>/r<row>_c<col>.png.
func (s *SlicedBackdrops) SliceToDir(ctx context.Context, sceneID, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("slice %s: %w", sceneID, err)
	}
	for row := 0; row < s.rows; row++ {
		for col := 0; col < s.cols; col++ {
			img, err := s.FetchBackdrop(ctx, s.BackdropURL(sceneID, row, col, ""))
			if err != nil {
				return fmt.Errorf("slice %s: %w", sceneID, err)
			}
			path := filepath.Join(dir, TileKey{row, col}.String()+".png")
			if err := writePNG(path, img); err != nil {
				return fmt.Errorf("slice %s: %w", sceneID, err)
			}
		}
	}
	return nil
}

func (s *SlicedBackdrops) sceneImage(ctx context.Context, id string) (image.Image, error) {
	if v, ok := s.images.Get(id); ok {
		return v.(image.Image), nil
	}
	ls, ok := s.scenes[id]
	if !ok {
		return nil, fmt.Errorf("scene %q: not registered", id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(ls.path)
	if err != nil {
		return nil, fmt.Errorf("scene %q: %w", id, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("scene %q: decode: %w", id, err)
	}
	s.images.Add(id, img)
	return img, nil
}

func parseSliceURL(raw string) (sceneID string, row, col int, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "slice" {
		return "", 0, 0, fmt.Errorf("backdrop url %q: not a slice url", raw)
	}
	parts := strings.Split(u.Opaque, "/")
	if len(parts) != 3 {
		return "", 0, 0, fmt.Errorf("backdrop url %q: want slice:<scene>/<row>/<col>", raw)
	}
	if sceneID, err = url.PathUnescape(parts[0]); err != nil {
		return "", 0, 0, fmt.Errorf("backdrop url %q: %w", raw, err)
	}
	if row, err = strconv.Atoi(parts[1]); err != nil {
		return "", 0, 0, fmt.Errorf("backdrop url %q: row: %w", raw, err)
	}
	if col, err = strconv.Atoi(parts[2]); err != nil {
		return "", 0, 0, fmt.Errorf("backdrop url %q: col: %w", raw, err)
	}
	return sceneID, row, col, nil
}
