package tilemask

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/paulmach/orb"
)

// HTTPClient talks to the labeling web server. It implements SceneService,
// BackdropService and MaskStore. Scene metadata and decoded backdrops are
// cached in LRU caches, keyed by scene id and by tile URL without its
// cache-busting token.
type HTTPClient struct {
	base      string
	client    *http.Client
	scenes    *lru.Cache
	backdrops *lru.Cache
}

// NewHTTPClient returns a client for the server at baseURL. A nil hc uses
// http.DefaultClient.
func NewHTTPClient(baseURL string, hc *http.Client, cacheSize int) (*HTTPClient, error) {
	if hc == nil {
		hc = http.DefaultClient
	}
	scenes, err := lru.New(16)
	if err != nil {
		return nil, fmt.Errorf("scene cache: %w", err)
	}
	backdrops, err := lru.New(max(cacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("backdrop cache: %w", err)
	}
	return &HTTPClient{
		base:      strings.TrimRight(baseURL, "/"),
		client:    hc,
		scenes:    scenes,
		backdrops: backdrops,
	}, nil
}

type boundsResponse struct {
	LatMin float64 `json:"lat_min"`
	LonMin float64 `json:"lon_min"`
	LatMax float64 `json:"lat_max"`
	LonMax float64 `json:"lon_max"`
}

type metaResponse struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Scene combines /api/s2_bounds_wgs84 and /api/backdrop_meta.
func (c *HTTPClient) Scene(ctx context.Context, id string) (Scene, error) {
	if v, ok := c.scenes.Get(id); ok {
		return v.(Scene), nil
	}
	q := url.Values{"scene_id": {id}}
	var b boundsResponse
	if err := c.getJSON(ctx, "/api/s2_bounds_wgs84", q, &b); err != nil {
		return Scene{}, fmt.Errorf("scene %q: %w", id, err)
	}
	var m metaResponse
	if err := c.getJSON(ctx, "/api/backdrop_meta", q, &m); err != nil {
		return Scene{}, fmt.Errorf("scene %q: %w", id, err)
	}
	s := Scene{
		ID:     id,
		Bounds: orb.Bound{Min: orb.Point{b.LonMin, b.LatMin}, Max: orb.Point{b.LonMax, b.LatMax}},
		Width:  m.Width,
		Height: m.Height,
	}
	c.scenes.Add(id, s)
	return s, nil
}

// BackdropURL returns the /api/grid/tile URL of a tile.
func (c *HTTPClient) BackdropURL(sceneID string, row, col int, token string) string {
	q := url.Values{
		"scene_id": {sceneID},
		"r":        {strconv.Itoa(row)},
		"c":        {strconv.Itoa(col)},
		"t":        {token},
	}
	return c.base + "/api/grid/tile?" + q.Encode()
}

// FetchBackdrop downloads and decodes a backdrop image. URLs that differ
// only in the t token share one cache entry.
func (c *HTTPClient) FetchBackdrop(ctx context.Context, rawURL string) (image.Image, error) {
	key := backdropKey(rawURL)
	if v, ok := c.backdrops.Get(key); ok {
		return v.(image.Image), nil
	}
	resp, err := c.do(ctx, http.MethodGet, rawURL, "", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch backdrop: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch backdrop: %s", resp.Status)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch backdrop: decode: %w", err)
	}
	c.backdrops.Add(key, img)
	return img, nil
}

// backdropKey drops the t query parameter from a backdrop URL. Unparsable
// URLs are used as is.
func backdropKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Del("t")
	u.RawQuery = q.Encode()
	return u.String()
}

// SaveMask uploads a PNG to /api/masks/save_tile_png as multipart form data
// together with the tile's pixel rect.
func (c *HTTPClient) SaveMask(ctx context.Context, sceneID string, tile TileSpec, data []byte) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fields := [][2]string{
		{"scene_id", sceneID},
		{"r", strconv.Itoa(tile.Row)},
		{"c", strconv.Itoa(tile.Col)},
		{"x", strconv.Itoa(tile.Pixels.X0)},
		{"y", strconv.Itoa(tile.Pixels.Y0)},
		{"w", strconv.Itoa(tile.Pixels.W)},
		{"h", strconv.Itoa(tile.Pixels.H)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("save mask: %w", err)
		}
	}
	part, err := w.CreateFormFile("file", tile.Key().String()+".png")
	if err != nil {
		return fmt.Errorf("save mask: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("save mask: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("save mask: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.base+"/api/masks/save_tile_png", w.FormDataContentType(), &body)
	if err != nil {
		return fmt.Errorf("save mask %s: %w", tile.Key(), err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("save mask %s: %s", tile.Key(), resp.Status)
	}
	return nil
}

// LoadMask fetches a stored mask from /api/masks/get. A 404 yields
// ErrNoMask.
func (c *HTTPClient) LoadMask(ctx context.Context, sceneID string, row, col int) ([]byte, error) {
	q := url.Values{
		"scene_id": {sceneID},
		"r":        {strconv.Itoa(row)},
		"c":        {strconv.Itoa(col)},
	}
	resp, err := c.do(ctx, http.MethodGet, c.base+"/api/masks/get?"+q.Encode(), "", nil)
	if err != nil {
		return nil, fmt.Errorf("load mask: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNoMask
	default:
		return nil, fmt.Errorf("load mask: %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("load mask: %w", err)
	}
	return data, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	resp, err := c.do(ctx, http.MethodGet, c.base+path+"?"+q.Encode(), "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, rawURL, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.client.Do(req)
}
