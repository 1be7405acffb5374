package tilemask

import (
	"fmt"
	"os"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
)

// FeatureSource supplies the currently selected polygon, in geographic
// coordinates, that painting is clipped to.
type FeatureSource interface {
	Selected() (orb.MultiPolygon, bool)
}

// FeatureSet is a FeatureSource backed by the polygons of a GeoJSON
// FeatureCollection. Features without a usable polygon geometry are skipped.
type FeatureSet struct {
	ids      []string
	polygons map[string]orb.MultiPolygon
	selected string
}

// LoadFeatureSet reads a GeoJSON FeatureCollection file.
func LoadFeatureSet(path string) (*FeatureSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read features: %w", err)
	}
	return ParseFeatureSet(data)
}

// ParseFeatureSet decodes a GeoJSON FeatureCollection. Feature ids come from
// the "id" member, then the "id" property, then the feature's index.
func ParseFeatureSet(data []byte) (*FeatureSet, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse features: %w", err)
	}
	fs := &FeatureSet{polygons: make(map[string]orb.MultiPolygon)}
	for i, f := range fc.Features {
		mp := featurePolygons(f.Geometry)
		if len(mp) == 0 {
			continue
		}
		id := featureID(f, i)
		if _, dup := fs.polygons[id]; !dup {
			fs.ids = append(fs.ids, id)
		}
		fs.polygons[id] = mp
	}
	return fs, nil
}

func featureID(f *geojson.Feature, index int) string {
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	if v, ok := f.Properties["id"]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return fmt.Sprint(index)
}

func featurePolygons(g *geojson.Geometry) orb.MultiPolygon {
	if g == nil {
		return nil
	}
	switch {
	case g.IsPolygon():
		return orb.MultiPolygon{toPolygon(g.Polygon)}
	case g.IsMultiPolygon():
		mp := make(orb.MultiPolygon, 0, len(g.MultiPolygon))
		for _, p := range g.MultiPolygon {
			mp = append(mp, toPolygon(p))
		}
		return mp
	case g.IsCollection():
		var mp orb.MultiPolygon
		for _, sub := range g.Geometries {
			mp = append(mp, featurePolygons(sub)...)
		}
		return mp
	}
	return nil
}

func toPolygon(rings [][][]float64) orb.Polygon {
	p := make(orb.Polygon, 0, len(rings))
	for _, ring := range rings {
		r := make(orb.Ring, 0, len(ring))
		for _, pos := range ring {
			if len(pos) < 2 {
				continue
			}
			r = append(r, orb.Point{pos[0], pos[1]})
		}
		p = append(p, r)
	}
	return p
}

// IDs returns the ids of the polygon features in file order.
func (fs *FeatureSet) IDs() []string { return fs.ids }

// Polygon returns the polygon of feature id.
func (fs *FeatureSet) Polygon(id string) (orb.MultiPolygon, bool) {
	mp, ok := fs.polygons[id]
	return mp, ok
}

// Select makes id the selected feature. An unknown id clears the selection
// and returns false.
func (fs *FeatureSet) Select(id string) bool {
	if _, ok := fs.polygons[id]; !ok {
		fs.selected = ""
		return false
	}
	fs.selected = id
	return true
}

// Deselect clears the selection.
func (fs *FeatureSet) Deselect() { fs.selected = "" }

// Selected returns the selected feature's polygon.
func (fs *FeatureSet) Selected() (orb.MultiPolygon, bool) {
	if fs.selected == "" {
		return nil, false
	}
	return fs.Polygon(fs.selected)
}
