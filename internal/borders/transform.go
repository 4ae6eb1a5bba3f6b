package borders

import (
	"maps"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/airport-borders/internal/geo"
)

// SplitMultiPolygons replaces every MultiPolygon feature by one Polygon
// feature per member, each with a copy of the original properties. Other
// features pass through unchanged. Feature order is preserved.
func SplitMultiPolygons(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	out := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(fc.Features))}
	for _, f := range fc.Features {
		mp, ok := f.Geometry.(*geom.MultiPolygon)
		if !ok || mp == nil {
			out.Features = append(out.Features, f)
			continue
		}
		for i := 0; i < mp.NumPolygons(); i++ {
			out.Features = append(out.Features, &geojson.Feature{
				ID:         f.ID,
				Geometry:   mp.Polygon(i),
				Properties: maps.Clone(f.Properties),
			})
		}
	}
	return out
}

// Annotate returns a copy of fc where every feature carries the codes
// assigned to it under property, in assignment order. Features without
// assignments get an empty list. Geometry is shared with fc.
func Annotate(fc *geojson.FeatureCollection, res *geo.Result, property string) *geojson.FeatureCollection {
	if property == "" {
		property = DefaultProperty
	}
	out := &geojson.FeatureCollection{Features: make([]*geojson.Feature, len(fc.Features))}
	for i, f := range fc.Features {
		props := maps.Clone(f.Properties)
		if props == nil {
			props = make(map[string]interface{}, 1)
		}
		codes := res.Codes(i)
		if codes == nil {
			codes = []string{}
		}
		props[property] = codes
		out.Features[i] = &geojson.Feature{
			ID:         f.ID,
			Geometry:   f.Geometry,
			Properties: props,
		}
	}
	return out
}

// Codes reads the code list stored under property. It accepts both the
// []string written by Annotate and the []interface{} produced by decoding.
func Codes(f *geojson.Feature, property string) []string {
	switch v := f.Properties[property].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, c := range v {
			if s, ok := c.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Diff describes a feature whose code sets differ between two collections.
type Diff struct {
	Feature int      `json:"feature" yaml:"feature"`
	Added   []string `json:"added,omitempty" yaml:"added,omitempty"`
	Removed []string `json:"removed,omitempty" yaml:"removed,omitempty"`
}

// Compare matches features of a and b by position and reports those whose
// code sets under property differ. Added holds codes only in b.
func Compare(a, b *geojson.FeatureCollection, property string) ([]Diff, error) {
	if property == "" {
		property = DefaultProperty
	}
	if len(a.Features) != len(b.Features) {
		return nil, eris.Errorf("borders: feature counts differ (%d vs %d)", len(a.Features), len(b.Features))
	}

	var diffs []Diff
	for i := range a.Features {
		before := toSet(Codes(a.Features[i], property))
		after := toSet(Codes(b.Features[i], property))

		d := Diff{Feature: i, Added: minus(after, before), Removed: minus(before, after)}
		if len(d.Added) > 0 || len(d.Removed) > 0 {
			diffs = append(diffs, d)
		}
	}
	return diffs, nil
}

func toSet(codes []string) map[string]struct{} {
	s := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

func minus(a, b map[string]struct{}) []string {
	var out []string
	for c := range a {
		if _, ok := b[c]; !ok {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
