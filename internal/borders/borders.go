// Package borders reads and writes country border collections and turns
// their features into classification regions.
package borders

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/airport-borders/internal/geo"
)

// DefaultProperty is the feature property that receives assigned codes.
const DefaultProperty = "airports_gps_code"

// UnsupportedGeometryError is returned for features that are neither
// Polygon nor null.
type UnsupportedGeometryError struct {
	Feature int
	Type    string
}

func (e *UnsupportedGeometryError) Error() string {
	if e.Type == "MultiPolygon" {
		return fmt.Sprintf("borders: feature %d is a MultiPolygon, run split first", e.Feature)
	}
	return fmt.Sprintf("borders: feature %d has unsupported geometry %s", e.Feature, e.Type)
}

// Read decodes a GeoJSON FeatureCollection.
func Read(r io.Reader) (*geojson.FeatureCollection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "borders: read")
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "borders: decode geojson")
	}
	return &fc, nil
}

// ReadFile decodes the FeatureCollection stored at path.
func ReadFile(path string) (*geojson.FeatureCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "borders: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Read(f)
}

// Write encodes fc as indented GeoJSON.
func Write(w io.Writer, fc *geojson.FeatureCollection) error {
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "borders: encode geojson")
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return eris.Wrap(err, "borders: write")
	}
	return nil
}

// WriteFile writes fc to path, creating parent directories.
func WriteFile(path string, fc *geojson.FeatureCollection) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "borders: create directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "borders: create %s", path)
	}
	if err := Write(f, fc); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "borders: close")
}

// ToRegions converts features to regions whose IDs are the feature
// indexes. Features without geometry become regions without a polygon.
// Any geometry other than Polygon is an UnsupportedGeometryError, and a
// malformed polygon is a geo.InvalidGeometryError.
func ToRegions(fc *geojson.FeatureCollection) ([]geo.Region, error) {
	regions := make([]geo.Region, 0, len(fc.Features))
	for i, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case nil:
			regions = append(regions, geo.Region{ID: i})
		case *geom.Polygon:
			if g == nil {
				regions = append(regions, geo.Region{ID: i})
				continue
			}
			reg, err := geo.NewRegion(i, PolygonRings(g))
			if err != nil {
				return nil, err
			}
			regions = append(regions, reg)
		default:
			return nil, &UnsupportedGeometryError{Feature: i, Type: typeName(g)}
		}
	}
	return regions, nil
}

// PolygonRings returns the rings of p, outer first.
func PolygonRings(p *geom.Polygon) []geo.Ring {
	rings := make([]geo.Ring, p.NumLinearRings())
	for i := range rings {
		rings[i] = geo.Ring(p.LinearRing(i).Coords())
	}
	return rings
}

func typeName(g geom.T) string {
	switch g.(type) {
	case *geom.Point:
		return "Point"
	case *geom.MultiPoint:
		return "MultiPoint"
	case *geom.LineString:
		return "LineString"
	case *geom.MultiLineString:
		return "MultiLineString"
	case *geom.MultiPolygon:
		return "MultiPolygon"
	case *geom.GeometryCollection:
		return "GeometryCollection"
	default:
		return "unknown"
	}
}
