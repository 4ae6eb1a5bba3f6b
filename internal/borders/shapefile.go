package borders

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// LoadShapefile reads polygon records from a shapefile and its DBF into a
// FeatureCollection. DBF attributes become string properties. A record
// with one outer ring becomes a Polygon feature, one with several outer
// rings a MultiPolygon; run SplitMultiPolygons before ToRegions. A .zip
// path is handed to LoadShapefileZip.
func LoadShapefile(path string) (*geojson.FeatureCollection, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return LoadShapefileZip(path)
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "borders: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// The reader swaps the last three characters of path for "dbf" and
	// silently yields no fields when that file is absent.
	if dbf := path[:len(path)-3] + "dbf"; !fileExists(dbf) {
		zap.L().Warn("borders: shapefile has no attribute table, features get no properties",
			zap.String("path", path),
			zap.String("dbf", dbf),
		)
	}

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.ToLower(strings.TrimRight(f.String(), "\x00"))
	}

	fc := &geojson.FeatureCollection{}
	var skipped int
	for reader.Next() {
		n, shape := reader.Shape()

		props := make(map[string]interface{}, len(names))
		for i, name := range names {
			props[name] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}

		var g geom.T
		if p, ok := shape.(*shp.Polygon); ok {
			g = shapeToGeom(p)
		}
		if g == nil {
			skipped++
			zap.L().Debug("borders: shapefile record without polygon", zap.Int("record", n))
		}
		fc.Features = append(fc.Features, &geojson.Feature{Geometry: g, Properties: props})
	}

	if skipped > 0 {
		zap.L().Warn("borders: shapefile records without geometry",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return fc, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// shapeToGeom groups shapefile parts into polygons. Clockwise parts start a
// new polygon and counter-clockwise parts are holes of the previous one. A
// leading counter-clockwise part is treated as an outer ring.
func shapeToGeom(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var polys [][][]geom.Coord
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			zap.L().Debug("borders: skipping malformed ring", zap.Int32("part", i))
			continue
		}

		ring := make([]geom.Coord, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, geom.Coord{p.Points[j].X, p.Points[j].Y})
		}

		if signedArea(ring) < 0 || len(polys) == 0 {
			polys = append(polys, [][]geom.Coord{ring})
			continue
		}
		last := len(polys) - 1
		polys[last] = append(polys[last], ring)
	}

	switch len(polys) {
	case 0:
		return nil
	case 1:
		poly, err := geom.NewPolygon(geom.XY).SetCoords(polys[0])
		if err != nil {
			return nil
		}
		return poly
	default:
		mp, err := geom.NewMultiPolygon(geom.XY).SetCoords(polys)
		if err != nil {
			return nil
		}
		return mp
	}
}

// signedArea is positive for counter-clockwise rings.
func signedArea(ring []geom.Coord) float64 {
	var sum float64
	for i := range ring {
		a, b := ring[i], ring[(i+1)%len(ring)]
		sum += a[0]*b[1] - b[0]*a[1]
	}
	return sum / 2
}
