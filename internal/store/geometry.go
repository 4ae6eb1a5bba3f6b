package store

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/airport-borders/internal/geo"
)

// SRID of every stored polygon.
const SRID = 4326

// encodePolygon returns the EWKB form of p, or nil for a region without
// geometry.
func encodePolygon(p *geo.Polygon) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	g := p.Geom()
	out := geom.NewPolygonFlat(geom.XY, g.FlatCoords(), g.Ends()).SetSRID(SRID)
	data, err := ewkb.Marshal(out, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode EWKB")
	}
	return data, nil
}

// decodeRegion rebuilds a region from its stored EWKB. Empty data yields a
// region without geometry.
func decodeRegion(id int, data []byte) (geo.Region, error) {
	if len(data) == 0 {
		return geo.Region{ID: id}, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return geo.Region{}, eris.Wrapf(err, "store: decode region %d", id)
	}
	poly, ok := g.(*geom.Polygon)
	if !ok {
		return geo.Region{}, eris.Errorf("store: region %d is %T, want polygon", id, g)
	}

	rings := make([]geo.Ring, poly.NumLinearRings())
	for i := range rings {
		rings[i] = geo.Ring(poly.LinearRing(i).Coords())
	}
	return geo.NewRegion(id, rings)
}
