package geo

import (
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
)

// Polygon is an outer ring with zero or more holes. Rings are stored
// closed (last coordinate equals the first) with two dimensions.
type Polygon struct {
	g      *geom.Polygon
	rings  [][]geom.Coord
	bounds []*geom.Bounds
}

// NewPolygon builds a polygon from raw rings. The first ring is the outer
// boundary and every following ring is a hole. It fails with an
// *InvalidGeometryError when rings is empty or any ring has fewer than
// three coordinates once its closing coordinate is dropped.
func NewPolygon(rings []Ring) (*Polygon, error) {
	if len(rings) == 0 {
		return nil, &InvalidGeometryError{RegionID: -1, Ring: -1, Reason: "no rings"}
	}

	p := &Polygon{rings: make([][]geom.Coord, 0, len(rings))}
	for i, r := range rings {
		closed, err := closeRing(r)
		if err != nil {
			return nil, &InvalidGeometryError{RegionID: -1, Ring: i, Reason: err.Error()}
		}
		p.rings = append(p.rings, closed)
	}

	g, err := geom.NewPolygon(geom.XY).SetCoords(p.rings)
	if err != nil {
		return nil, &InvalidGeometryError{RegionID: -1, Ring: -1, Reason: err.Error()}
	}
	p.g = g

	p.bounds = make([]*geom.Bounds, g.NumLinearRings())
	for i := range p.bounds {
		p.bounds[i] = geom.NewBounds(geom.XY).Extend(g.LinearRing(i))
	}
	return p, nil
}

// closeRing copies r as 2D coordinates and appends the first coordinate
// when the ring is open.
func closeRing(r Ring) ([]geom.Coord, error) {
	open := len(r)
	if open > 1 && sameXY(r[0], r[open-1]) {
		open--
	}
	if open < 3 {
		return nil, fmt.Errorf("ring has %d coordinates, need at least 3", open)
	}

	out := make([]geom.Coord, 0, open+1)
	for i := 0; i < open; i++ {
		c := r[i]
		if len(c) < 2 {
			return nil, fmt.Errorf("coordinate %d has %d dimensions", i, len(c))
		}
		out = append(out, geom.Coord{c[0], c[1]})
	}
	return append(out, geom.Coord{r[0][0], r[0][1]}), nil
}

func sameXY(a, b geom.Coord) bool {
	return len(a) >= 2 && len(b) >= 2 && a[0] == b[0] && a[1] == b[1]
}

// Geom returns the underlying go-geom polygon. Callers must not mutate it.
func (p *Polygon) Geom() *geom.Polygon { return p.g }

// Bounds returns the bounding box of the outer ring.
func (p *Polygon) Bounds() *geom.Bounds { return p.g.Bounds() }

// Outer returns a copy of the closed outer ring.
func (p *Polygon) Outer() Ring { return copyRing(p.rings[0]) }

// Holes returns copies of the closed hole rings.
func (p *Polygon) Holes() []Ring {
	holes := make([]Ring, 0, len(p.rings)-1)
	for _, r := range p.rings[1:] {
		holes = append(holes, copyRing(r))
	}
	return holes
}

func copyRing(r []geom.Coord) Ring {
	out := make(Ring, len(r))
	for i, c := range r {
		out[i] = geom.Coord{c[0], c[1]}
	}
	return out
}

// Contains reports whether (lon, lat) lies inside the outer ring and
// outside every hole. Rings are boundary-inclusive: a point on the outer
// edge is contained, a point on a hole edge belongs to the hole and is not.
func (p *Polygon) Contains(lon, lat float64) bool {
	c := geom.Coord{lon, lat}
	if !p.inRing(0, c) {
		return false
	}
	for i := 1; i < len(p.bounds); i++ {
		if p.inRing(i, c) {
			return false
		}
	}
	return true
}

// inRing is true for points in the interior or on the boundary of ring i.
func (p *Polygon) inRing(i int, c geom.Coord) bool {
	if !p.bounds[i].OverlapsPoint(geom.XY, c) {
		return false
	}
	return xy.LocatePointInRing(geom.XY, c, p.g.LinearRing(i).FlatCoords()) != location.Exterior
}

// NearestBoundaryPoint returns the point of the outer ring closest to
// (lon, lat) in planar degree space. Holes are ignored. A ring collapsed
// to a single vertex returns that vertex.
func (p *Polygon) NearestBoundaryPoint(lon, lat float64) geom.Coord {
	outer := p.rings[0]
	best := geom.Coord{outer[0][0], outer[0][1]}
	bestD := sqDist(lon, lat, best[0], best[1])

	for i := 1; i < len(outer); i++ {
		cx, cy := closestOnSegment(lon, lat, outer[i-1], outer[i])
		if d := sqDist(lon, lat, cx, cy); d < bestD {
			best = geom.Coord{cx, cy}
			bestD = d
		}
	}
	return best
}

func closestOnSegment(x, y float64, a, c geom.Coord) (float64, float64) {
	dx, dy := c[0]-a[0], c[1]-a[1]
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return a[0], a[1]
	}
	t := ((x-a[0])*dx + (y-a[1])*dy) / lenSq
	switch {
	case t <= 0:
		return a[0], a[1]
	case t >= 1:
		return c[0], c[1]
	}
	return a[0] + t*dx, a[1] + t*dy
}

func sqDist(x1, y1, x2, y2 float64) float64 {
	dx, dy := x2-x1, y2-y1
	return dx*dx + dy*dy
}
