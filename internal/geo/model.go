package geo

import (
	"sort"

	"github.com/twpayne/go-geom"
)

// Point is a named location in degrees. Range validation belongs to the
// loader that produced it.
type Point struct {
	ID        string
	Latitude  float64
	Longitude float64
}

// Coord returns the point as an (x=longitude, y=latitude) coordinate.
func (p Point) Coord() geom.Coord {
	return geom.Coord{p.Longitude, p.Latitude}
}

// Ring is an ordered loop of (x, y) coordinates. The closing coordinate
// may be omitted.
type Ring []geom.Coord

// Region is a polygon with a stable ID assigned by the loader, usually the
// index of the feature in its source collection. A nil Polygon marks a
// region whose geometry was missing; both phases skip it.
type Region struct {
	ID      int
	Polygon *Polygon
}

// NewRegion builds a Region from raw rings. The first ring is the outer
// boundary; the rest are holes.
func NewRegion(id int, rings []Ring) (Region, error) {
	poly, err := NewPolygon(rings)
	if err != nil {
		if ge, ok := asInvalidGeometry(err); ok {
			ge.RegionID = id
		}
		return Region{}, err
	}
	return Region{ID: id, Polygon: poly}, nil
}

// Match records how a point was assigned during the proximity pass.
type Match struct {
	PointID        string  `json:"point_id" yaml:"point_id"`
	RegionID       int     `json:"region_id" yaml:"region_id"`
	DistanceMeters float64 `json:"distance_meters" yaml:"distance_meters"`
}

// Stats summarises a classification run.
type Stats struct {
	Points     int `json:"points" yaml:"points"`
	Regions    int `json:"regions" yaml:"regions"`
	Contained  int `json:"contained" yaml:"contained"`
	Proximity  int `json:"proximity" yaml:"proximity"`
	Unassigned int `json:"unassigned" yaml:"unassigned"`
}

// Result is the finalized partition. Assignments only holds regions that
// received at least one point; every slice keeps first-assignment order.
type Result struct {
	Assignments map[int][]string
	Unassigned  []string
	Matches     []Match
	Stats       Stats
}

// RegionIDs returns the IDs of regions with assignments in ascending order.
func (r *Result) RegionIDs() []int {
	ids := make([]int, 0, len(r.Assignments))
	for id := range r.Assignments {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Codes returns the point IDs assigned to a region, or nil.
func (r *Result) Codes(regionID int) []string {
	return r.Assignments[regionID]
}

// RegionOf returns the region a point was assigned to.
func (r *Result) RegionOf(pointID string) (int, bool) {
	for id, codes := range r.Assignments {
		for _, c := range codes {
			if c == pointID {
				return id, true
			}
		}
	}
	return 0, false
}
