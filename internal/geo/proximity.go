package geo

import "github.com/twpayne/go-geom"

// DefaultThresholdMeters is the proximity cut-off used when none is
// configured.
const DefaultThresholdMeters = 50000.0

// Candidate is the distance from a point to one region's outer boundary.
type Candidate struct {
	RegionID       int
	DistanceMeters float64
	Nearest        geom.Coord
}

// Resolver assigns points that no region contains to the region with the
// closest outer boundary, provided that boundary is strictly closer than
// ThresholdMeters.
type Resolver struct {
	ThresholdMeters float64
}

// NewResolver returns a Resolver. A non-positive threshold falls back to
// DefaultThresholdMeters.
func NewResolver(thresholdMeters float64) Resolver {
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultThresholdMeters
	}
	return Resolver{ThresholdMeters: thresholdMeters}
}

// Distances returns one candidate per region with geometry, in region
// order.
func (r Resolver) Distances(p Point, regions []Region) []Candidate {
	out := make([]Candidate, 0, len(regions))
	for _, reg := range regions {
		if reg.Polygon == nil {
			continue
		}
		near := reg.Polygon.NearestBoundaryPoint(p.Longitude, p.Latitude)
		out = append(out, Candidate{
			RegionID:       reg.ID,
			DistanceMeters: Haversine(p.Latitude, p.Longitude, near[1], near[0]),
			Nearest:        near,
		})
	}
	return out
}

// Nearest returns the closest region regardless of the threshold. Ties
// go to the region that comes first in regions. It returns false when no
// region has geometry.
func (r Resolver) Nearest(p Point, regions []Region) (Candidate, bool) {
	cands := r.Distances(p, regions)
	if len(cands) == 0 {
		return Candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.DistanceMeters < best.DistanceMeters {
			best = c
		}
	}
	return best, true
}

// Resolve is Nearest with the threshold applied: the match is kept only
// when its distance is strictly below ThresholdMeters.
func (r Resolver) Resolve(p Point, regions []Region) (Candidate, bool) {
	best, ok := r.Nearest(p, regions)
	if !ok || !(best.DistanceMeters < r.threshold()) {
		return Candidate{}, false
	}
	return best, true
}

// FindNearestRegion returns the ID of the region p falls back to, or false
// when no region boundary is within the threshold.
func (r Resolver) FindNearestRegion(p Point, regions []Region) (int, bool) {
	c, ok := r.Resolve(p, regions)
	if !ok {
		return 0, false
	}
	return c.RegionID, true
}

func (r Resolver) threshold() float64 {
	if r.ThresholdMeters <= 0 {
		return DefaultThresholdMeters
	}
	return r.ThresholdMeters
}
