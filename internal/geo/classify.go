package geo

// IsInside reports whether p falls within poly. A nil polygon contains
// nothing.
func IsInside(p Point, poly *Polygon) bool {
	if poly == nil {
		return false
	}
	return poly.Contains(p.Longitude, p.Latitude)
}

// Placement is where Locate put a single point.
type Placement struct {
	RegionID       int
	Contained      bool
	DistanceMeters float64 // zero when Contained
}

// Locate runs both phases for one point: the first region containing p,
// otherwise the proximity match from r. It places p exactly where Classify
// would.
func Locate(p Point, regions []Region, r Resolver) (Placement, bool) {
	for _, reg := range regions {
		if IsInside(p, reg.Polygon) {
			return Placement{RegionID: reg.ID, Contained: true}, true
		}
	}
	c, ok := r.Resolve(p, regions)
	if !ok {
		return Placement{}, false
	}
	return Placement{RegionID: c.RegionID, DistanceMeters: c.DistanceMeters}, true
}
