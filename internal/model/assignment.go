package model

import "github.com/sells-group/airport-borders/internal/geo"

// Method records how a point ended up where it is.
type Method string

const (
	MethodContained  Method = "contained"
	MethodProximity  Method = "proximity"
	MethodUnassigned Method = "unassigned"
)

// Assignment is one persisted row of a run's partition.
type Assignment struct {
	RunID          string   `json:"run_id" yaml:"run_id"`
	PointID        string   `json:"point_id" yaml:"point_id"`
	RegionID       *int     `json:"region_id,omitempty" yaml:"region_id,omitempty"`
	Method         Method   `json:"method" yaml:"method"`
	DistanceMeters *float64 `json:"distance_meters,omitempty" yaml:"distance_meters,omitempty"`
	Position       int      `json:"position" yaml:"position"`
}

// NewAssignments flattens res into rows: regions in ascending ID order with
// their points in assignment order, then unassigned points. Position is the
// row's index and lets stores return rows in the same order.
func NewAssignments(runID string, res *geo.Result) []Assignment {
	near := make(map[string]float64, len(res.Matches))
	for _, m := range res.Matches {
		near[m.PointID] = m.DistanceMeters
	}

	var out []Assignment
	for _, id := range res.RegionIDs() {
		for _, code := range res.Assignments[id] {
			a := Assignment{RunID: runID, PointID: code, RegionID: intPtr(id), Method: MethodContained}
			if d, ok := near[code]; ok {
				a.Method = MethodProximity
				a.DistanceMeters = &d
			}
			a.Position = len(out)
			out = append(out, a)
		}
	}
	for _, code := range res.Unassigned {
		out = append(out, Assignment{RunID: runID, PointID: code, Method: MethodUnassigned, Position: len(out)})
	}
	return out
}

// ToResult rebuilds the partition from stored rows. Stats count only what
// the rows carry: Points, Contained, Proximity and Unassigned.
func ToResult(rows []Assignment) *geo.Result {
	res := &geo.Result{Assignments: make(map[int][]string), Unassigned: []string{}}
	for _, a := range rows {
		res.Stats.Points++
		switch {
		case a.RegionID == nil:
			res.Unassigned = append(res.Unassigned, a.PointID)
			res.Stats.Unassigned++
		case a.Method == MethodProximity:
			res.Assignments[*a.RegionID] = append(res.Assignments[*a.RegionID], a.PointID)
			m := geo.Match{PointID: a.PointID, RegionID: *a.RegionID}
			if a.DistanceMeters != nil {
				m.DistanceMeters = *a.DistanceMeters
			}
			res.Matches = append(res.Matches, m)
			res.Stats.Proximity++
		default:
			res.Assignments[*a.RegionID] = append(res.Assignments[*a.RegionID], a.PointID)
			res.Stats.Contained++
		}
	}
	return res
}

func intPtr(i int) *int { return &i }
