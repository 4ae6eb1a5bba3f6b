package geo

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrInvalidTransition is returned when an Aggregator phase is invoked out
// of order.
var ErrInvalidTransition = eris.New("geo: invalid aggregator state transition")

// InvalidGeometryError reports a region whose rings cannot form a polygon.
// It is fatal for a classification run.
type InvalidGeometryError struct {
	RegionID int // -1 when the polygon was built outside a region
	Ring     int // -1 when the ring sequence itself is empty
	Reason   string
}

func (e *InvalidGeometryError) Error() string {
	switch {
	case e.RegionID < 0 && e.Ring < 0:
		return fmt.Sprintf("geo: invalid geometry: %s", e.Reason)
	case e.RegionID < 0:
		return fmt.Sprintf("geo: invalid geometry (ring %d): %s", e.Ring, e.Reason)
	case e.Ring < 0:
		return fmt.Sprintf("geo: invalid geometry (region %d): %s", e.RegionID, e.Reason)
	default:
		return fmt.Sprintf("geo: invalid geometry (region %d, ring %d): %s", e.RegionID, e.Ring, e.Reason)
	}
}

// IsInvalidGeometry reports whether err wraps an InvalidGeometryError.
func IsInvalidGeometry(err error) bool {
	_, ok := asInvalidGeometry(err)
	return ok
}

func asInvalidGeometry(err error) (*InvalidGeometryError, bool) {
	var ge *InvalidGeometryError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
