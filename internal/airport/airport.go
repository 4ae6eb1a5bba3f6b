// Package airport loads, filters and exports airport records from the
// ourairports CSV dump.
package airport

import "github.com/sells-group/airport-borders/internal/geo"

// Headers lists the columns read from the source CSV and written on export.
var Headers = []string{"name", "latitude_deg", "longitude_deg", "gps_code", "iso_country"}

// Airport is one row of the airports CSV.
type Airport struct {
	Name         string  `json:"name"`
	LatitudeDeg  float64 `json:"latitude_deg"`
	LongitudeDeg float64 `json:"longitude_deg"`
	GPSCode      string  `json:"gps_code"`
	ISOCountry   string  `json:"iso_country"`
}

// Point converts the airport to a classification point keyed by GPS code.
func (a Airport) Point() geo.Point {
	return geo.Point{ID: a.GPSCode, Latitude: a.LatitudeDeg, Longitude: a.LongitudeDeg}
}

// Points converts airports to classification points, preserving order.
func Points(airports []Airport) []geo.Point {
	out := make([]geo.Point, len(airports))
	for i, a := range airports {
		out[i] = a.Point()
	}
	return out
}
