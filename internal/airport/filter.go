package airport

import (
	"regexp"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/airport-borders/internal/geo"
)

// DefaultCodePattern matches four-letter ICAO codes.
const DefaultCodePattern = `^[A-Z]{4}$`

// DefaultOutlierKm is the nearest-neighbour distance above which an airport
// is considered misplaced.
const DefaultOutlierKm = 1000.0

// FilterICAO keeps airports whose GPS code matches pattern and that have a
// country. Codes are unique in the output: a later record replaces an
// earlier one but keeps its position.
func FilterICAO(airports []Airport, pattern string) ([]Airport, error) {
	if pattern == "" {
		pattern = DefaultCodePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, eris.Wrapf(err, "airport: compile code pattern %q", pattern)
	}

	index := make(map[string]int)
	var out []Airport
	for _, a := range airports {
		if !re.MatchString(a.GPSCode) {
			continue
		}
		if a.ISOCountry == "" {
			zap.L().Debug("airport without iso_country skipped", zap.String("gps_code", a.GPSCode))
			continue
		}
		if i, ok := index[a.GPSCode]; ok {
			out[i] = a
			continue
		}
		index[a.GPSCode] = len(out)
		out = append(out, a)
	}
	return out, nil
}

// Outlier is an airport far from every other airport sharing the first
// letter of its code.
type Outlier struct {
	Airport   Airport
	NearestKm float64 // negative when the airport is alone in its group
	NearestTo string
}

// FindOutliers groups airports by the first letter of their code and
// reports those whose nearest neighbour in the group is more than
// thresholdKm away. An airport alone in its group is always an outlier.
// Output follows input order.
func FindOutliers(airports []Airport, thresholdKm float64) []Outlier {
	if thresholdKm <= 0 {
		thresholdKm = DefaultOutlierKm
	}

	groups := make(map[byte][]int)
	for i, a := range airports {
		if a.GPSCode == "" {
			continue
		}
		groups[a.GPSCode[0]] = append(groups[a.GPSCode[0]], i)
	}

	var out []Outlier
	for i, a := range airports {
		if a.GPSCode == "" {
			continue
		}
		best := -1.0
		nearest := ""
		for _, j := range groups[a.GPSCode[0]] {
			if j == i {
				continue
			}
			b := airports[j]
			d := geo.Haversine(a.LatitudeDeg, a.LongitudeDeg, b.LatitudeDeg, b.LongitudeDeg) / 1000
			if best < 0 || d < best {
				best, nearest = d, b.GPSCode
			}
		}
		if best < 0 || best > thresholdKm {
			out = append(out, Outlier{Airport: a, NearestKm: best, NearestTo: nearest})
		}
	}
	return out
}

// RemoveOutliers returns airports without the given outliers.
func RemoveOutliers(airports []Airport, outliers []Outlier) []Airport {
	drop := make(map[string]struct{}, len(outliers))
	for _, o := range outliers {
		drop[o.Airport.GPSCode] = struct{}{}
	}
	out := make([]Airport, 0, len(airports))
	for _, a := range airports {
		if _, ok := drop[a.GPSCode]; !ok {
			out = append(out, a)
		}
	}
	return out
}

// Index looks airports up by code and by code prefix.
type Index struct {
	byCode   map[string]Airport
	byPrefix map[string][]string
}

// NewIndex indexes airports by code and by each prefix of one to three
// letters. Prefix lists are sorted.
func NewIndex(airports []Airport) *Index {
	idx := &Index{
		byCode:   make(map[string]Airport, len(airports)),
		byPrefix: make(map[string][]string),
	}
	for _, a := range airports {
		if _, dup := idx.byCode[a.GPSCode]; !dup {
			for n := 1; n <= 3 && n <= len(a.GPSCode); n++ {
				p := a.GPSCode[:n]
				idx.byPrefix[p] = append(idx.byPrefix[p], a.GPSCode)
			}
		}
		idx.byCode[a.GPSCode] = a
	}
	for _, codes := range idx.byPrefix {
		sort.Strings(codes)
	}
	return idx
}

// Len returns the number of distinct codes.
func (idx *Index) Len() int { return len(idx.byCode) }

// Get returns the airport with the given code.
func (idx *Index) Get(code string) (Airport, bool) {
	a, ok := idx.byCode[code]
	return a, ok
}

// ByPrefix returns airports whose code starts with prefix, sorted by code.
// Prefixes longer than three letters fall back to a scan.
func (idx *Index) ByPrefix(prefix string) []Airport {
	var codes []string
	if len(prefix) >= 1 && len(prefix) <= 3 {
		codes = idx.byPrefix[prefix]
	} else {
		for code := range idx.byCode {
			if len(code) >= len(prefix) && code[:len(prefix)] == prefix {
				codes = append(codes, code)
			}
		}
		sort.Strings(codes)
	}

	out := make([]Airport, 0, len(codes))
	for _, c := range codes {
		out = append(out, idx.byCode[c])
	}
	return out
}
