package airport

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/airport-borders/internal/fetcher"
)

// LoadOptions configures Load.
type LoadOptions struct {
	// Charset of the input, e.g. "windows-1252". Empty means UTF-8.
	Charset string
}

// LoadFile opens path and loads every airport in it.
func LoadFile(ctx context.Context, path string, opts LoadOptions) ([]Airport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "airport: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return Load(ctx, f, opts)
}

// Load parses an airports CSV with a header row. Columns are matched by
// name, so extra columns and any column order are accepted. Backticks in
// names are replaced with apostrophes.
func Load(ctx context.Context, r io.Reader, opts LoadOptions) ([]Airport, error) {
	if opts.Charset != "" && !strings.EqualFold(opts.Charset, "utf-8") {
		enc, err := htmlindex.Get(opts.Charset)
		if err != nil {
			return nil, eris.Wrapf(err, "airport: unsupported charset %q", opts.Charset)
		}
		r = enc.NewDecoder().Reader(r)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	recCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{TrimSpace: true})

	var (
		cols     map[string]int
		airports []Airport
	)
	for rec := range recCh {
		if cols == nil {
			var err error
			if cols, err = columnIndex(rec.Fields); err != nil {
				return nil, err
			}
			continue
		}

		a, err := parseRow(rec.Fields, cols)
		if err != nil {
			return nil, eris.Wrapf(err, "airport: line %d", rec.Line)
		}
		airports = append(airports, a)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "airport: read csv")
	}
	return airports, nil
}

func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, name := range Headers {
		if _, ok := cols[name]; !ok {
			return nil, eris.Errorf("airport: missing column %q", name)
		}
	}
	return cols, nil
}

func parseRow(row []string, cols map[string]int) (Airport, error) {
	get := func(name string) string {
		if i := cols[name]; i < len(row) {
			return row[i]
		}
		return ""
	}

	lat, err := strconv.ParseFloat(get("latitude_deg"), 64)
	if err != nil {
		return Airport{}, eris.Wrap(err, "parse latitude_deg")
	}
	lon, err := strconv.ParseFloat(get("longitude_deg"), 64)
	if err != nil {
		return Airport{}, eris.Wrap(err, "parse longitude_deg")
	}

	return Airport{
		Name:         strings.ReplaceAll(get("name"), "`", "'"),
		LatitudeDeg:  lat,
		LongitudeDeg: lon,
		GPSCode:      get("gps_code"),
		ISOCountry:   get("iso_country"),
	}, nil
}
