package airport

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
)

// WriteCSV writes airports with the Headers row.
func WriteCSV(w io.Writer, airports []Airport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return eris.Wrap(err, "airport: write header")
	}
	for _, a := range airports {
		rec := []string{
			a.Name,
			strconv.FormatFloat(a.LatitudeDeg, 'f', -1, 64),
			strconv.FormatFloat(a.LongitudeDeg, 'f', -1, 64),
			a.GPSCode,
			a.ISOCountry,
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrapf(err, "airport: write %s", a.GPSCode)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "airport: flush csv")
}

// WriteCSVFile writes airports to path, creating parent directories.
func WriteCSVFile(path string, airports []Airport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "airport: create directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "airport: create %s", path)
	}
	if err := WriteCSV(f, airports); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "airport: close csv")
}
