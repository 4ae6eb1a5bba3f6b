package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures StreamCSV.
type CSVOptions struct {
	Comma      rune // default ','
	Comment    rune // 0 disables comments
	LazyQuotes bool
	TrimSpace  bool
}

// Record is one parsed CSV row. Line is the 1-based line the row starts on.
type Record struct {
	Line   int
	Fields []string
}

// StreamCSV parses r on a goroutine and sends every row, header included,
// on the returned channel. Both channels are closed when parsing stops; at
// most one error is sent. The caller must drain the record channel or
// cancel ctx.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Record, <-chan error) {
	recCh := make(chan Record, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Comma != 0 {
			reader.Comma = opts.Comma
		}
		reader.Comment = opts.Comment
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		for {
			if err := ctx.Err(); err != nil {
				errCh <- eris.Wrap(err, "csv: context cancelled")
				return
			}

			fields, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			line, _ := reader.FieldPos(0)

			if opts.TrimSpace {
				for i := range fields {
					fields[i] = strings.TrimSpace(fields[i])
				}
			}

			select {
			case recCh <- Record{Line: line, Fields: fields}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return recCh, errCh
}
