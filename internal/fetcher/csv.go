package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune            // field separator, ',' when zero
	HasHeader  bool            // first row is a header, not data
	HeaderCh   chan<- []string // optional destination for the header row
	Comment    rune            // lines starting with this rune are skipped (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// StreamCSV parses r row by row and delivers data rows on the returned
// channel. Ragged rows are allowed; width checks are the caller's concern.
// The error channel carries at most one error, and both channels close when
// the input is exhausted or the context ends.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := newCSVReader(r, opts)

		if opts.HasHeader {
			header, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read header")
				return
			}
			if opts.TrimSpace {
				trimRow(header)
			}
			if opts.HeaderCh != nil {
				select {
				case opts.HeaderCh <- header:
				case <-ctx.Done():
					errCh <- eris.Wrap(ctx.Err(), "csv: cancelled sending header")
					return
				}
			}
		}

		for {
			if err := ctx.Err(); err != nil {
				errCh <- eris.Wrap(err, "csv: cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			if opts.TrimSpace {
				trimRow(record)
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func newCSVReader(r io.Reader, opts CSVOptions) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = opts.LazyQuotes
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	return reader
}

func trimRow(row []string) {
	for i, cell := range row {
		row[i] = strings.TrimSpace(cell)
	}
}
