package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV reader.
type CSVOptions struct {
	Delimiter rune // default ','
	Comment   rune // 0 = none
}

// Row is one data row keyed by normalized header name. Line is the 1-based
// line number in the source file.
type Row struct {
	Line   int
	Fields map[string]string
}

// Get returns the trimmed value for any of the given column names.
func (r Row) Get(names ...string) string {
	for _, n := range names {
		if v, ok := r.Fields[normalizeHeader(n)]; ok && v != "" {
			return v
		}
	}
	return ""
}

// StreamRows reads a headed CSV file and sends each data row on the
// returned channel. Header names are lower-cased with spaces and dashes
// folded to underscores. Both channels are closed when reading completes;
// at most one error is sent.
func StreamRows(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.Comment = opts.Comment
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		header, err := reader.Read()
		if err == io.EOF {
			return
		}
		if err != nil {
			errCh <- eris.Wrap(err, "csv: read header")
			return
		}
		for i, h := range header {
			header[i] = normalizeHeader(h)
		}

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
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
			line, _ := reader.FieldPos(0)

			row := Row{Line: line, Fields: make(map[string]string, len(header))}
			for i, v := range record {
				if i < len(header) {
					row.Fields[header[i]] = strings.TrimSpace(v)
				}
			}

			select {
			case rowCh <- row:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}
