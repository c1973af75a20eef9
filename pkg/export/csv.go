// Package export renders tabular data for download.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// Table is a header row plus records of the same width.
type Table struct {
	Columns []string
	Rows    [][]string
}

// WriteCSV streams t to w as RFC 4180 CSV.
func WriteCSV(w io.Writer, t Table) error {
	if len(t.Columns) == 0 {
		return errors.New("csv requires at least one column")
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("csv row %d has %d fields, want %d", i, len(row), len(t.Columns))
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
