// Package export reads and writes recorded scores as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"

	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/records"
)

// Header is the first CSV row.
var Header = []string{"Student", "Subject", "Score"}

// WriteCSV writes the header followed by one line per row.
func WriteCSV(w io.Writer, rows iter.Seq[records.Row]) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for row := range rows {
		if err := cw.Write([]string{row.Student, row.Subject, model.FormatValue(row.Score)}); err != nil {
			return fmt.Errorf("write csv row for %q: %w", row.Student, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
