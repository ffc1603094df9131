package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/okian/gradebook/internal/domain/model"
)

// ReadCSV yields the score entries of a file in the WriteCSV layout. The
// header row is required. Values are passed through unvalidated; a syntax
// error is yielded once and ends the sequence.
func ReadCSV(r io.Reader) iter.Seq2[model.ScoreEntry, error] {
	return func(yield func(model.ScoreEntry, error) bool) {
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = len(Header)
		cr.TrimLeadingSpace = true

		head, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(model.ScoreEntry{}, fmt.Errorf("%w: %w", ErrMalformed, err))
			return
		}
		for i, name := range Header {
			if !strings.EqualFold(strings.TrimSpace(head[i]), name) {
				yield(model.ScoreEntry{}, fmt.Errorf("%w: %q", ErrBadHeader, strings.Join(head, ",")))
				return
			}
		}

		for {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(model.ScoreEntry{}, fmt.Errorf("%w: %w", ErrMalformed, err))
				return
			}
			line, _ := cr.FieldPos(0)
			entry := model.ScoreEntry{Line: line, Student: rec[0], Subject: rec[1], Score: rec[2]}
			if !yield(entry, nil) {
				return
			}
		}
	}
}
