package records

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/stats"
	"github.com/shopspring/decimal"
)

// RankQuery selects and orders students for Ranking.
type RankQuery struct {
	// Subject restricts averages and counts to one subject; empty means all.
	Subject string
	// Where is an optional boolean expression over name, average, count
	// and subject, e.g. `average >= 80 && count > 1`.
	Where string
	// Limit caps the number of entries; 0 means no cap.
	Limit int
}

// RankEntry is one ranked student.
type RankEntry struct {
	Rank    int             `json:"rank"`
	Name    string          `json:"name"`
	Average decimal.Decimal `json:"average"`
	Count   int             `json:"count"`
}

// rankEnv is the variable set visible to Where expressions.
type rankEnv struct {
	Name    string  `expr:"name"`
	Average float64 `expr:"average"`
	Count   int     `expr:"count"`
	Subject string  `expr:"subject"`
}

// CompileWhere checks a Where expression without running it.
func CompileWhere(where string) (*vm.Program, error) {
	program, err := expr.Compile(where, expr.Env(rankEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return program, nil
}

// Ranking orders students by average descending, then name ascending.
// Ranks are assigned before Where and Limit apply, so a filtered entry keeps
// its standing among all students.
func (s *Store) Ranking(_ context.Context, q RankQuery) ([]RankEntry, error) {
	if q.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", ErrInvalidQuery, q.Limit)
	}
	var program *vm.Program
	if strings.TrimSpace(q.Where) != "" {
		p, err := CompileWhere(q.Where)
		if err != nil {
			return nil, err
		}
		program = p
	}

	entries := s.rankAll(q.Subject)

	out := make([]RankEntry, 0, len(entries))
	for _, e := range entries {
		if program != nil {
			ok, err := expr.Run(program, rankEnv{
				Name:    e.Name,
				Average: e.Average.InexactFloat64(),
				Count:   e.Count,
				Subject: model.NormalizeSubject(q.Subject),
			})
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
			}
			if keep, _ := ok.(bool); !keep {
				continue
			}
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) rankAll(subject string) []RankEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]RankEntry, 0, len(s.order))
	for _, name := range s.order {
		values := s.students[name].Values(subject)
		entries = append(entries, RankEntry{
			Name:    name,
			Average: stats.Mean(values),
			Count:   len(values),
		})
	}
	slices.SortFunc(entries, func(a, b RankEntry) int {
		if c := b.Average.Cmp(a.Average); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
