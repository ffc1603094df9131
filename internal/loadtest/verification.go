package loadtest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/stats"
	"github.com/okian/gradebook/pkg/logger"
	"github.com/shopspring/decimal"
)

// expectedAverages computes each planned student's average over the
// scores the server accepted, formatted the way the server formats it.
func expectedAverages(plan Plan, accepted []bool) map[string]string {
	values := make(map[string][]decimal.Decimal, len(plan.Students))
	for i, sc := range plan.Scores {
		if accepted[i] {
			values[sc.Student] = append(values[sc.Student], sc.Value)
		}
	}
	out := make(map[string]string, len(plan.Students))
	for _, name := range plan.Students {
		out[name] = model.FormatValue(stats.Mean(values[name]))
	}
	return out
}

// verifyAverages checks GET /students/{name}/average for every planned
// student against the local computation.
func verifyAverages(ctx context.Context, client *HTTPClient, config *Config, plan Plan, accepted []bool, st *Stats) error {
	expected := expectedAverages(plan, accepted)
	for _, name := range plan.Students {
		want := expected[name]
		var resp averageResponse
		if err := client.getJSON(ctx, config.BaseURL+"/students/"+url.PathEscape(name)+"/average", &resp); err != nil {
			return fmt.Errorf("average of %s: %w", name, err)
		}
		if resp.Average != want {
			return fmt.Errorf("average of %s: got %s, want %s", name, resp.Average, want)
		}
		st.AveragesChecked++
	}
	logger.Get().Info(ctx, "averages verified", logger.Int("students", st.AveragesChecked))
	return nil
}

// verifyRanking checks that GET /ranking is ordered by average, then name,
// with consecutive ranks.
func verifyRanking(ctx context.Context, client *HTTPClient, config *Config, st *Stats) error {
	var entries []rankEntry
	if err := client.getJSON(ctx, config.BaseURL+"/ranking?limit="+strconv.Itoa(config.TopN), &entries); err != nil {
		return err
	}
	if len(entries) > config.TopN {
		return fmt.Errorf("ranking returned %d entries, limit was %d", len(entries), config.TopN)
	}

	var prev decimal.Decimal
	for i, e := range entries {
		avg, err := decimal.NewFromString(e.Average)
		if err != nil {
			return fmt.Errorf("ranking entry %d: %w", i, err)
		}
		if e.Rank != i+1 {
			return fmt.Errorf("ranking entry %d has rank %d", i, e.Rank)
		}
		if i > 0 && (avg.GreaterThan(prev) || (avg.Equal(prev) && e.Name < entries[i-1].Name)) {
			return fmt.Errorf("ranking not ordered at entry %d (%s)", i, e.Name)
		}
		prev = avg
	}
	st.RankingEntries = len(entries)

	top := make([]string, 0, min(len(entries), 5))
	for _, e := range entries[:min(len(entries), 5)] {
		top = append(top, e.Name+"="+e.Average)
	}
	logger.Get().Info(ctx, "ranking verified", logger.Int("entries", len(entries)), logger.Any("top", top))
	return nil
}
