package loadtest

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/okian/gradebook/pkg/logger"
	"github.com/shopspring/decimal"
)

// maxHundredths is 100.00 expressed in hundredths.
const maxHundredths = 10_000

//nolint:gochecknoglobals // fixed subject pool
var subjects = []string{"math", "science", "history", "art", "music"}

// randomInt returns a uniform value in [0, n) using crypto/rand.
func randomInt(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0
	}
	return v.Int64()
}

// randomScore returns a score in [0, 100] with two decimal places.
func randomScore() decimal.Decimal {
	return decimal.New(randomInt(maxHundredths+1), -2)
}

// generatePlan creates uniquely named students and their scores. Names
// carry a run prefix so repeated runs against one server do not collide.
func generatePlan(ctx context.Context, config *Config) (Plan, error) {
	if config.Students < 1 || config.ScoresPerStudent < 1 {
		return Plan{}, errors.New("students and scores per student must be positive")
	}

	run := uuid.NewString()[:8]
	plan := Plan{
		Students: make([]string, config.Students),
		Scores:   make([]PlannedScore, 0, config.Students*config.ScoresPerStudent),
	}
	for i := range config.Students {
		plan.Students[i] = fmt.Sprintf("load-%s-%04d", run, i)
	}
	// interleave students so concurrent submitters touch many of them
	for range config.ScoresPerStudent {
		for _, name := range plan.Students {
			if err := ctx.Err(); err != nil {
				return Plan{}, fmt.Errorf("context cancelled during generation: %w", err)
			}
			plan.Scores = append(plan.Scores, PlannedScore{
				Key:     uuid.NewString(),
				Student: name,
				Subject: subjects[len(plan.Scores)%len(subjects)],
				Value:   randomScore(),
			})
		}
	}

	logger.Get().Info(ctx, "generated plan",
		logger.String("run", run),
		logger.Int("students", len(plan.Students)),
		logger.Int("scores", len(plan.Scores)),
	)
	return plan, nil
}
