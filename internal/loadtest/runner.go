// Package loadtest drives a running gradebook server over HTTP: it creates
// students, records scores concurrently with idempotency keys, replays some
// of them and verifies averages and ranking against a local computation.
package loadtest

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/gradebook/internal/adapters/export"
	"github.com/okian/gradebook/internal/domain/records"
	"github.com/okian/gradebook/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
)

// Run executes the complete load run.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.TopN < 1 {
		config.TopN = 1
	}

	logger.Get().Info(ctx, "starting gradebook load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("students", config.Students),
		logger.Int("scoresPerStudent", config.ScoresPerStudent),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
	)
	client := newHTTPClient(config.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate the workload
	plan, err := generatePlan(ctx, config)
	if err != nil {
		return stats, fmt.Errorf("plan generation failed: %w", err)
	}

	// Step 3: Create students
	if err := createStudents(ctx, client, config, plan, stats); err != nil {
		return stats, fmt.Errorf("student creation failed: %w", err)
	}

	// Step 4: Submit scores concurrently
	accepted := submitScores(ctx, client, config, plan, stats)
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("score submission interrupted: %w", err)
	}

	// Step 5: Verify results
	if err := verifyAverages(ctx, client, config, plan, accepted, stats); err != nil {
		return stats, fmt.Errorf("average verification failed: %w", err)
	}
	if err := verifyRanking(ctx, client, config, stats); err != nil {
		return stats, fmt.Errorf("ranking verification failed: %w", err)
	}
	if stats.ReplayMismatches > 0 {
		return stats, fmt.Errorf("%d replayed scores were not acknowledged as duplicates", stats.ReplayMismatches)
	}

	// Step 6: Save the workload for `gradebook import`
	if config.OutputFile != "" {
		if err := savePlan(ctx, config.OutputFile, plan, accepted); err != nil {
			logger.Get().Warn(ctx, "failed to save plan", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, config *Config) error {
	status, _, err := client.Do(ctx, http.MethodGet, config.BaseURL+"/healthz", nil, "")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	// any 200 is healthy; the body is the metrics exposition
	if status != StatusOK {
		return fmt.Errorf("unexpected status %d", status)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// savePlan writes the accepted scores as CSV in the export layout.
func savePlan(ctx context.Context, filename string, plan Plan, accepted []bool) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	var rows iter.Seq[records.Row] = func(yield func(records.Row) bool) {
		for i, sc := range plan.Scores {
			if !accepted[i] {
				continue
			}
			if !yield(records.Row{Student: sc.Student, Subject: sc.Subject, Score: sc.Value}) {
				return
			}
		}
	}
	if err := export.WriteCSV(f, rows); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	logger.Get().Info(ctx, "plan saved", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, scoresPerSecond float64
	if stats.ScoresSubmitted > 0 {
		successRate = float64(stats.ScoresSuccessful) / float64(stats.ScoresSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		scoresPerSecond = float64(stats.ScoresSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("studentsCreated", stats.StudentsCreated),
		logger.Int("scoresSubmitted", stats.ScoresSubmitted),
		logger.Int("scoresSuccessful", stats.ScoresSuccessful),
		logger.Int("scoresFailed", stats.ScoresFailed),
		logger.Int("replayed", stats.Replayed),
		logger.Int("averagesChecked", stats.AveragesChecked),
		logger.Int("rankingEntries", stats.RankingEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("scoresPerSecond", scoresPerSecond),
	)
}
