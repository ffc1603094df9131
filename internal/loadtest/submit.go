package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/pkg/logger"
)

// createStudents registers every planned student.
func createStudents(ctx context.Context, client *HTTPClient, config *Config, plan Plan, stats *Stats) error {
	endpoint := config.BaseURL + "/students"
	for _, name := range plan.Students {
		status, body, err := client.Do(ctx, http.MethodPost, endpoint, map[string]string{"name": name}, "")
		if err != nil {
			return err
		}
		if status != StatusCreated {
			return fmt.Errorf("create %s: status %d: %s", name, status, body)
		}
		stats.StudentsCreated++
	}
	logger.Get().Info(ctx, "students created", logger.Int("count", stats.StudentsCreated))
	return nil
}

// submitScores posts every planned score with its own Idempotency-Key using
// a pool of workers. Every ReplayEvery-th accepted score is sent again with
// the same key and must be acknowledged as a duplicate. The returned slice
// marks which scores the server accepted.
func submitScores(ctx context.Context, client *HTTPClient, config *Config, plan Plan, stats *Stats) []bool {
	log := logger.Get()
	log.Info(ctx, "submitting scores", logger.Int("scores", len(plan.Scores)), logger.Int("workers", config.Workers))

	accepted := make([]bool, len(plan.Scores))
	var (
		submitted  int64
		successful int64
		failed     int64
		replayed   int64
		mismatches int64
	)

	indexChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for range config.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexChan {
				if ctx.Err() != nil {
					return
				}
				sc := plan.Scores[i]
				err := postScore(ctx, client, config.BaseURL, sc)
				atomic.AddInt64(&submitted, 1)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						log.Warn(ctx, "score rejected", logger.String("student", sc.Student), logger.Error(err))
					}
					continue
				}
				accepted[i] = true
				atomic.AddInt64(&successful, 1)

				if config.ReplayEvery > 0 && i%config.ReplayEvery == 0 {
					atomic.AddInt64(&replayed, 1)
					if err := replayScore(ctx, client, config.BaseURL, sc); err != nil {
						atomic.AddInt64(&mismatches, 1)
						log.Warn(ctx, "replay was applied again", logger.String("key", sc.Key), logger.Error(err))
					}
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				log.Info(ctx, "progress",
					logger.Int("submitted", int(atomic.LoadInt64(&submitted))),
					logger.Int("total", len(plan.Scores)),
				)
			}
		}
	}()

	go func() {
		defer close(indexChan)
		for i := range plan.Scores {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()
	close(done)

	stats.ScoresSubmitted = int(submitted)
	stats.ScoresSuccessful = int(successful)
	stats.ScoresFailed = int(failed)
	stats.Replayed = int(replayed)
	stats.ReplayMismatches = int(mismatches)

	log.Info(ctx, "score submission completed",
		logger.Int("successful", stats.ScoresSuccessful),
		logger.Int("failed", stats.ScoresFailed),
		logger.Int("replayed", stats.Replayed),
	)
	return accepted
}

func scoreURL(base, student string) string {
	return base + "/students/" + url.PathEscape(student) + "/scores"
}

func postScore(ctx context.Context, client *HTTPClient, base string, sc PlannedScore) error {
	body := map[string]string{"subject": sc.Subject, "score": model.FormatValue(sc.Value)}
	status, data, err := client.Do(ctx, http.MethodPost, scoreURL(base, sc.Student), body, sc.Key)
	if err != nil {
		return err
	}
	if status != StatusCreated {
		return fmt.Errorf("status %d: %s", status, data)
	}
	return nil
}

func replayScore(ctx context.Context, client *HTTPClient, base string, sc PlannedScore) error {
	body := map[string]string{"subject": sc.Subject, "score": model.FormatValue(sc.Value)}
	status, data, err := client.Do(ctx, http.MethodPost, scoreURL(base, sc.Student), body, sc.Key)
	if err != nil {
		return err
	}
	var ack ackResponse
	if status != StatusOK || json.Unmarshal(data, &ack) != nil || !ack.Duplicate {
		return fmt.Errorf("status %d: %s", status, data)
	}
	return nil
}
