// Command gradebook-load drives a running gradebook server and verifies
// what it reports.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/gradebook/internal/loadtest"
	"github.com/okian/gradebook/pkg/logger"
)

// Default configuration constants.
const (
	defaultStudents         = 200
	defaultScoresPerStudent = 20
	defaultWorkers          = 2 // multiplier for runtime.NumCPU()
	defaultReplayEvery      = 10
	defaultTopN             = 50
	defaultTimeout          = 30 * time.Second
	defaultRunTimeout       = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		students    = flag.Int("students", defaultStudents, "Number of students to create")
		perStudent  = flag.Int("scores", defaultScoresPerStudent, "Scores recorded per student")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		replayEvery = flag.Int("replay-every", defaultReplayEvery, "Resend every Nth score with the same Idempotency-Key (0 disables)")
		topN        = flag.Int("top", defaultTopN, "Ranking entries to fetch and check")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile  = flag.String("output", "", "Write accepted scores as CSV for gradebook import")
		logFormat   = flag.String("log-format", "text", "Log format: text or json")
		verbose     = flag.Bool("verbose", false, "Log every rejected request")
	)
	flag.Parse()

	format, err := logger.ParseFormat(*logFormat)
	if err != nil {
		os.Stderr.WriteString("invalid log format: " + err.Error() + "\n")
		os.Exit(2)
	}
	if err := logger.Init(logger.WithFormat(format)); err != nil {
		os.Stderr.WriteString("failed to set up logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)

	config := &loadtest.Config{
		BaseURL:          *baseURL,
		Students:         *students,
		ScoresPerStudent: *perStudent,
		Workers:          *workers,
		ReplayEvery:      *replayEvery,
		TopN:             *topN,
		Timeout:          *timeout,
		OutputFile:       *outputFile,
		Verbose:          *verbose,
	}

	_, err = loadtest.Run(ctx, config)
	cancel()
	stop()
	if err != nil {
		logger.Get().Error(context.Background(), "load run failed", logger.Error(err))
		os.Exit(1)
	}
}
