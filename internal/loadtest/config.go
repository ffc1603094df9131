package loadtest

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL          string        // Base URL of the service
	Students         int           // Number of students to create
	ScoresPerStudent int           // Scores recorded for each student
	Workers          int           // Number of concurrent submitters
	ReplayEvery      int           // Resend every Nth score with its key; 0 disables
	TopN             int           // Ranking entries to fetch and check
	Timeout          time.Duration // HTTP request timeout
	OutputFile       string        // CSV file for the generated scores; empty skips
	Verbose          bool          // Log every failed request
}

// PlannedScore is one score the run will record.
type PlannedScore struct {
	Key     string // Idempotency-Key sent with the request
	Student string
	Subject string
	Value   decimal.Decimal
}

// Plan is the generated workload.
type Plan struct {
	Students []string
	Scores   []PlannedScore
}

// Stats holds run statistics.
type Stats struct {
	StudentsCreated  int
	ScoresSubmitted  int
	ScoresSuccessful int
	ScoresFailed     int
	Replayed         int
	ReplayMismatches int
	AveragesChecked  int
	RankingEntries   int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type averageResponse struct {
	Name    string `json:"name"`
	Average string `json:"average"`
}

type rankEntry struct {
	Rank    int    `json:"rank"`
	Name    string `json:"name"`
	Average string `json:"average"`
	Count   int    `json:"count"`
}
