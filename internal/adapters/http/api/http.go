// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"

	"github.com/okian/gradebook/internal/adapters/export"
	"github.com/okian/gradebook/internal/adapters/mq/worker"
	"github.com/okian/gradebook/internal/adapters/repository"
	"github.com/okian/gradebook/internal/domain/dedupe"
	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/records"
	"github.com/okian/gradebook/internal/domain/stats"
	"github.com/shopspring/decimal"
)

// StudentDependencies covers the per-student operations.
type StudentDependencies interface {
	Students(ctx context.Context) ([]string, error)
	Student(ctx context.Context, name string) (model.Student, error)
	AddStudent(ctx context.Context, name string) error
	RemoveStudent(ctx context.Context, name string) error
	RecordScore(ctx context.Context, name, subject, raw string) (model.Score, error)
	RemoveScore(ctx context.Context, name string, index int) error
	Average(ctx context.Context, name, subject string) (decimal.Decimal, error)
}

// ReportDependencies covers the store-wide read operations.
type ReportDependencies interface {
	AllAverages(ctx context.Context, subject string) (map[string]decimal.Decimal, error)
	Statistics(ctx context.Context, subject string) (stats.Summary, error)
	Subjects(ctx context.Context) ([]string, error)
	Ranking(ctx context.Context, q records.RankQuery) ([]records.RankEntry, error)
	ExportRows(ctx context.Context) (iter.Seq[records.Row], error)
}

// ImportDependencies applies a CSV document of scores.
type ImportDependencies interface {
	Import(ctx context.Context, r io.Reader, createMissing bool) (worker.Report, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper
	StudentDependencies
	ReportDependencies
	ImportDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	deduper         dedupe.Deduper
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	studentsHandler *StudentsHandler
	reportsHandler  *ReportsHandler
	rankHandler     *RankHandler
	importHandler   *ImportHandler
}

// NewServer creates a new API server with all handlers. maxRankingLimit
// caps GET /ranking?limit.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxRankingLimit int) *Server {
	return &Server{
		deduper:         deps,
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		studentsHandler: NewStudentsHandler(deps),
		reportsHandler:  NewReportsHandler(deps),
		rankHandler:     NewRankHandler(deps, maxRankingLimit),
		importHandler:   NewImportHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, RequestIDMiddleware(MetricsMiddleware(h, endpoint)))
	}
	// mutating routes honour Idempotency-Key
	mutate := func(pattern, endpoint string, h http.HandlerFunc) {
		route(pattern, endpoint, IdempotencyMiddleware(s.deduper, h))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	route("GET /students", "students", s.studentsHandler.HandleList)
	mutate("POST /students", "students", s.studentsHandler.HandleAdd)
	route("GET /students/{name}", "student", s.studentsHandler.HandleGet)
	mutate("DELETE /students/{name}", "student", s.studentsHandler.HandleRemove)
	mutate("POST /students/{name}/scores", "scores", s.studentsHandler.HandleRecordScore)
	mutate("DELETE /students/{name}/scores/{index}", "scores", s.studentsHandler.HandleRemoveScore)
	route("GET /students/{name}/average", "average", s.studentsHandler.HandleAverage)

	route("GET /averages", "averages", s.reportsHandler.HandleAverages)
	route("GET /statistics", "statistics", s.reportsHandler.HandleStatistics)
	route("GET /subjects", "subjects", s.reportsHandler.HandleSubjects)
	route("GET /export.csv", "export", s.reportsHandler.HandleExport)
	route("GET /ranking", "ranking", s.rankHandler.HandleGetRanking)
	mutate("POST /import", "import", s.importHandler.HandleImport)
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates store and repository errors to a status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, records.ErrValidation),
		errors.Is(err, export.ErrMalformed), errors.Is(err, export.ErrBadHeader):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, records.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, records.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate", err)
	case errors.Is(err, repository.ErrIO):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// decodeBody reads a JSON request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
