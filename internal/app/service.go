// Package service provides the gradebook application service: it opens the
// configured repository, loads the record store and implements the
// dependencies required by the HTTP API and the command line.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/okian/gradebook/internal/adapters/export"
	"github.com/okian/gradebook/internal/adapters/mq/worker"
	"github.com/okian/gradebook/internal/adapters/repository"
	"github.com/okian/gradebook/internal/domain/dedupe"
	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/records"
	"github.com/okian/gradebook/internal/domain/stats"
	"github.com/okian/gradebook/pkg/logger"
	"github.com/okian/gradebook/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Corrupt document policies accepted by WithCorruptPolicy.
const (
	CorruptFail  = "fail"
	CorruptReset = "reset"
)

// Service implements the API dependencies for the gradebook.
type Service struct {
	mu sync.RWMutex

	store   *records.Store
	repo    repository.Repository
	deduper dedupe.Deduper

	// Configuration
	corruptPolicy       string
	idempotencyKeyLimit int
	importWorkers       int
	importQueueCapacity int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRepository sets the persistence backend.
func WithRepository(repo repository.Repository) Option {
	return func(s *Service) {
		if repo != nil {
			s.repo = repo
		}
	}
}

// WithCorruptPolicy decides what Open does with a corrupt document:
// CorruptFail returns the error, CorruptReset logs it and starts empty.
func WithCorruptPolicy(policy string) Option {
	return func(s *Service) {
		if policy == CorruptFail || policy == CorruptReset {
			s.corruptPolicy = policy
		}
	}
}

// WithIdempotencyKeyLimit sets how many Idempotency-Key values are
// remembered for replay detection.
func WithIdempotencyKeyLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.idempotencyKeyLimit = n
		}
	}
}

// WithImport sizes the worker pool used by Import.
func WithImport(workers, queueCapacity int) Option {
	return func(s *Service) {
		if workers > 0 {
			s.importWorkers = workers
		}
		if queueCapacity > 0 {
			s.importQueueCapacity = queueCapacity
		}
	}
}

// New constructs a new Service. Without WithRepository it keeps the
// document in memory.
func New(opts ...Option) *Service {
	s := &Service{
		corruptPolicy:       CorruptFail,
		idempotencyKeyLimit: 10_000,
		importWorkers:       4,
		importQueueCapacity: 256,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.repo == nil {
		s.repo = repository.NewMemoryRepository()
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.idempotencyKeyLimit))
	return s
}

// Open loads the document and makes the service ready. A missing document
// yields an empty gradebook.
func (s *Service) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	backend := s.repo.Name()
	opts := []records.Option{
		records.WithRepository(s.repo),
		records.WithPersistObserver(func(elapsed time.Duration, err error) {
			metrics.RecordPersist(backend, float64(elapsed.Microseconds())/1000, err != nil)
			if err != nil {
				metrics.RecordError("repository", "persist")
			}
		}),
	}

	store, err := records.Open(ctx, opts...)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrCorruptData) && s.corruptPolicy == CorruptReset:
		s.logger.Warn(ctx, "stored document is corrupt, starting empty",
			logger.String("backend", backend),
			logger.Error(err),
		)
		metrics.RecordError("repository", "corrupt")
		store = records.New(opts...)
	default:
		metrics.RecordError("repository", errorType(err))
		return fmt.Errorf("open %s repository: %w", backend, err)
	}

	s.store = store
	s.started = true

	size := store.Size(ctx)
	metrics.UpdateStoreSize(size.Students, size.Scores, size.Subjects)
	s.logger.Info(ctx, "gradebook opened",
		logger.String("backend", backend),
		logger.Int("students", size.Students),
		logger.Int("scores", size.Scores),
		logger.Int("subjects", size.Subjects),
	)
	return nil
}

// Close releases the repository.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started = false
	s.store = nil
	return s.repo.Close()
}

// Backend names the persistence backend.
func (s *Service) Backend() string {
	return s.repo.Name()
}

func (s *Service) current() (*records.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotOpen
	}
	return s.store, nil
}

// observe logs and counts one operation.
func (s *Service) observe(ctx context.Context, op string, err error, fields ...logger.Field) {
	fields = append(fields, logger.String("operation", op))
	if err != nil {
		metrics.RecordOperation(op, metrics.ResultError)
		metrics.RecordError("store", errorType(err))
		fields = append(fields, logger.Error(err))
		if errors.Is(err, repository.ErrIO) {
			s.log().Error(ctx, "operation failed", fields...)
		} else {
			s.log().Warn(ctx, "operation rejected", fields...)
		}
		return
	}
	metrics.RecordOperation(op, metrics.ResultOK)
	s.log().Info(ctx, "operation applied", fields...)
}

func (s *Service) log() logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.logger == nil {
		return logger.Nop()
	}
	return s.logger
}

func (s *Service) refreshGauges(ctx context.Context, st *records.Store) {
	size := st.Size(ctx)
	metrics.UpdateStoreSize(size.Students, size.Scores, size.Subjects)
}

// AddStudent registers a student.
func (s *Service) AddStudent(ctx context.Context, name string) error {
	st, err := s.current()
	if err == nil {
		err = st.AddStudent(ctx, name)
	}
	s.observe(ctx, "add_student", err, logger.String("student", name))
	if err == nil {
		s.refreshGauges(ctx, st)
	}
	return err
}

// RemoveStudent deletes a student and their scores.
func (s *Service) RemoveStudent(ctx context.Context, name string) error {
	st, err := s.current()
	if err == nil {
		err = st.RemoveStudent(ctx, name)
	}
	s.observe(ctx, "remove_student", err, logger.String("student", name))
	if err == nil {
		s.refreshGauges(ctx, st)
	}
	return err
}

// RecordScore appends a score to a student.
func (s *Service) RecordScore(ctx context.Context, name, subject, raw string) (model.Score, error) {
	st, err := s.current()
	var sc model.Score
	if err == nil {
		sc, err = st.RecordScore(ctx, name, subject, raw)
	}
	s.observe(ctx, "record_score", err,
		logger.String("student", name),
		logger.String("subject", subject),
		logger.String("value", raw),
	)
	if err == nil {
		s.refreshGauges(ctx, st)
	}
	return sc, err
}

// RemoveScore deletes the score at index from a student.
func (s *Service) RemoveScore(ctx context.Context, name string, index int) error {
	st, err := s.current()
	if err == nil {
		err = st.RemoveScore(ctx, name, index)
	}
	s.observe(ctx, "remove_score", err, logger.String("student", name), logger.Int("index", index))
	if err == nil {
		s.refreshGauges(ctx, st)
	}
	return err
}

// Average returns a student's average, optionally for one subject.
func (s *Service) Average(ctx context.Context, name, subject string) (decimal.Decimal, error) {
	st, err := s.current()
	if err != nil {
		return decimal.Zero, err
	}
	avg, err := st.Average(ctx, name, subject)
	metrics.RecordOperation("average", result(err))
	return avg, err
}

// AllAverages returns every student's average.
func (s *Service) AllAverages(ctx context.Context, subject string) (map[string]decimal.Decimal, error) {
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	metrics.RecordOperation("all_averages", metrics.ResultOK)
	return st.AllAverages(ctx, subject), nil
}

// Statistics summarizes every matching score.
func (s *Service) Statistics(ctx context.Context, subject string) (stats.Summary, error) {
	st, err := s.current()
	if err != nil {
		return stats.Summary{}, err
	}
	metrics.RecordOperation("statistics", metrics.ResultOK)
	return st.Statistics(ctx, subject), nil
}

// Students lists student names in insertion order.
func (s *Service) Students(ctx context.Context) ([]string, error) {
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	return st.Students(ctx), nil
}

// Subjects lists every subject ever recorded.
func (s *Service) Subjects(ctx context.Context) ([]string, error) {
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	return st.Subjects(ctx), nil
}

// Student returns a copy of one student.
func (s *Service) Student(ctx context.Context, name string) (model.Student, error) {
	st, err := s.current()
	if err != nil {
		return model.Student{}, err
	}
	return st.Student(ctx, name)
}

// Ranking orders students by average.
func (s *Service) Ranking(ctx context.Context, q records.RankQuery) ([]records.RankEntry, error) {
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	entries, err := st.Ranking(ctx, q)
	metrics.RecordOperation("ranking", result(err))
	return entries, err
}

// ExportRows yields one row per recorded score.
func (s *Service) ExportRows(ctx context.Context) (iter.Seq[records.Row], error) {
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	metrics.RecordOperation("export", metrics.ResultOK)
	return st.ExportRows(ctx), nil
}

// Import applies the scores of a CSV document in the export layout. Rows
// are applied through the worker pool; rejected rows are listed in the
// report. With createMissing, unknown students are registered first.
func (s *Service) Import(ctx context.Context, r io.Reader, createMissing bool) (worker.Report, error) {
	if _, err := s.current(); err != nil {
		return worker.Report{}, err
	}
	report, err := worker.Import(ctx, s, export.ReadCSV(r),
		worker.WithWorkers(s.importWorkers),
		worker.WithQueueCapacity(s.importQueueCapacity),
		worker.WithAutoCreate(createMissing),
		worker.WithPoolLogger(s.log()),
	)
	metrics.RecordOperation("import", result(err))
	if err != nil {
		s.log().Warn(ctx, "import stopped", logger.Int("applied", report.Applied), logger.Error(err))
		return report, fmt.Errorf("import: %w", err)
	}
	return report, nil
}

// SeenAndRecord reports whether an idempotency key was already used and
// records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, key string) bool {
	seen := s.deduper.SeenAndRecord(ctx, key)
	if seen {
		metrics.RecordIdempotentReplay()
	}
	return seen
}

// Unrecord forgets an idempotency key whose request failed.
func (s *Service) Unrecord(ctx context.Context, key string) {
	s.deduper.Unrecord(ctx, key)
}

// Size returns the number of remembered idempotency keys.
func (s *Service) Size() int64 {
	return s.deduper.Size()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]interface{}{
		"started":          s.started,
		"backend":          s.repo.Name(),
		"idempotency_keys": s.deduper.Size(),
	}
	if s.started {
		size := s.store.Size(context.Background())
		out["students"] = size.Students
		out["scores"] = size.Scores
		out["subjects"] = size.Subjects
		metrics.UpdateStoreSize(size.Students, size.Scores, size.Subjects)
	}
	return out
}

func result(err error) string {
	if err != nil {
		return metrics.ResultError
	}
	return metrics.ResultOK
}

// errorType maps an error to a low-cardinality metric label.
func errorType(err error) string {
	switch {
	case errors.Is(err, records.ErrValidation):
		return "validation"
	case errors.Is(err, records.ErrNotFound):
		return "not_found"
	case errors.Is(err, records.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, repository.ErrIO):
		return "io"
	case errors.Is(err, repository.ErrCorruptData):
		return "corrupt"
	case errors.Is(err, ErrNotOpen):
		return "not_open"
	default:
		return "internal"
	}
}
