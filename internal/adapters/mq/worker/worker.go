// Package worker applies imported score entries with a pool of workers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/okian/gradebook/internal/adapters/mq/queue"
	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/records"
	"github.com/okian/gradebook/pkg/logger"
	"github.com/okian/gradebook/pkg/metrics"
)

// Default pool configuration constants.
const (
	defaultWorkerCount   = 4
	defaultQueueCapacity = 256
)

// Entry is what workers read off their queue.
type Entry = queue.Entry

// Recorder applies scores to the gradebook.
type Recorder interface {
	AddStudent(ctx context.Context, name string) error
	RecordScore(ctx context.Context, name, subject, raw string) (model.Score, error)
}

// Queue defines how workers receive entries.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Entry
}

// Worker applies entries using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or its queue drains.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining its queue.
	Shutdown(ctx context.Context) error
}

// Failure describes one rejected entry.
type Failure struct {
	Line    int
	Student string
	Err     error
}

// Report summarizes an import.
type Report struct {
	Applied  int
	Failures []Failure
}

// InMemoryWorker implements Worker for applying entries.
type InMemoryWorker struct {
	queue         Queue
	recorder      Recorder
	name          string
	createMissing bool
	report        func(Entry, error)

	// Shutdown control
	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		recorder: recorder,
		name:     "worker",
		report:   func(Entry, error) {},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get()
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	entries := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-entries:
			if !ok {
				return
			}
			w.report(e, w.processEntry(ctx, e))
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processEntry applies a single entry.
func (w *InMemoryWorker) processEntry(ctx context.Context, e Entry) error {
	_, err := w.recorder.RecordScore(ctx, e.Student, e.Subject, e.Score)
	if errors.Is(err, records.ErrNotFound) && w.createMissing {
		if addErr := w.recorder.AddStudent(ctx, e.Student); addErr != nil && !errors.Is(addErr, records.ErrDuplicate) {
			err = addErr
		} else {
			_, err = w.recorder.RecordScore(ctx, e.Student, e.Subject, e.Score)
		}
	}
	if err != nil {
		metrics.RecordImportEntry(metrics.ResultError)
		w.logger.Warn(ctx, "entry rejected",
			logger.Int("line", e.Line),
			logger.String("student", e.Student),
			logger.Error(err),
		)
		return fmt.Errorf("line %d: %w", e.Line, err)
	}
	metrics.RecordImportEntry(metrics.ResultOK)
	return nil
}

// Pool manages several workers, each draining its own queue. Entries are
// partitioned by student so one student's scores keep their source order.
type Pool struct {
	workers []*InMemoryWorker
	queues  []*queue.InMemoryQueue

	workerCount   int
	queueCapacity int
	autoCreate    bool

	mu     sync.Mutex
	result Report

	logger logger.Logger
}

// NewPool creates a new worker pool over recorder.
func NewPool(recorder Recorder, opts ...PoolOption) *Pool {
	p := &Pool{
		workerCount:   defaultWorkerCount,
		queueCapacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get()
	}

	p.workers = make([]*InMemoryWorker, p.workerCount)
	p.queues = make([]*queue.InMemoryQueue, p.workerCount)
	for i := range p.workerCount {
		name := "import-" + strconv.Itoa(i)
		p.queues[i] = queue.NewInMemoryQueue(queue.WithCapacity(p.queueCapacity), queue.WithName(name))
		p.workers[i] = NewInMemoryWorker(
			p.queues[i],
			recorder,
			WithName(name),
			WithLogger(p.logger),
			WithCreateMissing(p.autoCreate),
			WithReporter(p.record),
		)
	}
	return p
}

func (p *Pool) record(e Entry, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.result.Failures = append(p.result.Failures, Failure{Line: e.Line, Student: e.Student, Err: err})
		return
	}
	p.result.Applied++
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Submit routes an entry to the queue owning its student.
func (p *Pool) Submit(ctx context.Context, e Entry) error {
	slot := xxhash.Sum64String(model.NormalizeName(e.Student)) % uint64(len(p.queues))
	if err := p.queues[slot].Enqueue(ctx, e); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return nil
}

// Shutdown closes every queue, waits for the workers to drain them and
// returns the report. Failures are ordered by line.
func (p *Pool) Shutdown(ctx context.Context) (Report, error) {
	for _, q := range p.queues {
		if err := q.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	var err error
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			err = fmt.Errorf("drain import queues: %w", ctx.Err())
		}
		if err != nil {
			break
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	out := Report{Applied: p.result.Applied, Failures: slices.Clone(p.result.Failures)}
	slices.SortFunc(out.Failures, func(a, b Failure) int { return a.Line - b.Line })
	return out, err
}

// Import feeds entries through a fresh pool and returns once every
// submitted entry has been applied or rejected. A source error stops the
// import early; entries submitted before it stay applied.
func Import(ctx context.Context, recorder Recorder, entries iter.Seq2[Entry, error], opts ...PoolOption) (Report, error) {
	p := NewPool(recorder, opts...)
	p.Start(ctx)

	var srcErr error
	for e, err := range entries {
		if err == nil {
			err = p.Submit(ctx, e)
		}
		if err != nil {
			srcErr = err
			break
		}
	}

	report, err := p.Shutdown(ctx)
	p.logger.Info(ctx, "import finished",
		logger.Int("applied", report.Applied),
		logger.Int("rejected", len(report.Failures)),
	)
	if srcErr != nil {
		return report, srcErr
	}
	return report, err
}
