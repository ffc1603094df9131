// Package worker applies imported score entries with a pool of workers.
package worker

import (
	"github.com/okian/gradebook/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithCreateMissing makes the worker register unknown students instead of
// rejecting their entries.
func WithCreateMissing(create bool) Option {
	return func(w *InMemoryWorker) {
		w.createMissing = create
	}
}

// WithReporter receives the outcome of every processed entry.
func WithReporter(fn func(Entry, error)) Option {
	return func(w *InMemoryWorker) {
		if fn != nil {
			w.report = fn
		}
	}
}

// PoolOption applies a configuration option to the Pool.
type PoolOption func(*Pool)

// WithWorkers sets the number of workers, one queue each.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workerCount = n
		}
	}
}

// WithQueueCapacity sets the capacity of every worker queue.
func WithQueueCapacity(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.queueCapacity = n
		}
	}
}

// WithAutoCreate registers unknown students while importing.
func WithAutoCreate(create bool) PoolOption {
	return func(p *Pool) {
		p.autoCreate = create
	}
}

// WithPoolLogger sets a custom logger for the pool and its workers.
func WithPoolLogger(l logger.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}
