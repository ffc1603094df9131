// Package queue buffers score entries waiting to be applied.
//
// An import partitions its entries over several queues, one per worker, so
// the entries of one student always travel through the same queue in order.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Entry is the payload flowing through the queue.
type Entry = model.ScoreEntry

// Queue provides blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an entry, waiting for room while the queue is full.
	Enqueue(ctx context.Context, e Entry) error

	// Dequeue returns a channel that receives entries in enqueue order.
	// The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Entry

	// Len returns the current number of queued entries.
	Len(ctx context.Context) int

	// Close stops accepting entries. Entries already queued are still
	// delivered.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	entries  chan Entry
	capacity int
	name     string

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		name:     "import",
	}
	for _, opt := range opts {
		opt(q)
	}
	q.entries = make(chan Entry, q.capacity)
	metrics.UpdateQueueDepth(q.name, 0)
	return q
}

// Enqueue adds an entry to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Entry) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordError("queue", "closed")
		return ErrClosed
	}

	select {
	case q.entries <- e:
		metrics.UpdateQueueDepth(q.name, len(q.entries))
		return nil
	case <-ctx.Done():
		metrics.RecordError("queue", "context_cancelled")
		return fmt.Errorf("enqueue line %d: %w", e.Line, ctx.Err())
	}
}

// Dequeue returns a channel that will receive entries as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Entry {
	out := make(chan Entry)
	go func() {
		defer close(out)
		for e := range q.entries {
			select {
			case out <- e:
				metrics.UpdateQueueDepth(q.name, len(q.entries))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued entries.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.entries)
}

// Close stops the queue. It waits for in-flight Enqueue calls to return.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.entries)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
