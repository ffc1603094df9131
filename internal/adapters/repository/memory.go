package repository

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepository holds the encoded document in memory. It runs the same
// codec as the durable backends.
type MemoryRepository struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// NewMemoryRepositoryFrom seeds the repository with raw document bytes.
func NewMemoryRepositoryFrom(data []byte) *MemoryRepository {
	return &MemoryRepository{data: append([]byte(nil), data...)}
}

// Name implements Repository.
func (r *MemoryRepository) Name() string { return "memory" }

// Load implements Repository.
func (r *MemoryRepository) Load(_ context.Context) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data == nil {
		return Document{}, nil
	}
	return Decode(r.data)
}

// Save implements Repository.
func (r *MemoryRepository) Save(_ context.Context, doc Document) error {
	data, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrIO, err)
	}
	r.mu.Lock()
	r.data = data
	r.mu.Unlock()
	return nil
}

// Bytes returns a copy of the last saved document.
func (r *MemoryRepository) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.data...)
}

// Close implements Repository.
func (r *MemoryRepository) Close() error { return nil }

var _ Repository = (*MemoryRepository)(nil)
