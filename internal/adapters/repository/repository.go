// Package repository persists the gradebook document and defines the
// backends that can hold it.
package repository

import (
	"context"

	"github.com/okian/gradebook/internal/domain/model"
)

// Document is the full persisted state: students in insertion order with
// their ordered scores, and every subject ever recorded.
type Document struct {
	Students []model.Student
	Subjects []string
}

// Repository loads and saves the gradebook document.
type Repository interface {
	// Load returns the stored document. A missing document yields an empty
	// Document and no error; an existing but unreadable or malformed one
	// yields ErrCorruptData.
	Load(ctx context.Context) (Document, error)

	// Save replaces the stored document. A failed Save leaves the previous
	// document intact and returns ErrIO; once the new document is in place
	// Save reports success.
	Save(ctx context.Context, doc Document) error

	// Name identifies the backend in logs and metrics.
	Name() string

	Close() error
}
