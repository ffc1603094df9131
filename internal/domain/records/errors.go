package records

import (
	"errors"
	"fmt"

	"github.com/okian/gradebook/internal/domain/model"
)

// Sentinel error kinds. These allow errors.Is from callers.
var (
	ErrValidation = errors.New("validation failed")
	ErrDuplicate  = errors.New("student already exists")
	ErrNotFound   = errors.New("student not found")
)

// Validation details. Each one matches ErrValidation under errors.Is.
var (
	ErrEmptyName    = fmt.Errorf("%w: empty name", ErrValidation)
	ErrInvalidIndex = fmt.Errorf("%w: invalid index", ErrValidation)
	ErrInvalidQuery = fmt.Errorf("%w: invalid query", ErrValidation)

	ErrInvalidNumber = model.ErrInvalidNumber
	ErrOutOfRange    = model.ErrOutOfRange
	ErrEmptySubject  = model.ErrEmptySubject
	ErrInvalidText   = model.ErrInvalidText
)

func validation(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func notFound(name string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, model.Excerpt(name))
}
