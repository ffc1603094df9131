package records

import (
	"time"

	"github.com/okian/gradebook/internal/adapters/repository"
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithRepository sets where the store persists after each mutation.
func WithRepository(repo repository.Repository) Option {
	return func(s *Store) {
		if repo != nil {
			s.repo = repo
		}
	}
}

// PersistObserver is told how long each save took and whether it failed.
type PersistObserver func(elapsed time.Duration, err error)

// WithPersistObserver registers a callback invoked after every save.
func WithPersistObserver(fn PersistObserver) Option {
	return func(s *Store) {
		s.observe = fn
	}
}
