package repository

import (
	"os"

	"github.com/okian/gradebook/pkg/logger"
)

// FileOption applies a configuration option to the JSONFileRepository.
type FileOption func(*JSONFileRepository)

// WithFileMode sets the permission bits of the written document.
func WithFileMode(mode os.FileMode) FileOption {
	return func(r *JSONFileRepository) {
		if mode != 0 {
			r.mode = mode
		}
	}
}

// WithDirSync toggles fsync of the parent directory after the rename.
func WithDirSync(enabled bool) FileOption {
	return func(r *JSONFileRepository) {
		r.syncDir = enabled
	}
}

// WithDirSyncer replaces the parent directory sync run after the rename.
func WithDirSyncer(fn func(dir string) error) FileOption {
	return func(r *JSONFileRepository) {
		if fn != nil {
			r.dirSyncer = fn
		}
	}
}

// WithFileLogger sets the logger for problems that do not fail a save.
func WithFileLogger(l logger.Logger) FileOption {
	return func(r *JSONFileRepository) {
		if l != nil {
			r.logger = l
		}
	}
}

// PostgresOption applies a configuration option to the PostgresRepository.
type PostgresOption func(*PostgresRepository)

// WithDocumentID selects the row holding the document. Several gradebooks
// can share one table under different ids.
func WithDocumentID(id string) PostgresOption {
	return func(r *PostgresRepository) {
		if id != "" {
			r.documentID = id
		}
	}
}

// WithTable overrides the table name.
func WithTable(table string) PostgresOption {
	return func(r *PostgresRepository) {
		if table != "" {
			r.table = table
		}
	}
}
