package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/okian/gradebook/pkg/logger"
)

// Default file settings.
const (
	defaultFileMode os.FileMode = 0o644
	dirMode         os.FileMode = 0o755
)

// JSONFileRepository keeps the document in a single JSON file. Saves go
// through a temporary file and a rename, so a reader sees either the old or
// the new document, never a partial one.
type JSONFileRepository struct {
	path      string
	mode      os.FileMode
	syncDir   bool
	dirSyncer func(dir string) error
	logger    logger.Logger
}

// NewJSONFileRepository returns a repository backed by the file at path.
func NewJSONFileRepository(path string, opts ...FileOption) *JSONFileRepository {
	r := &JSONFileRepository{
		path:      path,
		mode:      defaultFileMode,
		syncDir:   true,
		dirSyncer: fsyncDir,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the document location.
func (r *JSONFileRepository) Path() string { return r.path }

// Name implements Repository.
func (r *JSONFileRepository) Name() string { return "file" }

// Load implements Repository.
func (r *JSONFileRepository) Load(_ context.Context) (Document, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("%w: read %s: %w", ErrCorruptData, r.path, err)
	}
	return Decode(data)
}

// Save implements Repository.
func (r *JSONFileRepository) Save(_ context.Context, doc Document) error {
	data, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrIO, err)
	}
	if err := r.writeAtomic(data); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, r.path, err)
	}
	return nil
}

// Close implements Repository.
func (r *JSONFileRepository) Close() error { return nil }

func (r *JSONFileRepository) writeAtomic(data []byte) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(r.mode); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return err
	}
	committed = true

	// The document is in place; a failed directory sync is logged, not returned.
	if r.syncDir {
		if err := r.dirSyncer(dir); err != nil {
			r.logger.Warn(context.Background(), "directory sync failed after save",
				logger.String("path", r.path), logger.Error(err))
		}
	}
	return nil
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

var _ Repository = (*JSONFileRepository)(nil)
