package service

import (
	"context"
	"fmt"

	"github.com/okian/gradebook/internal/adapters/repository"
	"github.com/okian/gradebook/internal/config"
	"github.com/okian/gradebook/pkg/logger"
)

// NewRepository opens the backend named by cfg.StorageBackend.
func NewRepository(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	switch cfg.StorageBackend {
	case config.BackendFile:
		return repository.NewJSONFileRepository(cfg.DataFile,
			repository.WithFileLogger(logger.Named("repository"))), nil
	case config.BackendMemory:
		return repository.NewMemoryRepository(), nil
	case config.BackendPostgres:
		repo, err := repository.OpenPostgres(ctx, cfg.PostgresDSN, repository.WithDocumentID(cfg.DocumentID))
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage_backend %q", config.ErrInvalidConfig, cfg.StorageBackend)
	}
}
