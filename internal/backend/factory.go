package backend

import (
	"context"
	"fmt"

	"bilancio/internal/config"
	"bilancio/internal/ledger/memory"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

// DefaultFactory builds ledger stores from the application config
type DefaultFactory struct {
	config *config.Config
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(cfg *config.Config, logger *log.Logger) *DefaultFactory {
	return &DefaultFactory{
		config: cfg,
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

var _ Factory = (*DefaultFactory)(nil)

// CreateStore creates a ledger store for the given backend type
func (f *DefaultFactory) CreateStore(ctx context.Context, backendType Type) (*Result, error) {
	if !backendType.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", backendType)
	}

	switch backendType {
	case SQLiteBackend:
		return f.createSQLiteStore(ctx)
	case MemoryBackend:
		return f.createMemoryStore(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", backendType)
	}
}

func (f *DefaultFactory) createSQLiteStore(ctx context.Context) (*Result, error) {
	if f.config.SQLiteDBPath == "" {
		return nil, fmt.Errorf("sqlite backend requires a database path")
	}

	repo, err := storage.NewSQLiteRepository(f.config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize sqlite repository: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite store", "db_path", f.config.SQLiteDBPath)
	return &Result{Store: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createMemoryStore(ctx context.Context) (*Result, error) {
	f.logger.InfoContext(ctx, "Initialized in-memory store")
	return &Result{Store: memory.New()}, nil
}
