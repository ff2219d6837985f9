// Package app wires configuration, storage and the cache store into the
// history lifecycle used by the command line tools.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bullbot/history/internal/cache"
	"github.com/bullbot/history/internal/config"
	herrors "github.com/bullbot/history/internal/errors"
	"github.com/bullbot/history/internal/history"
	"github.com/bullbot/history/internal/normalize"
	"github.com/bullbot/history/internal/observability"
	"github.com/bullbot/history/internal/storage"
)

// App owns the storage backend and cache store shared by every history
// built in one process run.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// Shared resources
	storage storage.ObjectStorage
	store   *cache.Store
	stats   *observability.CacheStats
	closers []io.Closer

	// Lifecycle
	mu      sync.Mutex
	running bool
}

// New creates a new App with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Resolve paths and validate
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, herrors.Wrap(herrors.ErrCategoryValidation, herrors.CodeInvalidConfig, "invalid configuration", err)
	}

	// Ensure directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &App{
		cfg:    cfg,
		logger: logger,
		stats:  observability.NewCacheStats(),
	}, nil
}

// Start opens the storage backend and the cache store.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return fmt.Errorf("app is already running")
	}

	backend, closer, err := OpenStorage(ctx, a.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	a.storage = backend
	a.logger.Info("storage initialized", "type", a.cfg.Storage.Type)
	if a.cfg.Storage.Type == config.StorageS3 {
		a.logger.Info("s3 config",
			"bucket", a.cfg.Storage.S3.Bucket, "region", a.cfg.Storage.S3.Region, "endpoint", a.cfg.Storage.S3.Endpoint)
	}

	a.store = cache.NewStore(backend,
		cache.WithLogger(a.logger),
		cache.WithPrefix(a.cfg.Cache.Prefix),
		cache.WithStats(a.stats),
	)
	a.running = true
	return nil
}

// OpenStorage creates the backend named by cfg. The returned closer is
// non-nil for backends holding resources.
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStorage, io.Closer, error) {
	switch cfg.Type {
	case config.StorageLocal:
		local, err := storage.NewLocalStorage(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return local, nil, nil
	case config.StorageS3:
		s3Cfg := storage.DefaultS3Config()
		if cfg.S3.Region != "" {
			s3Cfg.Region = cfg.S3.Region
		}
		if cfg.S3.Endpoint != "" {
			s3Cfg.Endpoint = cfg.S3.Endpoint
		}
		s3Cfg.UsePathStyle = cfg.S3.UsePathStyle
		s3, err := storage.NewS3Storage(ctx, cfg.S3.Bucket, s3Cfg)
		if err != nil {
			return nil, nil, err
		}
		return s3, nil, nil
	case config.StorageSQLite:
		db, err := storage.NewSQLiteStorage(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// Store returns the cache store. It is nil until Start succeeds.
func (a *App) Store() *cache.Store {
	return a.store
}

// Stats returns the cache counters shared by every history.
func (a *App) Stats() *observability.CacheStats {
	return a.stats
}

// OpenHistory builds the history for in, using the cache as configured,
// and merges its raw commits and reviews. The merged records are not
// written to the cache; dumping the result would make the next
// OpenHistory with the same input merge them twice.
func (a *App) OpenHistory(ctx context.Context, in *Input) (*history.History, error) {
	if a.store == nil {
		return nil, herrors.NewInternalError("app is not started", nil)
	}

	h, err := history.New(ctx, in.ItemID, in.Events, in.Labels, in.LastUpdated,
		history.WithStore(a.store),
		history.WithCache(a.cfg.Cache.Enabled),
		history.WithSchemaVersion(a.cfg.Cache.SchemaVersion),
		history.WithBotNames(a.cfg.Bots.Names),
		history.WithLogger(a.logger),
		history.WithNormalizer(normalize.New(a.logger)),
	)
	if err != nil {
		return nil, err
	}

	if _, err := h.MergeCommits(in.RawCommits()); err != nil {
		return nil, err
	}
	if _, err := h.MergeReviews(in.Reviews); err != nil {
		return nil, err
	}
	return h, nil
}

// ListCached returns the object paths of every cached snapshot.
func (a *App) ListCached(ctx context.Context) ([]string, error) {
	if a.store == nil {
		return nil, herrors.NewInternalError("app is not started", nil)
	}
	return a.store.List(ctx)
}

// Stop releases shared resources in reverse order of acquisition.
func (a *App) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return nil
	}
	a.running = false

	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
