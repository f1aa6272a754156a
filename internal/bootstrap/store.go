// Package bootstrap assembles the identity store shared by the API server and
// the operator CLI.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/linkage-api/internal/repository"
	"github.com/noah-isme/linkage-api/pkg/config"
	"github.com/noah-isme/linkage-api/pkg/database"
)

// StoreObserver receives identity store timings. *service.MetricsService
// satisfies it.
type StoreObserver interface {
	ObserveStoreQuery(backend, collection, operation, status string, duration time.Duration)
}

// OpenIdentityStore connects the configured backend and wraps it with query
// timeouts and metrics. The returned close function releases the connection.
func OpenIdentityStore(ctx context.Context, cfg *config.Config, metrics StoreObserver, logger *zap.Logger) (repository.IdentityStore, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		store   repository.IdentityStore
		closeFn = func() {}
	)

	switch cfg.Store.Backend {
	case config.BackendMemory, "":
		if cfg.Store.FixturePath == "" {
			logger.Warn("memory identity store started empty; set STORE_FIXTURE_PATH to load records")
			store = repository.NewMemoryIdentityRepository()
			break
		}
		mem, err := repository.LoadFixture(cfg.Store.FixturePath)
		if err != nil {
			return nil, nil, err
		}
		store = mem
	case config.BackendPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		store = repository.NewPostgresIdentityRepository(db)
		closeFn = func() {
			if err := db.Close(); err != nil {
				logger.Warn("close postgres", zap.Error(err))
			}
		}
	case config.BackendMongo:
		client, db, err := database.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		store = repository.NewMongoIdentityRepository(db)
		closeFn = func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logger.Warn("disconnect mongo", zap.Error(err))
			}
		}
	default:
		return nil, nil, fmt.Errorf("unknown identity store backend %q", cfg.Store.Backend)
	}

	backend := cfg.Store.Backend
	if backend == "" {
		backend = config.BackendMemory
	}
	logger.Info("identity store ready", zap.String("backend", backend))
	return repository.NewInstrumentedStore(store, backend, cfg.Store.QueryTimeout, metrics), closeFn, nil
}
