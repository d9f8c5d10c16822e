package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/factoring/internal/app"
	"github.com/odyssey-erp/factoring/internal/factoring"
	"github.com/odyssey-erp/factoring/internal/platform/cache"
	"github.com/odyssey-erp/factoring/internal/platform/db"
	"github.com/odyssey-erp/factoring/internal/platform/lock"
)

// Runtime holds the ledger and the resources backing it.
type Runtime struct {
	Config   *app.Config
	Logger   *slog.Logger
	Ledger   *factoring.Ledger
	Registry *prometheus.Registry

	migrate func(context.Context) error
	closers []func()
}

// RuntimeFactory builds a Runtime for one command invocation.
type RuntimeFactory func(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*Runtime, error)

// NewRuntime wires the configured store, lock and metrics into a Ledger.
func NewRuntime(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	ledgerCfg := factoring.Config{
		Logger:    logger,
		Metrics:   factoring.NewMetrics(rt.Registry),
		Retention: cfg.Retention(),
	}

	var repo factoring.Repository
	switch cfg.Store {
	case app.StoreMemory:
		repo = factoring.NewMemoryRepository()
	case app.StoreRedis:
		client, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		repo = factoring.NewRedisRepository(client, cfg.RedisKey)
		if cfg.RedisLock {
			ledgerCfg.Locker = lock.NewRedis(client, cfg.LockKey, cfg.LockTTL)
		}
	case app.StorePostgres:
		pool, err := db.Open(ctx, db.Options{DSN: cfg.PGDSN, MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		pg := factoring.NewPostgresRepository(pool)
		rt.migrate = pg.EnsureSchema
		repo = pg
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	rt.Ledger = factoring.NewLedger(repo, ledgerCfg)
	logger.Debug("runtime ready", slog.String("store", cfg.Store))
	return rt, nil
}

// NewMemoryRuntime builds a Runtime on a fresh in-memory store.
func NewMemoryRuntime(logger *slog.Logger) *Runtime {
	reg := prometheus.NewRegistry()
	return &Runtime{
		Config:   &app.Config{Store: app.StoreMemory},
		Logger:   logger,
		Registry: reg,
		Ledger: factoring.NewLedger(factoring.NewMemoryRepository(), factoring.Config{
			Logger:  logger,
			Metrics: factoring.NewMetrics(reg),
		}),
	}
}

// Migrate prepares the store schema where the backend has one.
func (r *Runtime) Migrate(ctx context.Context) (bool, error) {
	if r.migrate == nil {
		return false, nil
	}
	return true, r.migrate(ctx)
}

// WriteMetrics dumps the registry in the Prometheus text format.
func (r *Runtime) WriteMetrics(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// Close releases store connections.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}
