// Package app wires the stock service and its infrastructure from Config.
// Both the API server and the worker start from here.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alvarodevdoo/ERP-sub000/internal/config"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/security"
	"github.com/alvarodevdoo/ERP-sub000/internal/domain/stock"
	"github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/cache"
	"github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/storage/postgres"
	"github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/storage/postgres/stock_repo"
	"github.com/alvarodevdoo/ERP-sub000/pkg/logger"
)

// App holds the long-lived dependencies of one process.
type App struct {
	Config      config.Config
	Log         *logger.Logger
	Pool        *postgres.Pool
	TxManager   *postgres.TxManager
	Redis       *redis.Client
	Stock       *stock.Service
	Idempotency *postgres.IdempotencyStore
}

// New connects to Postgres and Redis and builds the stock service.
func New(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	rdb, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	a := &App{Config: cfg, Log: log, Pool: pool, Redis: rdb}
	if err := a.build(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	a.TxManager = postgres.NewTxManager(a.Pool)

	oracle, err := security.NewCELOracle(security.ContextSubjects{}, a.Config.Policies)
	if err != nil {
		return fmt.Errorf("permission policies: %w", err)
	}

	audit, err := postgres.NewAuditService(a.TxManager)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	a.Stock, err = stock.NewService(stock.Deps{
		Store:  stock_repo.NewStore(a.TxManager),
		Tx:     a.TxManager,
		Oracle: oracle,
		Cache:  cache.NewStockCache(a.Redis, a.Config.CacheTTL),
		Events: postgres.NewOutboxPublisher(a.TxManager),
		Audit:  audit,
		Clock:  time.Now,
		Logger: a.Log,
	})
	if err != nil {
		return err
	}

	a.Idempotency = postgres.NewIdempotencyStore(a.TxManager, a.Config.IdempotencyTTL)
	return nil
}

// Close releases connections.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Warnw("redis close failed", "error", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
