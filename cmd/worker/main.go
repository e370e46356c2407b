// Package main is the entry point for the stock ledger background worker:
// reservation expiry, outbox relay and housekeeping.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alvarodevdoo/ERP-sub000/internal/app"
	"github.com/alvarodevdoo/ERP-sub000/internal/config"
	"github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/cache"
	"github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/storage/postgres"
	"github.com/alvarodevdoo/ERP-sub000/pkg/logger"
)

const (
	outboxBatchSize    = 100
	housekeepingEvery  = time.Hour
	publishedRetention = 7 * 24 * time.Hour
	poolStatsEvery     = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log = log.WithComponent("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting stock ledger worker")

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer a.Close()

	relay := postgres.NewOutboxRelay(a.TxManager, outboxBatchSize, cache.NewEventSink(a.Redis, cache.EventsChannel))

	app.RunJobs(ctx, log,
		app.Job{Name: "reservation-expiry", Interval: cfg.SweepInterval, Run: func(ctx context.Context) error {
			n, err := a.Stock.SweepExpiredReservations(ctx)
			if n > 0 {
				log.Infow("reservations expired", "count", n)
			}
			return err
		}},
		app.Job{Name: "outbox-relay", Interval: cfg.OutboxInterval, Run: func(ctx context.Context) error {
			for {
				n, err := relay.ProcessBatch(ctx)
				if err != nil || n < outboxBatchSize {
					return err
				}
			}
		}},
		app.Job{Name: "outbox-purge", Interval: housekeepingEvery, Run: func(ctx context.Context) error {
			n, err := relay.PurgePublished(ctx, time.Now().Add(-publishedRetention))
			if n > 0 {
				log.Infow("purged published outbox messages", "count", n)
			}
			return err
		}},
		app.Job{Name: "idempotency-cleanup", Interval: housekeepingEvery, Run: func(ctx context.Context) error {
			n, err := a.Idempotency.CleanupExpired(ctx)
			if n > 0 {
				log.Infow("cleaned up idempotency keys", "count", n)
			}
			return err
		}},
		app.Job{Name: "pool-stats", Interval: poolStatsEvery, Run: func(ctx context.Context) error {
			postgres.LogPoolStats(ctx, a.Pool)
			return nil
		}},
	)

	log.Info("worker stopped")
}
