// Package main is the entry point for the stock ledger API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alvarodevdoo/ERP-sub000/internal/app"
	"github.com/alvarodevdoo/ERP-sub000/internal/config"
	"github.com/alvarodevdoo/ERP-sub000/internal/domain/auth"
	v1 "github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/http/v1"
	"github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/http/v1/handlers"
	"github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/http/v1/middleware"
	"github.com/alvarodevdoo/ERP-sub000/pkg/logger"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting stock ledger server")

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer a.Close()

	jwtService, err := auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret))
	if err != nil {
		log.Fatalw("invalid jwt configuration", "error", err)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go app.RunJobs(ctx, log, app.Job{
		Name:     "rate-limiter-prune",
		Interval: time.Minute,
		Run: func(context.Context) error {
			limiter.Prune()
			return nil
		},
	})

	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: jwtService,
		Stock:        a.Stock,
		Idempotency:  a.Idempotency,
		RateLimiter:  limiter,
		CORSOrigins:  cfg.CORSOrigins,
		HealthChecks: map[string]handlers.HealthCheck{
			"postgres": a.TxManager.Ping,
			"redis": func(ctx context.Context) error {
				return a.Redis.Ping(ctx).Err()
			},
		},
		Debug: cfg.Development(),
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
