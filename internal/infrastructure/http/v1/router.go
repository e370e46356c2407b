// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/http/v1/handlers"
	"github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/http/v1/middleware"
	"github.com/alvarodevdoo/ERP-sub000/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	Stock handlers.StockService

	// Idempotency is optional; nil disables Idempotency-Key handling.
	Idempotency middleware.IdempotencyStore

	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *middleware.RateLimiter

	CORSOrigins []string

	// HealthChecks are probed by /health/ready.
	HealthChecks map[string]handlers.HealthCheck

	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Order matters: Recovery writes its own response, ErrorHandler renders
	// errors recorded by everything below it.
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(corsMiddleware(cfg.CORSOrigins))
	router.Use(middleware.ErrorHandler())
	if cfg.RateLimiter != nil {
		router.Use(middleware.RateLimit(cfg.RateLimiter))
	}

	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))
	api.Use(middleware.Tenant())
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	stockHandler := handlers.NewStockHandler(handlers.NewBaseHandler(), cfg.Stock)
	stockHandler.RegisterRoutes(api.Group("/stock"))

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Authorization",
			middleware.TenantHeader, middleware.HeaderIdempotencyKey, middleware.HeaderRequestID,
		},
		ExposeHeaders: []string{
			"Content-Length", "Content-Disposition", "X-Row-Count",
			middleware.HeaderRequestID, middleware.HeaderTraceID,
		},
		MaxAge: 12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
