// Package config reads process configuration from the environment, after
// loading a .env file when one exists.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/security"
)

// Config is the configuration shared by the server and the worker.
type Config struct {
	AppEnv   string
	LogLevel string

	HTTPAddr    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	CacheTTL       time.Duration
	IdempotencyTTL time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string

	// Policies are CEL overrides keyed by action, from STOCK_POLICY_<ACTION>.
	Policies map[security.Action]string

	SweepInterval  time.Duration
	OutboxInterval time.Duration
}

// Development reports whether APP_ENV is development.
func (c Config) Development() bool {
	return c.AppEnv == "development"
}

// Load reads the .env files (if any) and then the environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup. Parse errors and missing required
// keys are collected and returned together.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	r := reader{lookup: lookup}

	cfg := Config{
		AppEnv:   r.str("APP_ENV", "development"),
		LogLevel: r.str("LOG_LEVEL", "info"),

		HTTPAddr:    r.str("HTTP_ADDR", ":8080"),
		DatabaseURL: r.required("DATABASE_URL"),

		RedisAddr:     r.str("REDIS_ADDR", "localhost:6379"),
		RedisPassword: r.str("REDIS_PASSWORD", ""),
		RedisDB:       r.int("REDIS_DB", 0),

		JWTSecret: r.required("JWT_SECRET"),

		CacheTTL:       r.duration("CACHE_TTL", 5*time.Minute),
		IdempotencyTTL: r.duration("IDEMPOTENCY_TTL", 24*time.Hour),

		RateLimitRPS:   r.float("RATE_LIMIT_RPS", 50),
		RateLimitBurst: r.int("RATE_LIMIT_BURST", 100),
		CORSOrigins:    r.list("CORS_ORIGINS", []string{"*"}),

		Policies: map[security.Action]string{},

		SweepInterval:  r.duration("SWEEP_INTERVAL", time.Minute),
		OutboxInterval: r.duration("OUTBOX_INTERVAL", 2*time.Second),
	}

	for _, action := range security.StockActions {
		if expr := r.str(PolicyKey(action), ""); expr != "" {
			cfg.Policies[action] = expr
		}
	}

	if cfg.RateLimitBurst < 1 {
		r.errs = append(r.errs, errors.New("RATE_LIMIT_BURST must be at least 1"))
	}

	return cfg, errors.Join(r.errs...)
}

// PolicyKey is the environment key of an action's CEL override.
func PolicyKey(action security.Action) string {
	return "STOCK_POLICY_" + strings.ToUpper(string(action))
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) required(key string) string {
	v := r.str(key, "")
	if v == "" {
		r.errs = append(r.errs, fmt.Errorf("%s is required", key))
	}
	return v
}

func (r *reader) int(key string, def int) int {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (r *reader) float(key string, def float64) float64 {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (r *reader) list(key string, def []string) []string {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
