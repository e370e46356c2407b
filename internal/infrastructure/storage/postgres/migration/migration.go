// Package migration applies the SQL files under migrations/ with golang-migrate.
package migration

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers pgx5://
	_ "github.com/golang-migrate/migrate/v4/source/file"     // registers file://

	"github.com/alvarodevdoo/ERP-sub000/pkg/logger"
)

// Runner wraps one migrate instance.
type Runner struct {
	m   *migrate.Migrate
	log *logger.Logger
}

// New opens the migration source directory and the target database.
func New(databaseURL, dir string, log *logger.Logger, verbose bool) (*Runner, error) {
	dbURL, err := DriverURL(databaseURL)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve migrations dir: %w", err)
	}

	m, err := migrate.New("file://"+filepath.ToSlash(abs), dbURL)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	m.Log = &migrateLogger{log: log, verbose: verbose}
	return &Runner{m: m, log: log}, nil
}

// Up applies every pending migration.
func (r *Runner) Up() error {
	return r.done("up", r.m.Up())
}

// Down rolls back the given number of steps.
func (r *Runner) Down(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	return r.done("down", r.m.Steps(-steps))
}

// Version reports the applied version and whether the last run left it dirty.
// A database without migrations reports version 0.
func (r *Runner) Version() (uint, bool, error) {
	v, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Close releases the source and the database connection.
func (r *Runner) Close() error {
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (r *Runner) done(op string, err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		r.log.Infow("database migration: no change needed", "op", op)
		return nil
	}
	if err != nil {
		r.log.Errorw("database migration failed", "op", op, "error", err)
		return err
	}
	r.log.Infow("database migration finished", "op", op)
	return nil
}

// DriverURL rewrites a libpq-style URL to the pgx/v5 driver scheme.
func DriverURL(databaseURL string) (string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "pgx5://"):
		return databaseURL, nil
	case strings.HasPrefix(databaseURL, "postgres://"):
		return "pgx5://" + strings.TrimPrefix(databaseURL, "postgres://"), nil
	case strings.HasPrefix(databaseURL, "postgresql://"):
		return "pgx5://" + strings.TrimPrefix(databaseURL, "postgresql://"), nil
	default:
		return "", fmt.Errorf("unsupported database url scheme")
	}
}

type migrateLogger struct {
	log     *logger.Logger
	verbose bool
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.log.Infof("migrate: "+strings.TrimRight(format, "\n"), v...)
}

func (l *migrateLogger) Verbose() bool { return l.verbose }
