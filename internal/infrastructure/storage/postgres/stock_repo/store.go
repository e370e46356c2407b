// Package stock_repo is the PostgreSQL implementation of the stock ledger
// repository. All tenants share one schema; every statement built here is
// scoped by tenant_id.
package stock_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/apperror"
	"github.com/alvarodevdoo/ERP-sub000/internal/domain/stock"
	"github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/storage/postgres"
)

const (
	tableItems        = "stock_items"
	tableBatches      = "stock_batches"
	tableMovements    = "stock_movements"
	tableReservations = "stock_reservations"
	tableLocations    = "stock_locations"
	tableProducts     = "products"

	pgUniqueViolation = "23505"
)

// Store hands out tenant-bound repositories over one TxManager.
type Store struct {
	txm *postgres.TxManager
}

var (
	_ stock.Store      = (*Store)(nil)
	_ stock.Repository = (*tenantRepo)(nil)
)

// NewStore creates a store.
func NewStore(txm *postgres.TxManager) *Store {
	return &Store{txm: txm}
}

// ForTenant returns a repository that can only see tenantID's rows.
func (s *Store) ForTenant(tenantID string) stock.Repository {
	return &tenantRepo{txm: s.txm, tenantID: tenantID}
}

// TenantsWithExpiredReservations lists tenants owning due ACTIVE reservations.
func (s *Store) TenantsWithExpiredReservations(ctx context.Context, now time.Time) ([]string, error) {
	q := builder().
		Select("DISTINCT tenant_id::text").
		From(tableReservations).
		Where(squirrel.Eq{"status": stock.ReservationActive}).
		Where(squirrel.LtOrEq{"expires_at": now})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var tenants []string
	if err := pgxscan.Select(ctx, s.txm.GetQuerier(ctx), &tenants, sql, args...); err != nil {
		return nil, fmt.Errorf("list tenants with expired reservations: %w", err)
	}
	return tenants, nil
}

// tenantRepo implements stock.Repository for one tenant.
type tenantRepo struct {
	txm      *postgres.TxManager
	tenantID string
}

func (r *tenantRepo) TenantID() string { return r.tenantID }

func (r *tenantRepo) q(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

// scoped adds the tenant predicate, qualified with alias when given.
func (r *tenantRepo) scoped(alias string) squirrel.Eq {
	col := "tenant_id"
	if alias != "" {
		col = alias + ".tenant_id"
	}
	return squirrel.Eq{col: r.tenantID}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// get runs a single-row query, mapping no rows to NotFound(entity, key).
func get(ctx context.Context, q postgres.Querier, dst any, b squirrel.Sqlizer, entity string, key any) error {
	sql, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, q, dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound(entity, key)
		}
		return fmt.Errorf("get %s: %w", entity, err)
	}
	return nil
}

// list counts the filtered rows, then fetches one ordered page.
func list[T any](ctx context.Context, q postgres.Querier, b squirrel.SelectBuilder, orderBy string, f stock.ListFilter) ([]T, int, error) {
	countSQL, countArgs, err := builder().Select("COUNT(*)").FromSelect(b, "sub").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	b = b.OrderBy(orderBy)
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		b = b.Offset(uint64(f.Offset))
	}

	sql, args, err := b.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}
	var rows []T
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("list: %w", err)
	}
	return rows, total, nil
}

// parseOrderBy turns "field" or "-field" into an ORDER BY clause. Only
// whitelisted columns are accepted; an empty value yields fallback.
func parseOrderBy(orderBy string, allowed map[string]string, fallback string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return fallback, nil
	}
	dir := "ASC"
	if strings.HasPrefix(orderBy, "-") {
		dir = "DESC"
		orderBy = orderBy[1:]
	}
	col, ok := allowed[orderBy]
	if !ok {
		return "", apperror.NewInvalidArgument("unsupported orderBy field").WithDetail("orderBy", orderBy)
	}
	return col + " " + dir, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func searchPattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.TrimSpace(s))
	return "%" + s + "%"
}
