package stock_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/alvarodevdoo/ERP-sub000/internal/domain/stock"
)

type itemTotals struct {
	TotalItems      int    `db:"total_items"`
	TotalValue      string `db:"total_value"`
	LowStockCount   int    `db:"low_stock_count"`
	OutOfStockCount int    `db:"out_of_stock_count"`
}

func (r *tenantRepo) itemTotalsQuery() squirrel.SelectBuilder {
	return builder().
		Select(
			"COUNT(*) AS total_items",
			"COALESCE(SUM(quantity * unit_cost), 0)::text AS total_value",
			"COUNT(*) FILTER (WHERE quantity <= min_stock) AS low_stock_count",
			"COUNT(*) FILTER (WHERE quantity <= 0) AS out_of_stock_count",
		).
		From(tableItems).
		Where(r.scoped("")).
		Where(squirrel.Eq{"deletion_mark": false})
}

func (r *tenantRepo) topProductsQuery(topN int) squirrel.SelectBuilder {
	return builder().
		Select(
			"product_id",
			"SUM(quantity) AS quantity",
			"SUM(quantity * unit_cost) AS total_value",
		).
		From(tableItems).
		Where(r.scoped("")).
		Where(squirrel.Eq{"deletion_mark": false}).
		GroupBy("product_id").
		OrderBy("total_value DESC", "product_id").
		Limit(uint64(topN))
}

func (r *tenantRepo) Stats(ctx context.Context, topN int) (*stock.Stats, error) {
	q := r.q(ctx)

	var totals itemTotals
	if err := get(ctx, q, &totals, r.itemTotalsQuery(), "stock stats", r.tenantID); err != nil {
		return nil, err
	}
	stats := &stock.Stats{
		TotalItems:      totals.TotalItems,
		LowStockCount:   totals.LowStockCount,
		OutOfStockCount: totals.OutOfStockCount,
	}
	if err := stats.TotalValue.Scan(totals.TotalValue); err != nil {
		return nil, fmt.Errorf("parse total value: %w", err)
	}

	sql, args, err := r.topProductsQuery(topN).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, q, &stats.TopProducts, sql, args...); err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}

	activeSQL, activeArgs, err := builder().
		Select("COUNT(*)").
		From(tableReservations).
		Where(r.scoped("")).
		Where(squirrel.Eq{"status": stock.ReservationActive}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if err := q.QueryRow(ctx, activeSQL, activeArgs...).Scan(&stats.ActiveReservations); err != nil {
		return nil, fmt.Errorf("count active reservations: %w", err)
	}

	movSQL, movArgs, err := builder().
		Select("COUNT(*)").
		From(tableMovements).
		Where(r.scoped("")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if err := q.QueryRow(ctx, movSQL, movArgs...).Scan(&stats.TotalMovements); err != nil {
		return nil, fmt.Errorf("count movements: %w", err)
	}

	return stats, nil
}
