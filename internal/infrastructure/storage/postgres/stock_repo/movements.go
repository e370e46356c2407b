package stock_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/alvarodevdoo/ERP-sub000/internal/domain/stock"
)

var movementColumns = []string{
	"id", "tenant_id::text AS tenant_id", "product_id", "type", "quantity", "unit_cost", "total_cost",
	"reason", "reference", "location_id", "destination_location_id", "notes", "user_id", "created_at",
}

var movementOrderFields = map[string]string{
	"created_at": "created_at",
	"quantity":   "quantity",
	"type":       "type",
}

func (r *tenantRepo) InsertMovement(ctx context.Context, m *stock.Movement) error {
	sql, args, err := builder().
		Insert(tableMovements).
		Columns(
			"id", "tenant_id", "product_id", "type", "quantity", "unit_cost", "total_cost",
			"reason", "reference", "location_id", "destination_location_id", "notes", "user_id", "created_at",
		).
		Values(
			m.ID, r.tenantID, m.ProductID, m.Type, m.Quantity, m.UnitCost, m.TotalCost,
			m.Reason, m.Reference, m.LocationID, m.DestinationLocationID, m.Notes, m.UserID, m.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.q(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}

func (r *tenantRepo) movementListQuery(f stock.MovementFilter) (squirrel.SelectBuilder, string, error) {
	b := builder().
		Select(movementColumns...).
		From(tableMovements).
		Where(r.scoped(""))

	if f.ProductID != nil {
		b = b.Where(squirrel.Eq{"product_id": *f.ProductID})
	}
	if f.LocationID != nil {
		b = b.Where(squirrel.Or{
			squirrel.Eq{"location_id": *f.LocationID},
			squirrel.Eq{"destination_location_id": *f.LocationID},
		})
	}
	if f.Type != nil {
		b = b.Where(squirrel.Eq{"type": *f.Type})
	}
	if f.From != nil {
		b = b.Where(squirrel.GtOrEq{"created_at": *f.From})
	}
	if f.To != nil {
		b = b.Where(squirrel.Lt{"created_at": *f.To})
	}
	if f.Search != "" {
		pattern := searchPattern(f.Search)
		b = b.Where(squirrel.Or{
			squirrel.ILike{"reason": pattern},
			squirrel.ILike{"reference": pattern},
			squirrel.ILike{"notes": pattern},
		})
	}

	orderBy, err := parseOrderBy(f.OrderBy, movementOrderFields, "created_at DESC")
	if err != nil {
		return b, "", err
	}
	return b, orderBy + ", id", nil
}

func (r *tenantRepo) ListMovements(ctx context.Context, f stock.MovementFilter) ([]stock.Movement, int, error) {
	b, orderBy, err := r.movementListQuery(f)
	if err != nil {
		return nil, 0, err
	}
	rows, total, err := list[stock.Movement](ctx, r.q(ctx), b, orderBy, f.ListFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("list stock movements: %w", err)
	}
	return rows, total, nil
}
