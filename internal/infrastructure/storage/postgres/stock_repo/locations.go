package stock_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/apperror"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
	"github.com/alvarodevdoo/ERP-sub000/internal/domain/stock"
)

// stockedItemsPredicate marks items that still hold on-hand or reserved quantity.
const stockedItemsPredicate = "i.deletion_mark = false AND (i.quantity > 0 OR i.reserved_quantity > 0)"

var locationOrderFields = map[string]string{
	"name":       "l.name",
	"code":       "l.code",
	"type":       "l.type",
	"created_at": "l.created_at",
}

func (r *tenantRepo) locationSelect() squirrel.SelectBuilder {
	return builder().
		Select(
			"l.id", "l.tenant_id::text AS tenant_id", "l.name", "l.code", "l.type", "l.description",
			"l.address", "l.is_active", "l.deletion_mark", "l.created_at", "l.updated_at",
			"(SELECT COUNT(*) FROM "+tableItems+" i WHERE i.location_id = l.id AND i.tenant_id = l.tenant_id AND "+
				stockedItemsPredicate+") AS total_products",
		).
		From(tableLocations + " l").
		Where(r.scoped("l")).
		Where(squirrel.Eq{"l.deletion_mark": false})
}

func duplicateCode(err error, code *string) error {
	return apperror.NewInvalidArgument("location code already exists").
		WithDetail("code", deref(code)).
		WithCause(err)
}

func (r *tenantRepo) InsertLocation(ctx context.Context, l *stock.Location) error {
	sql, args, err := builder().
		Insert(tableLocations).
		Columns(
			"id", "tenant_id", "name", "code", "type", "description", "address",
			"is_active", "deletion_mark", "created_at", "updated_at",
		).
		Values(
			l.ID, r.tenantID, l.Name, l.Code, l.Type, l.Description, l.Address,
			l.IsActive, false, l.CreatedAt, l.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.q(ctx).Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return duplicateCode(err, l.Code)
		}
		return fmt.Errorf("insert stock location: %w", err)
	}
	return nil
}

func (r *tenantRepo) UpdateLocation(ctx context.Context, l *stock.Location) error {
	sql, args, err := builder().
		Update(tableLocations).
		Set("name", l.Name).
		Set("code", l.Code).
		Set("type", l.Type).
		Set("description", l.Description).
		Set("address", l.Address).
		Set("is_active", l.IsActive).
		Set("updated_at", l.UpdatedAt).
		Where(r.scoped("")).
		Where(squirrel.Eq{"id": l.ID, "deletion_mark": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.q(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return duplicateCode(err, l.Code)
		}
		return fmt.Errorf("update stock location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("location", l.ID)
	}
	return nil
}

func (r *tenantRepo) GetLocation(ctx context.Context, locationID id.ID) (*stock.Location, error) {
	var loc stock.Location
	b := r.locationSelect().Where(squirrel.Eq{"l.id": locationID})
	if err := get(ctx, r.q(ctx), &loc, b, "location", locationID); err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *tenantRepo) locationListQuery(f stock.LocationFilter) (squirrel.SelectBuilder, string, error) {
	b := r.locationSelect()
	if f.Type != nil {
		b = b.Where(squirrel.Eq{"l.type": *f.Type})
	}
	if f.IsActive != nil {
		b = b.Where(squirrel.Eq{"l.is_active": *f.IsActive})
	}
	if f.Search != "" {
		pattern := searchPattern(f.Search)
		b = b.Where(squirrel.Or{
			squirrel.ILike{"l.name": pattern},
			squirrel.ILike{"l.code": pattern},
		})
	}

	orderBy, err := parseOrderBy(f.OrderBy, locationOrderFields, "l.name ASC")
	if err != nil {
		return b, "", err
	}
	return b, orderBy + ", l.id", nil
}

func (r *tenantRepo) ListLocations(ctx context.Context, f stock.LocationFilter) ([]stock.Location, int, error) {
	b, orderBy, err := r.locationListQuery(f)
	if err != nil {
		return nil, 0, err
	}
	rows, total, err := list[stock.Location](ctx, r.q(ctx), b, orderBy, f.ListFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("list stock locations: %w", err)
	}
	return rows, total, nil
}

func (r *tenantRepo) SoftDeleteLocation(ctx context.Context, locationID id.ID, at time.Time) error {
	sql, args, err := builder().
		Update(tableLocations).
		Set("deletion_mark", true).
		Set("is_active", false).
		Set("updated_at", at).
		Where(r.scoped("")).
		Where(squirrel.Eq{"id": locationID, "deletion_mark": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.q(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete stock location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("location", locationID)
	}
	return nil
}

func (r *tenantRepo) CountStockedItems(ctx context.Context, locationID id.ID) (int, error) {
	sql, args, err := builder().
		Select("COUNT(*)").
		From(tableItems + " i").
		Where(r.scoped("i")).
		Where(squirrel.Eq{"i.location_id": locationID}).
		Where(stockedItemsPredicate).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var n int
	if err := r.q(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count stocked items: %w", err)
	}
	return n, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
