package stock_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
	"github.com/alvarodevdoo/ERP-sub000/internal/domain/stock"
)

var itemColumns = []string{
	"id", "tenant_id::text AS tenant_id", "product_id", "location_id",
	"quantity", "reserved_quantity", "unit_cost", "min_stock", "max_stock",
	"last_movement_at", "last_movement_type", "deletion_mark", "created_at", "updated_at",
}

const itemReturning = "RETURNING id, tenant_id::text AS tenant_id, product_id, location_id, " +
	"quantity, reserved_quantity, unit_cost, min_stock, max_stock, " +
	"last_movement_at, last_movement_type, deletion_mark, created_at, updated_at"

var itemOrderFields = map[string]string{
	"quantity":          "quantity",
	"reserved_quantity": "reserved_quantity",
	"unit_cost":         "unit_cost",
	"last_movement_at":  "last_movement_at",
	"created_at":        "created_at",
	"updated_at":        "updated_at",
}

// locationEq matches the unlocated row for a nil location.
func locationEq(locationID *id.ID) squirrel.Eq {
	if locationID == nil {
		return squirrel.Eq{"location_id": nil}
	}
	return squirrel.Eq{"location_id": *locationID}
}

func (r *tenantRepo) ProductExists(ctx context.Context, productID id.ID) (bool, error) {
	sql, args, err := builder().
		Select("1").
		From(tableProducts).
		Where(r.scoped("")).
		Where(squirrel.Eq{"id": productID, "deletion_mark": false}).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists bool
	if err := r.q(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("product exists: %w", err)
	}
	return exists, nil
}

func (r *tenantRepo) itemSelect(productID id.ID, locationID *id.ID) squirrel.SelectBuilder {
	return builder().
		Select(itemColumns...).
		From(tableItems).
		Where(r.scoped("")).
		Where(squirrel.Eq{"product_id": productID, "deletion_mark": false}).
		Where(locationEq(locationID))
}

func (r *tenantRepo) GetItem(ctx context.Context, productID id.ID, locationID *id.ID) (*stock.Item, error) {
	var item stock.Item
	if err := get(ctx, r.q(ctx), &item, r.itemSelect(productID, locationID), "stock item", productID); err != nil {
		return nil, err
	}

	batches, err := r.batches(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	item.Batches = batches
	item.Derive()
	return &item, nil
}

func (r *tenantRepo) GetItemForUpdate(ctx context.Context, productID id.ID, locationID *id.ID) (*stock.Item, error) {
	var item stock.Item
	b := r.itemSelect(productID, locationID).Suffix("FOR UPDATE")
	if err := get(ctx, r.q(ctx), &item, b, "stock item", productID); err != nil {
		return nil, err
	}
	item.Derive()
	return &item, nil
}

func (r *tenantRepo) batches(ctx context.Context, itemID id.ID) ([]stock.Batch, error) {
	sql, args, err := builder().
		Select("b.id", "b.item_id", "b.batch_number", "b.quantity", "b.expiry_date").
		From(tableBatches + " b").
		Join(tableItems + " i ON i.id = b.item_id").
		Where(r.scoped("i")).
		Where(squirrel.Eq{"b.item_id": itemID}).
		OrderBy("b.expiry_date ASC NULLS LAST", "b.batch_number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batches []stock.Batch
	if err := pgxscan.Select(ctx, r.q(ctx), &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

// applyQuantityDeltaQuery builds the statement for ApplyQuantityDelta. A
// positive delta upserts the row; any other delta only updates an existing one.
// A soft-deleted row is revived empty: quantity and reservations restart.
func (r *tenantRepo) applyQuantityDeltaQuery(d stock.QuantityDelta) squirrel.Sqlizer {
	if !d.Delta.IsPositive() {
		return builder().
			Update(tableItems).
			Set("quantity", squirrel.Expr("quantity + ?", d.Delta)).
			Set("unit_cost", squirrel.Expr("COALESCE(?::numeric, unit_cost)", d.UnitCost)).
			Set("last_movement_at", d.At).
			Set("last_movement_type", d.MovementType).
			Set("updated_at", d.At).
			Where(r.scoped("")).
			Where(squirrel.Eq{"product_id": d.ProductID, "deletion_mark": false}).
			Where(locationEq(d.LocationID)).
			Suffix(itemReturning)
	}

	return builder().
		Insert(tableItems).
		Columns(
			"id", "tenant_id", "product_id", "location_id", "quantity", "reserved_quantity",
			"unit_cost", "min_stock", "max_stock", "last_movement_at", "last_movement_type",
			"deletion_mark", "created_at", "updated_at",
		).
		Values(
			id.New(), r.tenantID, d.ProductID, d.LocationID, d.Delta, decimal.Zero,
			squirrel.Expr("COALESCE(?::numeric, ?::numeric, 0)", d.UnitCost, d.InitialUnitCost),
			0, 0, d.At, d.MovementType, false, d.At, d.At,
		).
		Suffix(`ON CONFLICT (tenant_id, product_id, location_id) DO UPDATE SET
			quantity = CASE WHEN stock_items.deletion_mark THEN EXCLUDED.quantity ELSE stock_items.quantity + EXCLUDED.quantity END,
			reserved_quantity = CASE WHEN stock_items.deletion_mark THEN 0 ELSE stock_items.reserved_quantity END,
			unit_cost = COALESCE(?::numeric, stock_items.unit_cost),
			last_movement_at = EXCLUDED.last_movement_at,
			last_movement_type = EXCLUDED.last_movement_type,
			deletion_mark = false,
			updated_at = EXCLUDED.updated_at
		`+itemReturning, d.UnitCost)
}

func (r *tenantRepo) ApplyQuantityDelta(ctx context.Context, d stock.QuantityDelta) (*stock.Item, error) {
	var item stock.Item
	if err := get(ctx, r.q(ctx), &item, r.applyQuantityDeltaQuery(d), "stock item", d.ProductID); err != nil {
		return nil, err
	}
	item.Derive()
	return &item, nil
}

func (r *tenantRepo) ApplyReservedDelta(ctx context.Context, productID id.ID, locationID *id.ID, delta decimal.Decimal) (*stock.Item, error) {
	b := builder().
		Update(tableItems).
		Set("reserved_quantity", squirrel.Expr("reserved_quantity + ?", delta)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(r.scoped("")).
		Where(squirrel.Eq{"product_id": productID, "deletion_mark": false}).
		Where(locationEq(locationID)).
		Suffix(itemReturning)

	var item stock.Item
	if err := get(ctx, r.q(ctx), &item, b, "stock item", productID); err != nil {
		return nil, err
	}
	item.Derive()
	return &item, nil
}

// itemSearch matches the product name or SKU, or the location name or code.
// Correlated subqueries keep the unqualified item columns unambiguous.
func itemSearch(pattern string) squirrel.Sqlizer {
	return squirrel.Or{
		squirrel.Expr("EXISTS (SELECT 1 FROM "+tableProducts+" p WHERE p.id = "+tableItems+".product_id"+
			" AND p.tenant_id = "+tableItems+".tenant_id AND (p.name ILIKE ? OR p.sku ILIKE ?))", pattern, pattern),
		squirrel.Expr("EXISTS (SELECT 1 FROM "+tableLocations+" l WHERE l.id = "+tableItems+".location_id"+
			" AND l.tenant_id = "+tableItems+".tenant_id AND (l.name ILIKE ? OR l.code ILIKE ?))", pattern, pattern),
	}
}

func (r *tenantRepo) itemListQuery(f stock.ItemFilter) (squirrel.SelectBuilder, string, error) {
	b := builder().
		Select(itemColumns...).
		From(tableItems).
		Where(r.scoped("")).
		Where(squirrel.Eq{"deletion_mark": false})

	if f.ProductID != nil {
		b = b.Where(squirrel.Eq{"product_id": *f.ProductID})
	}
	if f.LocationID != nil {
		b = b.Where(squirrel.Eq{"location_id": *f.LocationID})
	}
	if f.LowStock {
		b = b.Where("quantity <= min_stock")
	}
	if f.OutOfStock {
		b = b.Where("quantity <= 0")
	}
	if f.Search != "" {
		b = b.Where(itemSearch(searchPattern(f.Search)))
	}

	orderBy, err := parseOrderBy(f.OrderBy, itemOrderFields, "updated_at DESC")
	if err != nil {
		return b, "", err
	}
	return b, orderBy + ", id", nil
}

func (r *tenantRepo) ListItems(ctx context.Context, f stock.ItemFilter) ([]stock.Item, int, error) {
	b, orderBy, err := r.itemListQuery(f)
	if err != nil {
		return nil, 0, err
	}
	items, total, err := list[stock.Item](ctx, r.q(ctx), b, orderBy, f.ListFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("list stock items: %w", err)
	}
	for i := range items {
		items[i].Derive()
	}
	return items, total, nil
}
