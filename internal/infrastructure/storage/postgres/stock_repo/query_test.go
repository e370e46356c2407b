package stock_repo

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/apperror"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
	"github.com/alvarodevdoo/ERP-sub000/internal/domain/stock"
)

const tenantA = "0190a1b2-0000-7000-8000-00000000000a"

func testRepo() *tenantRepo {
	return &tenantRepo{tenantID: tenantA}
}

func TestParseOrderBy(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "empty uses fallback", in: "", want: "updated_at DESC"},
		{name: "ascending", in: "quantity", want: "quantity ASC"},
		{name: "descending", in: "-created_at", want: "created_at DESC"},
		{name: "unknown column", in: "quantity; DROP TABLE stock_items", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOrderBy(tt.in, itemOrderFields, "updated_at DESC")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.HasCode(err, apperror.CodeInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestItemListQuery(t *testing.T) {
	loc := id.New()
	b, orderBy, err := testRepo().itemListQuery(stock.ItemFilter{
		ListFilter: stock.ListFilter{OrderBy: "-quantity"},
		LocationID: &loc,
		LowStock:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "quantity DESC, id", orderBy)

	sql, args, err := b.ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sql, "SELECT id, tenant_id::text AS tenant_id, product_id"))
	assert.Contains(t, sql, "FROM stock_items WHERE tenant_id = $1 AND deletion_mark = $2 AND location_id = $3 AND quantity <= min_stock")
	assert.Equal(t, []any{tenantA, false, loc}, args)
}

func TestItemListQuery_Search(t *testing.T) {
	b, _, err := testRepo().itemListQuery(stock.ItemFilter{
		ListFilter: stock.ListFilter{Search: " bolt_m8 "},
	})
	require.NoError(t, err)

	sql, args, err := b.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "EXISTS (SELECT 1 FROM products p WHERE p.id = stock_items.product_id AND p.tenant_id = stock_items.tenant_id AND (p.name ILIKE $3 OR p.sku ILIKE $4))")
	assert.Contains(t, sql, "EXISTS (SELECT 1 FROM stock_locations l WHERE l.id = stock_items.location_id AND l.tenant_id = stock_items.tenant_id AND (l.name ILIKE $5 OR l.code ILIKE $6))")

	pattern := `%bolt\_m8%`
	assert.Equal(t, []any{tenantA, false, pattern, pattern, pattern, pattern}, args)
}

func TestLocationEq_NilMeansUnlocated(t *testing.T) {
	sql, args, err := locationEq(nil).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "location_id IS NULL", sql)
	assert.Empty(t, args)
}

func TestMovementListQuery_LocationMatchesEitherSide(t *testing.T) {
	loc := id.New()
	typ := stock.MovementTransfer
	b, orderBy, err := testRepo().movementListQuery(stock.MovementFilter{LocationID: &loc, Type: &typ})
	require.NoError(t, err)
	assert.Equal(t, "created_at DESC, id", orderBy)

	sql, args, err := b.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE tenant_id = $1 AND (location_id = $2 OR destination_location_id = $3) AND type = $4")
	assert.Equal(t, []any{tenantA, loc, loc, typ}, args)
}

func TestExpiredReservationsQuery(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sql, args, err := testRepo().expiredReservationsQuery(now, 200).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE tenant_id = $1 AND status = $2 AND expires_at <= $3")
	assert.True(t, strings.HasSuffix(sql, "ORDER BY expires_at LIMIT 200 FOR UPDATE SKIP LOCKED"), sql)
	assert.Equal(t, []any{tenantA, stock.ReservationActive, now}, args)
}

func TestApplyQuantityDeltaQuery(t *testing.T) {
	product := id.New()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("positive delta upserts", func(t *testing.T) {
		sql, _, err := testRepo().applyQuantityDeltaQuery(stock.QuantityDelta{
			ProductID: product, Delta: decimal.NewFromInt(5), MovementType: stock.MovementIn, At: at,
		}).ToSql()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(sql, "INSERT INTO stock_items"))
		assert.Contains(t, sql, "ON CONFLICT (tenant_id, product_id, location_id) DO UPDATE SET")
		assert.Contains(t, sql, "reserved_quantity = CASE WHEN stock_items.deletion_mark THEN 0 ELSE stock_items.reserved_quantity END")
		assert.Contains(t, sql, "RETURNING id")
		assert.NotContains(t, sql, "?")
	})

	t.Run("negative delta only updates", func(t *testing.T) {
		sql, args, err := testRepo().applyQuantityDeltaQuery(stock.QuantityDelta{
			ProductID: product, Delta: decimal.NewFromInt(-5), MovementType: stock.MovementOut, At: at,
		}).ToSql()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(sql, "UPDATE stock_items SET quantity = quantity + $1"), sql)
		assert.Contains(t, sql, "location_id IS NULL")
		assert.NotContains(t, sql, "ON CONFLICT")
		assert.Equal(t, decimal.NewFromInt(-5), args[0])
	})
}

func TestLocationListQuery(t *testing.T) {
	active := true
	b, orderBy, err := testRepo().locationListQuery(stock.LocationFilter{
		ListFilter: stock.ListFilter{Search: "dock"},
		IsActive:   &active,
	})
	require.NoError(t, err)
	assert.Equal(t, "l.name ASC, l.id", orderBy)

	sql, args, err := b.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "AS total_products FROM stock_locations l WHERE l.tenant_id = $1 AND l.deletion_mark = $2 AND l.is_active = $3")
	assert.Contains(t, sql, "(l.name ILIKE $4 OR l.code ILIKE $5)")
	assert.Equal(t, []any{tenantA, false, true, "%dock%", "%dock%"}, args)
}

func TestSearchPattern_EscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\% off\_now%`, searchPattern(" 50% off_now "))
}
