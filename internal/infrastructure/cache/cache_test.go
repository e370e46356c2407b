package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
	"github.com/alvarodevdoo/ERP-sub000/internal/domain/stock"
	"github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/storage/postgres"
)

func newTestCache(t *testing.T) (*StockCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStockCache(rdb, time.Minute), mr
}

func TestTenantKey(t *testing.T) {
	assert.Equal(t, "stock:cache:{t-1}", tenantKey("t-1"))
	assert.Equal(t, "stock:cache:gen:{t-1}", genKey("t-1"))
}

func TestStockCache_RoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var got stock.Stats
	gen, hit, err := c.Load(ctx, "t-1", "stats", &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Zero(t, gen)

	require.NoError(t, c.Store(ctx, "t-1", "stats", gen, &stock.Stats{TotalItems: 3}))
	assert.Equal(t, time.Minute, mr.TTL(tenantKey("t-1")))

	gen, hit, err = c.Load(ctx, "t-1", "stats", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Zero(t, gen)
	assert.Equal(t, 3, got.TotalItems)

	require.NoError(t, c.Invalidate(ctx, "t-1"))
	gen, hit, err = c.Load(ctx, "t-1", "stats", &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int64(1), gen)
}

// A value read before a commit must not land after that commit's invalidation.
func TestStockCache_StoreUnderOldGenerationIsDropped(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var got stock.Stats
	gen, _, err := c.Load(ctx, "t-1", "stats", &got)
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(ctx, "t-1"))
	require.NoError(t, c.Store(ctx, "t-1", "stats", gen, &stock.Stats{TotalItems: 7}))

	gen, hit, err := c.Load(ctx, "t-1", "stats", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Store(ctx, "t-1", "stats", gen, &stock.Stats{TotalItems: 8}))
	_, hit, err = c.Load(ctx, "t-1", "stats", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 8, got.TotalItems)
}

func TestStockCache_InvalidateIsPerTenant(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Store(ctx, "t-1", "stats", 0, &stock.Stats{TotalItems: 1}))
	require.NoError(t, c.Store(ctx, "t-2", "stats", 0, &stock.Stats{TotalItems: 2}))

	require.NoError(t, c.Invalidate(ctx, "t-2"))

	var got stock.Stats
	_, hit, err := c.Load(ctx, "t-1", "stats", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, got.TotalItems)
}

func TestEncodeEnvelope(t *testing.T) {
	msg := &postgres.OutboxMessage{
		ID:          id.New(),
		TenantID:    "t-1",
		AggregateID: id.New(),
		EventType:   "stock.movement.recorded",
		Payload:     []byte(`{"quantity":"5"}`),
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	raw, err := encodeEnvelope(msg)
	require.NoError(t, err)

	var got EventEnvelope
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, msg.ID.String(), got.ID)
	assert.Equal(t, "stock.movement.recorded", got.Type)
	assert.Equal(t, "t-1", got.TenantID)
	assert.JSONEq(t, `{"quantity":"5"}`, string(got.Payload))
}

func TestEncodeEnvelope_EmptyPayload(t *testing.T) {
	raw, err := encodeEnvelope(&postgres.OutboxMessage{ID: id.New(), AggregateID: id.New()})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"payload":null`)
}
