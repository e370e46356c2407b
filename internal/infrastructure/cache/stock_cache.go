package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alvarodevdoo/ERP-sub000/internal/domain/stock"
)

const keyPrefix = "stock:cache:"

// storeScript writes a field only while the tenant's generation still equals
// the one the value was read under. KEYS: generation, hash. ARGV: generation,
// field, value, ttl in ms.
var storeScript = redis.NewScript(`
if (redis.call('GET', KEYS[1]) or '0') ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[2], ARGV[2], ARGV[3])
redis.call('PEXPIRE', KEYS[2], ARGV[4])
return 1
`)

// StockCache keeps one Redis hash per tenant; each read model is a field.
// A per-tenant generation counter guards writes: Invalidate bumps it and
// drops the hash in one MULTI, and Store only lands under the generation
// its value was read with.
type StockCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ stock.Cache = (*StockCache)(nil)

// NewStockCache creates a cache whose tenant hashes expire after ttl.
func NewStockCache(rdb *redis.Client, ttl time.Duration) *StockCache {
	return &StockCache{rdb: rdb, ttl: ttl}
}

// Both keys share the {tenant} hash tag so the script stays on one slot.
func tenantKey(tenantID string) string {
	return keyPrefix + "{" + tenantID + "}"
}

func genKey(tenantID string) string {
	return keyPrefix + "gen:{" + tenantID + "}"
}

// Load decodes the cached field into dst and reports whether it was present,
// along with the tenant's current generation.
func (c *StockCache) Load(ctx context.Context, tenantID, key string, dst any) (int64, bool, error) {
	pipe := c.rdb.Pipeline()
	genCmd := pipe.Get(ctx, genKey(tenantID))
	valCmd := pipe.HGet(ctx, tenantKey(tenantID), key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, false, fmt.Errorf("redis load %s: %w", key, err)
	}

	gen, err := genCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, false, fmt.Errorf("decode generation: %w", err)
	}

	raw, err := valCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return gen, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis hget %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return 0, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return gen, true, nil
}

// Store writes the field and refreshes the hash TTL, unless the tenant was
// invalidated after gen was read.
func (c *StockCache) Store(ctx context.Context, tenantID, key string, gen int64, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	err = storeScript.Run(ctx, c.rdb,
		[]string{genKey(tenantID), tenantKey(tenantID)},
		strconv.FormatInt(gen, 10), key, raw, c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis store %s: %w", key, err)
	}
	return nil
}

// Invalidate advances the tenant's generation and drops its read models.
func (c *StockCache) Invalidate(ctx context.Context, tenantID string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(tenantID))
		pipe.Del(ctx, tenantKey(tenantID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}
