package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// cacheTTL bounds how stale a cached running-balance series may get
// before a cache miss forces a recompute.
const cacheTTL = 10 * time.Minute

const runningBalanceKeyPrefix = "cashflow:running_balance"

// Cache is an optional write-through cache of the running-balance
// series, keyed per account ("all" for the whole-ledger view). The API
// handlers invalidate it after every controller mutation
// (ChangeBudgetAmount, AddSimple, Delete, ...) rather than relying on the
// TTL alone; the TTL is a backstop against a missed invalidation.
//
// A nil *redis.Client disables caching entirely — callers still go
// through Cache so call sites don't need a feature flag.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func runningBalanceKey(scope string) string {
	return fmt.Sprintf("%s:%s", runningBalanceKeyPrefix, scope)
}

// GetRunningBalance returns a cached projection for scope, or (nil, nil)
// on a cache miss or when caching is disabled.
func (c *Cache) GetRunningBalance(ctx context.Context, scope string) ([]Row, error) {
	if c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, runningBalanceKey(scope)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("scope", scope).Msg("query cache: get failed, falling back to recompute")
		return nil, nil
	}
	var rows []Row
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, nil
	}
	return rows, nil
}

// SetRunningBalance stores a freshly computed projection for scope.
func (c *Cache) SetRunningBalance(ctx context.Context, scope string, rows []Row) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, runningBalanceKey(scope), raw, cacheTTL).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("scope", scope).Msg("query cache: set failed")
	}
}

// Invalidate drops the cached projection for scope. The API handlers
// reach it through InvalidateAll after any mutation that could change the
// running balance.
func (c *Cache) Invalidate(ctx context.Context, scope string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, runningBalanceKey(scope)).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("scope", scope).Msg("query cache: invalidate failed")
	}
}

// InvalidateAll drops the whole-ledger ("all") cache key, the common case
// after any write. Since account ids are not enumerable from here,
// per-account keys are not cleared; callers track which scopes they've
// populated.
func (c *Cache) InvalidateAll(ctx context.Context) {
	c.Invalidate(ctx, "all")
}
