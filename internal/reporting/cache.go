package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/venue-attendance/internal/model"
)

// Cache stores computed rollups.  Entries are disposable; a miss always
// falls back to recomputation.
type Cache interface {
	Get(ctx context.Context, key string) ([]model.DailyRollup, bool, error)
	Set(ctx context.Context, key string, rows []model.DailyRollup) error
}

type noCache struct{}

func (noCache) Get(context.Context, string) ([]model.DailyRollup, bool, error) { return nil, false, nil }
func (noCache) Set(context.Context, string, []model.DailyRollup) error         { return nil }

// RedisCache keeps rollups as JSON strings with a TTL.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache returns a cache writing keys under prefix.
func NewRedisCache(rdb *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "rollup"
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]model.DailyRollup, bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rows []model.DailyRollup
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, false, fmt.Errorf("decode cached rollup: %w", err)
	}
	return rows, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, rows []model.DailyRollup) error {
	raw, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.prefix+":"+key, raw, c.ttl).Err()
}

// cacheKey includes the effective config: changing a tenant's reset time
// or zone moves it to fresh keys.
func cacheKey(businessID uint64, cfg model.BusinessDayConfig, p Period, dense bool) string {
	mode := "sparse"
	if dense {
		mode = "dense"
	}
	return fmt.Sprintf("%d:%s:%02d%02d:%s:%s:%s", businessID, cfg.Timezone, cfg.ResetHour, cfg.ResetMinute, p.From, p.To, mode)
}
