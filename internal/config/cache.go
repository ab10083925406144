package config

import "time"

// RollupCacheConfig controls the Redis cache of closed reporting periods.
// When Enabled is false or no Redis client is configured, rollups are
// always computed from the store.  Prefix namespaces the keys and TTL
// bounds how long a cached period is served.
type RollupCacheConfig struct {
    Enabled bool
    TTL     time.Duration
    Prefix  string
}

// LoadRollupCacheConfig reads environment variables to build a
// RollupCacheConfig.  Defaults are used when variables are not set.
func LoadRollupCacheConfig() RollupCacheConfig {
    c := RollupCacheConfig{
        Enabled: envBool("ROLLUP_CACHE_ENABLED", true),
        TTL:     envDur("ROLLUP_CACHE_TTL", 60*time.Second),
        Prefix:  envStr("ROLLUP_CACHE_PREFIX", "rollup"),
    }
    if c.TTL <= 0 {
        c.TTL = time.Second
    }
    return c
}
