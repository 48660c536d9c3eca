package config

import "time"

// StatsCacheConfig controls the Redis cache in front of seat availability
// stats.  Entries are also dropped on every seat transition, so TTL only
// bounds how long a missed invalidation can linger.
type StatsCacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadStatsCacheConfig reads STATS_CACHE_*.
func LoadStatsCacheConfig() StatsCacheConfig {
	c := StatsCacheConfig{
		Enabled: envBool("STATS_CACHE_ENABLED", true),
		TTL:     envDur("STATS_CACHE_TTL", 30*time.Second),
		Prefix:  envStr("STATS_CACHE_PREFIX", "stats"),
	}
	if c.TTL <= 0 {
		c.TTL = time.Second
	}
	return c
}
