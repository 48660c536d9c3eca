// Package cache holds the Redis-backed helpers of the reservation core:
// the availability stats cache and the sweeper lease.  Both treat Redis as
// optional; an error only costs a store read or an extra sweep.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-core/internal/config"
	"github.com/iliyamo/cinema-booking-core/internal/model"
)

// setScript writes the entry only while the generation is still the one
// the caller saw before reading the store.
var setScript = redis.NewScript(`
	local gen = redis.call('GET', KEYS[2]) or ''
	if gen ~= ARGV[1] then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
	return 1
`)

// StatsCache stores model.AvailabilityStats as JSON under
// "<prefix>:showtime:<id>".  Every invalidation also bumps a generation
// counter under "<prefix>:showtime:<id>:gen", so a snapshot read before a
// seat change can never be written after it.
type StatsCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	log    *logrus.Entry
}

// NewStatsCache returns a cache over rdb.
func NewStatsCache(rdb redis.Cmdable, cfg config.StatsCacheConfig, log *logrus.Entry) *StatsCache {
	return &StatsCache{rdb: rdb, ttl: cfg.TTL, prefix: cfg.Prefix, log: log}
}

func (c *StatsCache) key(showtimeID uuid.UUID) string {
	return c.prefix + ":showtime:" + showtimeID.String()
}

func (c *StatsCache) genKey(showtimeID uuid.UUID) string {
	return c.key(showtimeID) + ":gen"
}

// Get reports a miss on any error, including a malformed entry.  The
// returned generation is passed back to Set after a miss.
func (c *StatsCache) Get(ctx context.Context, showtimeID uuid.UUID) (model.AvailabilityStats, string, bool) {
	vals, err := c.rdb.MGet(ctx, c.key(showtimeID), c.genKey(showtimeID)).Result()
	if err != nil || len(vals) != 2 {
		if err != nil {
			c.log.WithError(err).Debug("stats cache read failed")
		}
		return model.AvailabilityStats{}, "", false
	}
	gen, _ := vals[1].(string)
	raw, ok := vals[0].(string)
	if !ok {
		return model.AvailabilityStats{}, gen, false
	}
	var stats model.AvailabilityStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		c.log.WithError(err).Warn("dropping malformed stats cache entry")
		return model.AvailabilityStats{}, gen, false
	}
	return stats, gen, true
}

// Set stores stats unless the showtime was invalidated since gen was read.
func (c *StatsCache) Set(ctx context.Context, stats model.AvailabilityStats, gen string) {
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	keys := []string{c.key(stats.ShowtimeID), c.genKey(stats.ShowtimeID)}
	if err := setScript.Run(ctx, c.rdb, keys, gen, string(raw), c.ttl.Milliseconds()).Err(); err != nil {
		c.log.WithError(err).Debug("stats cache write failed")
	}
}

// Invalidate bumps the generation and drops the entry; the next Get falls
// through to the store.
func (c *StatsCache) Invalidate(ctx context.Context, showtimeID uuid.UUID) {
	log := c.log.WithField("showtime_id", showtimeID)
	if err := c.rdb.Incr(ctx, c.genKey(showtimeID)).Err(); err != nil {
		log.WithError(err).Warn("stats cache generation bump failed")
	}
	if err := c.rdb.Del(ctx, c.key(showtimeID)).Err(); err != nil {
		log.WithError(err).Warn("stats cache invalidation failed")
	}
}
