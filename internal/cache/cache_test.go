package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-core/internal/config"
	"github.com/iliyamo/cinema-booking-core/internal/logger"
	"github.com/iliyamo/cinema-booking-core/internal/model"
)

func newStatsCache(t *testing.T) (*StatsCache, redismock.ClientMock) {
	t.Helper()
	rdb, mock := redismock.NewClientMock()
	cfg := config.StatsCacheConfig{Enabled: true, TTL: 30 * time.Second, Prefix: "stats"}
	return NewStatsCache(rdb, cfg, logger.Discard()), mock
}

func TestStatsCache_RoundTrip(t *testing.T) {
	c, mock := newStatsCache(t)
	ctx := context.Background()
	stats := model.AvailabilityStats{ShowtimeID: uuid.New(), Total: 10, Available: 7, Held: 2, Booked: 1}
	key := "stats:showtime:" + stats.ShowtimeID.String()
	gen := key + ":gen"
	raw, err := json.Marshal(stats)
	require.NoError(t, err)

	mock.ExpectMGet(key, gen).SetVal([]interface{}{nil, nil})
	_, g, ok := c.Get(ctx, stats.ShowtimeID)
	assert.False(t, ok)
	assert.Empty(t, g)

	mock.ExpectEvalSha(setScript.Hash(), []string{key, gen}, "", string(raw), int64(30000)).SetVal(int64(1))
	c.Set(ctx, stats, g)

	mock.ExpectMGet(key, gen).SetVal([]interface{}{string(raw), nil})
	got, _, ok := c.Get(ctx, stats.ShowtimeID)
	assert.True(t, ok)
	assert.Equal(t, stats, got)

	mock.ExpectIncr(gen).SetVal(1)
	mock.ExpectDel(key).SetVal(1)
	c.Invalidate(ctx, stats.ShowtimeID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsCache_StaleSnapshotIsNotStored(t *testing.T) {
	c, mock := newStatsCache(t)
	ctx := context.Background()
	stats := model.AvailabilityStats{ShowtimeID: uuid.New(), Total: 4, Available: 4}
	key := "stats:showtime:" + stats.ShowtimeID.String()
	gen := key + ":gen"
	raw, err := json.Marshal(stats)
	require.NoError(t, err)

	// A reader misses at generation 3, then a hold invalidates before the
	// reader writes back what it read from the store.
	mock.ExpectMGet(key, gen).SetVal([]interface{}{nil, "3"})
	_, g, ok := c.Get(ctx, stats.ShowtimeID)
	require.False(t, ok)
	require.Equal(t, "3", g)

	mock.ExpectIncr(gen).SetVal(4)
	mock.ExpectDel(key).SetVal(0)
	c.Invalidate(ctx, stats.ShowtimeID)

	mock.ExpectEvalSha(setScript.Hash(), []string{key, gen}, "3", string(raw), int64(30000)).SetVal(int64(0))
	c.Set(ctx, stats, g)

	mock.ExpectMGet(key, gen).SetVal([]interface{}{nil, "4"})
	_, g, ok = c.Get(ctx, stats.ShowtimeID)
	assert.False(t, ok)
	assert.Equal(t, "4", g)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsCache_MissesOnErrors(t *testing.T) {
	c, mock := newStatsCache(t)
	ctx := context.Background()
	id := uuid.New()
	key := "stats:showtime:" + id.String()
	gen := key + ":gen"

	mock.ExpectMGet(key, gen).SetErr(errors.New("connection refused"))
	_, _, ok := c.Get(ctx, id)
	assert.False(t, ok)

	mock.ExpectMGet(key, gen).SetVal([]interface{}{"{not json", "2"})
	_, g, ok := c.Get(ctx, id)
	assert.False(t, ok)
	assert.Equal(t, "2", g)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLease_AcquireAndRelease(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	ctx := context.Background()
	lease := NewLease(rdb, "sweep:lease", "replica-a", time.Minute)
	rival := NewLease(rdb, "sweep:lease", "replica-b", time.Minute)

	mock.ExpectSetNX("sweep:lease", "replica-a", time.Minute).SetVal(true)
	ok, err := lease.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectSetNX("sweep:lease", "replica-b", time.Minute).SetVal(false)
	ok, err = rival.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectEvalSha(releaseScript.Hash(), []string{"sweep:lease"}, "replica-a").SetVal(int64(1))
	require.NoError(t, lease.Release(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}
