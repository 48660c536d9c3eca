package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only if we still own it.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Lease is a best-effort mutual exclusion across replicas, used so that
// only one instance runs a given sweep.  Correctness never depends on it:
// every expiry is its own row-locked transaction.
type Lease struct {
	rdb   redis.Cmdable
	key   string
	owner string
	ttl   time.Duration
}

// NewLease returns a lease on key held as owner for at most ttl.
func NewLease(rdb redis.Cmdable, key, owner string, ttl time.Duration) *Lease {
	return &Lease{rdb: rdb, key: key, owner: owner, ttl: ttl}
}

// Acquire tries to take the lease without waiting.
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	return l.rdb.SetNX(ctx, l.key, l.owner, l.ttl).Result()
}

// Release gives the lease back if this owner still holds it.
func (l *Lease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.rdb, []string{l.key}, l.owner).Err()
}
