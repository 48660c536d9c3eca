package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/cinema-booking-core/internal/store"
)

// keyedMutex hands out one exclusive lock per key.  Entries are created on
// demand and dropped when nobody holds or waits for them, so the map only
// grows with contention, not with the number of seats ever touched.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
	wait    time.Duration // 0 waits until ctx is done
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func newKeyedMutex(wait time.Duration) *keyedMutex {
	return &keyedMutex{entries: make(map[string]*lockEntry), wait: wait}
}

// Lock blocks until key is free, ctx is done, or the wait limit runs out.
// The latter two return store.ErrLockTimeout.
func (k *keyedMutex) Lock(ctx context.Context, key string) error {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	var timeout <-chan time.Time
	if k.wait > 0 {
		t := time.NewTimer(k.wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
	case <-timeout:
	}
	k.release(key, e)
	return store.ErrLockTimeout
}

// Unlock frees key.  It must only be called by the holder.
func (k *keyedMutex) Unlock(key string) {
	k.mu.Lock()
	e := k.entries[key]
	k.mu.Unlock()
	if e == nil {
		return
	}
	<-e.ch
	k.release(key, e)
}

func (k *keyedMutex) release(key string, e *lockEntry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()
}
