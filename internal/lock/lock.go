// Package lock provides keyed mutual exclusion within one process.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"golang.org/x/sync/semaphore"
)

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Keyed hands out one lock per key. Entries are dropped once nobody holds or
// waits for them, so the map only grows with live contention.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[string]*entry)}
}

// Acquire blocks until key is free or ctx ends. The ttl is ignored: a
// process-local holder cannot vanish without also releasing the lock.
func (k *Keyed) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		k.release(key, e)
		return nil, errors.WrapCode(errors.ErrLockTimeout, err, "timed out waiting for lock "+key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			k.release(key, e)
		})
	}, nil
}

func (k *Keyed) release(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// Len reports how many keys are held or awaited.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
