package redis

import (
	"context"
	"sync"
	"time"

	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockLua deletes the key only while it still holds our token, so a holder
// whose TTL ran out cannot release the next holder's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const defaultPollInterval = 25 * time.Millisecond

// LockManager is a cross-instance lock built on SET NX with a TTL. Acquire
// polls until the key frees up or ctx ends.
type LockManager struct {
	rdb          *redis.Client
	unlockScript *redis.Script
	pollInterval time.Duration
}

func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:          c.rdb,
		unlockScript: redis.NewScript(unlockLua),
		pollInterval: defaultPollInterval,
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := lockKey(key)

	ticker := time.NewTicker(lm.pollInterval)
	defer ticker.Stop()
	for {
		ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, errors.Wrap(err, "error acquiring lock "+key)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.WrapCode(errors.ErrLockTimeout, ctx.Err(), "timed out waiting for lock "+key)
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be gone by now.
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lm.unlockScript.Run(unlockCtx, lm.rdb, []string{lk}, token).Err()
		})
	}, nil
}
