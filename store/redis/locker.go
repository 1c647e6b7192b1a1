package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-ledgerbridge/core"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still carries the owner's
// token, so an expired and re-acquired lock is never released by the
// previous holder.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	client goredis.UniversalClient
	prefix string
}

func NewLocker(client goredis.UniversalClient, prefix string) (*Locker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis: client is required")
	}
	return &Locker{client: client, prefix: strings.TrimSpace(prefix)}, nil
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (core.LockHandle, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("redis: lock key is required")
	}
	if ttl <= 0 {
		ttl = core.DefaultRefreshLockTTL
	}
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %q: %w", key, err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w for key %q", core.ErrLockHeld, key)
	}
	return &lockHandle{client: l.client, key: lockKey, token: token}, nil
}

type lockHandle struct {
	client goredis.UniversalClient
	key    string
	token  string
	once   sync.Once
	err    error
}

func (h *lockHandle) Unlock(ctx context.Context) error {
	h.once.Do(func() {
		if err := releaseScript.Run(ctx, h.client, []string{h.key}, h.token).Err(); err != nil {
			h.err = fmt.Errorf("redis: release lock: %w", err)
		}
	})
	return h.err
}

var _ core.KeyLocker = (*Locker)(nil)
