package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultLockInitialBackoff = 50 * time.Millisecond
	defaultLockMaxBackoff     = time.Second
	defaultLockMaxAttempts    = 5
)

// ErrLockHeld is returned by lockers when another caller owns the key.
var ErrLockHeld = errors.New("core: refresh lock already held")

type BackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultLockInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultLockMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// acquireWithBackoff retries a contended lock until it is free, the
// attempts run out or ctx ends.
func acquireWithBackoff(
	ctx context.Context,
	locker KeyLocker,
	key string,
	ttl time.Duration,
	maxAttempts int,
	backoff BackoffScheduler,
) (LockHandle, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultLockMaxAttempts
	}
	if backoff == nil {
		backoff = ExponentialBackoffScheduler{}
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		handle, err := locker.Acquire(ctx, key, ttl)
		if err == nil {
			return handle, nil
		}
		lastErr = err
		if !errors.Is(err, ErrLockHeld) {
			return nil, err
		}
		if attempt == maxAttempts {
			break
		}
		timer := time.NewTimer(backoff.NextDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("core: acquire refresh lock for %q: %w", key, lastErr)
}

type MemoryKeyLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	nowFn func() time.Time
}

func NewMemoryKeyLocker() *MemoryKeyLocker {
	return &MemoryKeyLocker{
		locks: make(map[string]time.Time),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryKeyLocker) Acquire(_ context.Context, key string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: key locker is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("core: key is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = DefaultRefreshLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.locks[key]; ok && now.Before(until) {
		return nil, fmt.Errorf("%w for key %q", ErrLockHeld, key)
	}
	l.locks[key] = now.Add(ttl)
	return &memoryLockHandle{locker: l, key: key}, nil
}

type memoryLockHandle struct {
	locker *MemoryKeyLocker
	key    string
	once   sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		delete(h.locker.locks, h.key)
		h.locker.mu.Unlock()
	})
	return nil
}

var _ KeyLocker = (*MemoryKeyLocker)(nil)
