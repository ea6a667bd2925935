package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunLocker guards against two processes running the same campaign at once.
// The TTL only has to cover the gap between two Refresh calls, not a whole
// run; a holder that stops refreshing is treated as crashed.
type RunLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Refresh(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// RedisRunLocker implements RunLocker with a SETNX lock
type RedisRunLocker struct {
	rc     *redis.Client
	prefix string
}

// NewRedisRunLocker creates a new Redis-backed run locker
func NewRedisRunLocker(rc *redis.Client, prefix string) *RedisRunLocker {
	return &RedisRunLocker{rc: rc, prefix: prefix}
}

// Acquire takes the lock (SETNX with TTL). The TTL covers crashed processes;
// a live run keeps the lock by refreshing it between recipients.
func (l *RedisRunLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.rc.SetNX(ctx, l.prefix+key, "1", ttl).Result()
}

// Refresh re-extends the TTL of a held lock
func (l *RedisRunLocker) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	return l.rc.Expire(ctx, l.prefix+key, ttl).Err()
}

// Release drops the lock
func (l *RedisRunLocker) Release(ctx context.Context, key string) error {
	return l.rc.Del(context.WithoutCancel(ctx), l.prefix+key).Err()
}

// MemoryRunLocker implements RunLocker in process memory, for single-node
// deployments without Redis and for tests
type MemoryRunLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

// NewMemoryRunLocker creates a new in-memory run locker
func NewMemoryRunLocker() *MemoryRunLocker {
	return &MemoryRunLocker{locks: make(map[string]time.Time)}
}

// Acquire takes the lock if it is free or expired
func (l *MemoryRunLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if expiry, ok := l.locks[key]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	l.locks[key] = time.Now().Add(ttl)
	return true, nil
}

// Refresh pushes out the expiry of a lock this process still holds
func (l *MemoryRunLocker) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.locks[key]; ok {
		l.locks[key] = time.Now().Add(ttl)
	}
	return nil
}

// Release drops the lock
func (l *MemoryRunLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, key)
	return nil
}
