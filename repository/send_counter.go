package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/velozap/disparador/utils"
)

// RedisSendCounter implements SendCounter on a shared Redis instance so the
// daily quota holds across processes. Keys are bucketed by the local calendar
// day and expire on their own.
type RedisSendCounter struct {
	rc     *redis.Client
	prefix string
}

func NewRedisSendCounter(rc *redis.Client, prefix string) *RedisSendCounter {
	return &RedisSendCounter{rc: rc, prefix: prefix}
}

func (c *RedisSendCounter) key() (string, error) {
	now, err := utils.SaoPauloNow()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%sdaily_sends:%s", c.prefix, now.Format("2006-01-02")), nil
}

func (c *RedisSendCounter) CountToday(ctx context.Context) (int, error) {
	key, err := c.key()
	if err != nil {
		return 0, err
	}
	n, err := c.rc.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read daily send counter: %w", err)
	}
	return n, nil
}

func (c *RedisSendCounter) Increment(ctx context.Context) (int, error) {
	key, err := c.key()
	if err != nil {
		return 0, err
	}
	n, err := c.rc.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment daily send counter: %w", err)
	}
	if n == 1 {
		// First send of the day; let the bucket outlive the day boundary by a
		// margin so late readers still see it, then expire on its own.
		_ = c.rc.Expire(ctx, key, 48*time.Hour).Err()
	}
	return int(n), nil
}

// MemorySendCounter implements SendCounter in process memory. Used in tests
// and in redis-less single-instance deployments.
type MemorySendCounter struct {
	mu    sync.Mutex
	day   string
	count int
	now   func() time.Time
}

func NewMemorySendCounter() *MemorySendCounter {
	return &MemorySendCounter{}
}

// NewMemorySendCounterAt builds a counter with a custom clock, for tests
func NewMemorySendCounterAt(now func() time.Time) *MemorySendCounter {
	return &MemorySendCounter{now: now}
}

func (c *MemorySendCounter) today() string {
	if c.now != nil {
		return c.now().Format("2006-01-02")
	}
	if now, err := utils.SaoPauloNow(); err == nil {
		return now.Format("2006-01-02")
	}
	return utils.UTCNow().Format("2006-01-02")
}

// rollover resets the counter at the local-day boundary. Caller holds the lock.
func (c *MemorySendCounter) rollover() {
	day := c.today()
	if day != c.day {
		c.day = day
		c.count = 0
	}
}

func (c *MemorySendCounter) CountToday(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollover()
	return c.count, nil
}

func (c *MemorySendCounter) Increment(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollover()
	c.count++
	return c.count, nil
}
