package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRunLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryRunLocker()

	t.Run("AcquireIsExclusive", func(t *testing.T) {
		taken, err := locker.Acquire(ctx, "campaign_run:1", time.Minute)
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = locker.Acquire(ctx, "campaign_run:1", time.Minute)
		require.NoError(t, err)
		assert.False(t, taken)

		require.NoError(t, locker.Release(ctx, "campaign_run:1"))
		taken, err = locker.Acquire(ctx, "campaign_run:1", time.Minute)
		require.NoError(t, err)
		assert.True(t, taken)
		require.NoError(t, locker.Release(ctx, "campaign_run:1"))
	})

	t.Run("ExpiredLockIsReacquirable", func(t *testing.T) {
		taken, err := locker.Acquire(ctx, "campaign_run:2", -time.Second)
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = locker.Acquire(ctx, "campaign_run:2", time.Minute)
		require.NoError(t, err)
		assert.True(t, taken)
		require.NoError(t, locker.Release(ctx, "campaign_run:2"))
	})

	t.Run("RefreshExtendsHeldLock", func(t *testing.T) {
		// A lock about to expire stays exclusive after a refresh
		taken, err := locker.Acquire(ctx, "campaign_run:3", time.Millisecond)
		require.NoError(t, err)
		assert.True(t, taken)

		require.NoError(t, locker.Refresh(ctx, "campaign_run:3", time.Minute))
		time.Sleep(5 * time.Millisecond)

		taken, err = locker.Acquire(ctx, "campaign_run:3", time.Minute)
		require.NoError(t, err)
		assert.False(t, taken)
		require.NoError(t, locker.Release(ctx, "campaign_run:3"))
	})

	t.Run("RefreshOnFreeKeyIsNoOp", func(t *testing.T) {
		require.NoError(t, locker.Refresh(ctx, "campaign_run:4", time.Minute))
		taken, err := locker.Acquire(ctx, "campaign_run:4", time.Minute)
		require.NoError(t, err)
		assert.True(t, taken)
		require.NoError(t, locker.Release(ctx, "campaign_run:4"))
	})
}
