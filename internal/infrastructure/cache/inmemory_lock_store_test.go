package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLockStore_AcquireAndHold(t *testing.T) {
	store := NewInMemoryLockStore()
	ctx := context.Background()

	acquired, err := store.Acquire(ctx, "netting:confirm:abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = store.Acquire(ctx, "netting:confirm:abc", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestInMemoryLockStore_IndependentKeys(t *testing.T) {
	store := NewInMemoryLockStore()
	ctx := context.Background()

	acquired, err := store.Acquire(ctx, "netting:confirm:a", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = store.Acquire(ctx, "netting:confirm:b", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestInMemoryLockStore_ReleaseFreesKey(t *testing.T) {
	store := NewInMemoryLockStore()
	ctx := context.Background()

	acquired, err := store.Acquire(ctx, "netting:confirm:abc", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, store.Release(ctx, "netting:confirm:abc"))

	acquired, err = store.Acquire(ctx, "netting:confirm:abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestInMemoryLockStore_ExpiredLockIsReclaimed(t *testing.T) {
	store := NewInMemoryLockStore()
	ctx := context.Background()

	acquired, err := store.Acquire(ctx, "netting:confirm:abc", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	time.Sleep(20 * time.Millisecond)

	acquired, err = store.Acquire(ctx, "netting:confirm:abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestInMemoryLockStore_ReleaseUnknownKeyIsNoop(t *testing.T) {
	store := NewInMemoryLockStore()
	assert.NoError(t, store.Release(context.Background(), "never-acquired"))
}
