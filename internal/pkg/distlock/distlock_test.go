package distlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisLock_SingleHolder(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	first := NewRedisLock(client, AutoMatchKey, time.Minute)
	second := NewRedisLock(client, AutoMatchKey, time.Minute)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lock:"+AutoMatchKey))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not acquire a held lock")

	// A non-owner release is a no-op.
	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists("lock:"+AutoMatchKey))

	require.NoError(t, first.Release(ctx))
	assert.False(t, mr.Exists("lock:"+AutoMatchKey))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ExpiresAfterTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	first := NewRedisLock(client, OverrideWriteKey, 10*time.Second)
	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(11 * time.Second)

	ok, err = NewRedisLock(client, OverrideWriteKey, 10*time.Second).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWithLock_RunsAndReleases(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewLock(client, nil, AutoMatchKey, time.Minute)

	ran := false
	err := WithLock(context.Background(), lock, func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:"+AutoMatchKey))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:"+AutoMatchKey))
}

func TestWithLock_HeldLockReturnsErrNotAcquired(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	holder := NewRedisLock(client, AutoMatchKey, time.Minute)
	ok, err := holder.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	err = WithLock(ctx, NewRedisLock(client, AutoMatchKey, time.Minute), func(context.Context) error {
		t.Fatal("fn must not run while the lock is held")
		return nil
	})
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestWithLock_PropagatesFnError(t *testing.T) {
	client, mr := setupTestRedis(t)
	boom := errors.New("boom")

	err := WithLock(context.Background(), NewRedisLock(client, AutoMatchKey, time.Minute), func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:"+AutoMatchKey), "lock must be released after a failed run")
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lock := NewPGAdvisoryLock(db, AutoMatchKey)

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(lock.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(lock.lockID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = WithLock(context.Background(), lock, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_NotAcquired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lock := NewLock(nil, db, AutoMatchKey, time.Minute)
	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	err = WithLock(context.Background(), lock, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalLock_ExcludesSameKey(t *testing.T) {
	ctx := context.Background()
	key := "test:" + t.Name()

	first := NewLock(nil, nil, key, time.Minute)
	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	err = WithLock(ctx, NewLocalLock(key), func(context.Context) error {
		t.Fatal("fn must not run while the lock is held")
		return nil
	})
	assert.ErrorIs(t, err, ErrNotAcquired)

	ok, err = NewLocalLock(key + ":other").Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "different keys do not exclude each other")

	require.NoError(t, first.Release(ctx))
	require.NoError(t, WithLock(ctx, NewLocalLock(key), func(context.Context) error { return nil }))
}
