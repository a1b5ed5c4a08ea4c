// Package distlock serializes batch operations across processes.
//
// Auto-matching and override-file rewrites are read-modify-write over shared
// state and must not overlap. Callers wrap them in WithLock; a lock that is
// already held surfaces as ErrNotAcquired instead of blocking.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Well-known lock keys.
const (
	AutoMatchKey     = "cohort-match:auto-match"
	OverrideWriteKey = "cohort-match:overrides:write"
)

// ErrNotAcquired is returned by WithLock when another holder owns the lock.
var ErrNotAcquired = errors.New("lock is held by another process")

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// NewLock creates a distributed lock using the best available backend.
// If redisClient is non-nil, uses Redis (preferred for cross-host locking).
// Otherwise falls back to PostgreSQL advisory locks, and to a process-local
// lock when there is no database either.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	if db != nil {
		return NewPGAdvisoryLock(db, key)
	}
	return NewLocalLock(key)
}

// WithLock runs fn while holding lock. The lock is released even if fn fails;
// a release error is only reported when fn itself succeeded.
func WithLock(ctx context.Context, lock DistLock, fn func(ctx context.Context) error) (err error) {
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrNotAcquired
	}
	defer func() {
		// Release on a fresh context so a cancelled caller still frees the lock.
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if relErr := lock.Release(relCtx); relErr != nil && err == nil {
			err = fmt.Errorf("release lock: %w", relErr)
		}
	}()
	return fn(ctx)
}

// =============================================================================
// PostgreSQL Advisory Lock (fallback when Redis is unavailable)
// =============================================================================
// Uses pg_try_advisory_lock / pg_advisory_unlock which are session-scoped, so
// both calls run on one pinned connection. The lock is released automatically
// if that connection drops.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to acquire the advisory lock. Returns true if successful.
// Uses pg_try_advisory_lock which returns immediately (non-blocking).
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release releases the advisory lock and returns its connection to the pool.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	closeErr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return err
	}
	return closeErr
}

// =============================================================================
// Process-local lock (in-memory mode)
// =============================================================================

var localLocks sync.Map // key -> *sync.Mutex

// LocalLock implements DistLock with a mutex shared by every LocalLock of
// the same key in this process.
type LocalLock struct {
	mu   *sync.Mutex
	held bool
}

// NewLocalLock returns a lock on key that only excludes holders in the
// current process.
func NewLocalLock(key string) *LocalLock {
	mu, _ := localLocks.LoadOrStore(key, &sync.Mutex{})
	return &LocalLock{mu: mu.(*sync.Mutex)}
}

// Acquire never blocks.
func (l *LocalLock) Acquire(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if l.held {
		return true, nil
	}
	l.held = l.mu.TryLock()
	return l.held, nil
}

// Release unlocks if this instance holds the lock.
func (l *LocalLock) Release(ctx context.Context) error {
	if l.held {
		l.held = false
		l.mu.Unlock()
	}
	return nil
}
