package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	redsyncredis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredis "github.com/redis/go-redis/v9"

	apperrors "backoffice/pkg/errors"
)

const lockRetryDelay = 500 * time.Millisecond

// Lock is a held lease over a named resource. Release only succeeds while
// the caller still holds the lease; a lease that expired and was reacquired
// by someone else cannot be released from here.
type Lock interface {
	Release(ctx context.Context) error
}

// LockManager hands out time-bounded mutual-exclusion leases valid across
// process instances.
type LockManager interface {
	// Acquire blocks up to wait for the lease on key, holding it for at
	// most ttl. A timeout returns ErrLockNotAcquired.
	Acquire(ctx context.Context, key string, wait, ttl time.Duration) (Lock, error)
}

type redsyncLock struct {
	mutex *redsync.Mutex
}

func (l *redsyncLock) Release(ctx context.Context) error {
	ok, err := l.mutex.UnlockContext(ctx)
	if err != nil {
		if errors.Is(err, redsync.ErrLockAlreadyExpired) {
			return apperrors.ErrLockNotHeld
		}
		return fmt.Errorf("failed to release lock %s: %w", l.mutex.Name(), err)
	}
	if !ok {
		return apperrors.ErrLockNotHeld
	}
	return nil
}

type redsyncLockManager struct {
	rs *redsync.Redsync
}

// NewLockManager builds a Redis-backed lease service.
func NewLockManager(client *goredis.Client) LockManager {
	pool := redsyncredis.NewPool(client)
	return &redsyncLockManager{rs: redsync.New(pool)}
}

func (m *redsyncLockManager) Acquire(ctx context.Context, key string, wait, ttl time.Duration) (Lock, error) {
	tries := int(wait / lockRetryDelay)
	if tries < 1 {
		tries = 1
	}

	mutex := m.rs.NewMutex(key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(lockRetryDelay),
	)

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	if err := mutex.LockContext(waitCtx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrLockNotAcquired, key, err)
	}
	return &redsyncLock{mutex: mutex}, nil
}
