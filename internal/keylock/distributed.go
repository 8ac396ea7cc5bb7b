package keylock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/rs/zerolog/log"
)

// ErrBusy is returned when the distributed lock could not be obtained
// within the wait budget.
var ErrBusy = errors.New("keylock: busy")

// Distributed takes the local lock first, then a Redis lock on the same key.
// Local contention never reaches Redis.
type Distributed struct {
	local  *Map
	client *redislock.Client
	prefix string
	ttl    time.Duration // lease; must outlive the critical section
	wait   time.Duration // how long to retry obtaining the lease
	retry  time.Duration
}

// NewDistributed wires a Redis-backed locker. ttl bounds how long a crashed
// holder can block others; wait bounds how long Lock retries.
func NewDistributed(client *redislock.Client, prefix string, ttl, wait time.Duration) *Distributed {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &Distributed{
		local:  New(),
		client: client,
		prefix: prefix,
		ttl:    ttl,
		wait:   wait,
		retry:  50 * time.Millisecond,
	}
}

// Lock implements Locker.
func (d *Distributed) Lock(ctx context.Context, key string) (func(), error) {
	unlockLocal, err := d.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	obtainCtx, cancel := context.WithTimeout(ctx, d.wait)
	defer cancel()

	lock, err := d.client.Obtain(obtainCtx, d.prefix+key, d.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(d.retry),
	})
	if err != nil {
		unlockLocal()
		if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrBusy, key)
		}
		return nil, err
	}

	return func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lock.Release(rctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			log.Warn().Err(err).Str("key", key).Msg("keylock: release redis lock")
		}
		unlockLocal()
	}, nil
}
