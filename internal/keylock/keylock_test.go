package keylock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

func TestMap_SerializesSameKey(t *testing.T) {
	m := New()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(context.Background(), "k")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("max concurrent holders = %d; want 1", maxInside)
	}
	if m.Len() != 0 {
		t.Fatalf("idle entries should be dropped, got %d", m.Len())
	}
}

func TestMap_DifferentKeysDoNotBlock(t *testing.T) {
	m := New()
	unlockA, err := m.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("lock a: %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	unlockB, err := m.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("lock b should not wait on a: %v", err)
	}
	unlockB()
}

func TestMap_ContextCancelWhileWaiting(t *testing.T) {
	m := New()
	unlock, _ := m.Lock(context.Background(), "k")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	unlock()
	unlock() // idempotent
	if m.Len() != 0 {
		t.Fatalf("entries leaked after cancel: %d", m.Len())
	}
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("skip: REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("skip: redis not available at %s: %v", addr, err)
	}
	return client
}

func TestDistributed_ExcludesAcrossInstances(t *testing.T) {
	client := newRedisClient(t)
	prefix := fmt.Sprintf("test:keylock:%d:", time.Now().UnixNano())

	// two lockers sharing Redis model two service instances
	a := NewDistributed(redislock.New(client), prefix, 5*time.Second, 100*time.Millisecond)
	b := NewDistributed(redislock.New(client), prefix, 5*time.Second, 100*time.Millisecond)

	unlock, err := a.Lock(context.Background(), "u1:c1")
	if err != nil {
		t.Fatalf("a lock: %v", err)
	}
	if _, err := b.Lock(context.Background(), "u1:c1"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy from second instance, got %v", err)
	}
	unlock()

	unlockB, err := b.Lock(context.Background(), "u1:c1")
	if err != nil {
		t.Fatalf("b lock after release: %v", err)
	}
	unlockB()
}
