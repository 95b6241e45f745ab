package claim

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemory_ExclusiveAcrossOverlappingKeySets(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	release, err := m.Acquire(ctx, []string{"b", "a"})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(waitCtx, []string{"b", "c"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected overlapping acquire to time out, got %v", err)
	}

	other, err := m.Acquire(ctx, []string{"c"})
	if err != nil {
		t.Fatalf("disjoint acquire: %v", err)
	}
	if err := other(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := release(ctx); err != nil {
		t.Fatalf("second release must be a no-op: %v", err)
	}
	if held := m.Held(); held != 0 {
		t.Fatalf("expected no held keys, got %d", held)
	}
}

func TestMemory_WaiterProceedsAfterRelease(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()
	release, err := m.Acquire(ctx, []string{"alice:2024-03-11"})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		rel, err := m.Acquire(ctx, []string{"alice:2024-03-11"})
		if err == nil {
			_ = rel(ctx)
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatalf("waiter acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}

	_ = release(ctx)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("waiter did not proceed after release")
	}
}

func TestMemory_SerializesConcurrentHolders(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()
	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rel, err := m.Acquire(ctx, []string{"k1", "k2"})
			if err != nil {
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			_ = rel(ctx)
		}()
	}
	wg.Wait()
	if maxSeen.Load() != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxSeen.Load())
	}
}

func TestMemory_RejectsEmptyKeys(t *testing.T) {
	t.Parallel()

	if _, err := NewMemory().Acquire(context.Background(), []string{""}); !errors.Is(err, ErrEmptyKeys) {
		t.Fatalf("expected ErrEmptyKeys, got %v", err)
	}
}

func TestRedis_AcquireAndRelease(t *testing.T) {
	addr := os.Getenv("SCHEDULER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SCHEDULER_TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	prefix := "test-" + time.Now().Format("150405.000000")
	claimer := NewRedis(rdb, 5*time.Second, prefix)

	release, err := claimer.Acquire(ctx, []string{"alice:2024-03-11", "bob:2024-03-11"})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := claimer.Acquire(waitCtx, []string{"bob:2024-03-11"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected contended acquire to time out, got %v", err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	again, err := claimer.Acquire(ctx, []string{"bob:2024-03-11"})
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = again(ctx)
}
