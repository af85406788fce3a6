package limiter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	p := New("raw", 3)
	var current, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func(context.Context) error {
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak.Load() > 3 {
		t.Fatalf("peak concurrency %d exceeds pool size 3", peak.Load())
	}
	if p.InFlight() != 0 {
		t.Fatalf("slots leaked: %d", p.InFlight())
	}
}

func TestPoolAcquireHonoursContext(t *testing.T) {
	p := New("analytic", 1)
	if err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer p.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPoolDoReturnsError(t *testing.T) {
	p := New("raw", 0)
	if p.Size() != 1 {
		t.Fatalf("size should be raised to 1, got %d", p.Size())
	}
	want := errors.New("boom")
	if err := p.Do(context.Background(), func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Fatalf("expected boom, got %v", err)
	}
	if p.InFlight() != 0 {
		t.Fatalf("slot not released after error")
	}
}
