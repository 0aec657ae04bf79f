package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestWaitDelaysSameProvider(t *testing.T) {
	const interval = 80 * time.Millisecond
	l := New(interval)
	ctx := context.Background()

	if err := l.Wait(ctx, "openai"); err != nil {
		t.Fatalf("first Wait err: %v", err)
	}
	first := time.Now()

	time.Sleep(20 * time.Millisecond)

	if err := l.Wait(ctx, "openai"); err != nil {
		t.Fatalf("second Wait err: %v", err)
	}
	if elapsed := time.Since(first); elapsed < interval-5*time.Millisecond {
		t.Fatalf("second call not delayed enough: %v", elapsed)
	}
}

func TestWaitDoesNotBlockOtherProviders(t *testing.T) {
	l := New(500 * time.Millisecond)
	ctx := context.Background()

	if err := l.Wait(ctx, "xai"); err != nil {
		t.Fatalf("Wait err: %v", err)
	}

	start := time.Now()
	if err := l.Wait(ctx, "anthropic"); err != nil {
		t.Fatalf("Wait err: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("different provider was blocked for %v", elapsed)
	}
}

func TestWaitSerializesConcurrentCallers(t *testing.T) {
	const interval = 40 * time.Millisecond
	l := New(interval)
	ctx := context.Background()

	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Wait(ctx, "deepseek"); err != nil {
				t.Errorf("Wait err: %v", err)
				return
			}
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(times) != 3 {
		t.Fatalf("expected 3 completions, got %d", len(times))
	}
	earliest, latest := times[0], times[0]
	for _, ts := range times {
		if ts.Before(earliest) {
			earliest = ts
		}
		if ts.After(latest) {
			latest = ts
		}
	}
	if spread := latest.Sub(earliest); spread < 2*interval-10*time.Millisecond {
		t.Fatalf("concurrent calls were not spaced: spread %v", spread)
	}
}

func TestWaitHonoursCancellation(t *testing.T) {
	l := New(time.Second)
	if err := l.Wait(context.Background(), "openai"); err != nil {
		t.Fatalf("Wait err: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "openai"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDeferPushesNextSlot(t *testing.T) {
	l := New(10 * time.Millisecond)
	ctx := context.Background()

	l.Defer("xai", 100*time.Millisecond)
	start := time.Now()
	if err := l.Wait(ctx, "xai"); err != nil {
		t.Fatalf("Wait err: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("deferred provider called too early: %v", elapsed)
	}

	start = time.Now()
	if err := l.Wait(ctx, "anthropic"); err != nil {
		t.Fatalf("Wait err: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("other provider was deferred for %v", elapsed)
	}
}

func TestDeferNeverMovesSlotEarlier(t *testing.T) {
	l := New(200 * time.Millisecond)
	ctx := context.Background()

	if err := l.Wait(ctx, "openai"); err != nil {
		t.Fatalf("Wait err: %v", err)
	}
	l.Defer("openai", time.Millisecond)

	start := time.Now()
	if err := l.Wait(ctx, "openai"); err != nil {
		t.Fatalf("Wait err: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("short Defer shortened the interval: %v", elapsed)
	}
}
