package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"binrush.ai/internal/sim/clock"
)

func TestMemoryLedger_SingleUse(t *testing.T) {
	fc := clock.NewFake(time.UnixMilli(1_000_000))
	l := NewMemoryLedger(fc, time.Minute)
	exp := fc.Now().Add(time.Hour)

	first, err := l.Consume(context.Background(), "s1", exp)
	if err != nil || !first {
		t.Fatalf("first consume: first=%v err=%v", first, err)
	}
	again, err := l.Consume(context.Background(), "s1", exp)
	if err != nil || again {
		t.Fatalf("second consume: first=%v err=%v", again, err)
	}
	other, _ := l.Consume(context.Background(), "s2", exp)
	if !other {
		t.Fatalf("distinct id should be first use")
	}
}

func TestMemoryLedger_PrunesExpired(t *testing.T) {
	fc := clock.NewFake(time.UnixMilli(1_000_000))
	l := NewMemoryLedger(fc, time.Second)
	_, _ = l.Consume(context.Background(), "old", fc.Now().Add(10*time.Second))
	_, _ = l.Consume(context.Background(), "live", fc.Now().Add(time.Hour))

	fc.Advance(time.Minute)
	_, _ = l.Consume(context.Background(), "new", fc.Now().Add(time.Hour))
	if got := l.Len(); got != 2 {
		t.Fatalf("len=%d want 2 after prune", got)
	}
	again, _ := l.Consume(context.Background(), "live", fc.Now().Add(time.Hour))
	if again {
		t.Fatalf("live id must stay consumed")
	}
}

func TestMemoryLedger_ConcurrentConsume(t *testing.T) {
	l := NewMemoryLedger(clock.Real{}, time.Minute)
	exp := time.Now().Add(time.Hour)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Consume(context.Background(), "race", exp); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("wins=%d want 1", wins.Load())
	}
}
