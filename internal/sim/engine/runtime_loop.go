package engine

import (
	"context"
	"time"
)

// Run ticks the engine every interval until ctx is done. afterTick, when set,
// is called on the loop goroutine after each tick with a 1-based tick counter.
func (e *Engine) Run(ctx context.Context, interval time.Duration, afterTick func(tick uint64)) error {
	if interval <= 0 {
		interval = e.Config().TickInterval()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var n uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.Tick(e.clock.Now())
			n++
			if afterTick != nil {
				afterTick(n)
			}
		}
	}
}
