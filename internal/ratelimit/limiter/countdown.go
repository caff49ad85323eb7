package limiter

import (
	"context"
	"time"
)

// Countdown emits the remaining seconds once per second until it reaches
// zero or ctx is cancelled, then closes the channel. It is purely
// presentational: the UI drives a live "try again in N seconds" display from
// it without re-querying the limiter.
func Countdown(ctx context.Context, seconds int) <-chan int {
	return countdown(ctx, seconds, time.Second)
}

func countdown(ctx context.Context, seconds int, interval time.Duration) <-chan int {
	ch := make(chan int)
	go func() {
		defer close(ch)
		if seconds <= 0 {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		remaining := seconds
		for remaining > 0 {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				remaining--
				select {
				case ch <- remaining:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}
