package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-indexing-service/pkg/notify"
)

// guarded runs one channel call under a deadline. A call that overruns or
// panics becomes a failed outcome; it never escapes to the caller.
func guarded(
	ctx context.Context,
	timeout time.Duration,
	channel, target string,
	logger *slog.Logger,
	call func(ctx context.Context) notify.Outcome,
) notify.Outcome {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan notify.Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Channel panicked", "channel", channel, "target", target, "panic", r)
				done <- notify.Failure(channel, target, 0, fmt.Sprintf("channel panic: %v", r))
			}
		}()
		done <- call(ctx)
	}()

	var outcome notify.Outcome
	select {
	case outcome = <-done:
	case <-ctx.Done():
		outcome = notify.Failure(channel, target, 0, fmt.Sprintf("no response: %v", ctx.Err()))
	}
	recordOutcome(outcome, time.Since(start))
	return outcome
}
