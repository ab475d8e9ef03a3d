package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tinywideclouds/go-indexing-service/pkg/dispatch"
	"github.com/tinywideclouds/go-indexing-service/pkg/notify"
)

// Notifier attempts every enabled per-URL channel for one URL.
type Notifier struct {
	channels    []dispatch.URLChannel
	callTimeout time.Duration
	logger      *slog.Logger
}

func NewNotifier(channels []dispatch.URLChannel, callTimeout time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		channels:    channels,
		callTimeout: callTimeout,
		logger:      logger.With("component", "Notifier"),
	}
}

// Notify calls the channels concurrently. Outcomes are returned in channel
// order regardless of completion order, and no channel failure aborts the others.
func (n *Notifier) Notify(ctx context.Context, url string) notify.URLResult {
	result := notify.URLResult{
		URL:       url,
		Timestamp: time.Now().UTC(),
		Outcomes:  make([]notify.Outcome, len(n.channels)),
	}

	var wg sync.WaitGroup
	for i, ch := range n.channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result.Outcomes[i] = guarded(ctx, n.callTimeout, ch.Name(), url, n.logger, func(ctx context.Context) notify.Outcome {
				return ch.Notify(ctx, url)
			})
		}()
	}
	wg.Wait()

	if !result.Succeeded() && len(n.channels) > 0 {
		n.logger.Warn("No channel accepted URL", "url", url)
	}
	return result
}
