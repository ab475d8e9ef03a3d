package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tinywideclouds/go-indexing-service/pkg/dispatch"
	"github.com/tinywideclouds/go-indexing-service/pkg/notify"
)

// URLNotifier produces the result for one URL.
type URLNotifier interface {
	Notify(ctx context.Context, url string) notify.URLResult
}

// SitemapWriter regenerates the sitemap for a batch.
type SitemapWriter interface {
	Write(urls []string) error
}

// Dispatcher fans a batch out over a bounded worker pool.
type Dispatcher struct {
	notifier      URLNotifier
	batchChannels []dispatch.BatchChannel
	sitemap       SitemapWriter
	maxWorkers    int
	callTimeout   time.Duration
	logger        *slog.Logger
}

// NewDispatcher creates a Dispatcher. sitemap may be nil. maxWorkers below 1
// is treated as 1.
func NewDispatcher(
	notifier URLNotifier,
	batchChannels []dispatch.BatchChannel,
	sitemap SitemapWriter,
	maxWorkers int,
	callTimeout time.Duration,
	logger *slog.Logger,
) *Dispatcher {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Dispatcher{
		notifier:      notifier,
		batchChannels: batchChannels,
		sitemap:       sitemap,
		maxWorkers:    maxWorkers,
		callTimeout:   callTimeout,
		logger:        logger.With("component", "Dispatcher"),
	}
}

// Dispatch notifies every URL and returns one result per input URL, in
// completion order. Duplicates are processed independently.
func (d *Dispatcher) Dispatch(ctx context.Context, urls []string) []notify.URLResult {
	results := make([]notify.URLResult, 0, len(urls))
	if len(urls) == 0 {
		return results
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(d.maxWorkers)
	for _, u := range urls {
		g.Go(func() error {
			r := d.notifier.Notify(ctx, u)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Run processes a whole batch: the sitemap file is rewritten first, then the
// batch-level channels run alongside the per-URL dispatch.
func (d *Dispatcher) Run(ctx context.Context, id string, urls []string) *notify.Batch {
	log := d.logger.With("job_id", id)
	started := time.Now().UTC()
	log.Info("Batch started", "url_count", len(urls), "batch_channels", len(d.batchChannels))

	if d.sitemap != nil {
		if err := d.sitemap.Write(urls); err != nil {
			log.Warn("Failed to write sitemap", "err", err)
		}
	}

	target := fmt.Sprintf("batch of %d URLs", len(urls))
	submissions := make([]notify.Outcome, len(d.batchChannels))
	var wg sync.WaitGroup
	for i, ch := range d.batchChannels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			submissions[i] = guarded(ctx, d.callTimeout, ch.Name(), target, log, func(ctx context.Context) notify.Outcome {
				return ch.Submit(ctx, urls)
			})
		}()
	}

	results := d.Dispatch(ctx, urls)
	wg.Wait()

	batch := &notify.Batch{
		ID:          id,
		URLCount:    len(urls),
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
		Results:     results,
		Submissions: submissions,
	}
	report := notify.Aggregate(results)
	log.Info("Batch complete",
		"total", report.Total,
		"successful", report.Successful,
		"failed", report.Failed,
		"duration", batch.CompletedAt.Sub(started).String(),
	)
	return batch
}
