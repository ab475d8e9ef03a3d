// Package job runs at most one batch at a time and remembers the last
// completed one for status queries.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinywideclouds/go-indexing-service/pkg/dispatch"
	"github.com/tinywideclouds/go-indexing-service/pkg/notify"
)

var (
	ErrJobRunning = errors.New("job already running")
	ErrNoURLs     = errors.New("no URLs provided")
)

const saveTimeout = 10 * time.Second

// Runner executes a batch to completion.
type Runner interface {
	Run(ctx context.Context, id string, urls []string) *notify.Batch
}

// Handle identifies an accepted batch.
type Handle struct {
	ID        string
	URLCount  int
	StartedAt time.Time

	done  chan struct{}
	batch *notify.Batch
}

// Done is closed once the batch has completed and been recorded.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the batch completes or ctx ends.
func (h *Handle) Wait(ctx context.Context) (*notify.Batch, error) {
	select {
	case <-h.done:
		return h.batch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Snapshot is a consistent view of the tracker. Report is nil while a job is
// running and before any job has completed.
type Snapshot struct {
	InProgress bool
	JobID      string
	URLCount   int
	Report     *notify.Report
	Batch      *notify.Batch
}

type Tracker struct {
	runner Runner
	store  dispatch.BatchStore
	logger *slog.Logger

	mu      sync.Mutex
	current *Handle
	last    *notify.Batch
	wg      sync.WaitGroup
}

// NewTracker creates a Tracker. store may be nil, in which case completed
// batches only live in memory.
func NewTracker(runner Runner, store dispatch.BatchStore, logger *slog.Logger) *Tracker {
	return &Tracker{
		runner: runner,
		store:  store,
		logger: logger.With("component", "JobTracker"),
	}
}

// Restore loads the last persisted batch so status survives a restart.
func (t *Tracker) Restore(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	batch, err := t.store.Latest(ctx)
	if errors.Is(err, dispatch.ErrNoBatch) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to restore last batch: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		t.last = batch
		t.logger.Info("Restored last batch", "job_id", batch.ID, "url_count", batch.URLCount)
	}
	return nil
}

// Submit starts a batch in the background. It fails with ErrNoURLs for an
// empty list and ErrJobRunning while another batch is in flight; neither
// changes the recorded state.
func (t *Tracker) Submit(urls []string) (*Handle, error) {
	if len(urls) == 0 {
		batchesTotal.WithLabelValues("rejected_empty").Inc()
		return nil, ErrNoURLs
	}

	t.mu.Lock()
	if t.current != nil {
		t.mu.Unlock()
		batchesTotal.WithLabelValues("rejected_running").Inc()
		return nil, ErrJobRunning
	}
	h := &Handle{
		ID:        uuid.NewString(),
		URLCount:  len(urls),
		StartedAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
	t.current = h
	t.wg.Add(1)
	t.mu.Unlock()

	jobInProgress.Set(1)
	t.logger.Info("Batch accepted", "job_id", h.ID, "url_count", len(urls))
	go t.run(h, slices.Clone(urls))
	return h, nil
}

func (t *Tracker) run(h *Handle, urls []string) {
	defer t.wg.Done()
	defer close(h.done)

	// The batch is detached from whoever submitted it and always runs to completion.
	batch := t.execute(context.Background(), h, urls)

	t.mu.Lock()
	t.last = batch
	t.current = nil
	t.mu.Unlock()
	h.batch = batch

	jobInProgress.Set(0)
	batchesTotal.WithLabelValues("completed").Inc()
	batchDuration.Observe(batch.CompletedAt.Sub(batch.StartedAt).Seconds())

	t.persist(batch)
}

func (t *Tracker) execute(ctx context.Context, h *Handle, urls []string) (batch *notify.Batch) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Batch panicked", "job_id", h.ID, "panic", r)
			batch = nil
		}
		if batch == nil {
			batch = unprocessedBatch(h, urls)
		}
	}()
	return t.runner.Run(ctx, h.ID, urls)
}

// unprocessedBatch records every URL with no outcomes, so the batch still
// has one result per URL and each counts as failed.
func unprocessedBatch(h *Handle, urls []string) *notify.Batch {
	now := time.Now().UTC()
	results := make([]notify.URLResult, 0, len(urls))
	for _, u := range urls {
		results = append(results, notify.URLResult{URL: u, Timestamp: now, Outcomes: []notify.Outcome{}})
	}
	return &notify.Batch{
		ID:          h.ID,
		URLCount:    len(urls),
		StartedAt:   h.StartedAt,
		CompletedAt: now,
		Results:     results,
	}
}

func (t *Tracker) persist(batch *notify.Batch) {
	if t.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := t.store.SaveLatest(ctx, batch); err != nil {
		t.logger.Error("Failed to persist batch", "job_id", batch.ID, "err", err)
	}
}

// Status returns the current snapshot.
func (t *Tracker) Status() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		return Snapshot{InProgress: true, JobID: t.current.ID, URLCount: t.current.URLCount}
	}
	if t.last == nil {
		return Snapshot{}
	}
	report := notify.Aggregate(t.last.Results)
	return Snapshot{
		JobID:    t.last.ID,
		URLCount: t.last.URLCount,
		Report:   &report,
		Batch:    t.last,
	}
}

// Wait blocks until the in-flight batch, if any, has completed and been persisted.
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
