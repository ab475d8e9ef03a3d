package job_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-indexing-service/internal/job"
	"github.com/tinywideclouds/go-indexing-service/pkg/dispatch"
	"github.com/tinywideclouds/go-indexing-service/pkg/notify"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gatedRunner blocks every batch until release is closed.
type gatedRunner struct {
	release chan struct{}
	started chan string
}

func newGatedRunner() *gatedRunner {
	return &gatedRunner{release: make(chan struct{}), started: make(chan string, 4)}
}

func (r *gatedRunner) Run(_ context.Context, id string, urls []string) *notify.Batch {
	r.started <- id
	<-r.release
	results := make([]notify.URLResult, 0, len(urls))
	for i, u := range urls {
		o := notify.Failure("ping:test", u, 500, "boom")
		if i == 0 {
			o = notify.Success("ping:test", u, 200)
		}
		results = append(results, notify.URLResult{URL: u, Outcomes: []notify.Outcome{o}})
	}
	now := time.Now().UTC()
	return &notify.Batch{ID: id, URLCount: len(urls), StartedAt: now, CompletedAt: now, Results: results}
}

type panicRunner struct{}

func (panicRunner) Run(context.Context, string, []string) *notify.Batch { panic("adapter bug") }

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveLatest(ctx context.Context, batch *notify.Batch) error {
	return m.Called(ctx, batch).Error(0)
}

func (m *mockStore) Latest(ctx context.Context) (*notify.Batch, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notify.Batch), args.Error(1)
}

func TestTracker_Lifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runner := newGatedRunner()
	tracker := job.NewTracker(runner, nil, newTestLogger())

	// Idle before anything has run.
	idle := tracker.Status()
	assert.False(t, idle.InProgress)
	assert.Nil(t, idle.Report)

	handle, err := tracker.Submit([]string{"https://example.com/a", "https://example.com/b"})
	require.NoError(t, err)
	require.NotEmpty(t, handle.ID)
	<-runner.started

	running := tracker.Status()
	assert.True(t, running.InProgress)
	assert.Equal(t, handle.ID, running.JobID)
	assert.Nil(t, running.Report, "report must be absent while running")

	_, err = tracker.Submit([]string{"https://example.com/c"})
	assert.ErrorIs(t, err, job.ErrJobRunning)

	close(runner.release)
	batch, err := handle.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, batch)

	done := tracker.Status()
	assert.False(t, done.InProgress)
	require.NotNil(t, done.Report)
	assert.Equal(t, 2, done.Report.Total)
	assert.Equal(t, 1, done.Report.Successful)
	assert.Equal(t, 1, done.Report.Failed)
	assert.Equal(t, handle.ID, done.JobID)
}

func TestTracker_RejectionsKeepLastBatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runner := newGatedRunner()
	close(runner.release)
	tracker := job.NewTracker(runner, nil, newTestLogger())

	_, err := tracker.Submit(nil)
	assert.ErrorIs(t, err, job.ErrNoURLs)
	assert.Nil(t, tracker.Status().Report)

	first, err := tracker.Submit([]string{"https://example.com/a"})
	require.NoError(t, err)
	_, err = first.Wait(ctx)
	require.NoError(t, err)

	_, err = tracker.Submit([]string{})
	assert.ErrorIs(t, err, job.ErrNoURLs)

	snap := tracker.Status()
	assert.Equal(t, first.ID, snap.JobID)
	require.NotNil(t, snap.Report)
	assert.Equal(t, 1, snap.Report.Total)
}

func TestTracker_PersistsAndRestores(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("Saves completed batch", func(t *testing.T) {
		store := new(mockStore)
		store.On("SaveLatest", mock.Anything, mock.AnythingOfType("*notify.Batch")).Return(nil)
		runner := newGatedRunner()
		close(runner.release)
		tracker := job.NewTracker(runner, store, newTestLogger())

		h, err := tracker.Submit([]string{"https://example.com/a"})
		require.NoError(t, err)
		require.NoError(t, tracker.Wait(ctx))

		store.AssertCalled(t, "SaveLatest", mock.Anything, mock.MatchedBy(func(b *notify.Batch) bool {
			return b.ID == h.ID
		}))
	})

	t.Run("Save failure does not affect status", func(t *testing.T) {
		store := new(mockStore)
		store.On("SaveLatest", mock.Anything, mock.Anything).Return(errors.New("disk full"))
		runner := newGatedRunner()
		close(runner.release)
		tracker := job.NewTracker(runner, store, newTestLogger())

		h, err := tracker.Submit([]string{"https://example.com/a"})
		require.NoError(t, err)
		_, err = h.Wait(ctx)
		require.NoError(t, err)

		assert.Equal(t, h.ID, tracker.Status().JobID)
	})

	t.Run("Restore loads last batch", func(t *testing.T) {
		stored := &notify.Batch{ID: "restored-job", URLCount: 1, Results: []notify.URLResult{
			{URL: "https://example.com/a", Outcomes: []notify.Outcome{notify.Success("ping:test", "https://example.com/a", 200)}},
		}}
		store := new(mockStore)
		store.On("Latest", mock.Anything).Return(stored, nil)
		tracker := job.NewTracker(newGatedRunner(), store, newTestLogger())

		require.NoError(t, tracker.Restore(ctx))

		snap := tracker.Status()
		assert.Equal(t, "restored-job", snap.JobID)
		require.NotNil(t, snap.Report)
		assert.Equal(t, 1, snap.Report.Successful)
	})

	t.Run("Restore with empty store", func(t *testing.T) {
		store := new(mockStore)
		store.On("Latest", mock.Anything).Return(nil, dispatch.ErrNoBatch)
		tracker := job.NewTracker(newGatedRunner(), store, newTestLogger())

		require.NoError(t, tracker.Restore(ctx))
		assert.Nil(t, tracker.Status().Report)
	})

	t.Run("Restore surfaces store errors", func(t *testing.T) {
		store := new(mockStore)
		store.On("Latest", mock.Anything).Return(nil, errors.New("unavailable"))
		tracker := job.NewTracker(newGatedRunner(), store, newTestLogger())

		assert.Error(t, tracker.Restore(ctx))
	})
}

func TestTracker_RunnerPanicClearsState(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tracker := job.NewTracker(panicRunner{}, nil, newTestLogger())

	urls := []string{"https://example.com/a", "https://example.com/a", "https://example.com/c"}
	h, err := tracker.Submit(urls)
	require.NoError(t, err)
	batch, err := h.Wait(ctx)
	require.NoError(t, err)
	require.Len(t, batch.Results, len(urls))
	for i, r := range batch.Results {
		assert.Equal(t, urls[i], r.URL)
		assert.Empty(t, r.Outcomes)
	}

	snap := tracker.Status()
	assert.False(t, snap.InProgress)
	require.NotNil(t, snap.Report)
	assert.Equal(t, 3, snap.Report.Total)
	assert.Equal(t, 0, snap.Report.Successful)
	assert.Equal(t, 3, snap.Report.Failed)

	_, err = tracker.Submit([]string{"https://example.com/b"})
	assert.NoError(t, err)
	require.NoError(t, tracker.Wait(ctx))
}
