// Package scheduler submits a configured batch on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/tinywideclouds/go-indexing-service/indexservice/config"
	"github.com/tinywideclouds/go-indexing-service/internal/job"
)

type Submitter interface {
	Submit(urls []string) (*job.Handle, error)
}

// LinkSource expands feed URLs into page URLs.
type LinkSource interface {
	Links(ctx context.Context, feedURLs []string) ([]string, error)
}

type Scheduler struct {
	cron      *cron.Cron
	cfg       config.ScheduleConfig
	submitter Submitter
	feeds     LinkSource
	logger    *slog.Logger
}

// ErrNoFeedSource is returned by New when feeds are scheduled but nothing can expand them.
var ErrNoFeedSource = errors.New("schedule lists feeds but no feed source was provided")

// New registers the schedule. feeds may be nil only when cfg.Feeds is empty.
func New(cfg config.ScheduleConfig, submitter Submitter, feeds LinkSource, logger *slog.Logger) (*Scheduler, error) {
	if len(cfg.Feeds) > 0 && feeds == nil {
		return nil, ErrNoFeedSource
	}
	s := &Scheduler{
		cron:      cron.New(),
		cfg:       cfg,
		submitter: submitter,
		feeds:     feeds,
		logger:    logger.With("component", "Scheduler"),
	}
	if _, err := s.cron.AddFunc(cfg.Spec, func() { _ = s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", "spec", s.cfg.Spec)
}

// Stop prevents new runs and waits for a running tick to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce builds the URL list and submits it. A batch that is already
// running is not an error; the tick is skipped.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	urls := append([]string(nil), s.cfg.URLs...)
	if len(s.cfg.Feeds) > 0 {
		links, err := s.feeds.Links(ctx, s.cfg.Feeds)
		if err != nil {
			s.logger.Error("Failed to expand feeds", "err", err)
			return err
		}
		urls = append(urls, links...)
	}

	handle, err := s.submitter.Submit(urls)
	switch {
	case errors.Is(err, job.ErrJobRunning):
		s.logger.Info("Skipping scheduled run; batch already in progress")
		return nil
	case err != nil:
		s.logger.Warn("Scheduled run not submitted", "err", err)
		return err
	}
	s.logger.Info("Scheduled batch submitted", "job_id", handle.ID, "url_count", len(urls))
	return nil
}
