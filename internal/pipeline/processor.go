package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-indexing-service/internal/job"
)

// BatchSubmitter starts a batch job.
type BatchSubmitter interface {
	Submit(urls []string) (*job.Handle, error)
}

// NewProcessor hands each decoded request to the job tracker. A message that
// arrives while a batch is running is returned as an error so Pub/Sub
// redelivers it later; an empty request is acknowledged and dropped.
func NewProcessor(submitter BatchSubmitter, logger *slog.Logger) messagepipeline.StreamProcessor[BatchRequest] {
	return func(ctx context.Context, original messagepipeline.Message, request *BatchRequest) error {
		procLogger := logger.With("pubsub_msg_id", original.ID, "url_count", len(request.URLs))

		handle, err := submitter.Submit(request.URLs)
		switch {
		case errors.Is(err, job.ErrNoURLs):
			procLogger.Warn("Batch request carried no URLs; dropping message.")
			return nil
		case errors.Is(err, job.ErrJobRunning):
			procLogger.Info("Batch already running; message will be redelivered.")
			return fmt.Errorf("message %s deferred: %w", original.ID, err)
		case err != nil:
			procLogger.Error("Failed to submit batch", "err", err)
			return err
		}

		procLogger.Info("Batch submitted from Pub/Sub", "job_id", handle.ID)
		return nil
	}
}
