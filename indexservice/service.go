// --- File: indexservice/service.go ---
package indexservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-indexing-service/indexservice/config"
	"github.com/tinywideclouds/go-indexing-service/internal/api"
	"github.com/tinywideclouds/go-indexing-service/internal/job"
	"github.com/tinywideclouds/go-indexing-service/internal/pipeline"
	"github.com/tinywideclouds/go-indexing-service/internal/platform"
	"github.com/tinywideclouds/go-indexing-service/internal/scheduler"
	"github.com/tinywideclouds/go-indexing-service/internal/sitemap"
	"github.com/tinywideclouds/go-indexing-service/pkg/dispatch"
)

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[pipeline.BatchRequest]
	scheduler       *scheduler.Scheduler
	tracker         *job.Tracker
	logger          *slog.Logger
}

// New assembles the service. consumer may be nil (no Pub/Sub ingress) and
// store may be nil (status is kept in memory only).
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	channels platform.Set,
	store dispatch.BatchStore,
	checker api.IndexChecker,
	feeds api.LinkSource,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Dispatch engine
	notifier := pipeline.NewNotifier(channels.URL, cfg.CallTimeout, logger)
	var sitemapWriter pipeline.SitemapWriter
	if cfg.Sitemap.Path != "" {
		sitemapWriter = sitemap.NewFileWriter(cfg.Sitemap.Path)
	}
	dispatcher := pipeline.NewDispatcher(notifier, channels.Batch, sitemapWriter, cfg.MaxWorkers, cfg.CallTimeout, logger)
	tracker := job.NewTracker(dispatcher, store, logger)

	// 3. Pipeline (optional)
	var streamingService *messagepipeline.StreamingService[pipeline.BatchRequest]
	if consumer != nil {
		var err error
		streamingService, err = messagepipeline.NewStreamingService(
			messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
			consumer,
			pipeline.BatchRequestTransformer,
			pipeline.NewProcessor(tracker, logger),
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create streaming service: %w", err)
		}
	}

	// 4. Schedule (optional)
	var sched *scheduler.Scheduler
	if cfg.Schedule.Spec != "" {
		var err error
		sched, err = scheduler.New(cfg.Schedule, tracker, feeds, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create scheduler: %w", err)
		}
	}

	// 5. API
	indexAPI := api.NewIndexAPI(tracker, notifier, checker, feeds, store, channels.Catalogue, logger)

	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(handlerFunc))
	}

	handle("POST /api/v1/index", indexAPI.SubmitBatch)
	handle("GET /api/v1/status", indexAPI.GetStatus)
	handle("GET /api/v1/batches/latest", indexAPI.LatestBatch)
	handle("POST /api/v1/notify", indexAPI.NotifySingle)
	handle("GET /api/v1/methods", indexAPI.ListMethods)
	handle("GET /api/v1/check", indexAPI.CheckURL)
	handle("GET /api/v1/health", indexAPI.Health)

	// CORS preflight for the API namespace
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	mux.Handle("GET /metrics", promhttp.Handler())

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		scheduler:       sched,
		tracker:         tracker,
		logger:          logger,
	}, nil
}

// Jobs exposes the tracker, mainly for tests.
func (w *Wrapper) Jobs() *job.Tracker {
	return w.tracker
}

func (w *Wrapper) Start(ctx context.Context) error {
	if err := w.tracker.Restore(ctx); err != nil {
		w.logger.Warn("Could not restore last batch; starting empty.", "err", err)
	}

	if w.pipelineService != nil {
		w.logger.Info("Core processing pipeline starting...")
		if err := w.pipelineService.Start(ctx); err != nil {
			return fmt.Errorf("failed to start processing service: %w", err)
		}
	}
	if w.scheduler != nil {
		w.scheduler.Start()
	}

	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

// Shutdown stops intake first, then waits for the in-flight batch so its
// result is persisted before the process exits.
func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if w.scheduler != nil {
		if err := w.scheduler.Stop(ctx); err != nil {
			w.logger.Error("Scheduler shutdown failed.", "err", err)
			finalErr = err
		}
	}
	if w.pipelineService != nil {
		if err := w.pipelineService.Stop(ctx); err != nil {
			w.logger.Error("Processing pipeline shutdown failed.", "err", err)
			finalErr = err
		}
	}
	if err := w.tracker.Wait(ctx); err != nil {
		w.logger.Error("In-flight batch did not finish before shutdown deadline.", "err", err)
		finalErr = err
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
