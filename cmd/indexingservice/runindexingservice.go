// --- File: cmd/indexingservice/runindexingservice.go ---
package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/lmittmann/tint"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-indexing-service/indexservice"
	"github.com/tinywideclouds/go-indexing-service/indexservice/config"
	"github.com/tinywideclouds/go-indexing-service/internal/platform"
	"github.com/tinywideclouds/go-indexing-service/internal/platform/google"
	"github.com/tinywideclouds/go-indexing-service/internal/platform/search"
	"github.com/tinywideclouds/go-indexing-service/internal/source/feed"
	"github.com/tinywideclouds/go-indexing-service/internal/storage/cache"
	fileStore "github.com/tinywideclouds/go-indexing-service/internal/storage/file"
	fsStore "github.com/tinywideclouds/go-indexing-service/internal/storage/firestore"
	"github.com/tinywideclouds/go-indexing-service/pkg/dispatch"
)

//go:embed local.yaml
var configFile []byte

const shutdownTimeout = 2 * time.Minute

func main() {
	logger := newLogger()
	slog.SetDefault(logger)

	ctx := context.Background()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		logger.Error("Invalid embedded config", "err", err)
		os.Exit(1)
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Batch Store ---
	var store dispatch.BatchStore
	switch cfg.Store.Type {
	case config.StoreFile:
		fs, err := fileStore.NewBatchStore(cfg.Store.Path)
		if err != nil {
			logger.Error("File store failed", "err", err)
			os.Exit(1)
		}
		store = fs
		logger.Info("BatchStore initialized", "type", "file", "path", cfg.Store.Path)
	case config.StoreFirestore:
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Error("Firestore client failed", "err", err)
			os.Exit(1)
		}
		defer fsClient.Close()
		store = fsStore.NewBatchStore(fsClient, cfg.Store.Collection)
		logger.Info("BatchStore initialized", "type", "firestore", "collection", cfg.Store.Collection)
	default:
		logger.Info("BatchStore disabled; status is kept in memory only")
	}

	if store != nil && cfg.Redis.Enabled {
		logger.Info("Initializing Redis Cache layer...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		store = cache.NewCachedBatchStore(store, redisClient, 24*time.Hour)
		logger.Info("BatchStore upgraded", "type", "redis_cached_"+cfg.Store.Type)
	}

	// --- Channels ---
	var publisher google.Publisher
	if cfg.Channels.Google.Enabled {
		publisher, err = google.NewPublisher(ctx, google.CredentialOptions(cfg.Channels.Google.CredentialsFile)...)
		if err != nil {
			// The channel stays listed and reports "not configured" per URL.
			logger.Warn("Indexing API client unavailable", "err", err)
			publisher = nil
		}
	}
	channels := platform.Build(cfg.Channels, publisher, logger)
	for _, d := range channels.Catalogue {
		logger.Info("Channel", "kind", d.Kind, "name", d.Name, "enabled", d.Enabled)
	}

	checker := search.NewChecker(cfg.Search, logger)
	feeds := feed.NewExpander(&http.Client{Timeout: 30 * time.Second}, logger)

	// --- Consumer (optional) ---
	var consumer messagepipeline.MessageConsumer
	if cfg.SubscriptionID != "" {
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Error("PubSub client failed", "err", err)
			os.Exit(1)
		}
		defer psClient.Close()

		consumer, err = newIngestionConsumer(ctx, cfg, psClient, logger)
		if err != nil {
			logger.Error("Consumer creation failed", "err", err)
			os.Exit(1)
		}
	}

	service, err := indexservice.New(cfg, consumer, channels, store, checker, feeds, logger)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	// --- Run until signalled ---
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting service...", "addr", cfg.ListenAddr)
		errChan <- service.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Service shutdown with error", "err", err)
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("Shutdown signal received", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := service.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", "err", err)
		}
	}
}

// newLogger builds the JSON logger used in deployment. LOG_FORMAT=text
// switches to a colourised console handler for local runs.
func newLogger() *slog.Logger {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "text" {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.Kitchen,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if err, ok := a.Value.Any().(error); ok {
					return tint.Err(err)
				}
				return a
			},
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	return slog.New(handler).With("service", "go-indexing-service")
}

func newIngestionConsumer(ctx context.Context, cfg *config.Config, psClient *pubsub.Client, logger *slog.Logger) (messagepipeline.MessageConsumer, error) {
	sub := convertPubsub(cfg.ProjectID, cfg.SubscriptionID, "subscriptions")
	topicID := convertPubsub(cfg.ProjectID, cfg.TopicID, "topics")

	subConfig := &pubsubpb.Subscription{
		Name:                     sub,
		Topic:                    topicID,
		AckDeadlineSeconds:       60,
		MessageRetentionDuration: durationpb.New(24 * time.Hour),
		RetryPolicy: &pubsubpb.RetryPolicy{
			// A batch can run for minutes; redeliveries should not spin in the meantime.
			MinimumBackoff: durationpb.New(30 * time.Second),
			MaximumBackoff: durationpb.New(10 * time.Minute),
		},
		EnableMessageOrdering: false,
	}
	if cfg.SubscriptionDLQTopicID != "" {
		subConfig.DeadLetterPolicy = &pubsubpb.DeadLetterPolicy{
			DeadLetterTopic:     convertPubsub(cfg.ProjectID, cfg.SubscriptionDLQTopicID, "topics"),
			MaxDeliveryAttempts: 20,
		}
	}

	logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
	_, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			logger.Debug("Subscription already exists, skipping creation", "sub", subConfig.Name)
		} else {
			logger.Error("Failed to create subscription", "sub", subConfig.Name, "err", err)
			return nil, fmt.Errorf("could not create sub: %s", sub)
		}
	}

	return messagepipeline.NewGooglePubsubConsumer(
		messagepipeline.NewGooglePubsubConsumerDefaults(subConfig.Name), psClient, logger,
	)
}

type PS string

func convertPubsub(project, id string, ps PS) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, ps, id)
}
