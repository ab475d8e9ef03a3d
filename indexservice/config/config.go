// --- File: indexservice/config/config.go ---
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

// Store backends for the most recently completed batch.
const (
	StoreNone      = "none"
	StoreFile      = "file"
	StoreFirestore = "firestore"
)

// Channel defaults.
const (
	DefaultIndexNowEndpoint    = "https://api.indexnow.org/indexnow"
	DefaultSitemapPingEndpoint = "https://www.google.com/ping"
	DefaultSearchEndpoint      = "https://www.google.com/search"
	DefaultPingParam           = "sitemap"
	DefaultMaxWorkers          = 10
	DefaultCallTimeout         = 30 * time.Second
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// GoogleConfig configures the authenticated Indexing API channel.
type GoogleConfig struct {
	Enabled           bool
	CredentialsFile   string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// IndexNowConfig configures the keyed bulk submission channel.
type IndexNowConfig struct {
	Enabled     bool
	Endpoint    string
	Host        string
	Key         string
	KeyLocation string
	Timeout     time.Duration
}

// SitemapPingConfig configures the once-per-batch sitemap ping.
type SitemapPingConfig struct {
	Enabled    bool
	Endpoint   string
	SitemapURL string
	Timeout    time.Duration
}

// PingEndpoint is a well-known ping URL. The notified URL is placed in the
// query parameter named Param.
type PingEndpoint struct {
	Name  string
	URL   string
	Param string
}

// PingConfig configures the unauthenticated per-URL pings.
type PingConfig struct {
	Enabled   bool
	Endpoints []PingEndpoint
	Timeout   time.Duration
}

// ChannelsConfig holds one section per channel kind.
type ChannelsConfig struct {
	Google      GoogleConfig
	IndexNow    IndexNowConfig
	SitemapPing SitemapPingConfig
	Ping        PingConfig
}

type StoreConfig struct {
	Type       string
	Path       string
	Collection string
}

type SitemapConfig struct {
	Path string
}

type ScheduleConfig struct {
	Spec  string
	URLs  []string
	Feeds []string
}

type SearchConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	TopicID                string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int

	MaxWorkers  int
	CallTimeout time.Duration

	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	Channels   ChannelsConfig
	Store      StoreConfig
	Sitemap    SitemapConfig
	Schedule   ScheduleConfig
	Search     SearchConfig

	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// DefaultPingEndpoints are the public ping services notified for each URL.
func DefaultPingEndpoints() []PingEndpoint {
	return []PingEndpoint{
		{Name: "google", URL: "https://www.google.com/ping", Param: DefaultPingParam},
		{Name: "bing", URL: "https://www.bing.com/ping", Param: DefaultPingParam},
		{Name: "ask", URL: "https://submissions.ask.com/ping", Param: DefaultPingParam},
	}
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "TOPIC_ID", "source", "env")
		cfg.TopicID = val
	}
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("SUBSCRIPTION_DLQ_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_DLQ_TOPIC_ID", "source", "env")
		cfg.SubscriptionDLQTopicID = val
	}
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}
	if val := os.Getenv("MAX_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "MAX_WORKERS", "source", "env")
			cfg.MaxWorkers = workers
		}
	}
	if val := os.Getenv("CALL_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid CALL_TIMEOUT %q: %w", val, err)
		}
		logger.Debug("Overriding config value", "key", "CALL_TIMEOUT", "source", "env")
		cfg.CallTimeout = d
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// Channel Overrides
	if val := os.Getenv("GOOGLE_CREDENTIALS_FILE"); val != "" {
		logger.Debug("Overriding config value", "key", "GOOGLE_CREDENTIALS_FILE", "source", "env")
		cfg.Channels.Google.CredentialsFile = val
		cfg.Channels.Google.Enabled = true
	}
	if val := os.Getenv("INDEXNOW_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "INDEXNOW_KEY", "source", "env")
		cfg.Channels.IndexNow.Key = val
		cfg.Channels.IndexNow.Enabled = true
	}
	if val := os.Getenv("INDEXNOW_HOST"); val != "" {
		logger.Debug("Overriding config value", "key", "INDEXNOW_HOST", "source", "env")
		cfg.Channels.IndexNow.Host = val
	}
	if val := os.Getenv("SITEMAP_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "SITEMAP_URL", "source", "env")
		cfg.Channels.SitemapPing.SitemapURL = val
		cfg.Channels.SitemapPing.Enabled = true
	}

	// Store / Schedule Overrides
	if val := os.Getenv("STORE_TYPE"); val != "" {
		logger.Debug("Overriding config value", "key", "STORE_TYPE", "source", "env")
		cfg.Store.Type = val
	}
	if val := os.Getenv("STORE_PATH"); val != "" {
		logger.Debug("Overriding config value", "key", "STORE_PATH", "source", "env")
		cfg.Store.Path = val
	}
	if val := os.Getenv("SCHEDULE_SPEC"); val != "" {
		logger.Debug("Overriding config value", "key", "SCHEDULE_SPEC", "source", "env")
		cfg.Schedule.Spec = val
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		cfg.CorsConfig.AllowedOrigins = splitList(corsOrigins)
	}

	// 2. Defaults
	applyDefaults(cfg)

	// 3. Final Validation
	if err := validate(cfg); err != nil {
		return nil, err
	}

	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = StoreNone
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = "batches"
	}

	ch := &cfg.Channels
	if ch.Google.RequestsPerSecond <= 0 {
		ch.Google.RequestsPerSecond = 1
	}
	if ch.Google.Burst <= 0 {
		ch.Google.Burst = 5
	}
	if ch.Google.Timeout <= 0 {
		ch.Google.Timeout = 30 * time.Second
	}
	if ch.IndexNow.Endpoint == "" {
		ch.IndexNow.Endpoint = DefaultIndexNowEndpoint
	}
	if ch.IndexNow.KeyLocation == "" && ch.IndexNow.Host != "" && ch.IndexNow.Key != "" {
		ch.IndexNow.KeyLocation = fmt.Sprintf("https://%s/%s.txt", ch.IndexNow.Host, ch.IndexNow.Key)
	}
	if ch.IndexNow.Timeout <= 0 {
		ch.IndexNow.Timeout = 30 * time.Second
	}
	if ch.SitemapPing.Endpoint == "" {
		ch.SitemapPing.Endpoint = DefaultSitemapPingEndpoint
	}
	if ch.SitemapPing.Timeout <= 0 {
		ch.SitemapPing.Timeout = 10 * time.Second
	}
	if ch.Ping.Enabled && len(ch.Ping.Endpoints) == 0 {
		ch.Ping.Endpoints = DefaultPingEndpoints()
	}
	for i := range ch.Ping.Endpoints {
		if ch.Ping.Endpoints[i].Param == "" {
			ch.Ping.Endpoints[i].Param = DefaultPingParam
		}
	}
	if ch.Ping.Timeout <= 0 {
		ch.Ping.Timeout = 5 * time.Second
	}

	if cfg.Search.Endpoint == "" {
		cfg.Search.Endpoint = DefaultSearchEndpoint
	}
	if cfg.Search.Timeout <= 0 {
		cfg.Search.Timeout = 10 * time.Second
	}
}

func validate(cfg *Config) error {
	switch cfg.Store.Type {
	case StoreNone:
	case StoreFile:
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is required for the file store (set via YAML or STORE_PATH env var)")
		}
	case StoreFirestore:
		if cfg.ProjectID == "" {
			return fmt.Errorf("project_id is required for the firestore store (set via YAML or PROJECT_ID env var)")
		}
	default:
		return fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
	if cfg.SubscriptionID != "" && cfg.ProjectID == "" {
		return fmt.Errorf("project_id is required when subscription_id is set")
	}

	ch := cfg.Channels
	if ch.Google.Enabled && ch.Google.CredentialsFile == "" {
		return fmt.Errorf("channels.google.credentials_file is required when the google channel is enabled")
	}
	if ch.IndexNow.Enabled && (ch.IndexNow.Host == "" || ch.IndexNow.Key == "") {
		return fmt.Errorf("channels.indexnow requires host and key when enabled")
	}
	if ch.SitemapPing.Enabled && ch.SitemapPing.SitemapURL == "" {
		return fmt.Errorf("channels.sitemap_ping.sitemap_url is required when sitemap ping is enabled")
	}
	for _, ep := range ch.Ping.Endpoints {
		if ep.Name == "" || ep.URL == "" {
			return fmt.Errorf("ping endpoints need both name and url")
		}
	}
	if cfg.Schedule.Spec != "" && len(cfg.Schedule.URLs) == 0 && len(cfg.Schedule.Feeds) == 0 {
		return fmt.Errorf("schedule.spec is set but schedule has no urls or feeds")
	}
	return nil
}

func splitList(raw string) []string {
	var clean []string
	for _, o := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	return clean
}
