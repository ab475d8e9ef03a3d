// --- File: indexservice/config/yaml_config.go ---
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

type YamlGoogleConfig struct {
	Enabled           bool    `yaml:"enabled"`
	CredentialsFile   string  `yaml:"credentials_file"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	Timeout           string  `yaml:"timeout"`
}

type YamlIndexNowConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Host        string `yaml:"host"`
	Key         string `yaml:"key"`
	KeyLocation string `yaml:"key_location"`
	Timeout     string `yaml:"timeout"`
}

type YamlSitemapPingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint"`
	SitemapURL string `yaml:"sitemap_url"`
	Timeout    string `yaml:"timeout"`
}

type YamlPingEndpoint struct {
	Name  string `yaml:"name"`
	URL   string `yaml:"url"`
	Param string `yaml:"param"`
}

type YamlPingConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Endpoints []YamlPingEndpoint `yaml:"endpoints"`
	Timeout   string             `yaml:"timeout"`
}

type YamlChannelsConfig struct {
	Google      YamlGoogleConfig      `yaml:"google"`
	IndexNow    YamlIndexNowConfig    `yaml:"indexnow"`
	SitemapPing YamlSitemapPingConfig `yaml:"sitemap_ping"`
	Ping        YamlPingConfig        `yaml:"ping"`
}

type YamlStoreConfig struct {
	Type       string `yaml:"type"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

type YamlScheduleConfig struct {
	Spec  string   `yaml:"spec"`
	URLs  []string `yaml:"urls"`
	Feeds []string `yaml:"feeds"`
}

type YamlSearchConfig struct {
	Endpoint string `yaml:"endpoint"`
	Timeout  string `yaml:"timeout"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string             `yaml:"project_id"`
	ListenAddr             string             `yaml:"listen_addr"`
	TopicID                string             `yaml:"topic_id"`
	SubscriptionID         string             `yaml:"subscription_id"`
	SubscriptionDLQTopicID string             `yaml:"subscription_dlq_topic_id"`
	NumPipelineWorkers     int                `yaml:"num_pipeline_workers"`
	MaxWorkers             int                `yaml:"max_workers"`
	CallTimeout            string             `yaml:"call_timeout"`
	CorsConfig             YamlCorsConfig     `yaml:"cors"`
	RedisConfig            YamlRedisConfig    `yaml:"redis"`
	Channels               YamlChannelsConfig `yaml:"channels"`
	Store                  YamlStoreConfig    `yaml:"store"`
	SitemapPath            string             `yaml:"sitemap_path"`
	Schedule               YamlScheduleConfig `yaml:"schedule"`
	Search                 YamlSearchConfig   `yaml:"search"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
// Durations are parsed here so a typo fails at startup rather than at first use.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	var p durationParser
	callTimeout := p.parse("call_timeout", baseCfg.CallTimeout)
	googleTimeout := p.parse("channels.google.timeout", baseCfg.Channels.Google.Timeout)
	indexNowTimeout := p.parse("channels.indexnow.timeout", baseCfg.Channels.IndexNow.Timeout)
	sitemapTimeout := p.parse("channels.sitemap_ping.timeout", baseCfg.Channels.SitemapPing.Timeout)
	pingTimeout := p.parse("channels.ping.timeout", baseCfg.Channels.Ping.Timeout)
	searchTimeout := p.parse("search.timeout", baseCfg.Search.Timeout)
	if p.err != nil {
		return nil, p.err
	}

	endpoints := make([]PingEndpoint, 0, len(baseCfg.Channels.Ping.Endpoints))
	for _, ep := range baseCfg.Channels.Ping.Endpoints {
		endpoints = append(endpoints, PingEndpoint{Name: ep.Name, URL: ep.URL, Param: ep.Param})
	}

	cfg := &Config{
		ProjectID:              baseCfg.ProjectID,
		ListenAddr:             baseCfg.ListenAddr,
		TopicID:                baseCfg.TopicID,
		SubscriptionID:         baseCfg.SubscriptionID,
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
		MaxWorkers:             baseCfg.MaxWorkers,
		CallTimeout:            callTimeout,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
		},
		Channels: ChannelsConfig{
			Google: GoogleConfig{
				Enabled:           baseCfg.Channels.Google.Enabled,
				CredentialsFile:   baseCfg.Channels.Google.CredentialsFile,
				RequestsPerSecond: baseCfg.Channels.Google.RequestsPerSecond,
				Burst:             baseCfg.Channels.Google.Burst,
				Timeout:           googleTimeout,
			},
			IndexNow: IndexNowConfig{
				Enabled:     baseCfg.Channels.IndexNow.Enabled,
				Endpoint:    baseCfg.Channels.IndexNow.Endpoint,
				Host:        baseCfg.Channels.IndexNow.Host,
				Key:         baseCfg.Channels.IndexNow.Key,
				KeyLocation: baseCfg.Channels.IndexNow.KeyLocation,
				Timeout:     indexNowTimeout,
			},
			SitemapPing: SitemapPingConfig{
				Enabled:    baseCfg.Channels.SitemapPing.Enabled,
				Endpoint:   baseCfg.Channels.SitemapPing.Endpoint,
				SitemapURL: baseCfg.Channels.SitemapPing.SitemapURL,
				Timeout:    sitemapTimeout,
			},
			Ping: PingConfig{
				Enabled:   baseCfg.Channels.Ping.Enabled,
				Endpoints: endpoints,
				Timeout:   pingTimeout,
			},
		},
		Store: StoreConfig{
			Type:       baseCfg.Store.Type,
			Path:       baseCfg.Store.Path,
			Collection: baseCfg.Store.Collection,
		},
		Sitemap: SitemapConfig{Path: baseCfg.SitemapPath},
		Schedule: ScheduleConfig{
			Spec:  baseCfg.Schedule.Spec,
			URLs:  baseCfg.Schedule.URLs,
			Feeds: baseCfg.Schedule.Feeds,
		},
		Search: SearchConfig{
			Endpoint: baseCfg.Search.Endpoint,
			Timeout:  searchTimeout,
		},
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"subscription_id", cfg.SubscriptionID,
		"max_workers", cfg.MaxWorkers,
	)

	return cfg, nil
}

// durationParser keeps the first parse error so several fields can be read in a row.
type durationParser struct {
	err error
}

func (p *durationParser) parse(key, raw string) time.Duration {
	if raw == "" || p.err != nil {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.err = fmt.Errorf("invalid duration for %s: %w", key, err)
		return 0
	}
	return d
}
