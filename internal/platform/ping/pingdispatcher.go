// --- File: internal/platform/ping/pingdispatcher.go ---
// Package ping implements the unauthenticated GET channels: per-URL pings to
// search engine endpoints and a once-per-batch sitemap ping.
package ping

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tinywideclouds/go-indexing-service/indexservice/config"
	"github.com/tinywideclouds/go-indexing-service/pkg/notify"
)

const SitemapChannelName = "sitemap-ping"

// get issues GET endpoint?param=target and maps a 200 to success.
func get(ctx context.Context, client *http.Client, channel, endpoint, param, target string) notify.Outcome {
	u, err := url.Parse(endpoint)
	if err != nil {
		return notify.Failure(channel, target, 0, fmt.Sprintf("invalid endpoint: %v", err))
	}
	q := u.Query()
	q.Set(param, target)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return notify.Failure(channel, target, 0, fmt.Sprintf("failed to build request: %v", err))
	}

	resp, err := client.Do(req)
	if err != nil {
		return notify.Failure(channel, target, 0, err.Error())
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return notify.Failure(channel, target, resp.StatusCode, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
	return notify.Success(channel, target, resp.StatusCode)
}

// Pinger pings one configured endpoint for each URL.
type Pinger struct {
	name     string
	endpoint config.PingEndpoint
	client   *http.Client
	logger   *slog.Logger
}

func NewPinger(endpoint config.PingEndpoint, timeout time.Duration, logger *slog.Logger) *Pinger {
	param := endpoint.Param
	if param == "" {
		param = config.DefaultPingParam
	}
	endpoint.Param = param
	return &Pinger{
		name:     "ping:" + endpoint.Name,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("component", "Pinger", "endpoint", endpoint.Name),
	}
}

// NewPingers builds one Pinger per endpoint, in configuration order.
func NewPingers(cfg config.PingConfig, logger *slog.Logger) []*Pinger {
	pingers := make([]*Pinger, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		pingers = append(pingers, NewPinger(ep, cfg.Timeout, logger))
	}
	return pingers
}

func (p *Pinger) Name() string {
	return p.name
}

func (p *Pinger) Notify(ctx context.Context, target string) notify.Outcome {
	outcome := get(ctx, p.client, p.name, p.endpoint.URL, p.endpoint.Param, target)
	if !outcome.Succeeded() {
		p.logger.Debug("Ping failed", "url", target, "status", outcome.StatusCode, "err", outcome.Error)
	}
	return outcome
}

// SitemapPinger tells an endpoint that the sitemap changed. It runs once per batch.
type SitemapPinger struct {
	endpoint   string
	sitemapURL string
	client     *http.Client
	logger     *slog.Logger
}

func NewSitemapPinger(cfg config.SitemapPingConfig, logger *slog.Logger) *SitemapPinger {
	return &SitemapPinger{
		endpoint:   cfg.Endpoint,
		sitemapURL: cfg.SitemapURL,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "SitemapPinger"),
	}
}

func (s *SitemapPinger) Name() string {
	return SitemapChannelName
}

func (s *SitemapPinger) Submit(ctx context.Context, urls []string) notify.Outcome {
	if s.sitemapURL == "" {
		return notify.Failure(SitemapChannelName, "", 0, "not configured")
	}
	outcome := get(ctx, s.client, SitemapChannelName, s.endpoint, config.DefaultPingParam, s.sitemapURL)
	s.logger.Info("Sitemap ping sent", "sitemap", s.sitemapURL, "url_count", len(urls), "status", outcome.Status)
	return outcome
}
