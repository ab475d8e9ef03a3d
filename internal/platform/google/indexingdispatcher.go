// --- File: internal/platform/google/indexingdispatcher.go ---
// Package google provides the authenticated push channel backed by the Google
// Indexing API (urlNotifications.publish).
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	indexing "google.golang.org/api/indexing/v3"
	"google.golang.org/api/option"

	"github.com/tinywideclouds/go-indexing-service/indexservice/config"
	"github.com/tinywideclouds/go-indexing-service/pkg/notify"
)

const (
	ChannelName = "google-indexing-api"
	// URLUpdated asks Google to recrawl a new or changed URL.
	URLUpdated = "URL_UPDATED"
)

// Publisher defines the subset of the Indexing API we use.
// This allows mocking for unit tests.
type Publisher interface {
	Publish(ctx context.Context, n *indexing.UrlNotification) (*indexing.PublishUrlNotificationResponse, error)
}

type servicePublisher struct {
	svc *indexing.Service
}

func (p *servicePublisher) Publish(ctx context.Context, n *indexing.UrlNotification) (*indexing.PublishUrlNotificationResponse, error) {
	return p.svc.UrlNotifications.Publish(n).Context(ctx).Do()
}

// CredentialOptions returns the client options for a service account key file
// scoped to the Indexing API.
func CredentialOptions(credentialsFile string) []option.ClientOption {
	return []option.ClientOption{
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(indexing.IndexingScope),
	}
}

// NewPublisher builds an Indexing API client.
func NewPublisher(ctx context.Context, opts ...option.ClientOption) (Publisher, error) {
	svc, err := indexing.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexing service: %w", err)
	}
	return &servicePublisher{svc: svc}, nil
}

type Dispatcher struct {
	client  Publisher
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher creates the push channel. A nil client is allowed: every
// notification then fails with "not configured" and no request is made.
func NewDispatcher(client Publisher, cfg config.GoogleConfig, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		timeout: cfg.Timeout,
		logger:  logger.With("component", "GoogleIndexingDispatcher"),
	}
}

func (d *Dispatcher) Name() string {
	return ChannelName
}

// Configured reports whether an API client is available.
func (d *Dispatcher) Configured() bool {
	return d.client != nil
}

// Notify publishes a URL_UPDATED notification for a single URL.
func (d *Dispatcher) Notify(ctx context.Context, url string) notify.Outcome {
	if d.client == nil {
		return notify.Failure(ChannelName, url, 0, "not configured")
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	// The API quota is small; wait for a token rather than burning requests on 429s.
	if err := d.limiter.Wait(ctx); err != nil {
		return notify.Failure(ChannelName, url, 0, fmt.Sprintf("rate limit wait: %v", err))
	}

	resp, err := d.client.Publish(ctx, &indexing.UrlNotification{Url: url, Type: URLUpdated})
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			d.logger.Warn("Indexing API rejected notification", "url", url, "code", apiErr.Code, "err", apiErr.Message)
			msg := apiErr.Message
			if msg == "" {
				msg = apiErr.Error()
			}
			return notify.Failure(ChannelName, url, apiErr.Code, msg)
		}
		d.logger.Error("Indexing API transport error", "url", url, "err", err)
		return notify.Failure(ChannelName, url, 0, err.Error())
	}

	code := http.StatusOK
	if resp != nil && resp.HTTPStatusCode != 0 {
		code = resp.HTTPStatusCode
	}
	if code < 200 || code > 299 {
		return notify.Failure(ChannelName, url, code, fmt.Sprintf("unexpected status %d", code))
	}
	return notify.Success(ChannelName, url, code)
}
