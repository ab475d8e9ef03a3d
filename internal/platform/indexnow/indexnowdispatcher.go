// --- File: internal/platform/indexnow/indexnowdispatcher.go ---
// Package indexnow submits a whole batch of URLs in one keyed IndexNow request.
package indexnow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-indexing-service/indexservice/config"
	"github.com/tinywideclouds/go-indexing-service/pkg/notify"
)

const ChannelName = "indexnow"

type submission struct {
	Host        string   `json:"host"`
	Key         string   `json:"key"`
	KeyLocation string   `json:"keyLocation"`
	URLList     []string `json:"urlList"`
}

type Dispatcher struct {
	endpoint    string
	host        string
	key         string
	keyLocation string
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewDispatcher(cfg config.IndexNowConfig, logger *slog.Logger) *Dispatcher {
	keyLocation := cfg.KeyLocation
	if keyLocation == "" && cfg.Host != "" && cfg.Key != "" {
		keyLocation = fmt.Sprintf("https://%s/%s.txt", cfg.Host, cfg.Key)
	}
	return &Dispatcher{
		endpoint:    cfg.Endpoint,
		host:        cfg.Host,
		key:         cfg.Key,
		keyLocation: keyLocation,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger.With("component", "IndexNowDispatcher"),
	}
}

func (d *Dispatcher) Name() string {
	return ChannelName
}

// Submit sends every URL of the batch in a single POST. Only a 200 response
// counts as accepted.
func (d *Dispatcher) Submit(ctx context.Context, urls []string) notify.Outcome {
	target := fmt.Sprintf("batch of %d URLs", len(urls))
	if d.host == "" || d.key == "" {
		return notify.Failure(ChannelName, target, 0, "not configured")
	}

	body, err := json.Marshal(submission{
		Host:        d.host,
		Key:         d.key,
		KeyLocation: d.keyLocation,
		URLList:     urls,
	})
	if err != nil {
		return notify.Failure(ChannelName, target, 0, fmt.Sprintf("failed to encode submission: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return notify.Failure(ChannelName, target, 0, fmt.Sprintf("failed to build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Error("IndexNow request failed", "url_count", len(urls), "err", err)
		return notify.Failure(ChannelName, target, 0, err.Error())
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		d.logger.Warn("IndexNow rejected batch", "url_count", len(urls), "status", resp.StatusCode)
		return notify.Failure(ChannelName, target, resp.StatusCode, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	d.logger.Info("IndexNow accepted batch", "url_count", len(urls))
	return notify.Success(ChannelName, target, resp.StatusCode)
}
