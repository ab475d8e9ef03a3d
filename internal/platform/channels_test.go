package platform_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-indexing-service/indexservice/config"
	"github.com/tinywideclouds/go-indexing-service/internal/platform"
	"github.com/tinywideclouds/go-indexing-service/pkg/notify"
)

func TestBuild(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Nothing enabled", func(t *testing.T) {
		set := platform.Build(config.ChannelsConfig{}, nil, logger)

		assert.Empty(t, set.URL)
		assert.Empty(t, set.Batch)
		require.Len(t, set.Catalogue, len(platform.Kinds))
		for _, d := range set.Catalogue {
			assert.False(t, d.Enabled)
		}
	})

	t.Run("All enabled, push first then pings in order", func(t *testing.T) {
		cfg := config.ChannelsConfig{
			Google:      config.GoogleConfig{Enabled: true, RequestsPerSecond: 1, Burst: 1, Timeout: time.Second},
			IndexNow:    config.IndexNowConfig{Enabled: true, Endpoint: "http://localhost", Host: "example.com", Key: "k"},
			SitemapPing: config.SitemapPingConfig{Enabled: true, Endpoint: "http://localhost", SitemapURL: "https://example.com/sitemap.xml"},
			Ping: config.PingConfig{Enabled: true, Timeout: time.Second, Endpoints: []config.PingEndpoint{
				{Name: "google", URL: "http://localhost/google"},
				{Name: "bing", URL: "http://localhost/bing"},
			}},
		}

		set := platform.Build(cfg, nil, logger)

		require.Len(t, set.URL, 3)
		assert.Equal(t, "google-indexing-api", set.URL[0].Name())
		assert.Equal(t, "ping:google", set.URL[1].Name())
		assert.Equal(t, "ping:bing", set.URL[2].Name())

		require.Len(t, set.Batch, 2)
		assert.Equal(t, "indexnow", set.Batch[0].Name())
		assert.Equal(t, "sitemap-ping", set.Batch[1].Name())

		assert.Len(t, set.Catalogue, 5)
	})
}

func TestBuild_OutcomesAreIndependentAcrossURLs(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// The endpoint fails the first ten pings and recovers afterwards.
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 10 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.ChannelsConfig{
		Google: config.GoogleConfig{Enabled: true, RequestsPerSecond: 1000, Burst: 100, Timeout: time.Second},
		Ping: config.PingConfig{Enabled: true, Timeout: time.Second, Endpoints: []config.PingEndpoint{
			{Name: "flaky", URL: server.URL, Param: "sitemap"},
		}},
	}
	set := platform.Build(cfg, nil, logger)
	require.Len(t, set.URL, 2)
	push, pinger := set.URL[0], set.URL[1]

	ctx := context.Background()
	for i := 1; i <= 12; i++ {
		url := fmt.Sprintf("https://example.com/%d", i)

		pushOutcome := push.Notify(ctx, url)
		assert.Equal(t, notify.StatusFailed, pushOutcome.Status, url)
		assert.Equal(t, "not configured", pushOutcome.Error, url)

		pingOutcome := pinger.Notify(ctx, url)
		if i <= 10 {
			assert.Equal(t, notify.StatusFailed, pingOutcome.Status, url)
			assert.Equal(t, http.StatusServiceUnavailable, pingOutcome.StatusCode, url)
		} else {
			assert.Equal(t, notify.StatusSuccess, pingOutcome.Status, url)
			assert.Equal(t, http.StatusOK, pingOutcome.StatusCode, url)
		}
	}
	assert.Equal(t, int32(12), hits.Load())
}
