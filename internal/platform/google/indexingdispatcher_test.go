package google_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	indexing "google.golang.org/api/indexing/v3"
	"google.golang.org/api/option"

	"github.com/tinywideclouds/go-indexing-service/indexservice/config"
	"github.com/tinywideclouds/go-indexing-service/internal/platform/google"
	"github.com/tinywideclouds/go-indexing-service/pkg/notify"
)

// MockPublisher satisfies the Publisher interface
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, n *indexing.UrlNotification) (*indexing.PublishUrlNotificationResponse, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*indexing.PublishUrlNotificationResponse), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.GoogleConfig {
	return config.GoogleConfig{
		Enabled:           true,
		RequestsPerSecond: 100,
		Burst:             10,
		Timeout:           time.Second,
	}
}

func TestGoogleDispatcher_Notify(t *testing.T) {
	logger := newTestLogger()
	ctx := context.Background()
	target := "https://example.com/page"

	t.Run("Success", func(t *testing.T) {
		client := new(MockPublisher)
		dispatcher := google.NewDispatcher(client, testConfig(), logger)

		client.On("Publish", mock.Anything, mock.MatchedBy(func(n *indexing.UrlNotification) bool {
			return n.Url == target && n.Type == google.URLUpdated
		})).Return(&indexing.PublishUrlNotificationResponse{}, nil)

		outcome := dispatcher.Notify(ctx, target)

		assert.Equal(t, notify.StatusSuccess, outcome.Status)
		assert.Equal(t, http.StatusOK, outcome.StatusCode)
		assert.Equal(t, google.ChannelName, outcome.Channel)
		assert.Equal(t, target, outcome.Target)
		client.AssertExpectations(t)
	})

	t.Run("API Error carries code and message", func(t *testing.T) {
		client := new(MockPublisher)
		dispatcher := google.NewDispatcher(client, testConfig(), logger)

		apiErr := &googleapi.Error{Code: http.StatusForbidden, Message: "Permission denied. Failed to verify the URL ownership."}
		client.On("Publish", mock.Anything, mock.Anything).Return(nil, apiErr)

		outcome := dispatcher.Notify(ctx, target)

		assert.Equal(t, notify.StatusFailed, outcome.Status)
		assert.Equal(t, http.StatusForbidden, outcome.StatusCode)
		assert.Contains(t, outcome.Error, "Permission denied")
	})

	t.Run("Transport Error", func(t *testing.T) {
		client := new(MockPublisher)
		dispatcher := google.NewDispatcher(client, testConfig(), logger)

		client.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("network down"))

		outcome := dispatcher.Notify(ctx, target)

		assert.Equal(t, notify.StatusFailed, outcome.Status)
		assert.Zero(t, outcome.StatusCode)
		assert.Equal(t, "network down", outcome.Error)
	})

	t.Run("Not configured makes no call", func(t *testing.T) {
		dispatcher := google.NewDispatcher(nil, testConfig(), logger)

		outcome := dispatcher.Notify(ctx, target)

		assert.False(t, dispatcher.Configured())
		assert.Equal(t, notify.StatusFailed, outcome.Status)
		assert.Equal(t, "not configured", outcome.Error)
	})

	t.Run("Cancelled context fails the rate limiter wait", func(t *testing.T) {
		client := new(MockPublisher)
		cfg := testConfig()
		cfg.RequestsPerSecond = 0.001
		cfg.Burst = 1
		dispatcher := google.NewDispatcher(client, cfg, logger)
		client.On("Publish", mock.Anything, mock.Anything).Return(&indexing.PublishUrlNotificationResponse{}, nil).Once()

		first := dispatcher.Notify(ctx, target)
		require.True(t, first.Succeeded())

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		second := dispatcher.Notify(cancelled, target)

		assert.Equal(t, notify.StatusFailed, second.Status)
		assert.Contains(t, second.Error, "rate limit")
		client.AssertNumberOfCalls(t, "Publish", 1)
	})
}

func TestNewPublisher_AgainstFakeEndpoint(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/urlNotifications:publish", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"urlNotificationMetadata":{"url":"https://example.com/a"}}`))
	}))
	defer server.Close()

	ctx := context.Background()
	publisher, err := google.NewPublisher(ctx,
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)

	dispatcher := google.NewDispatcher(publisher, testConfig(), newTestLogger())
	outcome := dispatcher.Notify(ctx, "https://example.com/a")

	assert.True(t, outcome.Succeeded(), outcome.Error)
	assert.Contains(t, gotBody, `"url":"https://example.com/a"`)
	assert.Contains(t, gotBody, `"type":"URL_UPDATED"`)
}
