package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-indexing-service/internal/job"
	"github.com/tinywideclouds/go-indexing-service/internal/platform"
	"github.com/tinywideclouds/go-indexing-service/internal/platform/search"
	"github.com/tinywideclouds/go-indexing-service/pkg/dispatch"
	"github.com/tinywideclouds/go-indexing-service/pkg/notify"
)

// JobTracker starts batches and reports on them.
type JobTracker interface {
	Submit(urls []string) (*job.Handle, error)
	Status() job.Snapshot
}

// URLNotifier runs every per-URL channel for one URL.
type URLNotifier interface {
	Notify(ctx context.Context, url string) notify.URLResult
}

type IndexChecker interface {
	Check(ctx context.Context, url string) search.Result
}

type LinkSource interface {
	Links(ctx context.Context, feedURLs []string) ([]string, error)
}

type IndexAPI struct {
	Jobs      JobTracker
	Notifier  URLNotifier
	Checker   IndexChecker
	Feeds     LinkSource
	Batches   dispatch.BatchStore
	Catalogue []platform.Descriptor
	Logger    *slog.Logger
}

func NewIndexAPI(
	jobs JobTracker,
	notifier URLNotifier,
	checker IndexChecker,
	feeds LinkSource,
	batches dispatch.BatchStore,
	catalogue []platform.Descriptor,
	logger *slog.Logger,
) *IndexAPI {
	return &IndexAPI{
		Jobs:      jobs,
		Notifier:  notifier,
		Checker:   checker,
		Feeds:     feeds,
		Batches:   batches,
		Catalogue: catalogue,
		Logger:    logger.With("component", "IndexAPI"),
	}
}

// URLList accepts either a JSON array of URLs or one newline-separated string.
type URLList []string

func (l *URLList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = cleanURLs(list)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return errors.New("urls must be an array or a newline-separated string")
	}
	*l = cleanURLs(strings.Split(text, "\n"))
	return nil
}

func cleanURLs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, u := range in {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

type SubmitRequest struct {
	URLs     URLList  `json:"urls"`
	FeedURLs []string `json:"feed_urls"`
}

type SubmitResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	URLCount int    `json:"url_count"`
	JobID    string `json:"job_id"`
}

// StatusResponse flattens the report fields into the top level once a batch
// has completed.
type StatusResponse struct {
	Status      string     `json:"status"`
	InProgress  bool       `json:"in_progress"`
	JobID       string     `json:"job_id,omitempty"`
	URLCount    int        `json:"url_count,omitempty"`
	Message     string     `json:"message,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	*notify.Report
	Submissions []notify.Outcome `json:"submissions,omitempty"`
}

type NotifyRequest struct {
	URL string `json:"url"`
}

// SubmitBatch handles POST /api/v1/index.
func (api *IndexAPI) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	urls := []string(req.URLs)
	if len(req.FeedURLs) > 0 {
		if api.Feeds == nil {
			response.WriteJSONError(w, http.StatusBadRequest, "feed expansion not available")
			return
		}
		links, err := api.Feeds.Links(r.Context(), req.FeedURLs)
		if err != nil {
			api.Logger.Warn("SubmitBatch: feed expansion failed", "err", err)
			response.WriteJSONError(w, http.StatusBadGateway, "failed to read feeds")
			return
		}
		urls = append(urls, links...)
	}

	handle, err := api.Jobs.Submit(urls)
	switch {
	case errors.Is(err, job.ErrNoURLs):
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, job.ErrJobRunning):
		response.WriteJSONError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		api.Logger.Error("SubmitBatch: submit failed", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "failed to start job")
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		Status:   "started",
		Message:  "indexing job started",
		URLCount: handle.URLCount,
		JobID:    handle.ID,
	})
}

// GetStatus handles GET /api/v1/status.
func (api *IndexAPI) GetStatus(w http.ResponseWriter, _ *http.Request) {
	snap := api.Jobs.Status()

	resp := StatusResponse{InProgress: snap.InProgress, JobID: snap.JobID, URLCount: snap.URLCount}
	switch {
	case snap.InProgress:
		resp.Status = "indexing"
		resp.Message = "indexing in progress"
	case snap.Report == nil:
		resp.Status = "idle"
		resp.Message = "no jobs run yet"
	default:
		resp.Status = "complete"
		resp.Report = snap.Report
		if snap.Batch != nil {
			completed := snap.Batch.CompletedAt
			resp.CompletedAt = &completed
			resp.Submissions = snap.Batch.Submissions
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// LatestBatchResponse is the last persisted batch with its summary.
type LatestBatchResponse struct {
	*notify.Batch
	Report notify.Report `json:"report"`
}

// LatestBatch handles GET /api/v1/batches/latest. It reads the persisted
// batch rather than this process's memory, so any replica can answer.
func (api *IndexAPI) LatestBatch(w http.ResponseWriter, r *http.Request) {
	if api.Batches == nil {
		response.WriteJSONError(w, http.StatusNotImplemented, "batch store not configured")
		return
	}
	batch, err := api.Batches.Latest(r.Context())
	if errors.Is(err, dispatch.ErrNoBatch) {
		response.WriteJSONError(w, http.StatusNotFound, "no completed batch")
		return
	}
	if err != nil {
		api.Logger.Error("LatestBatch: store read failed", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "could not read last batch")
		return
	}
	writeJSON(w, http.StatusOK, LatestBatchResponse{Batch: batch, Report: notify.Aggregate(batch.Results)})
}

// NotifySingle handles POST /api/v1/notify and runs synchronously.
func (api *IndexAPI) NotifySingle(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	target := strings.TrimSpace(req.URL)
	if target == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing url")
		return
	}
	if _, err := url.ParseRequestURI(target); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid url")
		return
	}

	result := api.Notifier.Notify(r.Context(), target)
	api.Logger.Info("NotifySingle: notified", "url", target, "succeeded", result.Succeeded())
	writeJSON(w, http.StatusOK, result)
}

// ListMethods handles GET /api/v1/methods.
func (api *IndexAPI) ListMethods(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"methods": api.Catalogue})
}

// CheckURL handles GET /api/v1/check?url=...
func (api *IndexAPI) CheckURL(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing url")
		return
	}
	if _, err := url.ParseRequestURI(target); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid url")
		return
	}
	if api.Checker == nil {
		response.WriteJSONError(w, http.StatusNotImplemented, "index check not available")
		return
	}
	writeJSON(w, http.StatusOK, api.Checker.Check(r.Context(), target))
}

// Health handles GET /api/v1/health.
func (api *IndexAPI) Health(w http.ResponseWriter, _ *http.Request) {
	enabled := 0
	for _, d := range api.Catalogue {
		if d.Enabled {
			enabled++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"in_progress": api.Jobs.Status().InProgress,
		"channels":    enabled,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
