// --- File: internal/platform/search/checker.go ---
// Package search answers "is this URL indexed?" by running a site: query
// against a search results page and looking for the URL among its links.
package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/tinywideclouds/go-indexing-service/indexservice/config"
	"github.com/tinywideclouds/go-indexing-service/internal/resilience/circuitbreaker"
)

const maxBodySize = 5 * 1024 * 1024

// Result is the answer for a single URL. Error is set when the check
// itself failed, in which case Indexed carries no information.
type Result struct {
	URL       string    `json:"url"`
	Indexed   bool      `json:"indexed"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker queries the search engine through a circuit breaker: after the
// engine has refused several checks in a row, further checks fail at once
// until the breaker lets a trial request through.
type Checker struct {
	endpoint string
	client   *http.Client
	breaker  *circuitbreaker.CircuitBreaker
	logger   *slog.Logger
}

func NewChecker(cfg config.SearchConfig, logger *slog.Logger) *Checker {
	return &Checker{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: cfg.Timeout},
		breaker:  circuitbreaker.New(circuitbreaker.SearchConfig("search"), logger),
		logger:   logger.With("component", "IndexChecker"),
	}
}

func (c *Checker) Check(ctx context.Context, target string) Result {
	result := Result{URL: target, CheckedAt: time.Now().UTC()}

	v, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, target)
	})
	if err != nil {
		c.logger.Warn("Index check failed", "url", target, "err", err)
		result.Error = err.Error()
		return result
	}

	doc := v.(*goquery.Document)
	needle := strings.TrimSuffix(target, "/")
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if strings.Contains(href, needle) {
			result.Indexed = true
			return false
		}
		// Result links are often wrapped as /url?q=<target>&...
		if u, err := url.Parse(href); err == nil && strings.HasPrefix(u.Query().Get("q"), needle) {
			result.Indexed = true
			return false
		}
		return true
	})
	return result
}

func (c *Checker) fetch(ctx context.Context, target string) (*goquery.Document, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", "site:"+target)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; IndexingServiceBot/1.0)")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return doc, nil
}
