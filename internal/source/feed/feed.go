// Package feed expands RSS/Atom feed URLs into the item links they list.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"
)

type Expander struct {
	client *http.Client
	logger *slog.Logger
}

func NewExpander(client *http.Client, logger *slog.Logger) *Expander {
	if client == nil {
		client = http.DefaultClient
	}
	return &Expander{client: client, logger: logger.With("component", "FeedExpander")}
}

// Links returns the item links of every feed, in feed order, without
// duplicates. A feed that cannot be fetched fails the whole call.
func (e *Expander) Links(ctx context.Context, feedURLs []string) ([]string, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = "IndexingServiceBot"
	fp.Client = e.client

	seen := make(map[string]struct{})
	var links []string
	for _, feedURL := range feedURLs {
		f, err := fp.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
		}
		for _, item := range f.Items {
			link := strings.TrimSpace(item.Link)
			if link == "" {
				continue
			}
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			links = append(links, link)
		}
		e.logger.Debug("Expanded feed", "feed", feedURL, "items", len(f.Items))
	}
	return links, nil
}
