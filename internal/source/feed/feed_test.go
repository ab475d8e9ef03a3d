package feed_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-indexing-service/internal/source/feed"
)

const rss = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Blog</title>
<item><title>One</title><link>https://example.com/one</link></item>
<item><title>Two</title><link>https://example.com/two</link></item>
<item><title>No link</title></item>
</channel></rss>`

const atom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title>News</title>
<entry><title>Two again</title><link href="https://example.com/two"/></entry>
<entry><title>Three</title><link href="https://example.com/three"/></entry>
</feed>`

func TestExpander_Links(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rss.xml":
			_, _ = w.Write([]byte(rss))
		case "/atom.xml":
			_, _ = w.Write([]byte(atom))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	expander := feed.NewExpander(server.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	t.Run("Merges feeds without duplicates", func(t *testing.T) {
		links, err := expander.Links(ctx, []string{server.URL + "/rss.xml", server.URL + "/atom.xml"})
		require.NoError(t, err)
		assert.Equal(t, []string{"https://example.com/one", "https://example.com/two", "https://example.com/three"}, links)
	})

	t.Run("Missing feed fails", func(t *testing.T) {
		_, err := expander.Links(ctx, []string{server.URL + "/gone.xml"})
		assert.Error(t, err)
	})

	t.Run("No feeds", func(t *testing.T) {
		links, err := expander.Links(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, links)
	})
}
