// Package platform assembles the enabled indexing channels from configuration.
package platform

import (
	"log/slog"

	"github.com/tinywideclouds/go-indexing-service/indexservice/config"
	"github.com/tinywideclouds/go-indexing-service/internal/platform/google"
	"github.com/tinywideclouds/go-indexing-service/internal/platform/indexnow"
	"github.com/tinywideclouds/go-indexing-service/internal/platform/ping"
	"github.com/tinywideclouds/go-indexing-service/pkg/dispatch"
)

// Kind is one of the supported channel families.
type Kind string

const (
	KindPushNotify  Kind = "push-notify"
	KindBulkSubmit  Kind = "bulk-key-submit"
	KindSitemapPing Kind = "sitemap-ping"
	KindGenericPing Kind = "generic-ping"
)

// Kinds lists every channel kind in invocation order.
var Kinds = []Kind{KindPushNotify, KindBulkSubmit, KindSitemapPing, KindGenericPing}

// Descriptor is the public description of one channel, served by /methods.
type Descriptor struct {
	Kind    Kind   `json:"kind"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Speed   string `json:"speed"`
	Limit   string `json:"limit"`
}

// Set is the result of Build.
type Set struct {
	URL       []dispatch.URLChannel
	Batch     []dispatch.BatchChannel
	Catalogue []Descriptor
}

// Build creates the adapters for every enabled kind. publisher may be nil when
// the push channel is enabled but its client could not be created; that
// channel then reports "not configured" for each URL.
//
// Adapters hold no state between calls: every outcome comes from its own
// remote call, however earlier URLs fared.
func Build(cfg config.ChannelsConfig, publisher google.Publisher, logger *slog.Logger) Set {
	var set Set
	for _, kind := range Kinds {
		switch kind {
		case KindPushNotify:
			set.Catalogue = append(set.Catalogue, Descriptor{
				Kind: kind, Name: google.ChannelName, Enabled: cfg.Google.Enabled,
				Speed: "instant", Limit: "200/day",
			})
			if cfg.Google.Enabled {
				set.URL = append(set.URL, google.NewDispatcher(publisher, cfg.Google, logger))
			}

		case KindBulkSubmit:
			set.Catalogue = append(set.Catalogue, Descriptor{
				Kind: kind, Name: indexnow.ChannelName, Enabled: cfg.IndexNow.Enabled,
				Speed: "fast", Limit: "10,000/day",
			})
			if cfg.IndexNow.Enabled {
				set.Batch = append(set.Batch, indexnow.NewDispatcher(cfg.IndexNow, logger))
			}

		case KindSitemapPing:
			set.Catalogue = append(set.Catalogue, Descriptor{
				Kind: kind, Name: ping.SitemapChannelName, Enabled: cfg.SitemapPing.Enabled,
				Speed: "moderate", Limit: "unlimited",
			})
			if cfg.SitemapPing.Enabled {
				set.Batch = append(set.Batch, ping.NewSitemapPinger(cfg.SitemapPing, logger))
			}

		case KindGenericPing:
			if !cfg.Ping.Enabled {
				set.Catalogue = append(set.Catalogue, Descriptor{
					Kind: kind, Name: "ping", Enabled: false,
					Speed: "moderate", Limit: "unlimited",
				})
				continue
			}
			for _, p := range ping.NewPingers(cfg.Ping, logger) {
				set.Catalogue = append(set.Catalogue, Descriptor{
					Kind: kind, Name: p.Name(), Enabled: true,
					Speed: "moderate", Limit: "unlimited",
				})
				set.URL = append(set.URL, p)
			}
		}
	}
	return set
}
