// Package dispatch defines the contracts between the dispatch pipeline and the
// channel adapters and storage backends it drives.
package dispatch

import (
	"context"
	"errors"

	"github.com/tinywideclouds/go-indexing-service/pkg/notify"
)

// ErrNoBatch is returned by a BatchStore that has never saved a batch.
var ErrNoBatch = errors.New("no completed batch stored")

// URLChannel notifies one external service about one changed URL.
//
// Notify must never panic or return a Go error: every failure mode (missing
// configuration, transport errors, unexpected responses) is reported as a
// failed notify.Outcome with Error populated.
type URLChannel interface {
	Name() string
	Notify(ctx context.Context, url string) notify.Outcome
}

// BatchChannel notifies an external service once for a whole URL list and
// returns a single outcome describing that submission.
type BatchChannel interface {
	Name() string
	Submit(ctx context.Context, urls []string) notify.Outcome
}

// BatchStore keeps the most recently completed batch.
type BatchStore interface {
	// SaveLatest replaces the stored batch.
	SaveLatest(ctx context.Context, batch *notify.Batch) error
	// Latest returns the stored batch or ErrNoBatch.
	Latest(ctx context.Context) (*notify.Batch, error)
}
