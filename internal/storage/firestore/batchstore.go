package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-indexing-service/pkg/dispatch"
	"github.com/tinywideclouds/go-indexing-service/pkg/notify"
)

const (
	DefaultCollection = "batches"
	latestDocID       = "latest"
)

// BatchStore keeps the most recent completed batch in a single Firestore document.
type BatchStore struct {
	client     *firestore.Client
	collection string
}

func NewBatchStore(client *firestore.Client, collection string) *BatchStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &BatchStore{client: client, collection: collection}
}

func (s *BatchStore) SaveLatest(ctx context.Context, batch *notify.Batch) error {
	if _, err := s.latestRef().Set(ctx, batch); err != nil {
		return fmt.Errorf("failed to save batch %s: %w", batch.ID, err)
	}
	return nil
}

func (s *BatchStore) Latest(ctx context.Context) (*notify.Batch, error) {
	doc, err := s.latestRef().Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, dispatch.ErrNoBatch
		}
		return nil, fmt.Errorf("failed to load latest batch: %w", err)
	}

	var batch notify.Batch
	if err := doc.DataTo(&batch); err != nil {
		return nil, fmt.Errorf("failed to decode latest batch: %w", err)
	}
	return &batch, nil
}

func (s *BatchStore) latestRef() *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(latestDocID)
}
