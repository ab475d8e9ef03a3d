// Package file persists the latest batch as a JSON document on local disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/tinywideclouds/go-indexing-service/pkg/dispatch"
	"github.com/tinywideclouds/go-indexing-service/pkg/notify"
)

const latestFile = "latest.json"

type BatchStore struct {
	dir string
	mu  sync.Mutex
}

// NewBatchStore creates the directory if it does not exist.
func NewBatchStore(dir string) (*BatchStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	return &BatchStore{dir: dir}, nil
}

// SaveLatest replaces the stored batch. The file is written to a temp name
// and renamed so readers never see a partial document.
func (s *BatchStore) SaveLatest(_ context.Context, batch *notify.Batch) error {
	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode batch %s: %w", batch.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, latestFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write batch: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path()); err != nil {
		return fmt.Errorf("failed to replace %s: %w", latestFile, err)
	}
	return nil
}

func (s *BatchStore) Latest(_ context.Context) (*notify.Batch, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path())
	s.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, dispatch.ErrNoBatch
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", latestFile, err)
	}

	var batch notify.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", latestFile, err)
	}
	return &batch, nil
}

func (s *BatchStore) path() string {
	return filepath.Join(s.dir, latestFile)
}
