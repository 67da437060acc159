package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/unalkalkan/ShelfReader/internal/storage"
	"github.com/unalkalkan/ShelfReader/pkg/types"
)

// AdapterStore keeps blobs next to the catalog in a storage adapter (local disk or S3)
type AdapterStore struct {
	adapter storage.Adapter
	logger  zerolog.Logger
}

type blobMeta struct {
	SavedAt time.Time `json:"saved_at"`
}

// NewAdapterStore wraps a storage adapter; a nil adapter yields a store that is always unavailable
func NewAdapterStore(adapter storage.Adapter, logger zerolog.Logger) *AdapterStore {
	return &AdapterStore{adapter: adapter, logger: logger}
}

func rawKey(id string) string {
	return "books/" + url.PathEscape(id) + "/raw.epub"
}

func metaKey(id string) string {
	return "books/" + url.PathEscape(id) + "/blob.json"
}

// Put stores the bytes for id, then its timestamp
func (s *AdapterStore) Put(ctx context.Context, id string, data []byte) error {
	if s.adapter == nil {
		return ErrUnavailable
	}

	if err := s.adapter.Put(ctx, rawKey(id), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save blob %s: %w", id, err)
	}

	meta, err := json.Marshal(blobMeta{SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode blob metadata: %w", err)
	}
	if err := s.adapter.Put(ctx, metaKey(id), bytes.NewReader(meta)); err != nil {
		// The bytes are durable; only the timestamp is lost
		s.logger.Warn().Err(err).Str("id", id).Msg("failed to save blob metadata")
	}
	return nil
}

// Get returns the record for id
func (s *AdapterStore) Get(ctx context.Context, id string) (types.BlobRecord, bool, error) {
	if s.adapter == nil {
		return types.BlobRecord{}, false, ErrUnavailable
	}

	data, err := storage.ReadAll(ctx, s.adapter, rawKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return types.BlobRecord{}, false, nil
	}
	if err != nil {
		return types.BlobRecord{}, false, fmt.Errorf("failed to load blob %s: %w", id, err)
	}

	rec := types.BlobRecord{ID: id, Data: data}
	if raw, err := storage.ReadAll(ctx, s.adapter, metaKey(id)); err == nil {
		var meta blobMeta
		if json.Unmarshal(raw, &meta) == nil {
			rec.SavedAt = meta.SavedAt
		}
	}
	return rec, true, nil
}

// Delete removes the record for id
func (s *AdapterStore) Delete(ctx context.Context, id string) error {
	if s.adapter == nil {
		return ErrUnavailable
	}

	if err := s.adapter.Delete(ctx, rawKey(id)); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", id, err)
	}
	if err := s.adapter.Delete(ctx, metaKey(id)); err != nil {
		s.logger.Warn().Err(err).Str("id", id).Msg("failed to delete blob metadata")
	}
	return nil
}

// Close does nothing; the adapter is owned by the caller
func (s *AdapterStore) Close() error {
	return nil
}
