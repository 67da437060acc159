// Package blobstore keeps the raw bytes of every book on the shelf, keyed by
// the same ID as its catalog entry.
//
// A backend that cannot be opened does not fail the caller's session: every
// operation reports ErrUnavailable and the reader keeps the book in memory
// only.
package blobstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/unalkalkan/ShelfReader/internal/storage"
	"github.com/unalkalkan/ShelfReader/pkg/types"
)

// ErrUnavailable means the backing engine could not be opened
var ErrUnavailable = errors.New("blob store unavailable")

// Store persists raw book files
type Store interface {
	// Put stores the bytes for id, replacing any previous record
	Put(ctx context.Context, id string, data []byte) error

	// Get returns the record for id; found is false for a missing id and err stays nil
	Get(ctx context.Context, id string) (rec types.BlobRecord, found bool, err error)

	// Delete removes the record for id; missing ids are not an error
	Delete(ctx context.Context, id string) error

	// Close releases the backend
	Close() error
}

// New builds the configured blob store
func New(cfg types.BlobConfig, adapter storage.Adapter, logger zerolog.Logger) (Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return NewSQLStore(cfg.Dir, logger), nil
	case "adapter":
		return NewAdapterStore(adapter, logger), nil
	default:
		return nil, fmt.Errorf("unknown blob backend: %s", cfg.Backend)
	}
}
