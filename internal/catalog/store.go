// Package catalog keeps the bookshelf: one CatalogEntry per book, stored as a
// single JSON document that is read whole at startup and rewritten whole on
// every change.
//
// Catalog operations never fail from the caller's point of view. Losing the
// catalog is not fatal (the book file can still be re-imported), so
// persistence errors are logged and remembered for the health check only.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unalkalkan/ShelfReader/internal/storage"
	"github.com/unalkalkan/ShelfReader/pkg/types"
)

// DocumentKey is the storage key the whole catalog lives under
const DocumentKey = "epub-bookshelf.json"

// Store is the catalog of books on the shelf
type Store struct {
	adapter storage.Adapter
	logger  zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries []types.CatalogEntry
	lastErr error
}

// Option customizes a Store
type Option func(*Store)

// WithClock overrides the time source used for LastRead stamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore loads the catalog document through the adapter.
// A nil adapter gives a session-only catalog; a missing or unreadable document starts an empty shelf.
func NewStore(ctx context.Context, adapter storage.Adapter, logger zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		adapter: adapter,
		logger:  logger,
		now:     time.Now,
		entries: make([]types.CatalogEntry, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) {
	if s.adapter == nil {
		s.lastErr = errors.New("catalog storage unavailable")
		s.logger.Warn().Msg("catalog storage unavailable, shelf will not survive a restart")
		return
	}

	data, err := storage.ReadAll(ctx, s.adapter, DocumentKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.lastErr = err
			s.logger.Error().Err(err).Msg("failed to load catalog")
		}
		return
	}

	var entries []types.CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Error().Err(err).Msg("catalog document is corrupt, starting with an empty shelf")
		return
	}
	s.entries = dedupe(entries)
	s.logger.Debug().Int("books", len(s.entries)).Msg("catalog loaded")
}

// List returns all entries, most recently read first
func (s *Store) List(ctx context.Context) []types.CatalogEntry {
	s.mu.Lock()
	out := make([]types.CatalogEntry, len(s.entries))
	copy(out, s.entries)
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastRead.After(out[j].LastRead)
	})
	return out
}

// Get returns the entry for id
func (s *Store) Get(ctx context.Context, id string) (types.CatalogEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		return s.entries[i], true
	}
	return types.CatalogEntry{}, false
}

// Upsert inserts the entry or replaces the one with the same ID
func (s *Store) Upsert(ctx context.Context, entry types.CatalogEntry) {
	entry.Progress = ClampProgress(entry.Progress)

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(entry.ID); i >= 0 {
		s.entries[i] = entry
	} else {
		s.entries = append(s.entries, entry)
	}
	s.persist(ctx)
}

// UpdateProgress records progress for a known book and stamps it as read now.
// The last location is kept.
func (s *Store) UpdateProgress(ctx context.Context, id string, percentage float64) {
	s.Record(ctx, id, "", percentage)
}

// Touch stamps a known book as read now and remembers where the reader is.
// An empty location keeps the previous one.
func (s *Store) Touch(ctx context.Context, id, location string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return
	}
	s.entries[i].LastRead = s.now()
	if location != "" {
		s.entries[i].LastLocation = location
	}
	s.persist(ctx)
}

// Record saves a reading position: progress, location and a read-now stamp in one write
func (s *Store) Record(ctx context.Context, id, location string, percentage float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return
	}
	s.entries[i].Progress = ClampProgress(percentage)
	s.entries[i].LastRead = s.now()
	if location != "" {
		s.entries[i].LastLocation = location
	}
	s.persist(ctx)
}

// Remove deletes the entry for id, reporting whether it existed
func (s *Store) Remove(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	s.persist(ctx)
	return true
}

// Err returns the last persistence error, nil once a write succeeds again
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// persist rewrites the whole document; callers hold mu
func (s *Store) persist(ctx context.Context) {
	if s.adapter == nil {
		return
	}

	data, err := json.Marshal(s.entries)
	if err != nil {
		s.lastErr = err
		s.logger.Error().Err(err).Msg("failed to encode catalog")
		return
	}

	if err := s.adapter.Put(ctx, DocumentKey, bytes.NewReader(data)); err != nil {
		s.lastErr = err
		s.logger.Error().Err(err).Int("books", len(s.entries)).Msg("failed to save catalog")
		return
	}
	s.lastErr = nil
}

func (s *Store) indexOf(id string) int {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}

// dedupe keeps the last entry for each ID, in first-seen order
func dedupe(entries []types.CatalogEntry) []types.CatalogEntry {
	pos := make(map[string]int, len(entries))
	out := make([]types.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if i, ok := pos[e.ID]; ok {
			out[i] = e
			continue
		}
		pos[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}

// ClampProgress bounds a percentage to [0, 100]
func ClampProgress(p float64) float64 {
	switch {
	case p != p: // NaN
		return 0
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
