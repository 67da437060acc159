// Package settings keeps the reader's presentation preferences and turns them
// into the stylesheet applied to rendered pages.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/unalkalkan/ShelfReader/internal/storage"
	"github.com/unalkalkan/ShelfReader/pkg/types"
)

// DocumentKey is the storage key the settings live under
const DocumentKey = "reader-settings.json"

// Font size bounds in px
const (
	MinFontSize = 12
	MaxFontSize = 32
)

// ErrInvalid is returned by Update for settings outside their allowed values
var ErrInvalid = errors.New("invalid settings")

// Store holds the current settings and persists every change
type Store struct {
	adapter storage.Adapter
	logger  zerolog.Logger

	mu      sync.RWMutex
	current types.Settings
}

// NewStore loads saved settings, falling back to defaults for anything missing or unreadable
func NewStore(ctx context.Context, adapter storage.Adapter, logger zerolog.Logger) *Store {
	s := &Store{
		adapter: adapter,
		logger:  logger,
		current: types.DefaultSettings(),
	}
	if adapter == nil {
		return s
	}

	data, err := storage.ReadAll(ctx, adapter, DocumentKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warn().Err(err).Msg("failed to load settings, using defaults")
		}
		return s
	}

	loaded := types.DefaultSettings()
	if err := json.Unmarshal(data, &loaded); err != nil {
		logger.Warn().Err(err).Msg("settings document is corrupt, using defaults")
		return s
	}
	if err := Validate(loaded); err != nil {
		logger.Warn().Err(err).Msg("saved settings are out of range, using defaults")
		return s
	}
	s.current = loaded
	return s
}

// Get returns the current settings
func (s *Store) Get() types.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update replaces the settings after validating them
func (s *Store) Update(ctx context.Context, next types.Settings) (types.Settings, error) {
	if err := Validate(next); err != nil {
		return s.Get(), err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	s.persist(ctx, next)
	return next, nil
}

// AdjustFontSize moves the font size by delta; changes that would leave [12,32] are ignored
func (s *Store) AdjustFontSize(ctx context.Context, delta int) (types.Settings, bool) {
	s.mu.Lock()
	size := s.current.FontSize + delta
	if delta == 0 || size < MinFontSize || size > MaxFontSize {
		cur := s.current
		s.mu.Unlock()
		return cur, false
	}
	s.current.FontSize = size
	cur := s.current
	s.mu.Unlock()

	s.persist(ctx, cur)
	return cur, true
}

func (s *Store) persist(ctx context.Context, cur types.Settings) {
	if s.adapter == nil {
		return
	}
	data, err := json.Marshal(cur)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode settings")
		return
	}
	if err := s.adapter.Put(ctx, DocumentKey, bytes.NewReader(data)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to save settings")
	}
}

// Validate checks every field against its allowed values
func Validate(s types.Settings) error {
	if s.FontSize < MinFontSize || s.FontSize > MaxFontSize {
		return fmt.Errorf("%w: font size %d outside %d-%d", ErrInvalid, s.FontSize, MinFontSize, MaxFontSize)
	}
	if s.FontFamily == "" {
		return fmt.Errorf("%w: font family is required", ErrInvalid)
	}
	switch s.Theme {
	case types.ThemeLight, types.ThemeSepia, types.ThemeDark, types.ThemeGreen, types.ThemeCustom:
	default:
		return fmt.Errorf("%w: unknown theme %q", ErrInvalid, s.Theme)
	}
	switch s.DisplayMode {
	case types.DisplaySingle, types.DisplayDouble:
	default:
		return fmt.Errorf("%w: unknown display mode %q", ErrInvalid, s.DisplayMode)
	}
	if s.LineHeight <= 0 {
		return fmt.Errorf("%w: line height must be positive", ErrInvalid)
	}
	if s.Padding < 0 {
		return fmt.Errorf("%w: padding must not be negative", ErrInvalid)
	}
	if s.Brightness < 0 || s.Brightness > 200 {
		return fmt.Errorf("%w: brightness %d outside 0-200", ErrInvalid, s.Brightness)
	}
	return nil
}
