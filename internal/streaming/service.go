package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/unalkalkan/ShelfReader/internal/settings"
	"github.com/unalkalkan/ShelfReader/pkg/types"
)

// ViewSource provides the pages currently on screen
type ViewSource interface {
	View() ([]types.Page, error)
}

// SettingsSource provides the settings pages are styled with
type SettingsSource interface {
	Get() types.Settings
}

// Service handles streaming of the visible pages
type Service struct {
	view     ViewSource
	settings SettingsSource
}

// NewService creates a new streaming service
func NewService(view ViewSource, settings SettingsSource) *Service {
	return &Service{
		view:     view,
		settings: settings,
	}
}

// StreamItem represents a single page in the NDJSON stream
type StreamItem struct {
	types.Page
	Frame int                  `json:"frame"`
	Style *settings.Stylesheet `json:"style"`
}

// StreamView returns the visible pages with their stylesheet.
// When afterCFI names a visible page, only the pages after it are returned.
func (s *Service) StreamView(ctx context.Context, afterCFI string) ([]StreamItem, error) {
	pages, err := s.view.View()
	if err != nil {
		return nil, fmt.Errorf("failed to get view: %w", err)
	}

	cur := s.settings.Get()
	items := make([]StreamItem, 0, len(pages))
	found := afterCFI == ""
	for i, page := range pages {
		if !found {
			found = page.CFI == afterCFI
			continue
		}
		style := settings.Build(cur, settings.Frame(i))
		items = append(items, StreamItem{
			Page:  page,
			Frame: i,
			Style: &style,
		})
	}

	return items, nil
}

// EncodeNDJSON encodes stream items as NDJSON
func EncodeNDJSON(items []StreamItem) (string, error) {
	var b strings.Builder
	for _, item := range items {
		jsonData, err := json.Marshal(item)
		if err != nil {
			return "", fmt.Errorf("failed to marshal item: %w", err)
		}
		b.Write(jsonData)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
