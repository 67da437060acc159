package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/unalkalkan/ShelfReader/internal/session"
	"github.com/unalkalkan/ShelfReader/internal/settings"
	"github.com/unalkalkan/ShelfReader/pkg/types"
)

// SettingsHandler handles reader settings
type SettingsHandler struct {
	settings *settings.Store
	session  *session.Controller
	logger   zerolog.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(store *settings.Store, ctl *session.Controller, logger zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings: store,
		session:  ctl,
		logger:   logger,
	}
}

type settingsResponse struct {
	Settings types.Settings      `json:"settings"`
	Palette  settings.Palette    `json:"palette"`
	Style    settings.Stylesheet `json:"style"`
}

func (h *SettingsHandler) describe(s types.Settings) settingsResponse {
	return settingsResponse{
		Settings: s,
		Palette:  settings.PaletteFor(s),
		Style:    settings.Build(s, settings.View()),
	}
}

// Settings handles GET and PUT /api/v1/settings
func (h *SettingsHandler) Settings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondJSON(w, h.describe(h.settings.Get()), http.StatusOK)
	case http.MethodPut:
		prev := h.settings.Get()
		next := prev
		if err := decodeJSON(r, &next); err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		saved, err := h.settings.Update(r.Context(), next)
		if err != nil {
			if errors.Is(err, settings.ErrInvalid) {
				respondError(w, err.Error(), http.StatusBadRequest)
				return
			}
			respondError(w, "Failed to save settings", http.StatusInternalServerError)
			return
		}

		switch {
		case saved.DisplayMode != prev.DisplayMode:
			h.relayout(r, h.session.ApplyDisplayMode(r.Context(), saved.DisplayMode))
		case saved.FontSize != prev.FontSize:
			h.relayout(r, h.session.Reflow(r.Context()))
		}
		respondJSON(w, h.describe(saved), http.StatusOK)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type fontRequest struct {
	Delta int `json:"delta"`
}

// Font handles POST /api/v1/settings/font, the keyboard font size shortcut
func (h *SettingsHandler) Font(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req fontRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	saved, changed := h.settings.AdjustFontSize(r.Context(), req.Delta)
	if changed {
		h.relayout(r, h.session.Reflow(r.Context()))
	}
	respondJSON(w, map[string]interface{}{"settings": saved, "changed": changed}, http.StatusOK)
}

// relayout logs a failed rebuild; having no open book is fine
func (h *SettingsHandler) relayout(r *http.Request, err error) {
	if err == nil || errors.Is(err, session.ErrNoSession) {
		return
	}
	h.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("failed to apply settings to the open book")
}
