package api

import (
	"net/http"
	"strings"
)

// Handlers groups the API handlers served under /api/v1
type Handlers struct {
	Shelf         *ShelfHandler
	Reader        *ReaderHandler
	Settings      *SettingsHandler
	Notifications *NotificationsHandler
}

// Register mounts every API route on the mux
func (h Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/shelf", h.Shelf.Shelf)
	mux.HandleFunc("/api/v1/shelf/", h.Shelf.Item)

	mux.HandleFunc("/api/v1/reader", h.Reader.Snapshot)
	mux.HandleFunc("/api/v1/reader/next", h.Reader.Next)
	mux.HandleFunc("/api/v1/reader/prev", h.Reader.Prev)
	mux.HandleFunc("/api/v1/reader/close", h.Reader.Close)
	mux.HandleFunc("/api/v1/reader/display", h.Reader.Display)
	mux.HandleFunc("/api/v1/reader/resize", h.Reader.Resize)
	mux.HandleFunc("/api/v1/reader/toc", h.Reader.TOC)
	mux.HandleFunc("/api/v1/reader/view", h.Reader.View)

	mux.HandleFunc("/api/v1/settings", h.Settings.Settings)
	mux.HandleFunc("/api/v1/settings/font", h.Settings.Font)
	mux.HandleFunc("/api/v1/notifications", h.Notifications.List)
	mux.HandleFunc("/api/v1/notifications/", h.Notifications.Dismiss)
}

func extractIDFromPath(path, prefix string) string {
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.Split(rest, "/")
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}
