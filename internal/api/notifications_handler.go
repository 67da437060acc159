package api

import (
	"net/http"

	"github.com/unalkalkan/ShelfReader/internal/notify"
)

// NotificationsHandler serves the transient notices shown to the reader
type NotificationsHandler struct {
	notifier *notify.Center
}

// NewNotificationsHandler creates a new notifications handler
func NewNotificationsHandler(notifier *notify.Center) *NotificationsHandler {
	return &NotificationsHandler{notifier: notifier}
}

type notificationsResponse struct {
	Notifications []notify.Notification `json:"notifications"`
	Count         int                   `json:"count"`
}

// List handles GET /api/v1/notifications
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	active := h.notifier.Active()
	respondJSON(w, notificationsResponse{Notifications: active, Count: len(active)}, http.StatusOK)
}

// Dismiss handles DELETE /api/v1/notifications/{id}
func (h *NotificationsHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/v1/notifications/")
	if id == "" {
		respondError(w, "Notification ID required", http.StatusBadRequest)
		return
	}
	if !h.notifier.Dismiss(id) {
		respondError(w, "Notification not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
