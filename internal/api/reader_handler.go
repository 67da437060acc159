package api

import (
	"errors"
	"net/http"

	"github.com/unalkalkan/ShelfReader/internal/render"
	"github.com/unalkalkan/ShelfReader/internal/session"
	"github.com/unalkalkan/ShelfReader/internal/streaming"
)

// ReaderHandler handles the endpoints of the open book
type ReaderHandler struct {
	session          *session.Controller
	streamingService *streaming.Service
}

// NewReaderHandler creates a new reader handler
func NewReaderHandler(ctl *session.Controller, streamingService *streaming.Service) *ReaderHandler {
	return &ReaderHandler{
		session:          ctl,
		streamingService: streamingService,
	}
}

type turnResponse struct {
	Moved bool             `json:"moved"`
	State session.Snapshot `json:"reader"`
}

// Snapshot handles GET /api/v1/reader
func (h *ReaderHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, h.session.Snapshot(), http.StatusOK)
}

// Next handles POST /api/v1/reader/next
func (h *ReaderHandler) Next(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.respondTurn(w, h.session.Next(r.Context()))
}

// Prev handles POST /api/v1/reader/prev
func (h *ReaderHandler) Prev(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.respondTurn(w, h.session.Prev(r.Context()))
}

// A boundary is reported through notifications, not as a failed request
func (h *ReaderHandler) respondTurn(w http.ResponseWriter, err error) {
	if err != nil && !errors.Is(err, session.ErrBoundary) {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, turnResponse{Moved: err == nil, State: h.session.Snapshot()}, http.StatusOK)
}

// Close handles POST /api/v1/reader/close
func (h *ReaderHandler) Close(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.session.Close()
	respondJSON(w, h.session.Snapshot(), http.StatusOK)
}

type displayRequest struct {
	Target string `json:"target"`
}

// Display handles POST /api/v1/reader/display
func (h *ReaderHandler) Display(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req displayRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Target == "" {
		respondError(w, "Target required", http.StatusBadRequest)
		return
	}

	if err := h.session.Display(r.Context(), req.Target); err != nil {
		if errors.Is(err, render.ErrUnknownTarget) {
			respondError(w, "Location not found in book", http.StatusNotFound)
			return
		}
		respondSessionError(w, err)
		return
	}
	respondJSON(w, h.session.Snapshot(), http.StatusOK)
}

type resizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Resize handles POST /api/v1/reader/resize, sent when the reading viewport changes size
func (h *ReaderHandler) Resize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req resizeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.session.Resize(r.Context(), req.Width, req.Height); err != nil {
		if errors.Is(err, session.ErrInvalidViewport) {
			respondError(w, "Width and height must be positive", http.StatusBadRequest)
			return
		}
		respondSessionError(w, err)
		return
	}
	respondJSON(w, h.session.Snapshot(), http.StatusOK)
}

// TOC handles GET /api/v1/reader/toc
func (h *ReaderHandler) TOC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	toc, err := h.session.TOC()
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, map[string]interface{}{"toc": toc}, http.StatusOK)
}

// View handles GET /api/v1/reader/view
func (h *ReaderHandler) View(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	items, err := h.streamingService.StreamView(r.Context(), r.URL.Query().Get("after"))
	if err != nil {
		respondSessionError(w, err)
		return
	}

	ndjson, err := streaming.EncodeNDJSON(items)
	if err != nil {
		respondError(w, "Failed to encode stream", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(ndjson))
}
