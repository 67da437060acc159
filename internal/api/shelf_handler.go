package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/unalkalkan/ShelfReader/internal/catalog"
	"github.com/unalkalkan/ShelfReader/internal/notify"
	"github.com/unalkalkan/ShelfReader/internal/parser"
	"github.com/unalkalkan/ShelfReader/internal/session"
	"github.com/unalkalkan/ShelfReader/pkg/types"
)

// ShelfHandler handles bookshelf endpoints
type ShelfHandler struct {
	catalog       *catalog.Store
	session       *session.Controller
	parserFactory parser.Factory
	notifier      *notify.Center
	maxUpload     int64
	logger        zerolog.Logger
}

// NewShelfHandler creates a new shelf handler
func NewShelfHandler(catalog *catalog.Store, ctl *session.Controller, parserFactory parser.Factory, notifier *notify.Center, maxUpload int64, logger zerolog.Logger) *ShelfHandler {
	if maxUpload <= 0 {
		maxUpload = 100 << 20
	}
	return &ShelfHandler{
		catalog:       catalog,
		session:       ctl,
		parserFactory: parserFactory,
		notifier:      notifier,
		maxUpload:     maxUpload,
		logger:        logger,
	}
}

type shelfResponse struct {
	Books []types.CatalogEntry `json:"books"`
	Count int                  `json:"count"`
}

// Shelf handles GET and POST /api/v1/shelf
func (h *ShelfHandler) Shelf(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		books := h.catalog.List(r.Context())
		respondJSON(w, shelfResponse{Books: books, Count: len(books)}, http.StatusOK)
	case http.MethodPost:
		h.upload(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// upload reads a multipart "file" field and opens it as a new book
func (h *ShelfHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	fileName := filepath.Base(header.Filename)
	if _, err := h.parserFactory.GetParser(parser.FormatOf(fileName)); err != nil {
		h.notifier.Notify(notify.Warn, "Please upload a .epub file")
		respondError(w, "Please upload a .epub file", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.notifier.Notify(notify.Error, "Failed to read file")
		respondError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	entry, err := h.session.OpenNew(r.Context(), data, fileName)
	if err != nil {
		h.logger.Warn().Err(err).Str("book", fileName).Msg("upload failed")
		respondSessionError(w, err)
		return
	}
	respondJSON(w, entry, http.StatusCreated)
}

// Item handles DELETE /api/v1/shelf/{id} and POST /api/v1/shelf/{id}/open
func (h *ShelfHandler) Item(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/shelf/")
	id, action := rest, ""
	if strings.HasSuffix(rest, "/open") {
		id, action = strings.TrimSuffix(rest, "/open"), "open"
	}
	if id == "" || strings.Contains(id, "/") {
		respondError(w, "Book ID required", http.StatusBadRequest)
		return
	}

	switch {
	case action == "open" && r.Method == http.MethodPost:
		entry, err := h.session.OpenExisting(r.Context(), id)
		if err != nil {
			respondSessionError(w, err)
			return
		}
		respondJSON(w, entry, http.StatusOK)
	case action == "" && r.Method == http.MethodGet:
		entry, ok := h.catalog.Get(r.Context(), id)
		if !ok {
			respondError(w, "Book not found", http.StatusNotFound)
			return
		}
		respondJSON(w, entry, http.StatusOK)
	case action == "" && r.Method == http.MethodDelete:
		if !h.session.Remove(r.Context(), id) {
			respondError(w, "Book not found", http.StatusNotFound)
			return
		}
		respondJSON(w, map[string]string{"removed": id}, http.StatusOK)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Helper functions

// respondSessionError maps controller errors onto status codes
func respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrMalformed):
		respondError(w, "Failed to load book, check the file format", http.StatusUnprocessableEntity)
	case errors.Is(err, session.ErrCannotLoad):
		respondError(w, "Cannot load book data", http.StatusNotFound)
	case errors.Is(err, session.ErrNoSession):
		respondError(w, "No book is open", http.StatusConflict)
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrSuperseded):
		respondError(w, err.Error(), http.StatusConflict)
	default:
		respondError(w, err.Error(), http.StatusInternalServerError)
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
