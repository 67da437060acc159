package types

import "time"

// CatalogEntry represents one book on the shelf
type CatalogEntry struct {
	ID           string    `json:"id"` // file name, unique and stable
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	Cover        string    `json:"cover,omitempty"` // data URI, opaque
	LastRead     time.Time `json:"last_read"`
	Progress     float64   `json:"progress"`                // 0-100
	LastLocation string    `json:"last_location,omitempty"` // CFI of the last visible page
}

// BlobRecord holds the raw bytes of a book file
type BlobRecord struct {
	ID      string    `json:"id"`
	Data    []byte    `json:"-"`
	SavedAt time.Time `json:"saved_at"`
}

// Displayed is the page counter of the current chapter as reported by the renderer
type Displayed struct {
	Page  int `json:"page"`
	Total int `json:"total"`
}

// LocationPoint addresses one edge of the visible content
type LocationPoint struct {
	CFI       string    `json:"cfi"`
	Href      string    `json:"href"`
	Index     int       `json:"index"` // spine index
	Displayed Displayed `json:"displayed"`
}

// Location describes the currently visible range of a rendition
type Location struct {
	Start   LocationPoint `json:"start"`
	End     LocationPoint `json:"end"`
	AtStart bool          `json:"at_start"`
	AtEnd   bool          `json:"at_end"`
}

// TOCItem is one navigation entry of a book
type TOCItem struct {
	Label    string    `json:"label"`
	Href     string    `json:"href"`
	Subitems []TOCItem `json:"subitems,omitempty"`
}

// Page is one rendered page of the visible view
type Page struct {
	CFI  string `json:"cfi"`
	Href string `json:"href"`
	Text string `json:"text"`
}
