// Package render defines the rendering collaborator the reading session drives.
//
// The session controller only talks to these interfaces. Layout, CFI
// arithmetic and document parsing belong to the implementation behind them.
package render

import (
	"context"
	"errors"

	"github.com/unalkalkan/ShelfReader/pkg/types"
)

// EventRelocated fires whenever the visible content changes
const EventRelocated = "relocated"

var (
	// ErrBoundary is returned by Next and Prev at the ends of the document
	ErrBoundary = errors.New("document boundary")

	// ErrDestroyed is returned by any call on a destroyed rendition or book
	ErrDestroyed = errors.New("rendition destroyed")

	// ErrNoLocations is returned when percentages are asked for before Generate finished
	ErrNoLocations = errors.New("locations not generated")

	// ErrUnknownTarget is returned by Display for a CFI or href the book does not contain
	ErrUnknownTarget = errors.New("unknown display target")
)

// Metadata is what the book says about itself; empty fields are absent
type Metadata struct {
	Title    string
	Creator  string
	Language string
}

// Options configure a rendition
type Options struct {
	Width    int    // columns
	Height   int    // rows
	Flow     string // "paginated"
	Spread   string // "none" or "auto"
	FontSize int    // px; larger fonts fit less text per page
}

// Engine opens books from raw bytes
type Engine interface {
	Open(ctx context.Context, data []byte) (Book, error)
}

// Book is an opened document
type Book interface {
	Metadata(ctx context.Context) (Metadata, error)
	// Cover returns the cover as a data URI, or "" when there is none
	Cover(ctx context.Context) (string, error)
	Navigation(ctx context.Context) ([]types.TOCItem, error)
	RenderTo(opts Options) (Rendition, error)
	Locations() Locations
	Destroy()
}

// Rendition is a live view onto a book
type Rendition interface {
	// Display shows the start of the book for "", else the CFI or href given
	Display(ctx context.Context, target string) error
	Next(ctx context.Context) error
	Prev(ctx context.Context) error
	// On registers a listener and returns the function that removes it
	On(event string, fn func(types.Location)) (off func())
	Location() (types.Location, bool)
	View() []types.Page
	Resize(width, height int) error
	Destroy()
}

// Locations maps CFIs onto a fraction of the whole book
type Locations interface {
	Generate(ctx context.Context, count int) error
	Length() int
	// PercentageFromCFI returns a fraction in [0, 1]
	PercentageFromCFI(cfi string) (float64, error)
}
