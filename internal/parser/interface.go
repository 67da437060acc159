package parser

import (
	"context"
	"errors"

	"github.com/unalkalkan/ShelfReader/pkg/types"
)

// ErrMalformed is returned when the bytes are not a readable document of the parser's format
var ErrMalformed = errors.New("malformed document")

// Parser defines the interface for document parsers
type Parser interface {
	// Parse reads metadata, navigation and chapter text from the document
	Parse(ctx context.Context, data []byte) (*Document, error)

	// SupportedFormats returns the file formats this parser supports
	SupportedFormats() []string
}

// Factory creates parsers for different formats
type Factory interface {
	// GetParser returns a parser for the given format
	GetParser(format string) (Parser, error)
}

// Document is the parsed form of a book
type Document struct {
	Metadata Metadata
	Spine    []Chapter // reading order
	TOC      []types.TOCItem
	Cover    *Cover // nil when the book has none
}

// Metadata is the descriptive part of the package document
type Metadata struct {
	Title      string
	Creators   []string
	Language   string
	Identifier string
}

// Chapter is one spine item with its extracted text
type Chapter struct {
	Index int
	ID    string
	Href  string // path inside the container
	Title string
	Text  string // paragraphs separated by blank lines
}

// Cover is the cover image of a book
type Cover struct {
	MediaType string
	Data      []byte
}

// Creator returns the first creator, or "" when the book names none
func (m Metadata) Creator() string {
	if len(m.Creators) == 0 {
		return ""
	}
	return m.Creators[0]
}
