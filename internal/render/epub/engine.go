// Package epub is the in-process rendering engine: it opens ePUB bytes with
// the parser, paginates chapter text into a fixed character grid and
// addresses positions with simplified CFIs.
package epub

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"

	"github.com/unalkalkan/ShelfReader/internal/parser"
	"github.com/unalkalkan/ShelfReader/internal/render"
	"github.com/unalkalkan/ShelfReader/pkg/types"
)

// Engine opens books through a document parser
type Engine struct {
	parser parser.Parser
}

// NewEngine creates an engine backed by the given parser
func NewEngine(p parser.Parser) *Engine {
	return &Engine{parser: p}
}

// Open parses the bytes into a book; malformed input fails with parser.ErrMalformed
func (e *Engine) Open(ctx context.Context, data []byte) (render.Book, error) {
	doc, err := e.parser.Parse(ctx, data)
	if err != nil {
		return nil, err
	}
	return newBook(doc), nil
}

type book struct {
	doc     *parser.Document
	text    [][]rune // per spine item
	offsets []int    // global rune offset of each spine item
	total   int

	mu        sync.Mutex
	destroyed bool
	locations *locations
}

func newBook(doc *parser.Document) *book {
	b := &book{
		doc:     doc,
		text:    make([][]rune, len(doc.Spine)),
		offsets: make([]int, len(doc.Spine)),
	}
	for i, ch := range doc.Spine {
		b.text[i] = []rune(ch.Text)
		b.offsets[i] = b.total
		b.total += len(b.text[i])
	}
	b.locations = &locations{book: b}
	return b
}

func (b *book) alive() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return render.ErrDestroyed
	}
	return nil
}

func (b *book) Metadata(ctx context.Context) (render.Metadata, error) {
	if err := b.alive(); err != nil {
		return render.Metadata{}, err
	}
	return render.Metadata{
		Title:    b.doc.Metadata.Title,
		Creator:  b.doc.Metadata.Creator(),
		Language: b.doc.Metadata.Language,
	}, nil
}

func (b *book) Cover(ctx context.Context) (string, error) {
	if err := b.alive(); err != nil {
		return "", err
	}
	if b.doc.Cover == nil {
		return "", nil
	}
	return fmt.Sprintf("data:%s;base64,%s", b.doc.Cover.MediaType, base64.StdEncoding.EncodeToString(b.doc.Cover.Data)), nil
}

func (b *book) Navigation(ctx context.Context) ([]types.TOCItem, error) {
	if err := b.alive(); err != nil {
		return nil, err
	}
	toc := make([]types.TOCItem, len(b.doc.TOC))
	copy(toc, b.doc.TOC)
	return toc, nil
}

func (b *book) RenderTo(opts render.Options) (render.Rendition, error) {
	if err := b.alive(); err != nil {
		return nil, err
	}
	return newRendition(b, opts), nil
}

func (b *book) Locations() render.Locations {
	return b.locations
}

func (b *book) Destroy() {
	b.mu.Lock()
	b.destroyed = true
	b.mu.Unlock()
}

// spineByHref finds the spine item for a container path
func (b *book) spineByHref(href string) (int, bool) {
	for i, ch := range b.doc.Spine {
		if ch.Href == href {
			return i, true
		}
	}
	return 0, false
}

// CFI renders a spine index and character offset as an opaque locator
func CFI(spine, offset int) string {
	return fmt.Sprintf("epubcfi(/6/%d!/4/2:%d)", (spine+1)*2, offset)
}

// ParseCFI is the inverse of CFI
func ParseCFI(cfi string) (spine, offset int, ok bool) {
	var step int
	if _, err := fmt.Sscanf(cfi, "epubcfi(/6/%d!/4/2:%d)", &step, &offset); err != nil {
		return 0, 0, false
	}
	if step < 2 || step%2 != 0 || offset < 0 {
		return 0, 0, false
	}
	return step/2 - 1, offset, true
}

type locations struct {
	book *book

	mu     sync.RWMutex
	breaks []int // global rune offsets, ascending
}

// Generate splits the book into count evenly sized locations
func (l *locations) Generate(ctx context.Context, count int) error {
	if err := l.book.alive(); err != nil {
		return err
	}
	if count <= 0 {
		count = 1
	}
	chunk := l.book.total / count
	if chunk < 1 {
		chunk = 1
	}

	breaks := make([]int, 0, count+1)
	for off := 0; off < l.book.total || len(breaks) == 0; off += chunk {
		if len(breaks)%64 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		breaks = append(breaks, off)
	}

	l.mu.Lock()
	l.breaks = breaks
	l.mu.Unlock()
	return nil
}

func (l *locations) Length() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.breaks)
}

func (l *locations) PercentageFromCFI(cfi string) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.breaks) == 0 {
		return 0, render.ErrNoLocations
	}
	spine, offset, ok := ParseCFI(cfi)
	if !ok || spine >= len(l.book.offsets) {
		return 0, fmt.Errorf("%w: %s", render.ErrUnknownTarget, cfi)
	}
	if len(l.breaks) == 1 {
		return 0, nil
	}

	global := l.book.offsets[spine] + offset
	loc := sort.SearchInts(l.breaks, global+1) - 1
	if loc < 0 {
		loc = 0
	}
	return float64(loc) / float64(len(l.breaks)-1), nil
}
