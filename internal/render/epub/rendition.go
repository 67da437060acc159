package epub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/unalkalkan/ShelfReader/internal/render"
	"github.com/unalkalkan/ShelfReader/pkg/types"
)

var errNotDisplayed = errors.New("rendition has not been displayed")

const baseFontSize = 18

type page struct {
	spine      int
	start, end int // rune offsets within the spine item
	number     int // 1-based within the spine item
	total      int // pages in the spine item
}

type rendition struct {
	book *book

	mu        sync.Mutex
	opts      render.Options
	pages     []page
	current   int
	displayed bool
	destroyed bool
	listeners map[string]map[int]func(types.Location)
	nextID    int
}

func newRendition(b *book, opts render.Options) *rendition {
	r := &rendition{
		book:      b,
		opts:      opts,
		listeners: make(map[string]map[int]func(types.Location)),
	}
	r.paginate()
	return r
}

// budget is the number of characters that fit on one page
func (r *rendition) budget() int {
	fs := r.opts.FontSize
	if fs <= 0 {
		fs = baseFontSize
	}
	n := r.opts.Width * r.opts.Height * baseFontSize * baseFontSize / (fs * fs)
	if n < 40 {
		n = 40
	}
	return n
}

func (r *rendition) perView() int {
	if r.opts.Spread == "auto" {
		return 2
	}
	return 1
}

func (r *rendition) paginate() {
	budget := r.budget()
	r.pages = r.pages[:0]

	for spine, text := range r.book.text {
		first := len(r.pages)
		start := 0
		for {
			end := start + budget
			if end >= len(text) {
				end = len(text)
			} else if cut := lastSpace(text, start+budget/2, end); cut > start {
				end = cut
			}
			r.pages = append(r.pages, page{spine: spine, start: start, end: end})
			if end >= len(text) {
				break
			}
			start = end
		}
		total := len(r.pages) - first
		for i := first; i < len(r.pages); i++ {
			r.pages[i].number = i - first + 1
			r.pages[i].total = total
		}
	}
}

// lastSpace returns the index just after the last whitespace in text[from:to], or -1
func lastSpace(text []rune, from, to int) int {
	for i := to - 1; i >= from; i-- {
		if unicode.IsSpace(text[i]) {
			return i + 1
		}
	}
	return -1
}

func (r *rendition) Display(ctx context.Context, target string) error {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return render.ErrDestroyed
	}
	idx, err := r.resolve(target)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.current = idx
	r.displayed = true
	return r.relocateLocked()
}

func (r *rendition) Next(ctx context.Context) error {
	r.mu.Lock()
	if err := r.ready(); err != nil {
		r.mu.Unlock()
		return err
	}
	if r.current+r.perView() >= len(r.pages) {
		r.mu.Unlock()
		return render.ErrBoundary
	}
	r.current += r.perView()
	return r.relocateLocked()
}

func (r *rendition) Prev(ctx context.Context) error {
	r.mu.Lock()
	if err := r.ready(); err != nil {
		r.mu.Unlock()
		return err
	}
	if r.current == 0 {
		r.mu.Unlock()
		return render.ErrBoundary
	}
	r.current -= r.perView()
	if r.current < 0 {
		r.current = 0
	}
	return r.relocateLocked()
}

// Resize re-paginates for the new grid and keeps the first visible character on screen
func (r *rendition) Resize(width, height int) error {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return render.ErrDestroyed
	}
	var anchor page
	if len(r.pages) > 0 {
		anchor = r.pages[r.current]
	}
	r.opts.Width, r.opts.Height = width, height
	r.paginate()
	r.current = r.pageAt(anchor.spine, anchor.start)
	if !r.displayed {
		r.mu.Unlock()
		return nil
	}
	return r.relocateLocked()
}

func (r *rendition) On(event string, fn func(types.Location)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listeners == nil {
		return func() {}
	}
	if r.listeners[event] == nil {
		r.listeners[event] = make(map[int]func(types.Location))
	}
	id := r.nextID
	r.nextID++
	r.listeners[event][id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners[event], id)
	}
}

func (r *rendition) Location() (types.Location, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.displayed || r.destroyed {
		return types.Location{}, false
	}
	return r.location(), true
}

func (r *rendition) View() []types.Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.displayed || r.destroyed {
		return nil
	}

	out := make([]types.Page, 0, r.perView())
	for i := r.current; i < r.current+r.perView() && i < len(r.pages); i++ {
		p := r.pages[i]
		out = append(out, types.Page{
			CFI:  CFI(p.spine, p.start),
			Href: r.book.doc.Spine[p.spine].Href,
			Text: string(r.book.text[p.spine][p.start:p.end]),
		})
	}
	return out
}

func (r *rendition) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroyed = true
	r.listeners = nil
}

func (r *rendition) ready() error {
	if r.destroyed {
		return render.ErrDestroyed
	}
	if !r.displayed {
		return errNotDisplayed
	}
	return nil
}

// relocateLocked snapshots the location and listeners, unlocks, then notifies
func (r *rendition) relocateLocked() error {
	loc := r.location()
	fns := make([]func(types.Location), 0, len(r.listeners[render.EventRelocated]))
	for _, fn := range r.listeners[render.EventRelocated] {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(loc)
	}
	return nil
}

func (r *rendition) location() types.Location {
	last := r.current + r.perView() - 1
	if last >= len(r.pages) {
		last = len(r.pages) - 1
	}
	return types.Location{
		Start:   r.point(r.pages[r.current], r.pages[r.current].start),
		End:     r.point(r.pages[last], r.pages[last].end),
		AtStart: r.current == 0,
		AtEnd:   r.current+r.perView() >= len(r.pages),
	}
}

func (r *rendition) point(p page, offset int) types.LocationPoint {
	return types.LocationPoint{
		CFI:       CFI(p.spine, offset),
		Href:      r.book.doc.Spine[p.spine].Href,
		Index:     p.spine,
		Displayed: types.Displayed{Page: p.number, Total: p.total},
	}
}

func (r *rendition) resolve(target string) (int, error) {
	if target == "" {
		return 0, nil
	}

	if strings.HasPrefix(target, "epubcfi(") {
		spine, offset, ok := ParseCFI(target)
		if !ok || spine >= len(r.book.text) {
			return 0, fmt.Errorf("%w: %s", render.ErrUnknownTarget, target)
		}
		return r.pageAt(spine, offset), nil
	}

	href := target
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	spine, ok := r.book.spineByHref(href)
	if !ok {
		return 0, fmt.Errorf("%w: %s", render.ErrUnknownTarget, target)
	}
	return r.pageAt(spine, 0), nil
}

// pageAt returns the page holding the offset within a spine item, clamped to its last page
func (r *rendition) pageAt(spine, offset int) int {
	last := 0
	for i, p := range r.pages {
		if p.spine != spine {
			if p.spine > spine {
				break
			}
			continue
		}
		last = i
		if offset >= p.start && offset < p.end {
			return i
		}
	}
	return last
}
