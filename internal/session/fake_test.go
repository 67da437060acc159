package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/unalkalkan/ShelfReader/internal/render"
	"github.com/unalkalkan/ShelfReader/pkg/types"
)

// recorder keeps the order of calls made into the fake engine
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// index returns the position of the first event equal to e, or -1
func (r *recorder) index(e string) int {
	for i, got := range r.list() {
		if got == e {
			return i
		}
	}
	return -1
}

func (r *recorder) has(e string) bool { return r.index(e) >= 0 }

// bookShape describes what the fake engine returns for a given payload
type bookShape struct {
	Title    string
	Creator  string
	Pages    int
	Percent  func(cfi string) (float64, error) // nil maps the page index linearly
	Panics   bool                              // PercentageFromCFI panics
	Blocking bool                              // Generate waits for cancellation
}

type fakeEngine struct {
	rec    *recorder
	shapes map[string]bookShape

	mu         sync.Mutex
	books      int
	renditions int
	lastOpts   render.Options
	gates      map[string]chan struct{}
	entered    chan string
}

func newFakeEngine(shapes map[string]bookShape) *fakeEngine {
	return &fakeEngine{
		rec:     &recorder{},
		shapes:  shapes,
		gates:   make(map[string]chan struct{}),
		entered: make(chan string, 16),
	}
}

// renderOptions returns the options of the newest rendition
func (e *fakeEngine) renderOptions() render.Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastOpts
}

// hold makes Open block for the payload until the returned function is called
func (e *fakeEngine) hold(payload string) func() {
	ch := make(chan struct{})
	e.mu.Lock()
	e.gates[payload] = ch
	e.mu.Unlock()
	return func() { close(ch) }
}

func (e *fakeEngine) Open(ctx context.Context, data []byte) (render.Book, error) {
	payload := string(data)
	select {
	case e.entered <- payload:
	default:
	}

	e.mu.Lock()
	gate := e.gates[payload]
	e.mu.Unlock()
	if gate != nil {
		<-gate
	}

	if payload == "garbage" {
		e.rec.add("open-failed")
		return nil, errors.New("zip: not a valid zip file")
	}

	shape, ok := e.shapes[payload]
	if !ok {
		shape = bookShape{Pages: 5}
	}
	if shape.Pages == 0 {
		shape.Pages = 5
	}

	e.mu.Lock()
	e.books++
	n := e.books
	e.mu.Unlock()

	e.rec.add("open:%d", n)
	return &fakeBook{engine: e, n: n, shape: shape, locs: &fakeLocations{shape: shape, rec: e.rec, n: n}}, nil
}

type fakeBook struct {
	engine *fakeEngine
	n      int
	shape   bookShape
	locs   *fakeLocations
}

func (b *fakeBook) Metadata(ctx context.Context) (render.Metadata, error) {
	return render.Metadata{Title: b.shape.Title, Creator: b.shape.Creator}, nil
}

func (b *fakeBook) Cover(ctx context.Context) (string, error) {
	return "", nil
}

func (b *fakeBook) Navigation(ctx context.Context) ([]types.TOCItem, error) {
	return []types.TOCItem{{Label: "One", Href: "one.xhtml"}}, nil
}

func (b *fakeBook) RenderTo(opts render.Options) (render.Rendition, error) {
	e := b.engine
	e.mu.Lock()
	e.renditions++
	n := e.renditions
	e.lastOpts = opts
	e.mu.Unlock()

	e.rec.add("render:%d:%s", n, opts.Spread)
	return &fakeRendition{rec: e.rec, n: n, pages: b.shape.Pages, listeners: make(map[int]func(types.Location))}, nil
}

func (b *fakeBook) Locations() render.Locations { return b.locs }

func (b *fakeBook) Destroy() {
	b.engine.rec.add("destroy-book:%d", b.n)
}

type fakeRendition struct {
	rec   *recorder
	n     int
	pages int

	mu        sync.Mutex
	cur       int
	displayed bool
	destroyed bool
	listeners map[int]func(types.Location)
	next      int
}

func cfiOf(page int) string { return fmt.Sprintf("cfi:%d", page) }

func (r *fakeRendition) Display(ctx context.Context, target string) error {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return render.ErrDestroyed
	}
	var page int
	switch {
	case target == "" || target == "one.xhtml":
		page = 0
	default:
		if _, err := fmt.Sscanf(target, "cfi:%d", &page); err != nil || page < 0 || page >= r.pages {
			r.mu.Unlock()
			return render.ErrUnknownTarget
		}
	}
	r.cur = page
	r.displayed = true
	return r.emitLocked()
}

func (r *fakeRendition) Next(ctx context.Context) error {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return render.ErrDestroyed
	}
	if r.cur+1 >= r.pages {
		r.mu.Unlock()
		return render.ErrBoundary
	}
	r.cur++
	return r.emitLocked()
}

func (r *fakeRendition) Prev(ctx context.Context) error {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return render.ErrDestroyed
	}
	if r.cur == 0 {
		r.mu.Unlock()
		return render.ErrBoundary
	}
	r.cur--
	return r.emitLocked()
}

func (r *fakeRendition) emitLocked() error {
	loc := r.locationLocked()
	fns := make([]func(types.Location), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn(loc)
	}
	return nil
}

func (r *fakeRendition) locationLocked() types.Location {
	return types.Location{
		Start:   types.LocationPoint{CFI: cfiOf(r.cur), Displayed: types.Displayed{Page: r.cur + 1, Total: r.pages}},
		End:     types.LocationPoint{CFI: cfiOf(r.cur), Displayed: types.Displayed{Page: r.cur + 1, Total: r.pages}},
		AtStart: r.cur == 0,
		AtEnd:   r.cur == r.pages-1,
	}
}

func (r *fakeRendition) On(event string, fn func(types.Location)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.listeners[id] = fn
	r.rec.add("on:%d", r.n)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.listeners[id]; ok {
			delete(r.listeners, id)
			r.rec.add("off:%d", r.n)
		}
	}
}

func (r *fakeRendition) Location() (types.Location, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.displayed {
		return types.Location{}, false
	}
	return r.locationLocked(), true
}

func (r *fakeRendition) View() []types.Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	return []types.Page{{CFI: cfiOf(r.cur), Text: fmt.Sprintf("page %d", r.cur+1)}}
}

func (r *fakeRendition) Resize(width, height int) error {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return render.ErrDestroyed
	}
	r.rec.add("resize:%d:%dx%d", r.n, width, height)
	if !r.displayed {
		r.mu.Unlock()
		return nil
	}
	return r.emitLocked()
}

func (r *fakeRendition) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.destroyed {
		r.destroyed = true
		r.rec.add("destroy-rendition:%d", r.n)
	}
}

type fakeLocations struct {
	shape bookShape
	rec   *recorder
	n     int

	mu     sync.Mutex
	length int
}

func (l *fakeLocations) Generate(ctx context.Context, count int) error {
	if l.shape.Blocking {
		<-ctx.Done()
		l.rec.add("generate-cancelled:%d", l.n)
		return ctx.Err()
	}
	l.mu.Lock()
	l.length = count
	l.mu.Unlock()
	return nil
}

func (l *fakeLocations) Length() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.length
}

func (l *fakeLocations) PercentageFromCFI(cfi string) (float64, error) {
	if l.shape.Panics {
		panic("percentage lookup exploded")
	}
	if l.shape.Percent != nil {
		return l.shape.Percent(cfi)
	}
	var page int
	if _, err := fmt.Sscanf(cfi, "cfi:%d", &page); err != nil {
		return 0, err
	}
	if l.shape.Pages <= 1 {
		return 0, nil
	}
	return float64(page) / float64(l.shape.Pages-1), nil
}
