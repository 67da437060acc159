// Package session coordinates the one open book: it tears down the previous
// rendition, loads bytes from the blob store, drives the rendering engine and
// keeps the catalog in step with the reader's position.
//
// The controller mutex only guards state transitions. Engine and store calls
// happen outside it, so every continuation re-checks the generation counter
// before touching shared state and disposes whatever it built if it lost.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unalkalkan/ShelfReader/internal/blobstore"
	"github.com/unalkalkan/ShelfReader/internal/catalog"
	"github.com/unalkalkan/ShelfReader/internal/notify"
	"github.com/unalkalkan/ShelfReader/internal/render"
	"github.com/unalkalkan/ShelfReader/pkg/types"
)

// UnknownAuthor is stored when a book names no creator
const UnknownAuthor = "Unknown author"

var (
	// ErrMalformed is returned when the bytes are not a readable book
	ErrMalformed = errors.New("malformed document")

	// ErrCannotLoad is returned when a shelved book has no stored file
	ErrCannotLoad = errors.New("cannot load book")

	// ErrBusy is returned while a book or chapter is loading
	ErrBusy = errors.New("reader is busy")

	// ErrNoSession is returned when no book is open
	ErrNoSession = errors.New("no book is open")

	// ErrBoundary is returned when a page turn hits the start or end of the book
	ErrBoundary = errors.New("document boundary")

	// ErrSuperseded is returned to a load that lost to a later open or close
	ErrSuperseded = errors.New("superseded by a later request")

	// ErrInvalidViewport is returned by Resize for a non-positive width or height
	ErrInvalidViewport = errors.New("invalid viewport")
)

// State is the lifecycle state of the controller
type State int

const (
	Idle State = iota
	Loading
	Active
	Switching
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Active:
		return "active"
	case Switching:
		return "switching"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Catalog is the part of the bookshelf the controller writes to
type Catalog interface {
	Get(ctx context.Context, id string) (types.CatalogEntry, bool)
	Upsert(ctx context.Context, entry types.CatalogEntry)
	Record(ctx context.Context, id, location string, percentage float64)
	Touch(ctx context.Context, id, location string)
	Remove(ctx context.Context, id string) bool
}

// Blobs stores raw book files
type Blobs interface {
	Put(ctx context.Context, id string, data []byte) error
	Get(ctx context.Context, id string) (types.BlobRecord, bool, error)
	Delete(ctx context.Context, id string) error
}

// Notifier shows transient messages to the reader
type Notifier interface {
	Notify(level notify.Level, message string) notify.Notification
}

// SettingsSource provides the presentation settings renditions are created with
type SettingsSource interface {
	Get() types.Settings
}

// Deps are the collaborators a Controller drives
type Deps struct {
	Catalog  Catalog
	Blobs    Blobs
	Engine   render.Engine
	Notifier Notifier
	Settings SettingsSource
}

// Snapshot is a read-only view of the controller for the API
type Snapshot struct {
	State          string              `json:"state"`
	Book           *types.CatalogEntry `json:"book,omitempty"`
	Location       *types.Location     `json:"location,omitempty"`
	Progress       float64             `json:"progress"`
	LocationsReady bool                `json:"locations_ready"`
}

// session is one opened book and its live rendition
type session struct {
	entry     types.CatalogEntry
	book      render.Book
	rendition render.Rendition
	off       func()
	toc       []types.TOCItem

	location    types.Location
	hasLocation bool
	progress    float64
	located     bool   // locations generated
	seq         uint64 // relocations seen

	persistMu sync.Mutex
	saved     uint64 // seq of the last position written to the catalog

	cancel context.CancelFunc
	done   chan struct{}
}

// Controller owns the reading session
type Controller struct {
	deps   Deps
	cfg    types.ReaderConfig
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	state   State
	gen     uint64
	cur     *session
	jumping bool
	width   int // viewport of the next rendition
	height  int
}

// Option customizes a Controller
type Option func(*Controller)

// WithClock overrides the time source used for LastRead stamps
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates an idle controller
func NewController(deps Deps, cfg types.ReaderConfig, logger zerolog.Logger, opts ...Option) *Controller {
	if cfg.Width <= 0 {
		cfg.Width = 80
	}
	if cfg.Height <= 0 {
		cfg.Height = 30
	}
	if cfg.LocationsCount <= 0 {
		cfg.LocationsCount = 1000
	}
	c := &Controller{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		width:  cfg.Width,
		height: cfg.Height,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot describes the open book, if any
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{State: c.state.String()}
	if s := c.cur; s != nil {
		entry := s.entry
		snap.Book = &entry
		snap.Progress = s.progress
		snap.LocationsReady = s.located
		if s.hasLocation {
			loc := s.location
			snap.Location = &loc
		}
	}
	return snap
}

// OpenNew loads a book the reader just picked, shelves it and shows its first page.
// A malformed file leaves the current session untouched.
func (c *Controller) OpenNew(ctx context.Context, data []byte, fileName string) (types.CatalogEntry, error) {
	gen := c.begin(Loading)
	log := c.logger.With().Str("book", fileName).Uint64("generation", gen).Logger()

	book, md, err := c.openBook(ctx, data)
	if err != nil {
		log.Warn().Err(err).Msg("failed to open book")
		c.deps.Notifier.Notify(notify.Error, "Failed to load book, check the file format")
		c.restore(gen)
		return types.CatalogEntry{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !c.current(gen) {
		book.Destroy()
		return types.CatalogEntry{}, ErrSuperseded
	}

	entry := types.CatalogEntry{
		ID:       fileName,
		Title:    md.Title,
		Author:   md.Creator,
		LastRead: c.now(),
	}
	if entry.Title == "" {
		entry.Title = fileName
	}
	if entry.Author == "" {
		entry.Author = UnknownAuthor
	}
	if cover, err := book.Cover(ctx); err != nil {
		log.Debug().Err(err).Msg("no cover")
	} else {
		entry.Cover = cover
	}

	c.deps.Catalog.Upsert(ctx, entry)
	// The entry stays shelved without a blob; reopening it later reports that it cannot be loaded.
	if err := c.deps.Blobs.Put(ctx, fileName, data); err != nil {
		log.Warn().Err(err).Msg("book file not saved, keeping it for this session only")
		if errors.Is(err, blobstore.ErrUnavailable) {
			c.deps.Notifier.Notify(notify.Warn, "Storage unavailable, the book is kept for this session only")
		} else {
			c.deps.Notifier.Notify(notify.Warn, "Failed to save the book file")
		}
	}

	if !c.detach(gen) {
		book.Destroy()
		return types.CatalogEntry{}, ErrSuperseded
	}

	if err := c.start(ctx, gen, book, entry, ""); err != nil {
		return types.CatalogEntry{}, err
	}
	log.Info().Str("title", entry.Title).Msg("book opened")
	c.deps.Notifier.Notify(notify.Info, "Book loaded")
	return entry, nil
}

// OpenExisting reopens a shelved book where the reader left it.
// A missing file leaves the current session and the catalog entry untouched.
func (c *Controller) OpenExisting(ctx context.Context, id string) (types.CatalogEntry, error) {
	gen := c.begin(Switching)
	log := c.logger.With().Str("book", id).Uint64("generation", gen).Logger()
	c.deps.Notifier.Notify(notify.Info, "Loading book...")

	entry, ok := c.deps.Catalog.Get(ctx, id)
	if !ok {
		return types.CatalogEntry{}, c.cannotLoad(gen, log, errors.New("not on the shelf"))
	}
	rec, found, err := c.deps.Blobs.Get(ctx, id)
	if err != nil {
		return types.CatalogEntry{}, c.cannotLoad(gen, log, err)
	}
	if !found {
		return types.CatalogEntry{}, c.cannotLoad(gen, log, errors.New("book file not found"))
	}

	if !c.detach(gen) {
		return types.CatalogEntry{}, ErrSuperseded
	}

	book, _, err := c.openBook(ctx, rec.Data)
	if err != nil {
		log.Warn().Err(err).Msg("stored book file is unreadable")
		c.deps.Notifier.Notify(notify.Error, "Failed to load book, check the file format")
		c.restore(gen)
		return types.CatalogEntry{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	entry.LastRead = c.now()
	if err := c.start(ctx, gen, book, entry, entry.LastLocation); err != nil {
		return types.CatalogEntry{}, err
	}
	c.deps.Catalog.Touch(ctx, id, "")

	log.Info().Str("location", entry.LastLocation).Msg("book reopened")
	c.deps.Notifier.Notify(notify.Info, "Book loaded")
	return entry, nil
}

// Close disposes the open book and returns to Idle. Loads in flight are abandoned.
func (c *Controller) Close() {
	c.mu.Lock()
	c.gen++
	s := c.cur
	c.cur = nil
	c.state = Idle
	c.jumping = false
	c.mu.Unlock()

	c.dispose(s)
}

// Remove takes a book off the shelf, deleting its file and closing it if it is open
func (c *Controller) Remove(ctx context.Context, id string) bool {
	c.mu.Lock()
	open := c.cur != nil && c.cur.entry.ID == id
	c.mu.Unlock()
	if open {
		c.Close()
	}

	removed := c.deps.Catalog.Remove(ctx, id)
	if err := c.deps.Blobs.Delete(ctx, id); err != nil {
		c.logger.Warn().Err(err).Str("book", id).Msg("failed to delete book file")
	}
	if removed {
		c.deps.Notifier.Notify(notify.Info, "Removed from shelf")
	}
	return removed
}

// Next turns forward one view
func (c *Controller) Next(ctx context.Context) error {
	return c.turn(ctx, true)
}

// Prev turns back one view
func (c *Controller) Prev(ctx context.Context) error {
	return c.turn(ctx, false)
}

func (c *Controller) turn(ctx context.Context, forward bool) error {
	c.mu.Lock()
	s, err := c.activeLocked()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	rend := s.rendition
	before := s.location.Start.CFI
	c.mu.Unlock()

	msg := "Already at the first page"
	move := rend.Prev
	if forward {
		msg = "Already at the last page"
		move = rend.Next
	}

	if err := move(ctx); err != nil {
		if errors.Is(err, render.ErrDestroyed) {
			return ErrBusy
		}
		c.deps.Notifier.Notify(notify.Info, msg)
		return fmt.Errorf("%w: %v", ErrBoundary, err)
	}

	c.mu.Lock()
	after := s.location.Start.CFI
	c.mu.Unlock()
	if before != "" && after == before {
		c.deps.Notifier.Notify(notify.Info, msg)
		return ErrBoundary
	}
	return nil
}

// Display jumps to a CFI or a table of contents href. Page turns are refused until it lands.
func (c *Controller) Display(ctx context.Context, target string) error {
	c.mu.Lock()
	s, err := c.activeLocked()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.jumping = true
	rend := s.rendition
	c.mu.Unlock()

	err = rend.Display(ctx, target)

	c.mu.Lock()
	if c.cur == s {
		c.jumping = false
	}
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to display %q: %w", target, err)
	}
	return nil
}

// TOC returns the navigation of the open book
func (c *Controller) TOC() ([]types.TOCItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur == nil {
		if c.state == Loading || c.state == Switching {
			return nil, ErrBusy
		}
		return nil, ErrNoSession
	}
	toc := make([]types.TOCItem, len(c.cur.toc))
	copy(toc, c.cur.toc)
	return toc, nil
}

// View returns the pages currently on screen
func (c *Controller) View() ([]types.Page, error) {
	c.mu.Lock()
	s, err := c.activeLocked()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	rend := s.rendition
	c.mu.Unlock()

	return rend.View(), nil
}

// Resize lays the open book out for a new viewport, keeping the first visible character on screen.
// The relocation it causes is saved like a page turn, and later renditions use the new size.
func (c *Controller) Resize(ctx context.Context, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidViewport, width, height)
	}

	c.mu.Lock()
	s, err := c.activeLocked()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.width, c.height = width, height
	rend, id := s.rendition, s.entry.ID
	c.mu.Unlock()

	if err := rend.Resize(width, height); err != nil {
		if errors.Is(err, render.ErrDestroyed) {
			return ErrBusy
		}
		return fmt.Errorf("failed to resize rendition: %w", err)
	}
	c.logger.Debug().Str("book", id).Int("width", width).Int("height", height).Msg("viewport resized")
	return nil
}

// ApplyDisplayMode rebuilds the rendition for a single or double page spread at the current position
func (c *Controller) ApplyDisplayMode(ctx context.Context, mode string) error {
	spread := "none"
	if mode == types.DisplayDouble {
		spread = "auto"
	}
	return c.rebuild(ctx, spread)
}

// Reflow rebuilds the rendition with the current settings, after a font size change
func (c *Controller) Reflow(ctx context.Context) error {
	return c.rebuild(ctx, c.deps.Settings.Get().Spread())
}

func (c *Controller) rebuild(ctx context.Context, spread string) error {
	c.mu.Lock()
	s, err := c.activeLocked()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.gen++
	gen := c.gen
	c.state = Switching
	old, off := s.rendition, s.off
	target := s.location.Start.CFI
	c.mu.Unlock()

	off()
	old.Destroy()

	opts := c.renderOptions()
	opts.Spread = spread
	rend, err := s.book.RenderTo(opts)
	if err == nil {
		if err = rend.Display(ctx, target); err != nil && target != "" {
			err = rend.Display(ctx, "")
		}
	}

	c.mu.Lock()
	if c.gen != gen || c.cur != s {
		c.mu.Unlock()
		if rend != nil {
			rend.Destroy()
		}
		return ErrSuperseded
	}
	if err != nil {
		c.cur = nil
		c.state = Idle
		c.mu.Unlock()
		if rend != nil {
			rend.Destroy()
		}
		c.dispose(s)
		c.deps.Notifier.Notify(notify.Error, "Error rendering book")
		return fmt.Errorf("failed to rebuild rendition: %w", err)
	}
	s.rendition = rend
	if loc, ok := rend.Location(); ok {
		s.location, s.hasLocation = loc, true
	}
	s.off = rend.On(render.EventRelocated, func(loc types.Location) { c.onRelocated(s, loc) })
	c.state = Active
	c.mu.Unlock()
	return nil
}

// begin starts a load: it bumps the generation so older loads become stale
func (c *Controller) begin(next State) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.state = next
	c.jumping = false
	return c.gen
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// restore puts a failed load back into the last stable state
func (c *Controller) restore(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	if c.cur != nil {
		c.state = Active
	} else {
		c.state = Idle
	}
}

func (c *Controller) cannotLoad(gen uint64, log zerolog.Logger, cause error) error {
	log.Warn().Err(cause).Msg("cannot load book")
	c.deps.Notifier.Notify(notify.Error, "Cannot load book data")
	c.restore(gen)
	return fmt.Errorf("%w: %v", ErrCannotLoad, cause)
}

// detach takes the live session away and disposes it, unless a later load already won
func (c *Controller) detach(gen uint64) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	old := c.cur
	c.cur = nil
	c.mu.Unlock()

	c.dispose(old)
	return true
}

func (c *Controller) openBook(ctx context.Context, data []byte) (render.Book, render.Metadata, error) {
	book, err := c.deps.Engine.Open(ctx, data)
	if err != nil {
		return nil, render.Metadata{}, err
	}
	md, err := book.Metadata(ctx)
	if err != nil {
		book.Destroy()
		return nil, render.Metadata{}, err
	}
	return book, md, nil
}

func (c *Controller) renderOptions() render.Options {
	s := c.deps.Settings.Get()
	c.mu.Lock()
	width, height := c.width, c.height
	c.mu.Unlock()
	return render.Options{
		Width:    width,
		Height:   height,
		Flow:     "paginated",
		Spread:   s.Spread(),
		FontSize: s.FontSize,
	}
}

// start renders the book, then installs it as the live session if gen is still current
func (c *Controller) start(ctx context.Context, gen uint64, book render.Book, entry types.CatalogEntry, target string) error {
	rend, err := book.RenderTo(c.renderOptions())
	if err == nil {
		err = rend.Display(ctx, target)
		if err != nil && target != "" {
			c.logger.Warn().Err(err).Str("book", entry.ID).Msg("saved location is gone, starting from the beginning")
			err = rend.Display(ctx, "")
		}
	}
	if err != nil {
		if rend != nil {
			rend.Destroy()
		}
		book.Destroy()
		c.logger.Error().Err(err).Str("book", entry.ID).Msg("failed to render book")
		c.deps.Notifier.Notify(notify.Error, "Error rendering book")
		c.restore(gen)
		return fmt.Errorf("failed to render book: %w", err)
	}

	toc, err := book.Navigation(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Str("book", entry.ID).Msg("no navigation")
	}

	genCtx, cancel := context.WithCancel(context.Background())
	s := &session{
		entry:     entry,
		book:      book,
		rendition: rend,
		toc:       toc,
		progress:  entry.Progress,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	if loc, ok := rend.Location(); ok {
		s.location, s.hasLocation = loc, true
	}
	s.off = rend.On(render.EventRelocated, func(loc types.Location) { c.onRelocated(s, loc) })

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		close(s.done)
		c.dispose(s)
		return ErrSuperseded
	}
	c.cur = s
	c.state = Active
	c.mu.Unlock()

	go c.generateLocations(genCtx, s)
	return nil
}

// generateLocations builds the percentage index in the background, then records progress once
func (c *Controller) generateLocations(ctx context.Context, s *session) {
	defer close(s.done)

	if err := s.book.Locations().Generate(ctx, c.cfg.LocationsCount); err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn().Err(err).Str("book", s.entry.ID).Msg("failed to generate locations")
		}
		return
	}

	c.mu.Lock()
	if c.cur != s {
		c.mu.Unlock()
		return
	}
	s.located = true
	seq, cfi, ok := s.seq, s.location.Start.CFI, s.hasLocation
	c.mu.Unlock()

	if ok {
		c.track(s, seq, cfi, false)
	}
}

// onRelocated follows the rendition: remember the location, then persist progress
func (c *Controller) onRelocated(s *session, loc types.Location) {
	c.mu.Lock()
	if c.cur != s {
		c.mu.Unlock()
		return
	}
	s.location, s.hasLocation = loc, true
	s.seq++
	seq := s.seq
	s.entry.LastRead = c.now()
	s.entry.LastLocation = loc.Start.CFI
	c.mu.Unlock()

	c.track(s, seq, loc.Start.CFI, true)
}

// track computes progress for the position numbered seq and saves it unless a later position was saved first
func (c *Controller) track(s *session, seq uint64, cfi string, moved bool) {
	pct, ok := c.percentage(s.book, cfi)

	c.mu.Lock()
	if c.cur != s {
		c.mu.Unlock()
		return
	}
	if ok && seq == s.seq {
		s.progress = pct
		s.entry.Progress = pct
	}
	c.mu.Unlock()

	if !ok && !moved {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if seq < s.saved {
		return
	}
	s.saved = seq

	ctx := context.Background()
	if ok {
		c.deps.Catalog.Record(ctx, s.entry.ID, cfi, pct)
	} else {
		c.deps.Catalog.Touch(ctx, s.entry.ID, cfi)
	}
}

// percentage maps a CFI to 0..100; any failure of the engine keeps the previous progress
func (c *Controller) percentage(book render.Book, cfi string) (pct float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn().Interface("panic", r).Msg("progress lookup panicked")
			pct, ok = 0, false
		}
	}()

	if cfi == "" {
		return 0, false
	}
	locs := book.Locations()
	if locs.Length() == 0 {
		return 0, false
	}
	f, err := locs.PercentageFromCFI(cfi)
	if err != nil {
		c.logger.Debug().Err(err).Str("cfi", cfi).Msg("progress lookup failed")
		return 0, false
	}
	return catalog.ClampProgress(f * 100), true
}

// activeLocked returns the live session when page operations are allowed; callers hold mu
func (c *Controller) activeLocked() (*session, error) {
	switch {
	case c.state == Loading || c.state == Switching || c.jumping:
		return nil, ErrBusy
	case c.cur == nil:
		return nil, ErrNoSession
	}
	return c.cur, nil
}

// dispose detaches listeners, destroys the rendition and waits for background work to stop
func (c *Controller) dispose(s *session) {
	if s == nil {
		return
	}
	if s.off != nil {
		s.off()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.rendition != nil {
		s.rendition.Destroy()
	}
	if s.done != nil {
		<-s.done
	}
	s.book.Destroy()
}
