package epub

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unalkalkan/ShelfReader/internal/epubtest"
	"github.com/unalkalkan/ShelfReader/internal/parser"
	"github.com/unalkalkan/ShelfReader/internal/render"
	"github.com/unalkalkan/ShelfReader/pkg/types"
)

func openBook(t *testing.T, data []byte) render.Book {
	t.Helper()
	b, err := NewEngine(parser.NewEPUBParser()).Open(context.Background(), data)
	require.NoError(t, err)
	t.Cleanup(b.Destroy)
	return b
}

func smallOptions() render.Options {
	return render.Options{Width: 20, Height: 4, Flow: "paginated", Spread: "none"}
}

func TestEngineOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("metadata and navigation", func(t *testing.T) {
		b := openBook(t, epubtest.Simple("Alpha", "Ann", 3, 2))

		md, err := b.Metadata(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Alpha", md.Title)
		assert.Equal(t, "Ann", md.Creator)

		toc, err := b.Navigation(ctx)
		require.NoError(t, err)
		require.Len(t, toc, 3)
		assert.Equal(t, "Chapter 1", toc[0].Label)

		cover, err := b.Cover(ctx)
		require.NoError(t, err)
		assert.Empty(t, cover)
	})

	t.Run("cover becomes a data URI", func(t *testing.T) {
		b := openBook(t, epubtest.Build(epubtest.Book{
			Title:    "Covered",
			Cover:    []byte{0x89, 'P', 'N', 'G'},
			Chapters: []epubtest.Chapter{{Title: "One", Paragraphs: []string{"text"}}},
		}))

		cover, err := b.Cover(ctx)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(cover, "data:image/png;base64,"))
	})

	t.Run("malformed bytes", func(t *testing.T) {
		_, err := NewEngine(parser.NewEPUBParser()).Open(ctx, []byte("not a zip"))
		assert.ErrorIs(t, err, parser.ErrMalformed)
	})

	t.Run("destroyed book refuses calls", func(t *testing.T) {
		b, err := NewEngine(parser.NewEPUBParser()).Open(ctx, epubtest.Simple("A", "B", 1, 1))
		require.NoError(t, err)
		b.Destroy()

		_, err = b.Metadata(ctx)
		assert.ErrorIs(t, err, render.ErrDestroyed)
		_, err = b.RenderTo(smallOptions())
		assert.ErrorIs(t, err, render.ErrDestroyed)
	})
}

func TestCFI(t *testing.T) {
	cfi := CFI(2, 57)
	assert.Equal(t, "epubcfi(/6/6!/4/2:57)", cfi)

	spine, offset, ok := ParseCFI(cfi)
	require.True(t, ok)
	assert.Equal(t, 2, spine)
	assert.Equal(t, 57, offset)

	for _, bad := range []string{"", "epubcfi(/6/3!/4/2:1)", "epubcfi(/6/0!/4/2:1)", "chapter.xhtml"} {
		_, _, ok := ParseCFI(bad)
		assert.False(t, ok, bad)
	}
}

func TestRenditionPaging(t *testing.T) {
	ctx := context.Background()
	b := openBook(t, epubtest.Simple("Alpha", "Ann", 2, 3))

	r, err := b.RenderTo(smallOptions())
	require.NoError(t, err)
	defer r.Destroy()

	var seen []types.Location
	off := r.On(render.EventRelocated, func(loc types.Location) { seen = append(seen, loc) })

	_, ok := r.Location()
	assert.False(t, ok)
	assert.Error(t, r.Next(ctx))

	require.NoError(t, r.Display(ctx, ""))
	loc, ok := r.Location()
	require.True(t, ok)
	assert.True(t, loc.AtStart)
	assert.Equal(t, 0, loc.Start.Index)
	assert.Equal(t, 1, loc.Start.Displayed.Page)
	assert.ErrorIs(t, r.Prev(ctx), render.ErrBoundary)

	var turns int
	for {
		err := r.Next(ctx)
		if err != nil {
			assert.ErrorIs(t, err, render.ErrBoundary)
			break
		}
		turns++
	}
	assert.Greater(t, turns, 2)

	loc, _ = r.Location()
	assert.True(t, loc.AtEnd)
	assert.Equal(t, 1, loc.Start.Index)
	assert.Len(t, seen, turns+1)

	require.NoError(t, r.Prev(ctx))
	off()
	require.NoError(t, r.Prev(ctx))
	assert.Len(t, seen, turns+2)

	view := r.View()
	require.Len(t, view, 1)
	assert.NotEmpty(t, view[0].Text)
}

func TestRenditionDisplayTargets(t *testing.T) {
	ctx := context.Background()
	b := openBook(t, epubtest.Simple("Alpha", "Ann", 3, 3))

	r, err := b.RenderTo(smallOptions())
	require.NoError(t, err)
	defer r.Destroy()

	require.NoError(t, r.Display(ctx, "OEBPS/text/ch2.xhtml#section"))
	loc, _ := r.Location()
	assert.Equal(t, 1, loc.Start.Index)
	assert.Equal(t, "OEBPS/text/ch2.xhtml", loc.Start.Href)

	require.NoError(t, r.Next(ctx))
	loc, _ = r.Location()
	saved := loc.Start.CFI

	require.NoError(t, r.Display(ctx, ""))
	require.NoError(t, r.Display(ctx, saved))
	loc, _ = r.Location()
	assert.Equal(t, saved, loc.Start.CFI)

	assert.ErrorIs(t, r.Display(ctx, "OEBPS/text/missing.xhtml"), render.ErrUnknownTarget)
	assert.ErrorIs(t, r.Display(ctx, "epubcfi(/6/40!/4/2:0)"), render.ErrUnknownTarget)
}

func TestRenditionSpread(t *testing.T) {
	ctx := context.Background()
	b := openBook(t, epubtest.Simple("Alpha", "Ann", 1, 6))

	single, err := b.RenderTo(smallOptions())
	require.NoError(t, err)
	defer single.Destroy()

	opts := smallOptions()
	opts.Spread = "auto"
	double, err := b.RenderTo(opts)
	require.NoError(t, err)
	defer double.Destroy()

	require.NoError(t, single.Display(ctx, ""))
	require.NoError(t, double.Display(ctx, ""))
	assert.Len(t, single.View(), 1)
	assert.Len(t, double.View(), 2)

	require.NoError(t, single.Next(ctx))
	require.NoError(t, single.Next(ctx))
	require.NoError(t, double.Next(ctx))

	s, _ := single.Location()
	d, _ := double.Location()
	assert.Equal(t, s.Start.CFI, d.Start.CFI)
}

func TestRenditionResizeKeepsPosition(t *testing.T) {
	ctx := context.Background()
	b := openBook(t, epubtest.Simple("Alpha", "Ann", 1, 8))

	r, err := b.RenderTo(smallOptions())
	require.NoError(t, err)
	defer r.Destroy()

	require.NoError(t, r.Display(ctx, ""))
	for i := 0; i < 4; i++ {
		require.NoError(t, r.Next(ctx))
	}
	before, _ := r.Location()
	_, offset, _ := ParseCFI(before.Start.CFI)

	require.NoError(t, r.Resize(40, 8))
	after, _ := r.Location()
	_, start, _ := ParseCFI(after.Start.CFI)
	_, end, _ := ParseCFI(after.End.CFI)
	assert.LessOrEqual(t, start, offset)
	assert.Greater(t, end, offset)
}

func TestRenditionDestroy(t *testing.T) {
	ctx := context.Background()
	b := openBook(t, epubtest.Simple("Alpha", "Ann", 1, 2))

	r, err := b.RenderTo(smallOptions())
	require.NoError(t, err)
	require.NoError(t, r.Display(ctx, ""))

	called := false
	r.On(render.EventRelocated, func(types.Location) { called = true })
	r.Destroy()

	assert.ErrorIs(t, r.Next(ctx), render.ErrDestroyed)
	assert.ErrorIs(t, r.Display(ctx, ""), render.ErrDestroyed)
	assert.Nil(t, r.View())
	assert.False(t, called)
}

func TestLocations(t *testing.T) {
	ctx := context.Background()
	b := openBook(t, epubtest.Simple("Alpha", "Ann", 4, 5))
	locs := b.Locations()

	_, err := locs.PercentageFromCFI(CFI(0, 0))
	assert.ErrorIs(t, err, render.ErrNoLocations)

	require.NoError(t, locs.Generate(ctx, 100))
	assert.GreaterOrEqual(t, locs.Length(), 100)

	start, err := locs.PercentageFromCFI(CFI(0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, start)

	mid, err := locs.PercentageFromCFI(CFI(2, 0))
	require.NoError(t, err)
	assert.Greater(t, mid, 0.3)
	assert.Less(t, mid, 0.7)

	end, err := locs.PercentageFromCFI(CFI(3, 1<<20))
	require.NoError(t, err)
	assert.Equal(t, 1.0, end)

	_, err = locs.PercentageFromCFI("garbage")
	assert.ErrorIs(t, err, render.ErrUnknownTarget)
}

func TestLocationsGenerateCancelled(t *testing.T) {
	b := openBook(t, epubtest.Simple("Alpha", "Ann", 2, 2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, b.Locations().Generate(ctx, 1000), context.Canceled)
	assert.Equal(t, 0, b.Locations().Length())
}
