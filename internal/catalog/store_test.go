package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unalkalkan/ShelfReader/internal/storage"
	"github.com/unalkalkan/ShelfReader/pkg/types"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

// quotaAdapter accepts reads but refuses every write
type quotaAdapter struct {
	storage.Adapter
	puts int
}

func (q *quotaAdapter) Put(ctx context.Context, key string, data io.Reader) error {
	q.puts++
	return errors.New("quota exceeded")
}

func newLocal(t *testing.T) storage.Adapter {
	t.Helper()
	adapter, err := storage.NewLocalAdapter(t.TempDir())
	require.NoError(t, err)
	return adapter
}

func TestUpsertAndList(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewStore(ctx, newLocal(t), zerolog.Nop(), WithClock(clock.now))

	store.Upsert(ctx, types.CatalogEntry{ID: "old.epub", Title: "Old", LastRead: clock.now()})
	store.Upsert(ctx, types.CatalogEntry{ID: "new.epub", Title: "New", LastRead: clock.now()})
	store.Upsert(ctx, types.CatalogEntry{ID: "mid.epub", Title: "Mid", LastRead: clock.t.Add(-time.Millisecond)})

	entries := store.List(ctx)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"new.epub", "mid.epub", "old.epub"}, ids(entries))
}

func TestUpsertOverwritesSameID(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, newLocal(t), zerolog.Nop())

	store.Upsert(ctx, types.CatalogEntry{ID: "A.epub", Title: "A.epub", Author: "Unknown author"})
	store.Upsert(ctx, types.CatalogEntry{ID: "A.epub", Title: "Alpha", Author: "Someone"})

	entries := store.List(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "Alpha", entries[0].Title)
	assert.Equal(t, "Someone", entries[0].Author)
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, newLocal(t), zerolog.Nop())

	entry := types.CatalogEntry{ID: "A.epub", Title: "Alpha", Progress: 12.5}
	store.Upsert(ctx, entry)
	first := store.List(ctx)
	store.Upsert(ctx, entry)
	store.Upsert(ctx, entry)

	assert.Equal(t, first, store.List(ctx))
}

func TestUpsertClampsProgress(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, nil, zerolog.Nop())

	store.Upsert(ctx, types.CatalogEntry{ID: "A.epub", Progress: 140})
	got, ok := store.Get(ctx, "A.epub")
	require.True(t, ok)
	assert.Equal(t, 100.0, got.Progress)
}

func TestNetSetAfterRandomSequence(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, newLocal(t), zerolog.Nop())
	rng := rand.New(rand.NewSource(42))

	want := map[string]string{}
	names := []string{"a.epub", "b.epub", "c.epub", "d.epub", "e.epub"}
	for i := 0; i < 200; i++ {
		id := names[rng.Intn(len(names))]
		if rng.Intn(3) == 0 {
			store.Remove(ctx, id)
			delete(want, id)
			continue
		}
		title := id + "#" + string(rune('a'+rng.Intn(26)))
		store.Upsert(ctx, types.CatalogEntry{ID: id, Title: title})
		want[id] = title
	}

	got := map[string]string{}
	for _, e := range store.List(ctx) {
		_, dup := got[e.ID]
		require.False(t, dup, "duplicate id %s", e.ID)
		got[e.ID] = e.Title
	}
	assert.Equal(t, want, got)
}

func TestUpdateProgress(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewStore(ctx, newLocal(t), zerolog.Nop(), WithClock(clock.now))

	store.Upsert(ctx, types.CatalogEntry{ID: "A.epub", Title: "Alpha"})

	t.Run("known id", func(t *testing.T) {
		store.UpdateProgress(ctx, "A.epub", 42.5)
		got, ok := store.Get(ctx, "A.epub")
		require.True(t, ok)
		assert.Equal(t, 42.5, got.Progress)
		assert.Equal(t, clock.t, got.LastRead)
	})

	t.Run("backwards is allowed", func(t *testing.T) {
		store.UpdateProgress(ctx, "A.epub", 10)
		got, _ := store.Get(ctx, "A.epub")
		assert.Equal(t, 10.0, got.Progress)
	})

	t.Run("clamped", func(t *testing.T) {
		store.UpdateProgress(ctx, "A.epub", -3)
		got, _ := store.Get(ctx, "A.epub")
		assert.Equal(t, 0.0, got.Progress)
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		before := store.List(ctx)
		store.UpdateProgress(ctx, "missing.epub", 50)
		assert.Equal(t, before, store.List(ctx))
	})
}

func TestTouchKeepsLocationWhenEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, nil, zerolog.Nop())
	store.Upsert(ctx, types.CatalogEntry{ID: "A.epub"})

	store.Touch(ctx, "A.epub", "epubcfi(/6/4!/4/2:10)")
	store.Touch(ctx, "A.epub", "")

	got, _ := store.Get(ctx, "A.epub")
	assert.Equal(t, "epubcfi(/6/4!/4/2:10)", got.LastLocation)
	assert.False(t, got.LastRead.IsZero())
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	adapter := newLocal(t)
	store := NewStore(ctx, adapter, zerolog.Nop(), WithClock(clock.now))
	store.Upsert(ctx, types.CatalogEntry{ID: "A.epub"})

	store.Record(ctx, "A.epub", "epubcfi(/6/2!/4/2:0)", 120)
	store.Record(ctx, "missing.epub", "epubcfi(/6/2!/4/2:0)", 10)

	reloaded := NewStore(ctx, adapter, zerolog.Nop())
	got, ok := reloaded.Get(ctx, "A.epub")
	require.True(t, ok)
	assert.Equal(t, 100.0, got.Progress)
	assert.Equal(t, "epubcfi(/6/2!/4/2:0)", got.LastLocation)
	assert.True(t, got.LastRead.Equal(clock.t))
	assert.Len(t, reloaded.List(ctx), 1)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, newLocal(t), zerolog.Nop())
	store.Upsert(ctx, types.CatalogEntry{ID: "A.epub"})

	assert.True(t, store.Remove(ctx, "A.epub"))
	assert.False(t, store.Remove(ctx, "A.epub"))
	assert.Empty(t, store.List(ctx))
}

func TestPersistsAcrossReload(t *testing.T) {
	ctx := context.Background()
	adapter := newLocal(t)

	store := NewStore(ctx, adapter, zerolog.Nop())
	store.Upsert(ctx, types.CatalogEntry{ID: "A.epub", Title: "Alpha"})
	store.Upsert(ctx, types.CatalogEntry{ID: "B.epub", Title: "Beta"})
	store.Remove(ctx, "B.epub")
	store.UpdateProgress(ctx, "A.epub", 33)

	reloaded := NewStore(ctx, adapter, zerolog.Nop())
	entries := reloaded.List(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "Alpha", entries[0].Title)
	assert.Equal(t, 33.0, entries[0].Progress)
}

func TestCorruptDocumentStartsEmpty(t *testing.T) {
	ctx := context.Background()
	adapter := newLocal(t)
	require.NoError(t, adapter.Put(ctx, DocumentKey, bytes.NewReader([]byte("{not json"))))

	store := NewStore(ctx, adapter, zerolog.Nop())
	assert.Empty(t, store.List(ctx))
	assert.NoError(t, store.Err())
}

func TestDuplicateIDsInDocumentCollapse(t *testing.T) {
	ctx := context.Background()
	adapter := newLocal(t)
	doc := `[{"id":"A.epub","title":"one"},{"id":"B.epub","title":"b"},{"id":"A.epub","title":"two"}]`
	require.NoError(t, adapter.Put(ctx, DocumentKey, bytes.NewReader([]byte(doc))))

	store := NewStore(ctx, adapter, zerolog.Nop())
	got, ok := store.Get(ctx, "A.epub")
	require.True(t, ok)
	assert.Equal(t, "two", got.Title)
	assert.Len(t, store.List(ctx), 2)
}

func TestWriteFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	adapter := &quotaAdapter{Adapter: newLocal(t)}
	store := NewStore(ctx, adapter, zerolog.Nop())

	assert.NotPanics(t, func() {
		store.Upsert(ctx, types.CatalogEntry{ID: "A.epub"})
		store.UpdateProgress(ctx, "A.epub", 50)
		store.Remove(ctx, "A.epub")
	})
	assert.Equal(t, 3, adapter.puts)
	assert.Error(t, store.Err())
}

func TestNilAdapterWorksInMemory(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, nil, zerolog.Nop())
	store.Upsert(ctx, types.CatalogEntry{ID: "A.epub"})

	assert.Len(t, store.List(ctx), 1)
	assert.Error(t, store.Err())
}

func TestClampProgress(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.1, 0},
		{0, 0},
		{55.5, 55.5},
		{100, 100},
		{120, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampProgress(tt.in))
	}
}

func ids(entries []types.CatalogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestUpdateProgressKeepsLocation(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, newLocal(t), zerolog.Nop())
	store.Upsert(ctx, types.CatalogEntry{ID: "A.epub"})

	store.Record(ctx, "A.epub", "epubcfi(/6/4!/4/2:10)", 20)
	store.UpdateProgress(ctx, "A.epub", 150)

	got, ok := store.Get(ctx, "A.epub")
	require.True(t, ok)
	assert.Equal(t, 100.0, got.Progress)
	assert.Equal(t, "epubcfi(/6/4!/4/2:10)", got.LastLocation)
}
