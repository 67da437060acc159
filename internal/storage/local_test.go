package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalAdapter(t *testing.T) {
	adapter, err := NewLocalAdapter(t.TempDir())
	require.NoError(t, err)
	defer adapter.Close()

	ctx := context.Background()
	key := "books/A.epub/raw.epub"
	payload := []byte("PK\x03\x04 not really a zip")

	t.Run("Put", func(t *testing.T) {
		require.NoError(t, adapter.Put(ctx, key, bytes.NewReader(payload)))
	})

	t.Run("Exists", func(t *testing.T) {
		exists, err := adapter.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Get", func(t *testing.T) {
		data, err := ReadAll(ctx, adapter, key)
		require.NoError(t, err)
		assert.Equal(t, payload, data)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, adapter.Put(ctx, key, bytes.NewReader([]byte("v2"))))
		data, err := ReadAll(ctx, adapter, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), data)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, adapter.Put(ctx, "books/B.epub/raw.epub", bytes.NewReader([]byte("b"))))
		require.NoError(t, adapter.Put(ctx, "epub-bookshelf.json", bytes.NewReader([]byte("[]"))))

		keys, err := adapter.List(ctx, "books/")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"books/A.epub/raw.epub", "books/B.epub/raw.epub"}, keys)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, adapter.Delete(ctx, key))

		exists, err := adapter.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("DeleteMissingIsNoop", func(t *testing.T) {
		assert.NoError(t, adapter.Delete(ctx, "never/stored"))
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		_, err := adapter.Get(ctx, "non-existent.json")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLocalAdapterLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	adapter, err := NewLocalAdapter(dir)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, adapter.Put(ctx, "epub-bookshelf.json", bytes.NewReader([]byte(fmt.Sprintf("[%d]", i)))))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "epub-bookshelf.json", entries[0].Name())
}

func TestLocalAdapterPutCancelled(t *testing.T) {
	adapter, err := NewLocalAdapter(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = adapter.Put(ctx, "x", bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalAdapterConcurrency(t *testing.T) {
	adapter, err := NewLocalAdapter(t.TempDir())
	require.NoError(t, err)
	defer adapter.Close()

	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			key := filepath.ToSlash(filepath.Join("test", fmt.Sprintf("file%d.txt", idx)))
			assert.NoError(t, adapter.Put(ctx, key, bytes.NewReader([]byte("test data"))))
		}(i)
	}
	wg.Wait()

	keys, err := adapter.List(ctx, "test/")
	require.NoError(t, err)
	assert.Len(t, keys, 10)
}
