package storage

import (
	"fmt"
	"testing"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"

	"github.com/unalkalkan/ShelfReader/pkg/types"
)

func TestS3KeyPrefix(t *testing.T) {
	s := &S3Adapter{bucket: "shelf", prefix: "alice"}
	assert.Equal(t, "alice/epub-bookshelf.json", s.objectKey("epub-bookshelf.json"))
	assert.Equal(t, "books/A.epub/raw.epub", s.relativeKey("alice/books/A.epub/raw.epub"))

	bare := &S3Adapter{bucket: "shelf"}
	assert.Equal(t, "epub-bookshelf.json", bare.objectKey("epub-bookshelf.json"))
	assert.Equal(t, "books/x", bare.relativeKey("books/x"))
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "http://minio:9000", endpointURL("minio:9000", false))
	assert.Equal(t, "https://minio:9000", endpointURL("minio:9000", true))
	assert.Equal(t, "http://localhost:9000", endpointURL("http://localhost:9000", true))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&s3types.NoSuchKey{}))
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", &s3types.NotFound{})))
	assert.False(t, isNotFound(fmt.Errorf("access denied")))
}

func TestNewAdapter(t *testing.T) {
	t.Run("local with prefix", func(t *testing.T) {
		base := t.TempDir()
		adapter, err := NewAdapter(types.StorageConfig{
			Adapter: "local",
			Local:   types.LocalStorageOpts{BasePath: base},
			Options: map[string]string{"prefix": "alice"},
		})
		assert.NoError(t, err)
		local, ok := adapter.(*LocalAdapter)
		assert.True(t, ok)
		assert.Equal(t, base+"/alice", local.basePath)
	})

	t.Run("unknown adapter", func(t *testing.T) {
		_, err := NewAdapter(types.StorageConfig{Adapter: "ftp"})
		assert.Error(t, err)
	})
}
