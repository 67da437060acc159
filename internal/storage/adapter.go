package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when nothing is stored under the key
var ErrNotFound = errors.New("storage: key not found")

// Adapter defines the interface for the key/value backends documents and blobs are kept in
type Adapter interface {
	// Put stores data under the given key, replacing any previous value
	Put(ctx context.Context, key string, data io.Reader) error

	// Get retrieves the value under the given key; ErrNotFound if absent
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the value under the given key; missing keys are not an error
	Delete(ctx context.Context, key string) error

	// Exists checks if a value is stored under the given key
	Exists(ctx context.Context, key string) (bool, error)

	// List returns keys matching the given prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Close cleans up any resources
	Close() error
}

// ReadAll fetches a whole value and closes the reader
func ReadAll(ctx context.Context, a Adapter, key string) ([]byte, error) {
	reader, err := a.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}
