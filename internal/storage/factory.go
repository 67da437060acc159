package storage

import (
	"fmt"

	"github.com/unalkalkan/ShelfReader/pkg/types"
)

// NewAdapter creates a storage adapter based on the configuration.
// The "prefix" option namespaces every key, so several shelves can share one bucket or directory.
func NewAdapter(cfg types.StorageConfig) (Adapter, error) {
	prefix := cfg.Options["prefix"]

	switch cfg.Adapter {
	case "local":
		return NewLocalAdapter(joinKey(cfg.Local.BasePath, prefix))
	case "s3":
		return NewS3Adapter(S3Options{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UseSSL:          cfg.S3.UseSSL,
			Prefix:          prefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Adapter)
	}
}

func joinKey(base, key string) string {
	if base == "" {
		return key
	}
	if key == "" {
		return base
	}
	return base + "/" + key
}
