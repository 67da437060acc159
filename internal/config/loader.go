package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/unalkalkan/ShelfReader/pkg/types"
	"gopkg.in/yaml.v3"
)

// Load reads and parses the configuration file.
// Values missing from the file keep their defaults; SR_ environment variables win over both.
func Load(configPath string) (*types.Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := GetDefault()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadDefault builds the configuration without a file: defaults plus SR_ environment variables
func LoadDefault() (*types.Config, error) {
	cfg := GetDefault()
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func Validate(cfg *types.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if cfg.Storage.Adapter != "local" && cfg.Storage.Adapter != "s3" {
		return fmt.Errorf("invalid storage adapter: %s (must be 'local' or 's3')", cfg.Storage.Adapter)
	}

	if cfg.Storage.Adapter == "local" {
		if cfg.Storage.Local.BasePath == "" {
			return fmt.Errorf("local storage base_path is required")
		}
		if !filepath.IsAbs(cfg.Storage.Local.BasePath) {
			return fmt.Errorf("local storage base_path must be absolute: %s", cfg.Storage.Local.BasePath)
		}
	}

	if cfg.Storage.Adapter == "s3" {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("s3 region is required")
		}
	}

	switch cfg.Blobs.Backend {
	case "sqlite":
		if cfg.Blobs.Dir == "" {
			return fmt.Errorf("blobs dir is required for the sqlite backend")
		}
	case "adapter":
	default:
		return fmt.Errorf("invalid blob backend: %s (must be 'sqlite' or 'adapter')", cfg.Blobs.Backend)
	}

	if cfg.Reader.Width <= 0 {
		cfg.Reader.Width = 80
	}
	if cfg.Reader.Height <= 0 {
		cfg.Reader.Height = 30
	}
	if cfg.Reader.LocationsCount <= 0 {
		cfg.Reader.LocationsCount = 1000
	}
	if cfg.Reader.NotificationTTLMs <= 0 {
		cfg.Reader.NotificationTTLMs = 3000
	}
	if cfg.Server.MaxUploadSize <= 0 {
		cfg.Server.MaxUploadSize = 100 << 20
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides
// Environment variables are prefixed with SR_ (ShelfReader)
func applyEnvOverrides(cfg *types.Config) {
	if val := os.Getenv("SR_SERVER_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if val := os.Getenv("SR_SERVER_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}

	if val := os.Getenv("SR_STORAGE_ADAPTER"); val != "" {
		cfg.Storage.Adapter = val
	}
	if val := os.Getenv("SR_STORAGE_LOCAL_BASE_PATH"); val != "" {
		cfg.Storage.Local.BasePath = val
	}
	if val := os.Getenv("SR_STORAGE_S3_BUCKET"); val != "" {
		cfg.Storage.S3.Bucket = val
	}
	if val := os.Getenv("SR_STORAGE_S3_REGION"); val != "" {
		cfg.Storage.S3.Region = val
	}
	if val := os.Getenv("SR_STORAGE_S3_ENDPOINT"); val != "" {
		cfg.Storage.S3.Endpoint = val
	}
	if val := os.Getenv("SR_STORAGE_S3_ACCESS_KEY_ID"); val != "" {
		cfg.Storage.S3.AccessKeyID = val
	}
	if val := os.Getenv("SR_STORAGE_S3_SECRET_ACCESS_KEY"); val != "" {
		cfg.Storage.S3.SecretAccessKey = val
	}

	if val := os.Getenv("SR_BLOBS_BACKEND"); val != "" {
		cfg.Blobs.Backend = val
	}
	if val := os.Getenv("SR_BLOBS_DIR"); val != "" {
		cfg.Blobs.Dir = val
	}

	if val := os.Getenv("SR_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("SR_LOG_FILE"); val != "" {
		cfg.Logging.File = val
	}
}

// GetDefault returns a default configuration
func GetDefault() *types.Config {
	return &types.Config{
		Server: types.ServerConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			ReadTimeout:   15,
			WriteTimeout:  15,
			MaxUploadSize: 100 << 20,
		},
		Storage: types.StorageConfig{
			Adapter: "local",
			Local: types.LocalStorageOpts{
				BasePath: "/var/lib/shelfreader/storage",
			},
		},
		Blobs: types.BlobConfig{
			Backend: "sqlite",
			Dir:     "/var/lib/shelfreader/db",
		},
		Reader: types.ReaderConfig{
			Width:             80,
			Height:            30,
			LocationsCount:    1000,
			NotificationTTLMs: 3000,
		},
		Logging: types.LoggingConfig{
			Level: "info",
		},
	}
}
