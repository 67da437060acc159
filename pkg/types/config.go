package types

// Config represents the overall application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Blobs   BlobConfig    `yaml:"blobs" json:"blobs"`
	Reader  ReaderConfig  `yaml:"reader" json:"reader"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host          string `yaml:"host" json:"host"`
	Port          int    `yaml:"port" json:"port"`
	ReadTimeout   int    `yaml:"read_timeout" json:"read_timeout"`       // seconds
	WriteTimeout  int    `yaml:"write_timeout" json:"write_timeout"`     // seconds
	MaxUploadSize int64  `yaml:"max_upload_size" json:"max_upload_size"` // bytes
}

// StorageConfig defines the adapter used for the catalog and settings documents
type StorageConfig struct {
	Adapter string            `yaml:"adapter" json:"adapter"` // "local" or "s3"
	Local   LocalStorageOpts  `yaml:"local" json:"local"`
	S3      S3StorageOpts     `yaml:"s3" json:"s3"`
	Options map[string]string `yaml:"options" json:"options"`
}

// LocalStorageOpts configures the local filesystem adapter
type LocalStorageOpts struct {
	BasePath string `yaml:"base_path" json:"base_path"`
}

// S3StorageOpts configures the S3-compatible adapter
type S3StorageOpts struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	Region          string `yaml:"region" json:"region"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl" json:"use_ssl"`
}

// BlobConfig selects where raw book files live
type BlobConfig struct {
	Backend string `yaml:"backend" json:"backend"` // "sqlite" or "adapter"
	Dir     string `yaml:"dir" json:"dir"`         // directory holding the sqlite database
}

// ReaderConfig holds rendering defaults for new sessions
type ReaderConfig struct {
	Width             int `yaml:"width" json:"width"`                           // columns of the virtual viewport
	Height            int `yaml:"height" json:"height"`                         // rows of the virtual viewport
	LocationsCount    int `yaml:"locations_count" json:"locations_count"`       // breakpoints for progress
	NotificationTTLMs int `yaml:"notification_ttl_ms" json:"notification_ttl_ms"` // transient notice lifetime
}

// LoggingConfig configures the zerolog logger
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"` // debug, info, warn, error
	Pretty bool   `yaml:"pretty" json:"pretty"`
	File   string `yaml:"file" json:"file"`
}
