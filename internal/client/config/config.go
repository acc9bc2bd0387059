package config

import (
	"fmt"
	"time"
)

// Config holds runtime settings for the SecretVault CLI.
//
// Units: sizes are bytes; PresignTTL and SessionTTL are time.Duration.
type Config struct {
	KVDriver      string
	KVDSN         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DocstoreDriver string
	MongoURI       string
	MongoDatabase  string
	PostgresDSN    string

	ObjectstoreDriver string
	S3Endpoint        string
	S3Region          string
	S3Bucket          string
	S3AccessKey       string
	S3SecretKey       string
	S3PublicURLs      bool
	S3PublicBaseURL   string
	PresignTTL        time.Duration

	IdentityDriver string
	SecretKey      string
	SessionTTL     time.Duration

	MaxUploadBytes  int64
	MaxProfileBytes int64
	AllowVideo      bool
	GalleryOrder    string
	UploadWorkers   int

	DownloadDir string
	MetricsAddr string
	LogBackend  string
	LogLevel    string
}

const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// LoadDefaults populates c with defaults that run without any external
// service: SQLite for local data, in-memory remote backends.
func (c *Config) LoadDefaults() {
	c.KVDriver = "sqlite"
	c.KVDSN = "secretvault.db"
	c.RedisAddr = "localhost:6379"

	c.DocstoreDriver = "memory"
	c.MongoURI = "mongodb://localhost:27017"
	c.MongoDatabase = "secretvault"

	c.ObjectstoreDriver = "memory"
	c.S3Region = "us-east-1"
	c.S3Bucket = "secretvault"
	c.PresignTTL = 15 * time.Minute

	c.IdentityDriver = "memory"
	c.SessionTTL = 24 * time.Hour

	c.MaxUploadBytes = 10 << 20
	c.MaxProfileBytes = 5 << 20
	c.GalleryOrder = OrderAsc
	c.UploadWorkers = 1

	c.DownloadDir = "downloads"
	c.LogBackend = "slog"
	c.LogLevel = "info"
}

// Validate rejects unknown drivers and out-of-range values.
func (c *Config) Validate() error {
	checks := []struct {
		name, value string
		allowed     []string
	}{
		{"kv_driver", c.KVDriver, []string{"sqlite", "redis", "memory"}},
		{"docstore_driver", c.DocstoreDriver, []string{"mongo", "postgres", "memory"}},
		{"objectstore_driver", c.ObjectstoreDriver, []string{"s3", "memory"}},
		{"identity_driver", c.IdentityDriver, []string{"postgres", "memory"}},
		{"gallery_order", c.GalleryOrder, []string{OrderAsc, OrderDesc}},
		{"log_backend", c.LogBackend, []string{"slog", "zap"}},
	}
	for _, ch := range checks {
		if !contains(ch.allowed, ch.value) {
			return fmt.Errorf("%s: unsupported value %q (want one of %v)", ch.name, ch.value, ch.allowed)
		}
	}
	if c.MaxUploadBytes <= 0 || c.MaxProfileBytes <= 0 {
		return fmt.Errorf("max_upload_bytes and max_profile_bytes must be positive")
	}
	if c.UploadWorkers < 1 {
		return fmt.Errorf("upload_workers must be at least 1, got %d", c.UploadWorkers)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
