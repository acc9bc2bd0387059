package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/secretvault/internal/flagx"
	"github.com/dmitrijs2005/secretvault/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations use timex.Duration,
// so "15m" and 900 are both accepted.
type JsonConfig struct {
	KVDriver      string `json:"kv_driver"`
	KVDSN         string `json:"kv_dsn"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	DocstoreDriver string `json:"docstore_driver"`
	MongoURI       string `json:"mongo_uri"`
	MongoDatabase  string `json:"mongo_database"`
	PostgresDSN    string `json:"postgres_dsn"`

	ObjectstoreDriver string         `json:"objectstore_driver"`
	S3Endpoint        string         `json:"s3_endpoint"`
	S3Region          string         `json:"s3_region"`
	S3Bucket          string         `json:"s3_bucket"`
	S3AccessKey       string         `json:"s3_access_key"`
	S3SecretKey       string         `json:"s3_secret_key"`
	S3PublicURLs      bool           `json:"s3_public_urls"`
	S3PublicBaseURL   string         `json:"s3_public_base_url"`
	PresignTTL        timex.Duration `json:"presign_ttl"`

	IdentityDriver string         `json:"identity_driver"`
	SecretKey      string         `json:"secret_key"`
	SessionTTL     timex.Duration `json:"session_ttl"`

	MaxUploadBytes  int64  `json:"max_upload_bytes"`
	MaxProfileBytes int64  `json:"max_profile_bytes"`
	AllowVideo      bool   `json:"allow_video"`
	GalleryOrder    string `json:"gallery_order"`
	UploadWorkers   int    `json:"upload_workers"`

	DownloadDir string `json:"download_dir"`
	MetricsAddr string `json:"metrics_addr"`
	LogBackend  string `json:"log_backend"`
	LogLevel    string `json:"log_level"`
}

func toJson(c *Config) JsonConfig {
	return JsonConfig{
		KVDriver:          c.KVDriver,
		KVDSN:             c.KVDSN,
		RedisAddr:         c.RedisAddr,
		RedisPassword:     c.RedisPassword,
		RedisDB:           c.RedisDB,
		DocstoreDriver:    c.DocstoreDriver,
		MongoURI:          c.MongoURI,
		MongoDatabase:     c.MongoDatabase,
		PostgresDSN:       c.PostgresDSN,
		ObjectstoreDriver: c.ObjectstoreDriver,
		S3Endpoint:        c.S3Endpoint,
		S3Region:          c.S3Region,
		S3Bucket:          c.S3Bucket,
		S3AccessKey:       c.S3AccessKey,
		S3SecretKey:       c.S3SecretKey,
		S3PublicURLs:      c.S3PublicURLs,
		S3PublicBaseURL:   c.S3PublicBaseURL,
		PresignTTL:        timex.Duration{Duration: c.PresignTTL},
		IdentityDriver:    c.IdentityDriver,
		SecretKey:         c.SecretKey,
		SessionTTL:        timex.Duration{Duration: c.SessionTTL},
		MaxUploadBytes:    c.MaxUploadBytes,
		MaxProfileBytes:   c.MaxProfileBytes,
		AllowVideo:        c.AllowVideo,
		GalleryOrder:      c.GalleryOrder,
		UploadWorkers:     c.UploadWorkers,
		DownloadDir:       c.DownloadDir,
		MetricsAddr:       c.MetricsAddr,
		LogBackend:        c.LogBackend,
		LogLevel:          c.LogLevel,
	}
}

func (jc JsonConfig) apply(c *Config) {
	c.KVDriver = jc.KVDriver
	c.KVDSN = jc.KVDSN
	c.RedisAddr = jc.RedisAddr
	c.RedisPassword = jc.RedisPassword
	c.RedisDB = jc.RedisDB
	c.DocstoreDriver = jc.DocstoreDriver
	c.MongoURI = jc.MongoURI
	c.MongoDatabase = jc.MongoDatabase
	c.PostgresDSN = jc.PostgresDSN
	c.ObjectstoreDriver = jc.ObjectstoreDriver
	c.S3Endpoint = jc.S3Endpoint
	c.S3Region = jc.S3Region
	c.S3Bucket = jc.S3Bucket
	c.S3AccessKey = jc.S3AccessKey
	c.S3SecretKey = jc.S3SecretKey
	c.S3PublicURLs = jc.S3PublicURLs
	c.S3PublicBaseURL = jc.S3PublicBaseURL
	c.PresignTTL = jc.PresignTTL.Duration
	c.IdentityDriver = jc.IdentityDriver
	c.SecretKey = jc.SecretKey
	c.SessionTTL = jc.SessionTTL.Duration
	c.MaxUploadBytes = jc.MaxUploadBytes
	c.MaxProfileBytes = jc.MaxProfileBytes
	c.AllowVideo = jc.AllowVideo
	c.GalleryOrder = jc.GalleryOrder
	c.UploadWorkers = jc.UploadWorkers
	c.DownloadDir = jc.DownloadDir
	c.MetricsAddr = jc.MetricsAddr
	c.LogBackend = jc.LogBackend
	c.LogLevel = jc.LogLevel
}

// parseJson overlays cfg with the JSON file named by -c / -config. Keys
// missing from the file keep their current values. Read and decode errors
// panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	jc := toJson(cfg)
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}
	jc.apply(cfg)
}
