package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"docstore_driver": "postgres",
		"postgres_dsn":    "postgres://vault@db/vault",
		"presign_ttl":     "5m",
		"session_ttl":     3600,
		"upload_workers":  3,
	})

	t.Run("loads from flags", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "postgres", cfg.DocstoreDriver)
		assert.Equal(t, "postgres://vault@db/vault", cfg.PostgresDSN)
		assert.Equal(t, 5*time.Minute, cfg.PresignTTL)
		assert.Equal(t, time.Hour, cfg.SessionTTL)
		assert.Equal(t, 3, cfg.UploadWorkers)
		assert.Equal(t, "sqlite", cfg.KVDriver, "absent keys keep defaults")
	})

	t.Run("flags override json", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", pathFlag, "-w", "8"}

		cfg := LoadConfig()

		assert.Equal(t, "postgres", cfg.DocstoreDriver)
		assert.Equal(t, 8, cfg.UploadWorkers)
		assert.Equal(t, time.Hour, cfg.SessionTTL)
	})

	t.Run("no config flag leaves config untouched", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{KVDriver: "redis", UploadWorkers: 2}
		parseJson(cfg)

		assert.Equal(t, "redis", cfg.KVDriver)
		assert.Equal(t, 2, cfg.UploadWorkers)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
