package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := NewViper()
	v.Set("api.base_url", "http://localhost:8080/api")
	v.Set("owner.id", "u1")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "sheets.db", cfg.DatabasePath)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SHEETSYNC_DATABASE_PATH", "/tmp/other.db")
	t.Setenv("SHEETSYNC_SYNC_INTERVAL", "30s")

	v := NewViper()
	v.Set("api.base_url", "http://localhost:8080/api")
	v.Set("owner.id", "u1")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.DatabasePath)
	assert.Equal(t, 30*time.Second, cfg.SyncInterval)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  base_url: http://example.com/api\nowner:\n  id: u9\n"), 0o600))

	v := NewViper()
	require.NoError(t, ReadFile(v, path))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/api", cfg.APIBaseURL)
	assert.Equal(t, "u9", cfg.OwnerID)

	assert.NoError(t, ReadFile(NewViper(), ""))
	assert.Error(t, ReadFile(NewViper(), filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name  string
		setup func(v map[string]string)
		want  string
	}{
		{"missing base url", func(m map[string]string) { delete(m, "api.base_url") }, "api.base_url is required"},
		{"missing owner", func(m map[string]string) { delete(m, "owner.id") }, "owner.id is required"},
		{"blank database path", func(m map[string]string) { m["database.path"] = "  " }, "database.path is required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			values := map[string]string{
				"api.base_url": "http://localhost:8080/api",
				"owner.id":     "u1",
			}
			tc.setup(values)

			v := NewViper()
			for k, val := range values {
				v.Set(k, val)
			}

			_, err := Load(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
