package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "novardb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// chdir switches the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "novardb", cfg.AppName)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.Equal(t, "default", cfg.Storage.DefaultDatabase)
	assert.Equal(t, "127.0.0.1:7070", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Server.RateBurst)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `
app_name: shop
storage:
  data_dir: /var/lib/novardb
server:
  addr: ":9000"
  debug: true
log:
  format: json
`)
	t.Setenv("NOVARDB_SERVER_ADDR", ":9100")
	t.Setenv("NOVARDB_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "shop", cfg.AppName)
	assert.Equal(t, "/var/lib/novardb", cfg.Storage.DataDir)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NOVARDB_STORAGE_DEFAULT_DATABASE=fromdotenv\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("NOVARDB_STORAGE_DEFAULT_DATABASE") })

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "fromdotenv", cfg.Storage.DefaultDatabase)
}

func TestLoadConfig_Errors(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := writeConfig(t, "server:\n  rate_limit: -1\n")
	_, err = LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit")
}
