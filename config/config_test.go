package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `
redis:
  url: redis://localhost:6379/0
  dial_timeout_seconds: 10
etcd:
  endpoints:
    - localhost:2379
  namespace: cti
  ttl_seconds: 60
export:
  directory: /exports
  default_format: text/csv
context_ttl_seconds: 300
`

func TestLoad(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "stixgraph.yaml", validConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 10*time.Second, cfg.Redis.GetDialTimeout())
	assert.Equal(t, []string{"localhost:2379"}, cfg.Etcd.Endpoints)
	assert.Equal(t, "cti", cfg.Etcd.GetNamespace())
	assert.Equal(t, time.Minute, cfg.Etcd.GetTTL())
	assert.Equal(t, "/exports", cfg.Export.Directory)
	assert.Equal(t, "text/csv", cfg.Export.GetDefaultFormat())
	assert.Equal(t, 5*time.Minute, cfg.GetContextTTL())
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "stixgraph.yaml", validConfig)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "stixgraph.yaml", `
redis:
  url: redis://localhost:6379
etcd:
  endpoints: [localhost:2379]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Redis.GetDialTimeout())
	assert.Equal(t, 3*time.Second, cfg.Redis.GetReadTimeout())
	assert.Equal(t, "stixgraph", cfg.Etcd.GetNamespace())
	assert.Equal(t, 30*time.Second, cfg.Etcd.GetTTL())
	assert.Equal(t, "application/json", cfg.Export.GetDefaultFormat())
	assert.Equal(t, 2*time.Minute, cfg.GetContextTTL())
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(writeConfig(t, dir, "missing-redis.yaml", `
etcd:
  endpoints: [localhost:2379]
`))
	assert.ErrorContains(t, err, "redis.url")

	_, err = Load(writeConfig(t, dir, "missing-etcd.yaml", `
redis:
  url: redis://localhost:6379
`))
	assert.ErrorContains(t, err, "etcd.endpoints")

	_, err = Load(writeConfig(t, dir, "garbage.yaml", `{not yaml`))
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "does-not-exist.yaml"))
	assert.Error(t, err)

	_, err = Load(t.TempDir())
	assert.ErrorContains(t, err, "no stixgraph.yaml")
}
