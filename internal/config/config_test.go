package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Backend)
	assert.Equal(t, ".thinglink", cfg.DataDir)
	assert.Equal(t, filepath.Join(".thinglink", "agent.key"), cfg.KeyFile)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.Badger.SyncWrites)
	assert.False(t, cfg.Badger.InMemory)
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
	assert.Equal(t, filepath.Join(".thinglink", "thinglink.db"), cfg.StorePath())
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.yaml", `
backend: badger
data_dir: /var/lib/thinglink
log_level: debug
badger:
  sync_writes: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "badger", cfg.Backend)
	assert.Equal(t, "/var/lib/thinglink", cfg.DataDir)
	assert.Equal(t, "/var/lib/thinglink/agent.key", cfg.KeyFile)
	assert.False(t, cfg.Badger.SyncWrites)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "/var/lib/thinglink/badger", cfg.StorePath())
}

func TestLoad_SearchesWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	writeFile(t, dir, "thinglink.yaml", "log_level: info\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.yaml", "backend: sqlite\nkey_file: /keys/a\n")
	t.Setenv("THINGLINK_BACKEND", "badger")
	t.Setenv("THINGLINK_BADGER_IN_MEMORY", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "badger", cfg.Backend)
	assert.True(t, cfg.Badger.InMemory)
	assert.Equal(t, "/keys/a", cfg.KeyFile)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default", func(*Config) {}, ""},
		{"bad backend", func(c *Config) { c.Backend = "postgres" }, "invalid backend"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "invalid log_level"},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir is empty"},
		{"in-memory badger needs no dir", func(c *Config) {
			c.DataDir = ""
			c.Backend = "badger"
			c.Badger.InMemory = true
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", FileExt)
	cfg := Default()

	wrote, err := cfg.WriteDefault(path)
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = cfg.WriteDefault(path)
	require.NoError(t, err)
	assert.False(t, wrote, "existing file is kept")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Backend, loaded.Backend)
	assert.Equal(t, cfg.DataDir, loaded.DataDir)
	assert.Equal(t, cfg.Badger, loaded.Badger)
}
