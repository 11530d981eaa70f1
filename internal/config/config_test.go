package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"HELPDESK_CONFIG", "HELPDESK_DB", "HELPDESK_ADDR", "HELPDESK_AGENT", "HELPDESK_LOAD_DELAY", "HELPDESK_LOG_LEVEL", "HELPDESK_LOG_FORMAT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "helpdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, time.Second, cfg.LoadDelay)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, strings.HasSuffix(cfg.DB, filepath.Join(".helpdesk", "helpdesk.db")))
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
db: /var/lib/helpdesk/desk.db
addr: 127.0.0.1:9000
load_delay: 250ms
agent: Jane Smith
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/helpdesk/desk.db", cfg.DB)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.LoadDelay)
	assert.Equal(t, "Jane Smith", cfg.Agent)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "addr: :7000\nload_delay: 2s\n")
	t.Setenv("HELPDESK_CONFIG", path)
	t.Setenv("HELPDESK_ADDR", ":9999")
	t.Setenv("HELPDESK_LOAD_DELAY", "0s")
	t.Setenv("HELPDESK_DB", "~/desk.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Zero(t, cfg.LoadDelay)
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "desk.db"), cfg.DB)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(writeConfig(t, "addr: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("bad duration env", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("HELPDESK_LOAD_DELAY", "soon")
		_, err := Load("")
		assert.ErrorContains(t, err, "HELPDESK_LOAD_DELAY")
	})

	t.Run("invalid values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("HELPDESK_LOG_LEVEL", "loud")
		t.Setenv("HELPDESK_LOG_FORMAT", "xml")
		_, err := Load("")
		require.Error(t, err)
		assert.ErrorContains(t, err, "log.level")
		assert.ErrorContains(t, err, "log.format")
	})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.Log = LogConfig{Level: "warn", Format: "json"}
	logger := cfg.Logger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "ticket", 1)
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"ticket":1`)
}
