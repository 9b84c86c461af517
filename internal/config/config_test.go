package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "console.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONSOLE_CONFIG", "VOICE_API_BASE", "PORT", "ENVIRONMENT", "LOG_LEVEL",
		"FROM_NUMBER", "PROXY_BYPASS_HEADER", "PROXY_BYPASS_VALUE",
		"HTTP_TIMEOUT_SEC", "PROBE_INTERVAL_SEC", "EXPORT_LIMIT", "PAGE_LIMIT",
		"SESSION_IDLE_SEC",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIBase, cfg.APIBase)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 20, cfg.PageLimit)
	assert.Equal(t, 15*time.Minute, cfg.SessionIdle())
	assert.Equal(t, map[string]string{DefaultBypassName: "true"}, cfg.PassThroughHeaders())
}

func TestLoadStripsTrailingSlashes(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOICE_API_BASE", "https://abc.ngrok.app///")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://abc.ngrok.app", cfg.APIBase)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
api_base: http://backend:9000/
port: "9090"
page_limit: 50
from_number: "+15550001111"
`)
	t.Setenv("CONSOLE_CONFIG", path)
	t.Setenv("PAGE_LIMIT", "10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000", cfg.APIBase)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 10, cfg.PageLimit)
	assert.Equal(t, "+15550001111", cfg.FromNumber)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"relative base", "VOICE_API_BASE", "backend:9000"},
		{"non numeric timeout", "HTTP_TIMEOUT_SEC", "soon"},
		{"page limit too large", "PAGE_LIMIT", "500"},
		{"zero probe interval", "PROBE_INTERVAL_SEC", "0"},
		{"negative session idle", "SESSION_IDLE_SEC", "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONSOLE_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestDisabledBypassHeader(t *testing.T) {
	cfg := defaults()
	cfg.BypassHeader = ""
	assert.Nil(t, cfg.PassThroughHeaders())
}
