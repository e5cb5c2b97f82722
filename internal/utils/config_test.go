package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadFrom_OverridesDefaults(t *testing.T) {
	p := writeConfig(t, `server:
  host: "127.0.0.1"
  port: ":9000"
fetch:
  timeout: 5s
  max_notebook_bytes: 1024
render:
  style: monokai
pdf:
  enabled: true
  timeout_secs: 3
`)
	cfg := LoadFrom(p)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, ":9000", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, int64(1024), cfg.Fetch.MaxNotebookBytes)
	assert.Equal(t, "monokai", cfg.Render.Style)
	assert.True(t, cfg.PDF.Enabled)
	assert.Equal(t, 3, cfg.PDF.TimeoutSecs)

	// untouched sections keep their defaults
	assert.Equal(t, "nbrender/1.0", cfg.Fetch.UserAgent)
	assert.Equal(t, DefaultMathJaxURL, cfg.Render.MathJaxURL)
	assert.Equal(t, 8.27, cfg.PDF.Paper.Width)
}

func TestDefaultConfig_FetchWaitIsTwentySeconds(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 20*time.Second, cfg.Fetch.Timeout)
	assert.NoError(t, validate(cfg))
}

func TestLoadFrom_PanicsOnInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{name: "bad port", yml: "server:\n  port: \"8000\"\n"},
		{name: "zero timeout", yml: "fetch:\n  timeout: 0s\n"},
		{name: "negative size", yml: "fetch:\n  max_notebook_bytes: -1\n"},
		{name: "pdf without paper", yml: "pdf:\n  enabled: true\n  paper:\n    width: 0\n"},
		{name: "pdf zero timeout", yml: "pdf:\n  enabled: true\n  timeout_secs: 0\n"},
		{name: "metrics path", yml: "metrics:\n  enabled: true\n  path: metrics\n"},
		{name: "malformed yaml", yml: "server: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := writeConfig(t, tc.yml)
			assert.Panics(t, func() { _ = LoadFrom(p) })
		})
	}
}

func TestLoadFrom_PanicsOnMissingFile(t *testing.T) {
	assert.Panics(t, func() { _ = LoadFrom(filepath.Join(t.TempDir(), "nope.yaml")) })
}

func TestLoad_UsesConfigPathEnv(t *testing.T) {
	p := writeConfig(t, "server:\n  port: \":7777\"\n")
	t.Setenv("CONFIG_PATH", p)
	cfg := Load()
	require.Equal(t, ":7777", cfg.Server.Port)
}

func TestLoad_DefaultsWithoutConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	cfg := Load()
	assert.Equal(t, DefaultConfig(), cfg)
}
