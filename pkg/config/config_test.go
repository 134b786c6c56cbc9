package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GOOGLE_API_KEY", "g-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "g-key", cfg.GoogleApiKey)
	assert.Equal(t, "brave", cfg.SearchProvider)
	assert.Equal(t, 5, cfg.MaxIterations)
	assert.Equal(t, 10, cfg.QuickMaxIterations)
	assert.Equal(t, 2, cfg.MaxPlansPerIteration)
	assert.Equal(t, 5, cfg.MinFindings)
	assert.Equal(t, 3, cfg.MinIterations)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.InDelta(t, 1.0, cfg.SearchRateLimit, 1e-9)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MAX_ITERATIONS", "8")
	t.Setenv("SEARCH_PROVIDER", "ArXiv")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("INPUT_PRICE_PER_MTOK", "1.25")
	t.Setenv("SEARCH_RATE_LIMIT", "0")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxIterations)
	assert.Equal(t, "arxiv", cfg.SearchProvider)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.InDelta(t, 1.25, cfg.InputPricePerMTok, 1e-9)
	assert.Zero(t, cfg.SearchRateLimit)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9090\"\nmin_findings: 2\nhttp_timeout: 3s\n"), 0o600))
	t.Setenv("MIN_FINDINGS", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 2, cfg.MinFindings)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown provider", "SEARCH_PROVIDER", "bing"},
		{"zero iterations", "MAX_ITERATIONS", "0"},
		{"negative plans", "MAX_PLANS_PER_ITERATION", "-1"},
		{"negative rate limit", "SEARCH_RATE_LIMIT", "-2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv("HOME", t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := Load("")
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
