package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celeralabs/stx-orbital/internal/config"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "SPACETRACK_USER", "SPACETRACK_PASS", "XAI_API_KEY", "STX_AUTH_TOKEN"} {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultsWithNoOverridesFile(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 3*time.Hour, cfg.CatalogTTL)
	assert.Equal(t, 150.0, cfg.Stage1AltMarginKm)
	assert.Equal(t, 7.0, cfg.Stage2HorizonDays)
	assert.Equal(t, 2000, cfg.ScreenerGrid)
	assert.Equal(t, 8, cfg.MaxConcurrentJobs)
	assert.Equal(t, 30*time.Second, cfg.ExternalCallTimeout)
}

func TestLoad_EnvironmentCredentialsFlowThrough(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SPACETRACK_USER", "alice")
	t.Setenv("SPACETRACK_PASS", "secret")
	t.Setenv("XAI_API_KEY", "xai-key")
	t.Setenv("STX_AUTH_TOKEN", "bearer-token")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.True(t, cfg.HasCatalogCredentials())
	assert.True(t, cfg.HasNarrativeCredentials())
	assert.Equal(t, "bearer-token", cfg.AuthToken)
}

func TestLoad_MissingCredentialsDisableDependentFeatures(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.False(t, cfg.HasCatalogCredentials())
	assert.False(t, cfg.HasNarrativeCredentials())
}

func TestLoad_JSONOverridesReplaceDefaults(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "overrides.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"stage1_alt_margin_km": 200,
		"stage2_grid": 500,
		"max_concurrent_jobs": 2,
		"catalog_ttl": "1h"
	}`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 200.0, cfg.Stage1AltMarginKm)
	assert.Equal(t, 500, cfg.Stage2Grid)
	assert.Equal(t, 2, cfg.MaxConcurrentJobs)
	assert.Equal(t, time.Hour, cfg.CatalogTTL)
	// Fields absent from the override keep their built-in default.
	assert.Equal(t, 30.0, cfg.Stage1IncMarginDeg)
}

func TestLoad_MalformedJSONIsAnError(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "overrides.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_MalformedDurationIsAnError(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "overrides.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"catalog_ttl": "not-a-duration"}`), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}
