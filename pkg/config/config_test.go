package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultProviderChain, cfg.Providers.Chain)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.RateLimitDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Retry.TransientDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Pacing.Delay)
	assert.False(t, cfg.Pacing.Bulk)
	assert.Equal(t, 5, cfg.Download.MaxRedirects)
	assert.Equal(t, int64(5120), cfg.Validation.MinBytes)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())

	// the default chain must not alias the package variable
	cfg.Providers.Chain[0] = "picsum"
	assert.Equal(t, "wikimedia", DefaultProviderChain[0])
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IMGSCRAPER_PROVIDERS", "pexels, unsplash ,,picsum")
	t.Setenv("IMGSCRAPER_DELAY", "250ms")
	t.Setenv("IMGSCRAPER_CONCURRENCY", "8")
	t.Setenv("IMGSCRAPER_BULK", "true")
	t.Setenv("IMGSCRAPER_PIXABAY_KEY", "secret")
	t.Setenv("IMGSCRAPER_LOG_LEVEL", "debug")
	t.Setenv("IMGSCRAPER_PUBLIC_DIR", "/srv/site/public")
	t.Setenv("IMGSCRAPER_RETRY_STRATEGY", "exponential")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, []string{"pexels", "unsplash", "picsum"}, cfg.Providers.Chain)
	assert.Equal(t, 250*time.Millisecond, cfg.Pacing.Delay)
	assert.Equal(t, 8, cfg.Pacing.Concurrency)
	assert.True(t, cfg.Pacing.Bulk)
	assert.Equal(t, "secret", cfg.Provider("pixabay").APIKey)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/srv/site/public", cfg.Catalog.PublicDir)
	assert.Equal(t, "exponential", cfg.Retry.Strategy)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("IMGSCRAPER_DELAY", "soon")
	t.Setenv("IMGSCRAPER_MAX_ATTEMPTS", "many")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMGSCRAPER_DELAY")
	assert.Contains(t, err.Error(), "IMGSCRAPER_MAX_ATTEMPTS")
	assert.Equal(t, 500*time.Millisecond, cfg.Pacing.Delay)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
catalog:
  file: data/countries.json
  public_dir: site/public
  include: ["country/*"]
providers:
  chain: [wikipedia, pexels]
  settings:
    wikipedia:
      base_url: http://localhost:9999/w/api.php
retry:
  max_attempts: 5
  rate_limit_delay: 3s
pacing:
  delay: 1s
download:
  max_redirects: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "data/countries.json", cfg.Catalog.File)
	assert.Equal(t, []string{"country/*"}, cfg.Catalog.Include)
	assert.Equal(t, []string{"wikipedia", "pexels"}, cfg.Providers.Chain)
	assert.Equal(t, "http://localhost:9999/w/api.php", cfg.Provider("wikipedia").BaseURL)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.Retry.RateLimitDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Retry.TransientDelay, "unset keys keep defaults")
	assert.Equal(t, time.Second, cfg.Pacing.Delay)
	assert.Equal(t, 3, cfg.Download.MaxRedirects)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("pacing: [unclosed"), 0644))
	assert.Error(t, cfg.LoadFromFile(bad))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty chain", func(c *Config) { c.Providers.Chain = nil }, "at least one provider"},
		{"duplicate provider", func(c *Config) { c.Providers.Chain = []string{"pexels", "pexels"} }, "appears twice"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "max attempts"},
		{"negative delay", func(c *Config) { c.Pacing.Delay = -time.Second }, "pacing delay"},
		{"too many workers", func(c *Config) { c.Pacing.Concurrency = 64 }, "exceed 16"},
		{"no redirects", func(c *Config) { c.Download.MaxRedirects = 0 }, "max redirects"},
		{"bad retry strategy", func(c *Config) { c.Retry.Strategy = "fibonacci" }, "retry strategy"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"no catalog", func(c *Config) { c.Catalog.File = "" }, "catalog file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retry.MaxAttempts = 0
	cfg.Download.Timeout = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max attempts")
	assert.Contains(t, err.Error(), "download timeout")
}

func TestSaveOmitsAPIKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetProviderKey("pixabay", "do-not-write")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "do-not-write")
	assert.Equal(t, "do-not-write", cfg.Provider("pixabay").APIKey, "Save must not mutate the receiver")

	var round Config
	require.NoError(t, yaml.Unmarshal(data, &round))
	assert.Equal(t, cfg.Pacing.Delay, round.Pacing.Delay)
	assert.Equal(t, cfg.Providers.Chain, round.Providers.Chain)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"providers":    []string{"picsum"},
		"delay":        time.Duration(0),
		"bulk":         true,
		"concurrency":  2,
		"only-missing": true,
		"report":       "report.json",
		"include":      []string{"city/*"},
		"publish":      "file:///srv/images",
		"notify":       true,
	})

	assert.Equal(t, []string{"picsum"}, cfg.Providers.Chain)
	assert.Equal(t, time.Duration(0), cfg.Pacing.Delay)
	assert.True(t, cfg.Pacing.Bulk)
	assert.Equal(t, 2, cfg.Pacing.Concurrency)
	assert.True(t, cfg.Output.OnlyMissing)
	assert.Equal(t, "report.json", cfg.Output.ReportFile)
	assert.Equal(t, []string{"city/*"}, cfg.Catalog.Include)
	assert.Equal(t, "file:///srv/images", cfg.Output.PublishURL)
	assert.True(t, cfg.Output.Notify)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pacing:\n  concurrency: 2\n  delay: 2s\n"), 0644))
	t.Setenv("IMGSCRAPER_CONCURRENCY", "6")

	cfg, err := Load(path, map[string]interface{}{"concurrency": 3})
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Pacing.Concurrency, "flag beats env and file")
	assert.Equal(t, 2*time.Second, cfg.Pacing.Delay, "file beats defaults")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a ,b, "))
	assert.Nil(t, SplitList(""))
}
