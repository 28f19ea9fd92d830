package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv
const EnvPrefix = "IMGSCRAPER_"

// BrowserUserAgent is sent to providers that block non-browser clients
const BrowserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// Config holds all configuration options for an acquisition run
type Config struct {
	Catalog    CatalogConfig    `yaml:"catalog" json:"catalog"`
	Providers  ProvidersConfig  `yaml:"providers" json:"providers"`
	Retry      RetryConfig      `yaml:"retry" json:"retry"`
	Pacing     PacingConfig     `yaml:"pacing" json:"pacing"`
	Download   DownloadConfig   `yaml:"download" json:"download"`
	Validation ValidationConfig `yaml:"validation" json:"validation"`
	Output     OutputConfig     `yaml:"output" json:"output"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// CatalogConfig locates the catalog and its override table
type CatalogConfig struct {
	// File is the countries JSON document
	File string `yaml:"file" json:"file"`
	// PublicDir is the root that destination and manual source paths are relative to
	PublicDir string `yaml:"public_dir" json:"public_dir"`
	// Overrides is an optional YAML keyword/manual-source table
	Overrides string `yaml:"overrides" json:"overrides"`
	// Include restricts the run to entity ids matching any of these globs
	Include []string `yaml:"include" json:"include"`
}

// ProvidersConfig describes the fallback chain and per-provider settings
type ProvidersConfig struct {
	Chain []string `yaml:"chain" json:"chain"`
	// UserAgent is the browser-like agent used for scraping providers
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	// APIUserAgent identifies the tool to APIs that ask for a contact address
	APIUserAgent string                      `yaml:"api_user_agent" json:"api_user_agent"`
	Settings     map[string]ProviderSettings `yaml:"settings" json:"settings"`
}

// ProviderSettings overrides the defaults of a single provider
type ProviderSettings struct {
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKey  string `yaml:"api_key,omitempty" json:"-"`
}

// RetryConfig holds the retry/backoff policy
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// RateLimitDelay is multiplied by the attempt number after a 429/403
	RateLimitDelay time.Duration `yaml:"rate_limit_delay" json:"rate_limit_delay"`
	// TransientDelay is the fixed pause after other transient failures
	TransientDelay time.Duration `yaml:"transient_delay" json:"transient_delay"`
	MaxDelay       time.Duration `yaml:"max_delay" json:"max_delay"`
	// Strategy is linear, exponential or constant
	Strategy string `yaml:"strategy" json:"strategy"`
}

// PacingConfig holds politeness and concurrency settings
type PacingConfig struct {
	Delay       time.Duration `yaml:"delay" json:"delay"`
	Bulk        bool          `yaml:"bulk" json:"bulk"`
	Concurrency int           `yaml:"concurrency" json:"concurrency"`
	// RequestsPerMinute caps the shared request budget in bulk mode
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// DownloadConfig holds download engine settings
type DownloadConfig struct {
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	MaxRedirects int           `yaml:"max_redirects" json:"max_redirects"`
}

// ValidationConfig holds validator thresholds
type ValidationConfig struct {
	MinBytes int64 `yaml:"min_bytes" json:"min_bytes"`
}

// OutputConfig holds run report and resume settings
type OutputConfig struct {
	ReportFile  string `yaml:"report_file" json:"report_file"`
	OnlyMissing bool   `yaml:"only_missing" json:"only_missing"`
	Resume      bool   `yaml:"resume" json:"resume"`
	// PublishURL is a bucket URL (file://, s3://, gs://) the report and images are mirrored to
	PublishURL string `yaml:"publish_url" json:"publish_url"`
	// Sidecars writes a provenance file next to every acquired image
	Sidecars bool `yaml:"sidecars" json:"sidecars"`
	// Notify sends a desktop notification when the run ends
	Notify bool `yaml:"notify" json:"notify"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	Console bool   `yaml:"console" json:"console"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultProviderChain is used when no chain is configured
var DefaultProviderChain = []string{"wikimedia", "wikipedia", "unsplash", "pexels"}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			File:      "src/data/countries.json",
			PublicDir: "public",
		},
		Providers: ProvidersConfig{
			Chain:        append([]string(nil), DefaultProviderChain...),
			UserAgent:    BrowserUserAgent,
			APIUserAgent: "imgscraper/1.0 (https://github.com/imgscraper/imgscraper)",
			Settings:     map[string]ProviderSettings{},
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			RateLimitDelay: 2 * time.Second,
			TransientDelay: 1500 * time.Millisecond,
			MaxDelay:       30 * time.Second,
			Strategy:       "linear",
		},
		Pacing: PacingConfig{
			Delay:             500 * time.Millisecond,
			Concurrency:       4,
			RequestsPerMinute: 120,
		},
		Download: DownloadConfig{
			Timeout:      30 * time.Second,
			MaxRedirects: 5,
		},
		Validation: ValidationConfig{
			MinBytes: 5 * 1024,
		},
		Output: OutputConfig{},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Provider returns the settings of one provider, zero value when unset
func (c *Config) Provider(name string) ProviderSettings {
	if c.Providers.Settings == nil {
		return ProviderSettings{}
	}
	return c.Providers.Settings[name]
}

// SetProviderKey sets the API key of one provider
func (c *Config) SetProviderKey(name, key string) {
	if c.Providers.Settings == nil {
		c.Providers.Settings = map[string]ProviderSettings{}
	}
	s := c.Providers.Settings[name]
	s.APIKey = key
	c.Providers.Settings[name] = s
}

// LoadFromEnv loads configuration from IMGSCRAPER_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	if v := env("CATALOG"); v != "" {
		c.Catalog.File = v
	}
	if v := env("PUBLIC_DIR"); v != "" {
		c.Catalog.PublicDir = v
	}
	if v := env("OVERRIDES"); v != "" {
		c.Catalog.Overrides = v
	}
	if v := env("PROVIDERS"); v != "" {
		c.Providers.Chain = SplitList(v)
	}
	if v := env("USER_AGENT"); v != "" {
		c.Providers.UserAgent = v
	}
	if v := env("PIXABAY_KEY"); v != "" {
		c.SetProviderKey("pixabay", v)
	}
	if v := env("UNSPLASH_KEY"); v != "" {
		c.SetProviderKey("unsplash", v)
	}
	if v := env("DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sDELAY: %w", EnvPrefix, err))
		} else {
			c.Pacing.Delay = d
		}
	}
	if v := env("CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCONCURRENCY: %w", EnvPrefix, err))
		} else {
			c.Pacing.Concurrency = n
		}
	}
	if v := env("BULK"); v != "" {
		c.Pacing.Bulk = strings.EqualFold(v, "true") || v == "1"
	}
	if v := env("MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_ATTEMPTS: %w", EnvPrefix, err))
		} else {
			c.Retry.MaxAttempts = n
		}
	}
	if v := env("REPORT"); v != "" {
		c.Output.ReportFile = v
	}
	if v := env("RETRY_STRATEGY"); v != "" {
		c.Retry.Strategy = v
	}
	if v := env("PUBLISH_URL"); v != "" {
		c.Output.PublishURL = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := env("LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file.
// An empty path searches the default locations and is not an error when nothing is found.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".imgscraper.yaml",
		".imgscraper.yml",
	}
	if home != "" {
		locations = append(locations,
			filepath.Join(home, ".config", "imgscraper", "config.yaml"),
			filepath.Join(home, ".config", "imgscraper", "config.yml"),
		)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// DefaultConfigPath is where `config init` writes when no path is given
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".imgscraper.yaml"
	}
	return filepath.Join(home, ".config", "imgscraper", "config.yaml")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Catalog.File == "" {
		errs = append(errs, errors.New("catalog file is required"))
	}
	if len(c.Providers.Chain) == 0 {
		errs = append(errs, errors.New("provider chain must name at least one provider"))
	}
	seen := make(map[string]bool, len(c.Providers.Chain))
	for _, name := range c.Providers.Chain {
		if seen[name] {
			errs = append(errs, fmt.Errorf("provider %q appears twice in the chain", name))
		}
		seen[name] = true
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	if c.Retry.RateLimitDelay < 0 || c.Retry.TransientDelay < 0 {
		errs = append(errs, errors.New("retry delays cannot be negative"))
	}
	switch c.Retry.Strategy {
	case "", "linear", "exponential", "constant":
	default:
		errs = append(errs, fmt.Errorf("invalid retry strategy %q", c.Retry.Strategy))
	}

	if c.Pacing.Delay < 0 {
		errs = append(errs, errors.New("pacing delay cannot be negative"))
	}
	if c.Pacing.Concurrency < 1 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}
	if c.Pacing.Concurrency > 16 {
		errs = append(errs, errors.New("concurrency should not exceed 16"))
	}
	if c.Pacing.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.MaxRedirects < 1 {
		errs = append(errs, errors.New("max redirects must be at least 1"))
	}
	if c.Validation.MinBytes < 0 {
		errs = append(errs, errors.New("minimum image size cannot be negative"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Save writes the configuration as YAML. API keys are never written.
func (c *Config) Save(path string) error {
	clean := *c
	clean.Providers.Settings = make(map[string]ProviderSettings, len(c.Providers.Settings))
	for name, s := range c.Providers.Settings {
		s.APIKey = ""
		clean.Providers.Settings[name] = s
	}

	data, err := yaml.Marshal(&clean)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags applies flags that were explicitly set on the command line
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["catalog"].(string); ok && v != "" {
		c.Catalog.File = v
	}
	if v, ok := flags["public-dir"].(string); ok && v != "" {
		c.Catalog.PublicDir = v
	}
	if v, ok := flags["overrides"].(string); ok && v != "" {
		c.Catalog.Overrides = v
	}
	if v, ok := flags["include"].([]string); ok && len(v) > 0 {
		c.Catalog.Include = v
	}
	if v, ok := flags["providers"].([]string); ok && len(v) > 0 {
		c.Providers.Chain = v
	}
	if v, ok := flags["delay"].(time.Duration); ok {
		c.Pacing.Delay = v
	}
	if v, ok := flags["bulk"].(bool); ok {
		c.Pacing.Bulk = v
	}
	if v, ok := flags["concurrency"].(int); ok && v > 0 {
		c.Pacing.Concurrency = v
	}
	if v, ok := flags["max-attempts"].(int); ok && v > 0 {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["report"].(string); ok && v != "" {
		c.Output.ReportFile = v
	}
	if v, ok := flags["only-missing"].(bool); ok {
		c.Output.OnlyMissing = v
	}
	if v, ok := flags["resume"].(bool); ok {
		c.Output.Resume = v
	}
	if v, ok := flags["publish"].(string); ok && v != "" {
		c.Output.PublishURL = v
	}
	if v, ok := flags["sidecars"].(bool); ok {
		c.Output.Sidecars = v
	}
	if v, ok := flags["notify"].(bool); ok {
		c.Output.Notify = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
	if v, ok := flags["no-color"].(bool); ok {
		c.Logging.NoColor = v
	}
}

// Load loads configuration from all sources with proper precedence:
// flags > environment > .env files > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".imgscraper.env"))
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// SplitList splits a comma separated list, dropping blanks
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
