package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"imgscraper/pkg/auth"
	"imgscraper/pkg/catalog"
	"imgscraper/pkg/config"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/provider"
	"imgscraper/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage imgscraper configuration files.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (IMGSCRAPER_*)
  - .env files (./.env and ~/.imgscraper.env)
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an annotated configuration file with every available option.

The file is written to the --config path, or to ~/.config/imgscraper/config.yaml.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the configuration after merging all sources. API keys are masked.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the effective configuration.

Besides value ranges this checks that the catalog and override table load,
that the public directory is writable and that every provider in the chain
can be built, which catches missing API keys.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# imgscraper configuration
#
# Every option can also be set with an IMGSCRAPER_ environment variable,
# e.g. IMGSCRAPER_PUBLIC_DIR, IMGSCRAPER_PROVIDERS, IMGSCRAPER_PIXABAY_KEY.

catalog:
  # countries document listing countries and their cities
  file: src/data/countries.json
  # destination image paths in the catalog are relative to this directory
  public_dir: public
  # optional YAML table of keyword overrides and manual sources,
  # e.g. examples/overrides.yaml
  overrides: ""
  # restrict runs to ids matching these globs, e.g. ["italy", "italy/*"]
  include: []

providers:
  # fallback order; available: wikimedia, wikipedia, pixabay, unsplash, unsplash-page, pexels, picsum
  chain: [wikimedia, wikipedia, unsplash, pexels]
  # pixabay and unsplash keys are better kept with 'imgscraper auth set'
  settings: {}

retry:
  max_attempts: 3
  # multiplied by the attempt number after HTTP 429/403
  rate_limit_delay: 2s
  transient_delay: 1500ms
  max_delay: 30s
  # linear (rate limits wait rate_limit_delay * attempt, other failures a
  # fixed transient_delay), exponential (both double per attempt) or constant
  strategy: linear

pacing:
  # pause between network operations in sequential mode
  delay: 500ms
  # bulk mode runs several destinations at once under a shared request budget
  bulk: false
  concurrency: 4
  requests_per_minute: 120

download:
  timeout: 30s
  max_redirects: 5

validation:
  # anything smaller is treated as an error page or placeholder
  min_bytes: 5120

output:
  report_file: ""
  only_missing: false
  resume: false
  # mirror the report and new images to a bucket (file://, s3://, gs://)
  publish_url: ""
  # write <image>.json with source URL, provider and dimensions for attribution
  sidecars: false
  notify: false

logging:
  level: info
  file: ""
  console: false
  no_color: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Output, "\nNext steps:")
	fmt.Fprintln(ui.Output, "1. Point catalog.file and catalog.public_dir at your site")
	fmt.Fprintln(ui.Output, "2. Run 'imgscraper config validate'")
	fmt.Fprintln(ui.Output, "3. Run 'imgscraper fetch --only-missing'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		return err
	}
	injectStoredKeys(cfg, logger.NewNopLogger())

	shown := *cfg
	shown.Providers.Settings = make(map[string]config.ProviderSettings, len(cfg.Providers.Settings))
	for name, ps := range cfg.Providers.Settings {
		if ps.APIKey != "" {
			ps.APIKey = auth.Sanitize(&auth.Credential{APIKey: ps.APIKey}).APIKey
		}
		shown.Providers.Settings[name] = ps
	}

	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	ui.PrintHighlight("Current configuration")
	fmt.Fprint(ui.Output, string(data))

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(none, defaults only)"
	}
	ui.PrintInfo("\nConfiguration file", source)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		return err
	}
	injectStoredKeys(cfg, logger.NewNopLogger())

	var problems []error
	var warnings []string

	if _, err := provider.NewChain(cfg.Providers.Chain, func(name string) provider.Settings {
		return provider.Settings{APIKey: cfg.Provider(name).APIKey}
	}); err != nil {
		problems = append(problems, err)
	}

	entities, err := catalog.Load(cfg.Catalog.File, cfg.Catalog.Overrides, func(p string) string { return p })
	if err != nil {
		problems = append(problems, err)
	} else if _, err := catalog.Filter(entities, cfg.Catalog.Include); err != nil {
		problems = append(problems, err)
	}

	if err := checkWritable(cfg.Catalog.PublicDir); err != nil {
		problems = append(problems, fmt.Errorf("public directory: %w", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Errorf("cannot create log directory: %w", err))
		}
	}
	if cfg.Pacing.Bulk && cfg.Pacing.RequestsPerMinute == 0 {
		warnings = append(warnings, "bulk mode without requests_per_minute sends requests as fast as the workers can")
	}
	if !cfg.Pacing.Bulk && cfg.Pacing.Delay == 0 {
		warnings = append(warnings, "no politeness delay in sequential mode")
	}

	if err := errors.Join(problems...); err != nil {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Fprintf(ui.Output, "  - %v\n", p)
		}
		return errors.New("configuration is invalid")
	}
	for _, w := range warnings {
		ui.PrintWarning("  - " + w)
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("Catalog", fmt.Sprintf("%s (%d destinations)", cfg.Catalog.File, len(entities)))
	ui.PrintInfo("Providers", fmt.Sprint(cfg.Providers.Chain))
	ui.PrintInfo("Mode", modeDescription(cfg))
	return nil
}

func modeDescription(cfg *config.Config) string {
	if cfg.Pacing.Bulk {
		return fmt.Sprintf("bulk, %d workers, %d requests/minute", cfg.Pacing.Concurrency, cfg.Pacing.RequestsPerMinute)
	}
	return fmt.Sprintf("sequential, %s between requests", cfg.Pacing.Delay)
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".imgscraper-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
