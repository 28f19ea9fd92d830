package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"imgscraper/pkg/acquire"
	"imgscraper/pkg/auth"
	"imgscraper/pkg/catalog"
	"imgscraper/pkg/config"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/metadata"
	"imgscraper/pkg/publish"
	"imgscraper/pkg/report"
	"imgscraper/pkg/storage"
	"imgscraper/pkg/ui"
)

var (
	catalogFile   string
	publicDir     string
	overridesFile string
	includes      []string
	providerChain []string
	delay         time.Duration
	bulk          bool
	concurrency   int
	maxAttempts   int
	reportFile    string
	onlyMissing   bool
	resume        bool
	publishURL    string
	notify        bool
	sidecars      bool
	verbose       bool
	showAll       bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Acquire images for every destination in the catalog",
	Long: `Acquire one image per country and city of the catalog.

For each destination the providers of the chain are tried in order, and for
each provider the destination's keywords are tried in order, until a download
passes validation. Destinations with a manual source are copied instead.

The run never stops on a single failure. The exit status is non-zero when the
run is interrupted, or when destinations failed and none got an image.`,
	Example: `  # Fetch everything with the default chain
  imgscraper fetch --catalog src/data/countries.json --public-dir public

  # Only fill the gaps, four at a time
  imgscraper fetch --only-missing --bulk --concurrency 4

  # Retry only Spanish cities through Wikipedia first
  imgscraper fetch --include 'spain/*' --providers wikipedia,wikimedia

  # Continue an interrupted run
  imgscraper fetch --resume`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	f := fetchCmd.Flags()
	f.StringVar(&catalogFile, "catalog", "", "countries JSON document")
	f.StringVar(&publicDir, "public-dir", "", "directory destination paths are relative to")
	f.StringVar(&overridesFile, "overrides", "", "YAML keyword and manual source overrides")
	f.StringSliceVar(&includes, "include", nil, "only entity ids matching these globs (e.g. 'italy/*')")
	f.StringSliceVar(&providerChain, "providers", nil, "provider chain in fallback order")
	f.DurationVar(&delay, "delay", 0, "pause before every search and download in sequential mode")
	f.BoolVar(&bulk, "bulk", false, "process several entities at once")
	f.IntVar(&concurrency, "concurrency", 0, "number of workers in bulk mode")
	f.IntVar(&maxAttempts, "max-attempts", 0, "retries per provider request")
	f.StringVarP(&reportFile, "report", "r", "", "write the run report to this file")
	f.BoolVar(&onlyMissing, "only-missing", false, "skip destinations that already have a valid image")
	f.BoolVar(&resume, "resume", false, "skip destinations completed by an interrupted run")
	f.StringVar(&publishURL, "publish", "", "bucket URL to mirror the report and new images to")
	f.BoolVar(&sidecars, "sidecars", false, "write a provenance .json next to each acquired image")
	f.BoolVar(&notify, "notify", false, "send a desktop notification when done")
	f.BoolVarP(&verbose, "verbose", "v", false, "print one line per destination")
	f.BoolVar(&showAll, "all", false, "list every destination in the summary, not only failures")
}

func fetchFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags(cmd)
	set := cmd.Flags().Changed
	if set("catalog") {
		flags["catalog"] = catalogFile
	}
	if set("public-dir") {
		flags["public-dir"] = publicDir
	}
	if set("overrides") {
		flags["overrides"] = overridesFile
	}
	if set("include") {
		flags["include"] = includes
	}
	if set("providers") {
		flags["providers"] = providerChain
	}
	if set("delay") {
		flags["delay"] = delay
	}
	if set("bulk") {
		flags["bulk"] = bulk
	}
	if set("concurrency") {
		flags["concurrency"] = concurrency
	}
	if set("max-attempts") {
		flags["max-attempts"] = maxAttempts
	}
	if set("report") {
		flags["report"] = reportFile
	}
	if set("only-missing") {
		flags["only-missing"] = onlyMissing
	}
	if set("resume") {
		flags["resume"] = resume
	}
	if set("publish") {
		flags["publish"] = publishURL
	}
	if set("sidecars") {
		flags["sidecars"] = sidecars
	}
	if set("notify") {
		flags["notify"] = notify
	}
	return flags
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(fetchFlags(cmd))
	if err != nil {
		return err
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("imgscraper starting")

	injectStoredKeys(cfg, log)

	store, err := storage.NewManager(cfg.Catalog.PublicDir)
	if err != nil {
		return err
	}
	entities, err := catalog.Load(cfg.Catalog.File, cfg.Catalog.Overrides, store.Resolve)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	entities, err = catalog.Filter(entities, cfg.Catalog.Include)
	if err != nil {
		return err
	}
	if len(entities) == 0 {
		ui.PrintWarning("No destinations match the catalog filters")
		return nil
	}
	cleanupTempFiles(entities, cfg.Output.Sidecars || cfg.Output.OnlyMissing, log)

	opts, err := acquire.OptionsFromConfig(cfg, log)
	if err != nil {
		return err
	}
	progress := ui.NewProgress(nil, len(entities), verbose)
	opts.OnProgress = progress.Update

	orch, err := acquire.New(opts)
	if err != nil {
		return err
	}

	ui.PrintBanner()
	ui.PrintInfo("Catalog", fmt.Sprintf("%s (%d destinations)", cfg.Catalog.File, len(entities)))
	ui.PrintInfo("Providers", fmt.Sprint(cfg.Providers.Chain))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, runErr := orch.Run(ctx, entities)
	progress.Complete()
	if rep == nil {
		return runErr
	}

	if err := ui.RenderSummary(ui.Output, rep, showAll); err != nil {
		log.WithError(err).Warn("Failed to render summary")
	}

	if cfg.Output.ReportFile != "" {
		if err := rep.Save(cfg.Output.ReportFile); err != nil {
			ui.PrintError("Failed to save report", err)
		} else {
			ui.PrintInfo("Report", cfg.Output.ReportFile)
		}
	}

	if cfg.Output.PublishURL != "" && !errors.Is(runErr, context.Canceled) {
		publishRun(cfg, store.Root(), rep, entities, log)
	}

	if cfg.Output.Notify {
		if err := ui.NewNotifier().NotifyRun(rep); err != nil {
			log.WithError(err).Debug("Desktop notification failed")
		}
	}

	if runErr != nil {
		return runErr
	}
	// a run where everything was already in place is not a failure
	if c := rep.Summary(); c.Success == 0 && c.Failed > 0 {
		return fmt.Errorf("no image acquired, %d destinations failed", c.Failed)
	}
	ui.PrintSuccess("Done")
	return nil
}

// injectStoredKeys fills in API keys kept by `imgscraper auth` when the
// configuration does not carry one
func injectStoredKeys(cfg *config.Config, log logger.Logger) {
	var manager *auth.Manager
	for _, name := range auth.KeyedProviders {
		if cfg.Provider(name).APIKey != "" {
			continue
		}
		if manager == nil {
			m, err := auth.NewManager()
			if err != nil {
				log.WithError(err).Debug("Credential store unavailable")
				return
			}
			manager = m
		}
		if key := manager.APIKey(name); key != "" {
			cfg.SetProviderKey(name, key)
			log.WithField("provider", name).Debug("Using stored API key")
		}
	}
}

// cleanupTempFiles removes leftovers of downloads that were interrupted
// mid-write and, with sidecars, provenance files whose image is gone
func cleanupTempFiles(entities []catalog.Entity, sidecars bool, log logger.Logger) {
	dirs := make(map[string]bool)
	for _, e := range entities {
		if e.DestinationPath != "" {
			dirs[filepath.Dir(e.DestinationPath)] = true
		}
	}
	for dir := range dirs {
		n, err := storage.CleanupTemp(dir)
		if err != nil {
			log.WithError(err).WithField("dir", dir).Warn("Failed to clean up temp files")
		} else if n > 0 {
			log.WithFields(map[string]interface{}{"dir": dir, "removed": n}).Info("Removed interrupted downloads")
		}

		if !sidecars {
			continue
		}
		n, err = metadata.CleanOrphaned(dir)
		if err != nil {
			log.WithError(err).WithField("dir", dir).Warn("Failed to clean up orphaned sidecars")
		} else if n > 0 {
			log.WithFields(map[string]interface{}{"dir": dir, "removed": n}).Info("Removed orphaned sidecars")
		}
	}
}

func publishRun(cfg *config.Config, root string, rep *report.RunReport, entities []catalog.Entity, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pub, err := publish.Open(ctx, cfg.Output.PublishURL, root, log)
	if err != nil {
		ui.PrintError("Failed to publish", err)
		return
	}
	defer pub.Close()

	if err := pub.PublishReport(ctx, rep); err != nil {
		ui.PrintError("Failed to publish report", err)
	}
	res, err := pub.PublishImages(ctx, rep, entities)
	if err != nil {
		ui.PrintWarning("Some images were not published", err)
	}
	ui.PrintInfo("Published", fmt.Sprintf("%d uploaded, %d unchanged to %s", res.Uploaded, res.Unchanged, cfg.Output.PublishURL))
}
