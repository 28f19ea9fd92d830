package acquire

import (
	"fmt"

	"imgscraper/pkg/checkpoint"
	"imgscraper/pkg/config"
	"imgscraper/pkg/fetch"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/provider"
	"imgscraper/pkg/retry"
	"imgscraper/pkg/validate"
)

// OptionsFromConfig assembles the provider chain, download engine and policies
// described by cfg. Checkpointing is only set up when resuming is possible.
func OptionsFromConfig(cfg *config.Config, log logger.Logger) (Options, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	chain, err := provider.NewChain(cfg.Providers.Chain, func(name string) provider.Settings {
		s := cfg.Provider(name)
		return provider.Settings{
			BaseURL:      s.BaseURL,
			APIKey:       s.APIKey,
			UserAgent:    cfg.Providers.UserAgent,
			APIUserAgent: cfg.Providers.APIUserAgent,
			Timeout:      cfg.Download.Timeout,
			Logger:       log,
		}
	})
	if err != nil {
		return Options{}, fmt.Errorf("failed to build provider chain: %w", err)
	}

	backoff, err := retry.NewBackoff(cfg.Retry.Strategy, cfg.Retry.RateLimitDelay, cfg.Retry.TransientDelay, cfg.Retry.MaxDelay)
	if err != nil {
		return Options{}, err
	}

	engine := fetch.NewEngine(fetch.Options{
		MaxRedirects: cfg.Download.MaxRedirects,
		Timeout:      cfg.Download.Timeout,
		UserAgent:    cfg.Providers.UserAgent,
	}, log)

	opts := Options{
		Providers:         chain,
		Downloader:        engine,
		Validator:         validate.New(cfg.Validation.MinBytes),
		MaxAttempts:       cfg.Retry.MaxAttempts,
		Backoff:           backoff,
		Delay:             cfg.Pacing.Delay,
		Bulk:              cfg.Pacing.Bulk,
		Concurrency:       cfg.Pacing.Concurrency,
		RequestsPerMinute: cfg.Pacing.RequestsPerMinute,
		Constraints:       provider.DefaultConstraints(),
		OnlyMissing:       cfg.Output.OnlyMissing,
		Resume:            cfg.Output.Resume,
		Sidecars:          cfg.Output.Sidecars,
		CatalogName:       cfg.Catalog.File,
		Logger:            log,
	}

	mgr, err := checkpoint.NewManager(checkpoint.Key(cfg.Catalog.File, cfg.Catalog.PublicDir))
	if err != nil {
		log.WithError(err).Warn("Checkpointing disabled")
	} else {
		opts.Checkpoint = mgr
	}
	return opts, nil
}
