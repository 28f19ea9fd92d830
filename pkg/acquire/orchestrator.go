package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imgscraper/internal/downloader"
	"imgscraper/pkg/catalog"
	"imgscraper/pkg/checkpoint"
	errs "imgscraper/pkg/errors"
	"imgscraper/pkg/fetch"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/metadata"
	"imgscraper/pkg/provider"
	"imgscraper/pkg/ratelimit"
	"imgscraper/pkg/report"
	"imgscraper/pkg/retry"
	"imgscraper/pkg/storage"
	"imgscraper/pkg/validate"
)

// ManualProvider is the provider name recorded for entities copied from a local file
const ManualProvider = "manual"

// Downloader is the part of the download engine the orchestrator needs
type Downloader interface {
	FetchChecked(ctx context.Context, rawURL, destinationPath string, check fetch.Check) (fetch.Outcome, error)
}

// Options configures an Orchestrator
type Options struct {
	// Providers is the fallback chain, queried in order
	Providers  []provider.Provider
	Downloader Downloader
	Validator  *validate.Validator

	// MaxAttempts bounds each search and each download, first call included
	MaxAttempts int
	Backoff     retry.BackoffStrategy

	// Delay is the politeness pause between network operations in sequential mode
	Delay time.Duration
	// Bulk processes entities concurrently on Concurrency workers sharing a
	// RequestsPerMinute budget instead of the politeness delay
	Bulk              bool
	Concurrency       int
	RequestsPerMinute int

	Constraints provider.Constraints

	// OnlyMissing skips entities whose destination already holds a valid image
	OnlyMissing bool
	// Checkpoint records completed entities; with Resume they are skipped
	Checkpoint *checkpoint.Manager
	Resume     bool
	// CatalogName labels the checkpoint
	CatalogName string
	// Sidecars writes a provenance file next to each acquired image
	Sidecars bool

	// OnProgress is called once per finished entity from a single goroutine
	OnProgress func(entry report.Entry, done, total int)

	Logger logger.Logger
}

// Orchestrator walks a catalog and acquires one image per entity
type Orchestrator struct {
	opts    Options
	limiter ratelimit.Limiter
	logger  logger.Logger
}

// New validates options and creates an orchestrator
func New(opts Options) (*Orchestrator, error) {
	if len(opts.Providers) == 0 {
		return nil, errors.New("at least one provider is required")
	}
	if opts.Downloader == nil {
		return nil, errors.New("a downloader is required")
	}
	if opts.Validator == nil {
		opts.Validator = validate.New(validate.DefaultMinBytes)
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.NewErrorTypeBackoff(2*time.Second, 1500*time.Millisecond, 30*time.Second)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Constraints == (provider.Constraints{}) {
		opts.Constraints = provider.DefaultConstraints()
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}

	var limiter ratelimit.Limiter
	switch {
	case opts.Bulk && opts.RequestsPerMinute > 0:
		limiter = ratelimit.NewTokenBucket(opts.RequestsPerMinute, time.Minute)
	case opts.Bulk:
		limiter = ratelimit.Unlimited{}
	default:
		limiter = ratelimit.NewPacer(opts.Delay)
	}

	return &Orchestrator{
		opts:    opts,
		limiter: limiter,
		logger:  opts.Logger.WithField("component", "orchestrator"),
	}, nil
}

// Run processes every entity and returns the finished report. A failing entity
// never stops the run; the returned error is non-nil only when ctx was
// cancelled, in which case the report covers the entities finished so far.
func (o *Orchestrator) Run(ctx context.Context, entities []catalog.Entity) (*report.RunReport, error) {
	rep := report.New()
	o.logger.InfoWithFields("Starting acquisition run", map[string]interface{}{
		"run_id":    rep.RunID,
		"entities":  len(entities),
		"providers": o.providerNames(),
		"bulk":      o.opts.Bulk,
	})

	cp := o.openCheckpoint(rep.RunID, len(entities))

	done := 0
	record := func(e catalog.Entity, entry report.Entry) {
		if entry.Status == report.StatusSuccess {
			entry.Width, entry.Height, _ = metadata.Dimensions(e.DestinationPath)
		}
		if err := rep.Add(entry); err != nil {
			o.logger.WithError(err).Warn("Dropping duplicate report entry")
			return
		}
		done++
		logger.LogAcquisition(o.logger, entry.EntityID, string(entry.Status), entry.Provider, entry.Attempts, entry.Reason)
		logger.LogRunProgress(o.logger, done, len(entities))
		if o.opts.Sidecars && entry.Status == report.StatusSuccess {
			if err := metadata.FromEntry(entry, rep.RunID, e.DestinationPath).Save(e.DestinationPath); err != nil {
				o.logger.WithError(err).WithField("entity", e.ID).Warn("Failed to write provenance sidecar")
			}
		}
		if cp != nil && entry.Status == report.StatusSuccess {
			if err := o.opts.Checkpoint.RecordCompleted(cp, e.ID, e.DestinationPath); err != nil {
				o.logger.WithError(err).Warn("Failed to update checkpoint")
			}
		}
		if o.opts.OnProgress != nil {
			o.opts.OnProgress(entry, done, len(entities))
		}
	}

	process := func(ctx context.Context, e catalog.Entity) report.Entry {
		return o.processEntity(ctx, e, cp)
	}

	var runErr error
	if o.opts.Bulk {
		pool := downloader.NewWorkerPool(o.opts.Concurrency, nil, o.logger)
		runErr = pool.Run(ctx, entities, process, func(r downloader.Result) {
			record(r.Job.Entity, r.Entry)
		})
	} else {
		for _, e := range entities {
			if err := ctx.Err(); err != nil {
				runErr = err
				break
			}
			record(e, process(ctx, e))
		}
	}

	rep.Finish()
	o.closeCheckpoint(cp, rep, runErr)

	counts := rep.Summary()
	o.logger.InfoWithFields("Acquisition run finished", map[string]interface{}{
		"run_id":   rep.RunID,
		"success":  counts.Success,
		"skipped":  counts.Skipped,
		"failed":   counts.Failed,
		"duration": rep.Duration().String(),
	})

	if runErr != nil {
		return rep, fmt.Errorf("run interrupted: %w", runErr)
	}
	return rep, nil
}

// processEntity drives one entity to a terminal state
func (o *Orchestrator) processEntity(ctx context.Context, e catalog.Entity, cp *checkpoint.Checkpoint) report.Entry {
	log := o.logger.WithField("entity", e.ID)

	if e.DestinationPath == "" {
		err := errs.New(errs.ErrorTypeFatal, "entity has no destination path")
		log.WithError(err).Warn("Skipping malformed catalog entry")
		return report.Entry{EntityID: e.ID, Status: report.StatusFailed, Reason: err.Error()}
	}

	if cp != nil && o.opts.Resume && cp.IsCompleted(e.ID) && storage.Exists(e.DestinationPath) {
		return report.Entry{EntityID: e.ID, Status: report.StatusSkipped, Reason: "completed by an earlier run"}
	}

	if o.opts.OnlyMissing && storage.Exists(e.DestinationPath) {
		verdict := o.opts.Validator.Validate(e.DestinationPath, "")
		if verdict.IsValid() {
			return report.Entry{EntityID: e.ID, Status: report.StatusSkipped, Reason: "destination already valid"}
		}
		log.InfoWithFields("Replacing suspect image", map[string]interface{}{"reason": verdict.Reason})
	}

	if e.IsManual() {
		return o.copyManual(e, log)
	}
	return o.acquire(ctx, e, log)
}

func (o *Orchestrator) copyManual(e catalog.Entity, log logger.Logger) report.Entry {
	entry := report.Entry{EntityID: e.ID, Provider: ManualProvider, SourceURL: "file://" + e.ManualSourcePath}

	outcome, err := fetch.CopyLocal(e.ManualSourcePath, e.DestinationPath)
	if err != nil {
		log.WithError(err).Warn("Manual copy failed")
		entry.Status = report.StatusFailed
		entry.Reason = err.Error()
		return entry
	}
	entry.Status = report.StatusSuccess
	entry.Bytes = outcome.BytesWritten
	return entry
}

// acquire walks the provider chain. Within a provider every keyword is tried in
// order; a suspect download is re-attempted once, then the next provider is asked.
func (o *Orchestrator) acquire(ctx context.Context, e catalog.Entity, log logger.Logger) report.Entry {
	entry := report.Entry{EntityID: e.ID}
	lastReason := "no provider returned an image"

providers:
	for _, p := range o.opts.Providers {
		for _, keyword := range e.Keywords(p.Name()) {
			if ctx.Err() != nil {
				break providers
			}

			res := o.attempt(ctx, p, keyword, e.DestinationPath, &entry.Attempts)
			suspect := errs.IsType(res.err, errs.ErrorTypeValidationSuspect)
			if suspect {
				log.InfoWithFields("Re-attempting provider after suspect download", map[string]interface{}{
					"provider": p.Name(),
					"keyword":  keyword,
					"reason":   res.err.Error(),
				})
				lastReason = fmt.Sprintf("%s: %v", p.Name(), res.err)
				if err := retry.Wait(ctx, o.delayFor(res.err, 1)); err != nil {
					break providers
				}
				res = o.attempt(ctx, p, keyword, e.DestinationPath, &entry.Attempts)
			}

			if res.err == nil {
				if !res.found {
					if suspect {
						continue providers
					}
					continue
				}
				entry.Status = report.StatusSuccess
				entry.Provider = p.Name()
				entry.Keyword = keyword
				entry.SourceURL = res.url
				entry.Bytes = res.bytes
				return entry
			}

			lastReason = fmt.Sprintf("%s: %v", p.Name(), res.err)
			log.DebugWithFields("Provider attempt failed", map[string]interface{}{
				"provider": p.Name(),
				"keyword":  keyword,
				"error":    res.err.Error(),
			})
			// a provider that keeps failing or serving bad content is not asked again
			if suspect || res.searchFailed {
				continue providers
			}
		}
	}

	if err := ctx.Err(); err != nil {
		lastReason = "cancelled: " + err.Error()
	}
	entry.Status = report.StatusFailed
	entry.Reason = lastReason
	return entry
}

type attemptResult struct {
	found        bool
	url          string
	bytes        int64
	err          error
	searchFailed bool
}

// attempt runs one search and, on Found, one download, each under the retry policy
func (o *Orchestrator) attempt(ctx context.Context, p provider.Provider, keyword, dst string, attempts *int) attemptResult {
	query := provider.Query{Keyword: keyword, Constraints: o.opts.Constraints}

	result, err := retry.DoWithResult(func() (provider.Result, error) {
		if err := o.limiter.Wait(ctx); err != nil {
			return provider.NotFound(), err
		}
		*attempts++
		return p.Search(ctx, query)
	}, o.retryConfig(ctx, p.Name()))
	if err != nil {
		return attemptResult{err: err, searchFailed: true}
	}
	if !result.IsFound() {
		return attemptResult{}
	}

	outcome, err := retry.DoWithResult(func() (fetch.Outcome, error) {
		if err := o.limiter.Wait(ctx); err != nil {
			return fetch.Outcome{}, err
		}
		return o.opts.Downloader.FetchChecked(ctx, result.URL(), dst, o.opts.Validator.Check)
	}, o.retryConfig(ctx, p.Name()))
	if err != nil {
		return attemptResult{url: result.URL(), err: err}
	}
	return attemptResult{found: true, url: result.URL(), bytes: outcome.BytesWritten}
}

func (o *Orchestrator) retryConfig(ctx context.Context, providerName string) *retry.Config {
	return &retry.Config{
		MaxAttempts: o.opts.MaxAttempts,
		Backoff:     o.opts.Backoff,
		// suspect downloads get their single re-attempt from the orchestrator
		RetryIf: func(err error) bool {
			return retry.DefaultRetryIf(err) && !errs.IsType(err, errs.ErrorTypeValidationSuspect)
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			if errs.IsRateLimit(err) {
				logger.LogRateLimit(o.logger, providerName, attempt, delay)
			}
		},
		Context: ctx,
		Logger:  o.logger,
	}
}

func (o *Orchestrator) delayFor(err error, attempt int) time.Duration {
	if aware, ok := o.opts.Backoff.(interface {
		DelayFor(err error, attempt int) time.Duration
	}); ok {
		return aware.DelayFor(err, attempt)
	}
	return o.opts.Backoff.NextDelay(attempt)
}

func (o *Orchestrator) openCheckpoint(runID string, total int) *checkpoint.Checkpoint {
	mgr := o.opts.Checkpoint
	if mgr == nil {
		return nil
	}
	if o.opts.Resume {
		cp, err := mgr.Load()
		if err != nil {
			o.logger.WithError(err).Warn("Ignoring unreadable checkpoint")
		} else if cp != nil {
			return cp
		}
	}
	cp, err := mgr.Create(o.opts.CatalogName, runID, total)
	if err != nil {
		o.logger.WithError(err).Warn("Running without checkpoint")
		return nil
	}
	return cp
}

// closeCheckpoint drops the checkpoint once a run has nothing left to resume
func (o *Orchestrator) closeCheckpoint(cp *checkpoint.Checkpoint, rep *report.RunReport, runErr error) {
	if cp == nil || runErr != nil || rep.Summary().Failed > 0 {
		return
	}
	if err := o.opts.Checkpoint.Delete(); err != nil {
		o.logger.WithError(err).Warn("Failed to remove checkpoint")
	}
}

func (o *Orchestrator) providerNames() []string {
	names := make([]string, len(o.opts.Providers))
	for i, p := range o.opts.Providers {
		names[i] = p.Name()
	}
	return names
}
