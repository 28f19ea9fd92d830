// Package logger provides the structured logging interface used across imgscraper.
//
// It wraps zerolog and exposes a small interface with field helpers, a global
// instance for the CLI, a no-op logger and a capturing TestLogger for tests.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("component", "orchestrator")
//	log.InfoWithFields("Run started", map[string]interface{}{
//	    "entities":  len(entities),
//	    "providers": cfg.Providers.Chain,
//	})
//
// Console output is written to stderr. When logging.file is set the output
// switches to JSON lines in that file, optionally mirrored to the console.
package logger
