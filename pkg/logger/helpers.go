package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs an outbound provider or download request
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 500:
		l.WarnWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.DebugWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogAcquisition logs the terminal state of one catalog entity
func LogAcquisition(l Logger, entityID, status, provider string, attempts int, reason string) {
	fields := map[string]interface{}{
		"entity":   entityID,
		"status":   status,
		"attempts": attempts,
	}
	if provider != "" {
		fields["provider"] = provider
	}
	if reason != "" {
		fields["reason"] = reason
	}

	switch status {
	case "failed":
		l.WarnWithFields("Acquisition failed", fields)
	case "skipped":
		l.DebugWithFields("Acquisition skipped", fields)
	default:
		l.InfoWithFields("Acquisition completed", fields)
	}
}

// LogRateLimit logs a provider throttling event
func LogRateLimit(l Logger, provider string, attempt int, wait time.Duration) {
	l.WithFields(map[string]interface{}{
		"provider": provider,
		"attempt":  attempt,
		"wait_ms":  wait.Milliseconds(),
		"action":   "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogRunProgress logs how far through the catalog a run is
func LogRunProgress(l Logger, done, total int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(done) / float64(total) * 100
	}

	l.WithFields(map[string]interface{}{
		"done":       done,
		"total":      total,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Debug("Run progress")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
