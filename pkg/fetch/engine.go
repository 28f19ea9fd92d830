// Package fetch downloads a single image URL to a destination path.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	errs "imgscraper/pkg/errors"
	"imgscraper/pkg/httpclient"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/storage"
)

// DefaultMaxRedirects bounds redirect chains
const DefaultMaxRedirects = 5

// imageAccept is sent instead of the page Accept header when downloading
const imageAccept = "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8"

// Options configures an Engine
type Options struct {
	MaxRedirects int
	Timeout      time.Duration
	UserAgent    string
	Transport    http.RoundTripper
}

// Outcome describes one download attempt
type Outcome struct {
	BytesWritten  int64
	ContentType   string
	Succeeded     bool
	FailureReason errs.ErrorType
	FinalURL      string
	Redirects     int
}

// Check inspects the downloaded temp file before it replaces the destination.
// It receives the declared content type of the final response.
type Check func(tempPath, contentType string) error

// Engine follows redirects by hand and writes through storage.WriteAtomic
type Engine struct {
	client       *httpclient.Client
	maxRedirects int
	logger       logger.Logger
}

// NewEngine creates a download engine
func NewEngine(opts Options, log logger.Logger) *Engine {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	client := httpclient.New(httpclient.Options{
		Timeout:   opts.Timeout,
		UserAgent: opts.UserAgent,
		Transport: opts.Transport,
	}, log)
	client.SetHeader("Accept", imageAccept)

	return &Engine{
		client:       client,
		maxRedirects: opts.MaxRedirects,
		logger:       log.WithField("component", "fetch"),
	}
}

// Fetch downloads rawURL into destinationPath. The destination is either
// replaced by a complete file or left untouched.
func (e *Engine) Fetch(ctx context.Context, rawURL, destinationPath string) (Outcome, error) {
	return e.FetchChecked(ctx, rawURL, destinationPath, nil)
}

// FetchChecked is Fetch with a check run against the temp file before commit
func (e *Engine) FetchChecked(ctx context.Context, rawURL, destinationPath string, check Check) (Outcome, error) {
	outcome := Outcome{FinalURL: rawURL}

	resp, err := e.follow(ctx, rawURL, &outcome)
	if err != nil {
		return e.fail(outcome, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return e.fail(outcome, httpclient.StatusError(resp))
	}

	outcome.ContentType = resp.Header.Get("Content-Type")
	var commitCheck storage.CheckFunc
	if check != nil {
		contentType := outcome.ContentType
		commitCheck = func(tempPath string) error { return check(tempPath, contentType) }
	}

	n, err := storage.WriteAtomic(destinationPath, resp.Body, commitCheck)
	outcome.BytesWritten = n
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return e.fail(outcome, err)
	}

	outcome.Succeeded = true
	e.logger.DebugWithFields("download completed", map[string]interface{}{
		"url":          outcome.FinalURL,
		"bytes":        n,
		"content_type": outcome.ContentType,
		"redirects":    outcome.Redirects,
	})
	return outcome, nil
}

// follow issues requests until a non-redirect response arrives or the hop budget runs out
func (e *Engine) follow(ctx context.Context, rawURL string, outcome *Outcome) (*http.Response, error) {
	current, err := httpclient.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	for {
		resp, err := e.client.Get(ctx, current.String(), nil)
		if err != nil {
			return nil, err
		}
		if !httpclient.IsRedirect(resp) {
			return resp, nil
		}
		httpclient.Drain(resp)

		if outcome.Redirects >= e.maxRedirects {
			return nil, errs.New(errs.ErrorTypeRedirectLoop,
				fmt.Sprintf("more than %d redirects starting at %s", e.maxRedirects, rawURL))
		}

		location := resp.Header.Get("Location")
		next, err := current.Parse(strings.TrimSpace(location))
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeInvalidURL, fmt.Sprintf("bad redirect location %q", location), err)
		}
		outcome.Redirects++
		outcome.FinalURL = next.String()
		current = next
	}
}

func (e *Engine) fail(outcome Outcome, err error) (Outcome, error) {
	outcome.Succeeded = false
	outcome.FailureReason = errs.TypeOf(err)
	e.logger.DebugWithFields("download failed", map[string]interface{}{
		"url":    outcome.FinalURL,
		"reason": string(outcome.FailureReason),
		"error":  err.Error(),
	})
	return outcome, err
}

// CopyLocal copies a manual source image to the destination without touching the network
func CopyLocal(src, dst string) (Outcome, error) {
	n, err := storage.CopyFile(src, dst)
	if err != nil {
		return Outcome{BytesWritten: n, FailureReason: errs.TypeOf(err)}, err
	}
	return Outcome{BytesWritten: n, Succeeded: true, FinalURL: "file://" + src}, nil
}
