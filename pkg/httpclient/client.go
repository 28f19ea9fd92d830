// Package httpclient is the outbound HTTP layer shared by providers and the download engine.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	errs "imgscraper/pkg/errors"
	"imgscraper/pkg/logger"
)

// BrowserHeaders are sent by default so providers that reject bots answer normally
var BrowserHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Cache-Control":   "no-cache",
	"Pragma":          "no-cache",
}

// Options configures a Client
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// FollowRedirects lets net/http chase 30x responses; when false they are returned as-is
	FollowRedirects bool
	Transport       http.RoundTripper
}

// Client wraps http.Client with default headers, logging and error classification
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	logger     logger.Logger
}

// New creates a client
func New(opts Options, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	hc := &http.Client{Timeout: opts.Timeout, Transport: opts.Transport}
	if !opts.FollowRedirects {
		hc.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	headers := make(map[string]string, len(BrowserHeaders)+1)
	for k, v := range BrowserHeaders {
		headers[k] = v
	}
	if opts.UserAgent != "" {
		headers["User-Agent"] = opts.UserAgent
	}

	return &Client{httpClient: hc, headers: headers, logger: log}
}

// SetHeader sets a default header for every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Get issues a GET request. extra headers override the defaults.
// Transport failures come back as typed errors; HTTP statuses are left to the caller.
func (c *Client) Get(ctx context.Context, rawURL string, extra map[string]string) (*http.Response, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInvalidURL, "failed to create request", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":         req.URL.String(),
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil, Classify(ctx, err)
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, time.Since(start))
	return resp, nil
}

// ParseURL accepts absolute http(s) URLs only
func ParseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInvalidURL, fmt.Sprintf("malformed url %q", rawURL), err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errs.New(errs.ErrorTypeInvalidURL, fmt.Sprintf("not an absolute http url: %q", rawURL))
	}
	return u, nil
}

// Classify maps a transport error onto the error taxonomy.
// Cancellation is passed through untouched so callers stop instead of retrying.
func Classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTemporary && !dnsErr.IsTimeout {
		return errs.Wrap(errs.ErrorTypeFatal, "host lookup failed", err)
	}
	return errs.Wrap(errs.ErrorTypeNetwork, "request failed", err)
}

// StatusError converts a non-2xx response into a typed error and drains the body
func StatusError(resp *http.Response) error {
	Drain(resp)
	return errs.FromStatusCode(resp.StatusCode, fmt.Sprintf("%s returned %s", resp.Request.URL.Host, resp.Status))
}

// Drain discards and closes a response body so the connection can be reused
func Drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()
}

// IsRedirect reports whether resp is a 30x carrying a Location header
func IsRedirect(resp *http.Response) bool {
	return resp.StatusCode >= 300 && resp.StatusCode < 400 && resp.Header.Get("Location") != ""
}
