// Package provider defines the image search contract and its strategies.
//
// A provider turns a keyword into at most one candidate image URL. Absence of a
// result is a normal outcome (NotFound), never an error. Errors are reserved
// for failures a retry may fix: throttling, server errors and network trouble.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"imgscraper/pkg/httpclient"
	"imgscraper/pkg/logger"
)

// StandardWidth is the width requested from providers that can resize
const StandardWidth = 800

// Constraints narrow a search
type Constraints struct {
	MinWidth    int
	Orientation string
}

// DefaultConstraints returns landscape images at least StandardWidth wide
func DefaultConstraints() Constraints {
	return Constraints{MinWidth: StandardWidth, Orientation: "landscape"}
}

// Query is one search request
type Query struct {
	Keyword     string
	Constraints Constraints
}

// Result is either Found with an absolute URL or NotFound
type Result struct {
	url string
}

// Found wraps a candidate URL. Anything that is not an absolute http(s) URL
// collapses to NotFound so a found result is always fetchable.
func Found(rawURL string) Result {
	u, err := httpclient.ParseURL(rawURL)
	if err != nil {
		return NotFound()
	}
	return Result{url: u.String()}
}

// NotFound is the empty result
func NotFound() Result {
	return Result{}
}

// IsFound reports whether the search produced a candidate
func (r Result) IsFound() bool {
	return r.url != ""
}

// URL returns the candidate, empty when not found
func (r Result) URL() string {
	return r.url
}

func (r Result) String() string {
	if !r.IsFound() {
		return "NotFound"
	}
	return "Found(" + r.url + ")"
}

// Provider searches one image source
type Provider interface {
	Name() string
	Search(ctx context.Context, q Query) (Result, error)
}

// Settings configures a provider instance
type Settings struct {
	BaseURL string
	APIKey  string
	// UserAgent is the browser-like agent for scraped pages
	UserAgent string
	// APIUserAgent identifies the tool to APIs that ask for contact details
	APIUserAgent string
	Timeout      time.Duration
	Transport    http.RoundTripper
	Logger       logger.Logger
}

func (s Settings) baseURL(fallback string) string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return fallback
}

func (s Settings) logger(name string) logger.Logger {
	l := s.Logger
	if l == nil {
		l = logger.GetLogger()
	}
	return l.WithField("provider", name)
}

func (s Settings) client(name, userAgent string, followRedirects bool) *httpclient.Client {
	return httpclient.New(httpclient.Options{
		Timeout:         s.Timeout,
		UserAgent:       userAgent,
		FollowRedirects: followRedirects,
		Transport:       s.Transport,
	}, s.logger(name))
}

// Factory builds a provider from settings
type Factory func(Settings) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a provider available by name
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("provider: Register called twice for " + name)
	}
	registry[name] = factory
}

// New instantiates a registered provider
func New(name string, settings Settings) (Provider, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %v)", name, Names())
	}
	return factory(settings)
}

// NewChain instantiates providers in fallback order
func NewChain(names []string, settingsFor func(name string) Settings) ([]Provider, error) {
	chain := make([]Provider, 0, len(names))
	for _, name := range names {
		p, err := New(name, settingsFor(name))
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		chain = append(chain, p)
	}
	return chain, nil
}

// Names lists registered providers alphabetically
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetWidth rewrites or adds the w query parameter used by image CDNs
func SetWidth(rawURL string, width int) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("w", strconv.Itoa(width))
	u.RawQuery = q.Encode()
	return u.String()
}
