package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "imgscraper/pkg/errors"
	"imgscraper/pkg/httpclient"
	"imgscraper/pkg/logger"
)

const (
	pexelsSearchPage   = "https://www.pexels.com/search/"
	unsplashSearchPage = "https://unsplash.com/s/photos/"
	picsumBase         = "https://picsum.photos"
)

var (
	pexelsPhotoRe   = regexp.MustCompile(`(?i)https://images\.pexels\.com/photos/\d+/[^"'\s,]+\.(?:jpeg|jpg|png)(?:\?[^"'\s,]*)?`)
	initialStateRe  = regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\})\s*;\s*$`)
	pageAcceptHTML  = map[string]string{"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"}
	imageAttributes = []string{"src", "data-src", "srcset", "data-big-src"}
)

func init() {
	Register("pexels", NewPexels)
	Register("unsplash-page", NewUnsplashPage)
	Register("picsum", NewPicsum)
}

// Pexels scrapes the public search results page
type Pexels struct {
	client *httpclient.Client
	base   string
	logger logger.Logger
}

// NewPexels creates the Pexels page scraper
func NewPexels(s Settings) (Provider, error) {
	return &Pexels{
		client: s.client("pexels", s.UserAgent, true),
		base:   s.baseURL(pexelsSearchPage),
		logger: s.logger("pexels"),
	}, nil
}

func (p *Pexels) Name() string { return "pexels" }

// Search returns the first photo on the results page at StandardWidth
func (p *Pexels) Search(ctx context.Context, q Query) (Result, error) {
	searchURL := strings.TrimSuffix(p.base, "/") + "/" + url.PathEscape(q.Keyword) + "/"
	body, ok, err := fetchBody(ctx, p.client, p.logger, searchURL, pageAcceptHTML)
	if err != nil || !ok {
		return NotFound(), err
	}

	candidate := firstPexelsImage(body)
	if candidate == "" {
		p.logger.DebugWithFields("no photo on results page", map[string]interface{}{"keyword": q.Keyword})
		return NotFound(), nil
	}
	return Found(normalizePexels(candidate)), nil
}

// firstPexelsImage looks at image attributes in document order first and
// falls back to a raw scan for URLs embedded in scripts
func firstPexelsImage(body []byte) string {
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		var found string
		doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
			for _, attr := range imageAttributes {
				if v, ok := img.Attr(attr); ok {
					if m := pexelsPhotoRe.FindString(v); m != "" {
						found = m
						return false
					}
				}
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return pexelsPhotoRe.FindString(string(body))
}

func normalizePexels(raw string) string {
	u, err := url.Parse(strings.ReplaceAll(raw, "&amp;", "&"))
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get("auto") == "" {
		q.Set("auto", "compress")
		q.Set("cs", "tinysrgb")
	}
	q.Set("w", fmt.Sprint(StandardWidth))
	u.RawQuery = q.Encode()
	return u.String()
}

// UnsplashPage scrapes the state blob embedded in the unsplash.com search page
type UnsplashPage struct {
	client *httpclient.Client
	base   string
	logger logger.Logger
}

// NewUnsplashPage creates the Unsplash page scraper. Redirects are not followed:
// a redirected search page means there is nothing to scrape.
func NewUnsplashPage(s Settings) (Provider, error) {
	return &UnsplashPage{
		client: s.client("unsplash-page", s.UserAgent, false),
		base:   s.baseURL(unsplashSearchPage),
		logger: s.logger("unsplash-page"),
	}, nil
}

func (u *UnsplashPage) Name() string { return "unsplash-page" }

// Search returns the first photo of the embedded search state
func (u *UnsplashPage) Search(ctx context.Context, q Query) (Result, error) {
	searchURL := strings.TrimSuffix(u.base, "/") + "/" + url.PathEscape(q.Keyword)
	body, ok, err := fetchBody(ctx, u.client, u.logger, searchURL, pageAcceptHTML)
	if err != nil || !ok {
		return NotFound(), err
	}

	state := initialState(body)
	if state == nil {
		return NotFound(), nil
	}
	var parsed struct {
		Entities struct {
			Photos json.RawMessage `json:"photos"`
		} `json:"entities"`
	}
	if err := json.Unmarshal(state, &parsed); err != nil {
		dropped(u.logger, errs.Wrap(errs.ErrorTypeParsing, "undecodable page state", err))
		return NotFound(), nil
	}

	var photo unsplashPhoto
	if !firstObjectValue(parsed.Entities.Photos, &photo) || photo.URLs.Regular == "" {
		u.logger.DebugWithFields("no photo in page state", map[string]interface{}{"keyword": q.Keyword})
		return NotFound(), nil
	}
	return Found(SetWidth(photo.URLs.Regular, StandardWidth)), nil
}

// initialState extracts the JSON assigned to window.__INITIAL_STATE__
func initialState(body []byte) []byte {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var state []byte
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(text, "__INITIAL_STATE__") {
			return true
		}
		if m := initialStateRe.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
			state = []byte(m[1])
			return false
		}
		return true
	})
	return state
}

// firstObjectValue decodes the first member of a JSON object in document order
func firstObjectValue(raw json.RawMessage, target interface{}) bool {
	if len(raw) == 0 {
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return false
	}
	if !dec.More() {
		return false
	}
	if _, err := dec.Token(); err != nil {
		return false
	}
	return dec.Decode(target) == nil
}

// Picsum resolves a seeded placeholder URL to the concrete image it redirects to
type Picsum struct {
	client *httpclient.Client
	base   string
}

// NewPicsum creates the redirect-resolution provider
func NewPicsum(s Settings) (Provider, error) {
	return &Picsum{
		client: s.client("picsum", s.UserAgent, false),
		base:   s.baseURL(picsumBase),
	}, nil
}

func (p *Picsum) Name() string { return "picsum" }

// Search always has an answer for a seed; the keyword becomes the seed so the
// same entity keeps the same picture across runs.
func (p *Picsum) Search(ctx context.Context, q Query) (Result, error) {
	width := q.Constraints.MinWidth
	if width <= 0 {
		width = StandardWidth
	}
	seed := url.PathEscape(strings.ToLower(strings.Join(strings.Fields(q.Keyword), "-")))
	seedURL := fmt.Sprintf("%s/seed/%s/%d/%d", strings.TrimSuffix(p.base, "/"), seed, width, width)

	resp, err := p.client.Get(ctx, seedURL, nil)
	if err != nil {
		return NotFound(), err
	}
	defer httpclient.Drain(resp)

	switch {
	case httpclient.IsRedirect(resp):
		loc, err := resp.Request.URL.Parse(resp.Header.Get("Location"))
		if err != nil {
			return NotFound(), nil
		}
		return Found(loc.String()), nil
	case resp.StatusCode == http.StatusOK:
		return Found(seedURL), nil
	case errs.IsRetryableStatusCode(resp.StatusCode):
		return NotFound(), errs.FromStatusCode(resp.StatusCode, "picsum lookup failed")
	default:
		return NotFound(), nil
	}
}
