package provider

import (
	"context"
	"net/url"
	"strconv"

	"imgscraper/pkg/httpclient"
	"imgscraper/pkg/logger"
)

const (
	commonsAPI   = "https://commons.wikimedia.org/w/api.php"
	wikipediaAPI = "https://en.wikipedia.org/w/api.php"
)

func init() {
	Register("wikimedia", NewWikimedia)
	Register("wikipedia", NewWikipedia)
}

// Wikimedia searches Wikimedia Commons file pages
type Wikimedia struct {
	client   *httpclient.Client
	endpoint string
	logger   logger.Logger
}

// NewWikimedia creates the Commons search provider
func NewWikimedia(s Settings) (Provider, error) {
	return &Wikimedia{
		client:   s.client("wikimedia", s.APIUserAgent, true),
		endpoint: s.baseURL(commonsAPI),
		logger:   s.logger("wikimedia"),
	}, nil
}

func (w *Wikimedia) Name() string { return "wikimedia" }

type commonsResponse struct {
	Query struct {
		Pages map[string]struct {
			Index     int `json:"index"`
			ImageInfo []struct {
				ThumbURL string `json:"thumburl"`
				URL      string `json:"url"`
			} `json:"imageinfo"`
		} `json:"pages"`
	} `json:"query"`
}

// Search returns the best ranked bitmap for the keyword, scaled to the requested width
func (w *Wikimedia) Search(ctx context.Context, q Query) (Result, error) {
	width := q.Constraints.MinWidth
	if width <= 0 {
		width = StandardWidth
	}
	params := url.Values{
		"action":       {"query"},
		"generator":    {"search"},
		"gsrsearch":    {"filetype:bitmap|drawing " + q.Keyword},
		"gsrnamespace": {"6"},
		"gsrlimit":     {"1"},
		"prop":         {"imageinfo"},
		"iiprop":       {"url"},
		"iiurlwidth":   {strconv.Itoa(width)},
		"format":       {"json"},
	}

	var resp commonsResponse
	ok, err := fetchJSON(ctx, w.client, w.logger, w.endpoint+"?"+params.Encode(), nil, &resp)
	if err != nil || !ok {
		return NotFound(), err
	}

	best := -1
	var candidate string
	for _, page := range resp.Query.Pages {
		if len(page.ImageInfo) == 0 {
			continue
		}
		info := page.ImageInfo[0]
		u := info.ThumbURL
		if u == "" {
			u = info.URL
		}
		if u == "" {
			continue
		}
		if best == -1 || page.Index < best {
			best, candidate = page.Index, u
		}
	}
	if candidate == "" {
		w.logger.DebugWithFields("no commons match", map[string]interface{}{"keyword": q.Keyword})
		return NotFound(), nil
	}
	return Found(candidate), nil
}

// Wikipedia resolves an article title to its lead image
type Wikipedia struct {
	client   *httpclient.Client
	endpoint string
	logger   logger.Logger
}

// NewWikipedia creates the article lead-image provider
func NewWikipedia(s Settings) (Provider, error) {
	return &Wikipedia{
		client:   s.client("wikipedia", s.APIUserAgent, true),
		endpoint: s.baseURL(wikipediaAPI),
		logger:   s.logger("wikipedia"),
	}, nil
}

func (w *Wikipedia) Name() string { return "wikipedia" }

type pageImagesResponse struct {
	Query struct {
		Pages map[string]struct {
			Missing   *string `json:"missing"`
			Thumbnail *struct {
				Source string `json:"source"`
			} `json:"thumbnail"`
		} `json:"pages"`
	} `json:"query"`
}

// Search treats the keyword as an article title; missing pages and pages without an image are NotFound
func (w *Wikipedia) Search(ctx context.Context, q Query) (Result, error) {
	params := url.Values{
		"action":      {"query"},
		"titles":      {q.Keyword},
		"prop":        {"pageimages"},
		"format":      {"json"},
		"pithumbsize": {"1000"},
		"redirects":   {"1"},
	}

	var resp pageImagesResponse
	ok, err := fetchJSON(ctx, w.client, w.logger, w.endpoint+"?"+params.Encode(), nil, &resp)
	if err != nil || !ok {
		return NotFound(), err
	}

	for id, page := range resp.Query.Pages {
		if id == "-1" || page.Missing != nil || page.Thumbnail == nil {
			continue
		}
		return Found(page.Thumbnail.Source), nil
	}
	w.logger.DebugWithFields("article has no lead image", map[string]interface{}{"title": q.Keyword})
	return NotFound(), nil
}
