package provider

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"imgscraper/pkg/httpclient"
	"imgscraper/pkg/logger"
)

const (
	pixabayAPI        = "https://pixabay.com/api/"
	unsplashSearchAPI = "https://unsplash.com/napi/search/photos"
)

func init() {
	Register("pixabay", NewPixabay)
	Register("unsplash", NewUnsplash)
}

// Pixabay queries the keyed Pixabay search API
type Pixabay struct {
	client   *httpclient.Client
	endpoint string
	key      string
	logger   logger.Logger
}

// NewPixabay creates the Pixabay provider; an API key is mandatory
func NewPixabay(s Settings) (Provider, error) {
	if s.APIKey == "" {
		return nil, errors.New("pixabay requires an API key (imgscraper auth set pixabay)")
	}
	return &Pixabay{
		client:   s.client("pixabay", s.UserAgent, true),
		endpoint: s.baseURL(pixabayAPI),
		key:      s.APIKey,
		logger:   s.logger("pixabay"),
	}, nil
}

func (p *Pixabay) Name() string { return "pixabay" }

type pixabayResponse struct {
	Hits []struct {
		LargeImageURL string `json:"largeImageURL"`
		WebformatURL  string `json:"webformatURL"`
	} `json:"hits"`
}

// Search returns the top hit honouring orientation and minimum width
func (p *Pixabay) Search(ctx context.Context, q Query) (Result, error) {
	orientation := "horizontal"
	switch q.Constraints.Orientation {
	case "portrait", "vertical":
		orientation = "vertical"
	case "any", "all":
		orientation = "all"
	}
	minWidth := q.Constraints.MinWidth
	if minWidth <= 0 {
		minWidth = StandardWidth
	}

	params := url.Values{
		"key":         {p.key},
		"q":           {q.Keyword},
		"image_type":  {"photo"},
		"orientation": {orientation},
		"min_width":   {strconv.Itoa(minWidth)},
		"per_page":    {"3"},
		"safesearch":  {"true"},
	}

	var resp pixabayResponse
	ok, err := fetchJSON(ctx, p.client, p.logger, p.endpoint+"?"+params.Encode(), nil, &resp)
	if err != nil || !ok || len(resp.Hits) == 0 {
		return NotFound(), err
	}
	hit := resp.Hits[0]
	if hit.LargeImageURL != "" {
		return Found(hit.LargeImageURL), nil
	}
	return Found(hit.WebformatURL), nil
}

// Unsplash queries the JSON search endpoint behind unsplash.com
type Unsplash struct {
	client   *httpclient.Client
	endpoint string
	key      string
	logger   logger.Logger
}

// NewUnsplash creates the Unsplash JSON provider. With an API key the request
// is authorised as a registered application.
func NewUnsplash(s Settings) (Provider, error) {
	return &Unsplash{
		client:   s.client("unsplash", s.UserAgent, true),
		endpoint: s.baseURL(unsplashSearchAPI),
		key:      s.APIKey,
		logger:   s.logger("unsplash"),
	}, nil
}

func (u *Unsplash) Name() string { return "unsplash" }

type unsplashPhoto struct {
	URLs struct {
		Raw     string `json:"raw"`
		Regular string `json:"regular"`
	} `json:"urls"`
}

type unsplashSearchResponse struct {
	Results []unsplashPhoto `json:"results"`
}

// Search returns the first result's regular rendition resized to StandardWidth
func (u *Unsplash) Search(ctx context.Context, q Query) (Result, error) {
	params := url.Values{
		"query":    {q.Keyword},
		"per_page": {"1"},
	}
	if q.Constraints.Orientation == "landscape" || q.Constraints.Orientation == "portrait" {
		params.Set("orientation", q.Constraints.Orientation)
	}

	headers := map[string]string{"Accept": "application/json"}
	if u.key != "" {
		headers["Authorization"] = "Client-ID " + u.key
	}

	var resp unsplashSearchResponse
	ok, err := fetchJSON(ctx, u.client, u.logger, u.endpoint+"?"+params.Encode(), headers, &resp)
	if err != nil || !ok || len(resp.Results) == 0 {
		return NotFound(), err
	}

	candidate := resp.Results[0].URLs.Regular
	if candidate == "" {
		candidate = resp.Results[0].URLs.Raw
	}
	if candidate == "" {
		return NotFound(), nil
	}
	return Found(SetWidth(candidate, StandardWidth)), nil
}
