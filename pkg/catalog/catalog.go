// Package catalog turns the site's countries document into the flat list of
// entities an acquisition run works through.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Kind distinguishes catalog levels
type Kind string

const (
	KindCountry Kind = "country"
	KindCity    Kind = "city"
)

// Entity is one catalog item that needs exactly one image
type Entity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Kind        Kind   `json:"kind"`
	Country     string `json:"country,omitempty"`
	// DestinationPath is absolute once the catalog is built
	DestinationPath string `json:"destination_path"`
	// SearchKeywordOverride replaces the templated keyword for every provider
	SearchKeywordOverride string `json:"search_keyword_override,omitempty"`
	// ManualSourcePath, when set, is copied to the destination instead of searching
	ManualSourcePath string `json:"manual_source_path,omitempty"`
	// ProviderKeywords holds provider-specific queries such as exact article titles
	ProviderKeywords map[string]string `json:"provider_keywords,omitempty"`
	// FallbackKeywords are tried after the primary keyword within each provider
	FallbackKeywords []string `json:"fallback_keywords,omitempty"`
	// DefaultKeyword is the template rendering for this entity
	DefaultKeyword string `json:"default_keyword,omitempty"`
}

// Country mirrors one element of countries.json
type Country struct {
	Name      string `json:"name"`
	HeroImage string `json:"heroImage"`
	Cities    []City `json:"cities"`
}

// City mirrors a city inside countries.json
type City struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// LoadCountries reads and decodes countries.json
func LoadCountries(path string) ([]Country, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var countries []Country
	if err := json.Unmarshal(data, &countries); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return countries, nil
}

// Build flattens countries into entities in document order, each country
// followed by its cities. resolve maps catalog paths to filesystem paths.
func Build(countries []Country, overrides *Overrides, resolve func(string) string) []Entity {
	if overrides == nil {
		overrides = &Overrides{}
	}
	if resolve == nil {
		resolve = func(p string) string { return p }
	}

	var entities []Entity
	for _, country := range countries {
		countrySlug := Slug(country.Name)
		entities = append(entities, overrides.apply(Entity{
			ID:              countrySlug,
			DisplayName:     country.Name,
			Kind:            KindCountry,
			DestinationPath: resolve(country.HeroImage),
		}, resolve))

		for _, city := range country.Cities {
			entities = append(entities, overrides.apply(Entity{
				ID:              countrySlug + "/" + Slug(city.Name),
				DisplayName:     city.Name,
				Kind:            KindCity,
				Country:         country.Name,
				DestinationPath: resolve(city.Image),
			}, resolve))
		}
	}
	return entities
}

// Load reads countries.json and the optional override table and builds the entity list
func Load(catalogPath, overridesPath string, resolve func(string) string) ([]Entity, error) {
	countries, err := LoadCountries(catalogPath)
	if err != nil {
		return nil, err
	}
	overrides := &Overrides{}
	if overridesPath != "" {
		if overrides, err = LoadOverrides(overridesPath); err != nil {
			return nil, err
		}
	}

	entities := Build(countries, overrides, resolve)
	if err := Validate(entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// Validate rejects catalogs that would break the one-file-per-entity guarantee.
// Entities without a destination pass; the orchestrator fails them on their own.
func Validate(entities []Entity) error {
	var errs []error
	ids := make(map[string]bool, len(entities))
	destinations := make(map[string]string, len(entities))

	for _, e := range entities {
		if ids[e.ID] {
			errs = append(errs, fmt.Errorf("duplicate entity id %q", e.ID))
		}
		ids[e.ID] = true

		if e.DestinationPath == "" {
			continue
		}
		if other, ok := destinations[e.DestinationPath]; ok {
			errs = append(errs, fmt.Errorf("entities %q and %q share destination %s", other, e.ID, e.DestinationPath))
		}
		destinations[e.DestinationPath] = e.ID
	}
	return errors.Join(errs...)
}

// Keywords returns the ordered search keywords for a provider.
// Precedence: provider-specific keyword, entity override, template. Fallback keywords follow.
func (e Entity) Keywords(provider string) []string {
	primary := e.ProviderKeywords[provider]
	if primary == "" {
		primary = e.SearchKeywordOverride
	}
	if primary == "" {
		primary = e.DefaultKeyword
	}
	if primary == "" {
		primary = DefaultTemplates().Render(e)
	}

	keywords := []string{primary}
	for _, k := range e.FallbackKeywords {
		if k != "" && !contains(keywords, k) {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

// IsManual reports whether the entity is satisfied from a local file
func (e Entity) IsManual() bool {
	return e.ManualSourcePath != ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var foldSpecial = strings.NewReplacer("ø", "o", "Ø", "o", "æ", "ae", "Æ", "ae", "ß", "ss", "ł", "l", "Ł", "l", "đ", "d", "Đ", "d", "þ", "th")

// Slug produces an ASCII identifier: "Český Krumlov" becomes "cesky-krumlov"
func Slug(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, foldSpecial.Replace(name))
	if err != nil {
		folded = name
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
