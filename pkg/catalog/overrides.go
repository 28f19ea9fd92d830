package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Templates renders the generic keyword for an entity kind. "{name}" is replaced
// by the display name and "{country}" by the parent country.
type Templates struct {
	Country string `yaml:"country"`
	City    string `yaml:"city"`
}

// DefaultTemplates returns the generic keyword templates
func DefaultTemplates() Templates {
	return Templates{Country: "{name} landmark", City: "{name} city"}
}

// Render applies the template for e.Kind
func (t Templates) Render(e Entity) string {
	tpl := t.City
	if e.Kind == KindCountry {
		tpl = t.Country
	}
	if tpl == "" {
		return e.DisplayName
	}
	return strings.NewReplacer("{name}", e.DisplayName, "{country}", e.Country).Replace(tpl)
}

// EntityOverride is one row of the override table
type EntityOverride struct {
	Keyword      string            `yaml:"keyword,omitempty"`
	ManualSource string            `yaml:"manual_source,omitempty"`
	Providers    map[string]string `yaml:"providers,omitempty"`
	Fallbacks    []string          `yaml:"fallbacks,omitempty"`
}

// Overrides is the declarative table that replaces per-entity branching.
// Keys are entity ids or doublestar patterns over entity ids.
type Overrides struct {
	Templates Templates                 `yaml:"templates"`
	Entities  map[string]EntityOverride `yaml:"entities"`
}

// LoadOverrides reads an override table from YAML
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides: %w", err)
	}
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to parse overrides %s: %w", path, err)
	}
	for key := range o.Entities {
		if !doublestar.ValidatePattern(key) {
			return nil, fmt.Errorf("invalid override key %q", key)
		}
	}
	return &o, nil
}

func (o *Overrides) templates() Templates {
	t := DefaultTemplates()
	if o.Templates.Country != "" {
		t.Country = o.Templates.Country
	}
	if o.Templates.City != "" {
		t.City = o.Templates.City
	}
	return t
}

// lookup merges every row whose key matches id; an exact id match wins over patterns
func (o *Overrides) lookup(id string) (EntityOverride, bool) {
	var merged EntityOverride
	found := false

	merge := func(row EntityOverride) {
		found = true
		if row.Keyword != "" {
			merged.Keyword = row.Keyword
		}
		if row.ManualSource != "" {
			merged.ManualSource = row.ManualSource
		}
		for p, k := range row.Providers {
			if merged.Providers == nil {
				merged.Providers = map[string]string{}
			}
			merged.Providers[p] = k
		}
		if len(row.Fallbacks) > 0 {
			merged.Fallbacks = row.Fallbacks
		}
	}

	patterns := make([]string, 0, len(o.Entities))
	for key := range o.Entities {
		if key != id {
			patterns = append(patterns, key)
		}
	}
	sort.Strings(patterns)
	for _, key := range patterns {
		if ok, _ := doublestar.Match(key, id); ok {
			merge(o.Entities[key])
		}
	}
	if row, ok := o.Entities[id]; ok {
		merge(row)
	}
	return merged, found
}

func (o *Overrides) apply(e Entity, resolve func(string) string) Entity {
	e.DefaultKeyword = o.templates().Render(e)

	row, ok := o.lookup(e.ID)
	if !ok {
		return e
	}
	e.SearchKeywordOverride = row.Keyword
	if row.ManualSource != "" {
		e.ManualSourcePath = resolve(row.ManualSource)
	}
	if len(row.Providers) > 0 {
		e.ProviderKeywords = row.Providers
	}
	e.FallbackKeywords = row.Fallbacks
	return e
}

// Filter keeps entities whose id matches any pattern; no patterns keeps everything
func Filter(entities []Entity, patterns []string) ([]Entity, error) {
	if len(patterns) == 0 {
		return entities, nil
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid include pattern %q", p)
		}
	}

	var out []Entity
	for _, e := range entities {
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, e.ID); ok {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}
