package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const countriesJSON = `[
  {"name": "Italy", "heroImage": "/images/destinations/italy.jpg",
   "cities": [{"name": "Rome", "image": "/images/destinations/rome.jpg"}]},
  {"name": "Spain", "heroImage": "/images/destinations/spain.jpg", "cities": []},
  {"name": "Czech Republic", "heroImage": "/images/destinations/czech.jpg",
   "cities": [{"name": "Cesky Krumlov", "image": "/images/destinations/krumlov.jpg"}]}
]`

const overridesYAML = `
templates:
  city: "{name} {country} old town"
entities:
  italy:
    manual_source: /images/card-amalfi.png
  "*/*":
    fallbacks: ["{placeholder}"]
  czech-republic/cesky-krumlov:
    keyword: Krumlov castle
    providers:
      wikipedia: Český_Krumlov
    fallbacks: ["Cesky Krumlov city panorama", "Cesky Krumlov"]
`

func writeCatalog(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "countries.json")
	overridesPath := filepath.Join(dir, "overrides.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(countriesJSON), 0644))
	require.NoError(t, os.WriteFile(overridesPath, []byte(overridesYAML), 0644))
	return catalogPath, overridesPath
}

func TestLoadBuildsEntitiesInOrder(t *testing.T) {
	catalogPath, overridesPath := writeCatalog(t)
	resolve := func(p string) string { return "/site/public" + p }

	entities, err := Load(catalogPath, overridesPath, resolve)
	require.NoError(t, err)

	var ids []string
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"italy", "italy/rome", "spain", "czech-republic", "czech-republic/cesky-krumlov"}, ids)

	italy := entities[0]
	assert.Equal(t, KindCountry, italy.Kind)
	assert.True(t, italy.IsManual())
	assert.Equal(t, "/site/public/images/card-amalfi.png", italy.ManualSourcePath)
	assert.Equal(t, "/site/public/images/destinations/italy.jpg", italy.DestinationPath)

	rome := entities[1]
	assert.Equal(t, "Italy", rome.Country)
	assert.Equal(t, "Rome Italy old town", rome.DefaultKeyword)
	assert.False(t, rome.IsManual())
}

func TestKeywordPrecedence(t *testing.T) {
	catalogPath, overridesPath := writeCatalog(t)
	entities, err := Load(catalogPath, overridesPath, nil)
	require.NoError(t, err)
	krumlov := entities[4]

	assert.Equal(t, []string{"Český_Krumlov", "Cesky Krumlov city panorama", "Cesky Krumlov"}, krumlov.Keywords("wikipedia"),
		"provider keyword beats entity override")
	assert.Equal(t, []string{"Krumlov castle", "Cesky Krumlov city panorama", "Cesky Krumlov"}, krumlov.Keywords("pexels"),
		"exact row replaces pattern fallbacks")

	spain := entities[2]
	assert.Equal(t, []string{"Spain landmark"}, spain.Keywords("wikimedia"), "template when nothing overrides")
}

func TestKeywordsWithoutBuild(t *testing.T) {
	e := Entity{ID: "spain/seville", DisplayName: "Seville", Kind: KindCity}
	assert.Equal(t, []string{"Seville city"}, e.Keywords("pexels"))

	e.SearchKeywordOverride = "Plaza de España"
	e.FallbackKeywords = []string{"Plaza de España", "Seville"}
	assert.Equal(t, []string{"Plaza de España", "Seville"}, e.Keywords("pexels"), "duplicates dropped")
}

func TestValidateRejectsSharedDestination(t *testing.T) {
	err := Validate([]Entity{
		{ID: "a", DestinationPath: "/x.jpg"},
		{ID: "b", DestinationPath: "/x.jpg"},
		{ID: "a", DestinationPath: "/y.jpg"},
		{ID: "c"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "share destination")
	assert.Contains(t, err.Error(), "duplicate entity id")
	assert.NotContains(t, err.Error(), "\"c\"")
}

func TestLoadKeepsEntitiesWithoutDestination(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "countries.json")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`[
  {"name": "Spain", "heroImage": "/images/destinations/spain.jpg",
   "cities": [{"name": "Seville", "image": ""}, {"name": "Madrid", "image": "/images/destinations/madrid.jpg"}]}
]`), 0644))

	entities, err := Load(catalogPath, "", nil)
	require.NoError(t, err)
	require.Len(t, entities, 3)
	assert.Equal(t, "spain/seville", entities[1].ID)
	assert.Empty(t, entities[1].DestinationPath)
	assert.Equal(t, "/images/destinations/madrid.jpg", entities[2].DestinationPath)
}

func TestFilter(t *testing.T) {
	entities := []Entity{{ID: "spain"}, {ID: "spain/barcelona"}, {ID: "italy"}, {ID: "italy/rome"}}

	got, err := Filter(entities, []string{"spain/*", "italy"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "spain/barcelona", got[0].ID)
	assert.Equal(t, "italy", got[1].ID)

	all, err := Filter(entities, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	countries, err := Filter(entities, []string{"*"})
	require.NoError(t, err)
	assert.Len(t, countries, 2)

	_, err = Filter(entities, []string{"[unclosed"})
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Český Krumlov":         "cesky-krumlov",
		"Tromsø":                "tromso",
		"Vík í Mýrdal":          "vik-i-myrdal",
		"Czech Republic":        "czech-republic",
		"  Saint-Jean-de-Luz  ": "saint-jean-de-luz",
		"Kraków":                "krakow",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.json"), "", nil)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0644))
	_, err = Load(bad, "", nil)
	assert.Error(t, err)

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(countriesJSON), 0644))
	badOverrides := filepath.Join(dir, "o.yaml")
	require.NoError(t, os.WriteFile(badOverrides, []byte("entities:\n  \"[bad\": {keyword: x}\n"), 0644))
	_, err = Load(good, badOverrides, nil)
	assert.Error(t, err)
}

func TestShippedOverrideTable(t *testing.T) {
	overrides, err := LoadOverrides(filepath.Join("..", "..", "examples", "overrides.yaml"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(overrides.Entities), 27, "every country title of the curated table")

	countries := []Country{
		{Name: "Italy", HeroImage: "/images/destinations/italy.jpg"},
		{Name: "Switzerland", HeroImage: "/images/destinations/switzerland.jpg"},
		{Name: "France", HeroImage: "/images/destinations/france.jpg"},
		{Name: "Slovenia", HeroImage: "/images/destinations/slovenia.jpg",
			Cities: []City{{Name: "Bled", Image: "/images/destinations/bled.jpg"}}},
		{Name: "Poland", HeroImage: "/images/destinations/poland.jpg",
			Cities: []City{{Name: "Krakow", Image: "/images/destinations/krakow.jpg"}}},
		{Name: "Czech Republic", HeroImage: "/images/destinations/czech-republic.jpg",
			Cities: []City{{Name: "Cesky Krumlov", Image: "/images/destinations/cesky-krumlov.jpg"}}},
	}
	entities := Build(countries, overrides, nil)
	require.NoError(t, Validate(entities))
	byID := make(map[string]Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	assert.Equal(t, "/images/card-amalfi.png", byID["italy"].ManualSourcePath)
	assert.Equal(t, "/images/card-alps.png", byID["switzerland"].ManualSourcePath)

	france := byID["france"]
	assert.Equal(t, []string{"Eiffel_Tower"}, france.Keywords("wikipedia"))
	assert.Equal(t, []string{"Eiffel Tower Paris"}, france.Keywords("wikimedia"))

	assert.Equal(t, []string{"Lake_Bled", "Bled, Slovenia"}, byID["slovenia/bled"].Keywords("wikipedia"))
	assert.Equal(t, []string{"Bled city", "Bled, Slovenia"}, byID["slovenia/bled"].Keywords("wikimedia"))
	assert.Equal(t, []string{"Kraków"}, byID["poland/krakow"].Keywords("wikipedia"))
	assert.Equal(t, []string{"Charles_Bridge"}, byID["czech-republic"].Keywords("wikipedia"))
	assert.Equal(t, []string{"Český_Krumlov"}, byID["czech-republic/cesky-krumlov"].Keywords("wikipedia"))
}
