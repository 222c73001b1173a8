package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
	"WF": {
		"Excalibur Prime": {"mr": 0},
		"Rhino": {
			"components": {
				"Rhino Neuroptics": {"count": 1, "generic": true, "components": {"Morphics": 1, "Rubedo": 150}},
				"Morphics": 1
			}
		}
	},
	"PRIMARY": {
		"Braton": {"components": {"Barrel": {"generic": true}, "Ferrite": 500}},
		"Paracesis": {"maxLvl": 40, "mr": 16}
	},
	"MISC": {"Plexus": {"xp": 6000}}
}`

func TestDecode_JSON(t *testing.T) {
	cat, err := Decode([]byte(sampleJSON), "items.json")
	require.NoError(t, err)

	assert.Equal(t, 5, cat.Len())
	assert.Equal(t, []Category{CategoryMisc, CategoryPrimary, CategoryWarframe}, cat.Categories())

	rhino, ok := cat.Item("Rhino")
	require.True(t, ok)
	assert.Equal(t, CategoryWarframe, rhino.Category)
	assert.Equal(t, "Rhino", rhino.Name)

	neuroptics := rhino.Components["Rhino Neuroptics"]
	assert.True(t, neuroptics.Generic)
	assert.True(t, neuroptics.Nested())
	assert.Equal(t, 1.0, neuroptics.Quantity)
	assert.Equal(t, 150.0, neuroptics.Components["Rubedo"].Quantity)

	braton, ok := cat.Item("Braton")
	require.True(t, ok)
	assert.Equal(t, 1.0, braton.Components["Barrel"].Quantity, "count defaults to 1")
	assert.Equal(t, []string{"Barrel", "Ferrite"}, braton.Components.Names())
}

func TestDecode_CUE(t *testing.T) {
	src := `
// Hand-maintained overrides are easier to write as CUE.
MISC: Plexus: xp: 6000
AW_GUN: "Prisma Dual Decurions": mr: 10
AMP: "Mote Prism": components: {
	"Cetus Wisp":    1
	"Tear Azurite":  20
	"Pyrotic Alloy": 10
}
`
	cat, err := Decode([]byte(src), "overrides.cue")
	require.NoError(t, err)

	assert.Equal(t, 3, cat.Len())
	amp, ok := cat.Item("Mote Prism")
	require.True(t, ok)
	assert.Equal(t, CategoryAmp, amp.Category)
	assert.Equal(t, 20.0, amp.Components["Tear Azurite"].Quantity)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte(`{"WF": {`), "broken.json")
	assert.Error(t, err)

	_, err = Decode([]byte(`WF: Rhino: mr: int`), "open.cue")
	assert.Error(t, err, "non-concrete values are rejected")
}

func TestItem_Experience(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want float64
	}{
		{"weapon default level", Item{Category: CategoryPrimary}, 3000},
		{"frame default level", Item{Category: CategoryWarframe}, 6000},
		{"weapon level 40", Item{Category: CategoryMelee, MaxLevel: 40}, 4000},
		{"mech level 40", Item{Category: CategoryMech, MaxLevel: 40}, 8000},
		{"override", Item{Category: CategoryMisc, XP: 6000}, 6000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.Experience())
		})
	}
}

func TestItem_PartialExperience(t *testing.T) {
	item := Item{Category: CategoryPrimary, MaxLevel: 40}

	assert.Equal(t, 3000.0, item.PartialExperience(30))
	assert.Equal(t, 100.0, item.PartialExperience(1))
	assert.Equal(t, item.Experience(), item.PartialExperience(40))

	odd := Item{Category: CategoryMisc, XP: 1000, MaxLevel: 3}
	assert.InDelta(t, 333.333, odd.PartialExperience(1), 0.001, "fractional experience is kept")
}

func TestCatalog_NormalizesNames(t *testing.T) {
	decomposed := "Nike\u0301"
	composed := "Nik\u00e9"

	cat := New(map[Category]map[string]Item{
		CategoryMelee: {decomposed: {}},
	})

	item, ok := cat.Item(composed)
	require.True(t, ok)
	assert.Equal(t, composed, item.Name)

	_, ok = cat.Item(decomposed)
	assert.True(t, ok, "lookups are normalised too")
}

func TestCatalog_Ordering(t *testing.T) {
	cat := New(map[Category]map[string]Item{
		CategoryWarframe: {"Volt": {}, "Ash": {}},
		CategoryAmp:      {"Raplak Prism": {}},
	})

	var names []string
	for _, it := range cat.Items() {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"Raplak Prism", "Ash", "Volt"}, names)

	frames := cat.Category(CategoryWarframe)
	require.Len(t, frames, 2)
	assert.Equal(t, "Ash", frames[0].Name)
}

func TestCatalog_JSONRoundTrip(t *testing.T) {
	cat, err := Decode([]byte(sampleJSON), "items.json")
	require.NoError(t, err)

	data, err := json.Marshal(cat)
	require.NoError(t, err)

	again, err := DecodeJSON(data)
	require.NoError(t, err)
	assert.Equal(t, cat.Items(), again.Items())
}

func TestIsFounders(t *testing.T) {
	assert.True(t, IsFounders("Excalibur Prime"))
	assert.True(t, IsFounders("Skana Prime"))
	assert.False(t, IsFounders("Excalibur"))
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))

	src := NewFileSource(path)
	ctx := t.Context()

	stamp1, err := src.VersionStamp(ctx)
	require.NoError(t, err)
	assert.Len(t, stamp1, 64)

	cat, fetchedStamp, err := src.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, cat.Len())
	assert.Equal(t, stamp1, fetchedStamp)

	require.NoError(t, os.WriteFile(path, []byte(`{"MISC": {"Plexus": {"xp": 6000}}}`), 0o644))
	stamp2, err := src.VersionStamp(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, stamp1, stamp2)

	_, err = NewFileSource(filepath.Join(dir, "missing.json")).VersionStamp(ctx)
	assert.Error(t, err)
}

func TestFileSource_StampMatchesDecodedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))
	src := NewFileSource(path)
	ctx := t.Context()

	oldStamp, err := src.VersionStamp(ctx)
	require.NoError(t, err)

	// The file changes between the stamp check and the fetch.
	require.NoError(t, os.WriteFile(path, []byte(`{"MISC": {"Plexus": {"xp": 6000}}}`), 0o644))

	cat, stamp, err := src.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Len())
	assert.NotEqual(t, oldStamp, stamp)

	current, err := src.VersionStamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, current, stamp)
}
