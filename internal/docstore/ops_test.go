package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_MergeFieldsDeep(t *testing.T) {
	doc := map[string]any{
		"missions":          int64(3),
		"partiallyMastered": map[string]any{"Braton": int64(4), "Lato": int64(9)},
	}

	require.NoError(t, Apply(doc, MergeFields(map[string]any{
		"junctions":         2,
		"partiallyMastered": map[string]any{"Lato": Delete, "Boltor": 1},
	})))

	assert.Equal(t, map[string]any{
		"missions":          int64(3),
		"junctions":         int64(2),
		"partiallyMastered": map[string]any{"Braton": int64(4), "Boltor": int64(1)},
	}, doc)
}

func TestApply_MergeDeleteTopLevel(t *testing.T) {
	doc := map[string]any{"missions": int64(3)}
	require.NoError(t, Apply(doc, MergeFields(map[string]any{"missions": Delete, "ghost": Delete})))
	assert.Empty(t, doc)
}

func TestApply_Sets(t *testing.T) {
	doc := map[string]any{}

	require.NoError(t, Apply(doc, AddToSet("mastered", "A", "B", "A")))
	assert.Equal(t, []any{"A", "B"}, doc["mastered"])

	require.NoError(t, Apply(doc, AddToSet("mastered", "B", "C")))
	require.NoError(t, Apply(doc, RemoveFromSet("mastered", "A", "Z")))
	assert.Equal(t, []any{"B", "C"}, doc["mastered"])

	require.NoError(t, Apply(doc, RemoveFromSet("other", "A")))
	assert.Equal(t, []any{}, doc["other"])
}

func TestApply_Errors(t *testing.T) {
	doc := map[string]any{"missions": int64(1)}

	assert.Error(t, Apply(doc, AddToSet("missions", "x")))
	assert.Error(t, Apply(doc, AddToSet("", "x")))
	assert.Error(t, Apply(map[string]any{"m": []any{1}}, RemoveFromSet("m", "x")))
	assert.Error(t, Apply(doc, WriteOp{Kind: "bogus"}))
}

func TestWriteOp_Empty(t *testing.T) {
	assert.True(t, MergeFields(nil).Empty())
	assert.True(t, AddToSet("mastered").Empty())
	assert.False(t, RemoveFromSet("mastered", "A").Empty())
}

func TestDocument_Accessors(t *testing.T) {
	doc := Document{
		"missions":          int64(12),
		"hideMastered":      false,
		"mastered":          []any{"B", "A"},
		"partiallyMastered": map[string]any{"X": int64(2), "bad": "two"},
	}

	assert.Equal(t, 12, doc.Int("missions"))
	assert.Equal(t, 0, doc.Int("junctions"))
	assert.False(t, doc.Bool("hideMastered", true))
	assert.Equal(t, []string{"B", "A"}, doc.Strings("mastered"))
	assert.Nil(t, doc.Strings("missing"))
	assert.Equal(t, map[string]int{"X": 2}, doc.IntMap("partiallyMastered"))
	assert.Equal(t, []string{"hideMastered", "mastered", "missions", "partiallyMastered"}, doc.Keys())
}
