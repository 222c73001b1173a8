package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript(t *testing.T) {
	out, err := Transcript("sample", sampleResult())
	require.NoError(t, err)

	want := `# scenario sample
# batch 1 masteryData/u1
{"fields":{"missions":7},"op":"mergeFields"}
{"field":"mastered","op":"addToSet","values":["Braton"]}
{"field":"mastered","op":"removeFromSet","values":[]}
{"fields":{"partiallyMastered":{"Boltor":{"$delete":true}}},"op":"mergeFields"}
# document
{"mastered":["Lato","Braton"],"missions":7,"partiallyMastered":{"Paracesis":12}}
`
	assert.Equal(t, want, string(out))
}

func TestTranscript_NoBatches(t *testing.T) {
	r := NewResult()
	out, err := Transcript("idle", r)
	require.NoError(t, err)
	assert.Equal(t, "# scenario idle\n# document\n{}\n", string(out))
}

func TestTranscript_Deterministic(t *testing.T) {
	first, err := Transcript("sample", sampleResult())
	require.NoError(t, err)
	for range 5 {
		again, err := Transcript("sample", sampleResult())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
