package changelog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_CollapsesSameKey(t *testing.T) {
	l := New()

	assert.True(t, l.RecordField("missions", 0, 5))
	assert.True(t, l.RecordField("missions", 5, 7))

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{Kind: KindField, Key: "missions", Old: 0, New: 7}, entries[0])
}

func TestRecord_RoundTripRemovesEntry(t *testing.T) {
	l := New()

	l.RecordField("hideMastered", true, false)
	assert.False(t, l.RecordField("hideMastered", false, true))
	assert.Equal(t, 0, l.Len())
}

func TestRecord_NoOpIsNotStored(t *testing.T) {
	l := New()

	assert.False(t, l.RecordPartial("Braton", 0, 0))
	assert.False(t, l.RecordPartial("Braton", 0, 0))
	assert.Equal(t, 0, l.Len())
}

func TestRecord_KindsAreIndependent(t *testing.T) {
	l := New()

	l.RecordItem("Braton", true)
	l.RecordPartial("Braton", 12, 0)
	l.RecordField("Braton", 0, 1)

	assert.Equal(t, 3, l.Len())
}

func TestRecordItem_ParityOfToggles(t *testing.T) {
	l := New()

	for i := 0; i < 5; i++ {
		l.RecordItem("Lato", i%2 == 0)
	}

	e, ok := l.Lookup(KindItem, "Lato")
	require.True(t, ok, "an odd number of toggles leaves a pending entry")
	assert.Equal(t, true, e.New)

	l.RecordItem("Lato", false)
	_, ok = l.Lookup(KindItem, "Lato")
	assert.False(t, ok)
}

func TestRecordPartial_ComparesAgainstConfirmed(t *testing.T) {
	l := New()

	// Confirmed rank is 10.
	l.RecordPartial("Paracesis", 10, 11)
	l.RecordPartial("Paracesis", 11, 12)
	l.RecordPartial("Paracesis", 12, 10)

	assert.Equal(t, 0, l.Len(), "returning to the confirmed rank clears the entry")
}

func TestDrain_ClearsAndPreservesOrder(t *testing.T) {
	l := New()
	l.RecordField("missions", 0, 1)
	l.RecordItem("Lato", true)
	l.RecordPartial("Braton", 0, 3)

	drained := l.Drain()
	require.Len(t, drained, 3)
	assert.Equal(t, []string{"missions", "Lato", "Braton"}, keys(drained))
	assert.Equal(t, 0, l.Len())

	l.RecordField("missions", 1, 2)
	assert.Equal(t, 1, l.Len(), "mutations after a drain start a fresh log")
}

func TestRestore_PrependsDrained(t *testing.T) {
	l := New()
	l.RecordField("missions", 0, 5)
	l.RecordItem("Lato", true)
	drained := l.Drain()

	l.RecordField("junctions", 0, 2)
	l.Restore(drained)

	assert.Equal(t, []string{"missions", "Lato", "junctions"}, keys(l.Entries()))
}

func TestRestore_MergesSameKey(t *testing.T) {
	l := New()
	l.RecordField("missions", 0, 5)
	drained := l.Drain()

	// Recorded against the optimistic value while the commit was in flight.
	l.RecordField("missions", 5, 9)
	l.Restore(drained)

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].Old, "old comes from the unconfirmed entry")
	assert.Equal(t, 9, entries[0].New)
}

func TestRestore_DropsCancelledKeys(t *testing.T) {
	l := New()
	l.RecordItem("Lato", true)
	drained := l.Drain()

	l.RecordItem("Lato", false)
	l.Restore(drained)

	assert.Equal(t, 0, l.Len())
}

func TestReset(t *testing.T) {
	l := New()
	l.RecordField("missions", 0, 5)
	l.Reset()
	assert.Empty(t, l.Entries())
	l.Restore(nil)
	assert.Equal(t, 0, l.Len())
}

func keys(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}
