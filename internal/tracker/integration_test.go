package tracker

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwoollett/FrameHub/internal/catalog"
	"github.com/lwoollett/FrameHub/internal/changelog"
	"github.com/lwoollett/FrameHub/internal/docstore"
	"github.com/lwoollett/FrameHub/internal/mastery"
	"github.com/lwoollett/FrameHub/internal/syncer"
	"github.com/lwoollett/FrameHub/internal/testutil"
)

func newSyncedTracker(t *testing.T) (*Tracker, *testutil.ManualScheduler, *testutil.RecordingCommitter) {
	t.Helper()
	cat, err := catalog.DecodeJSON([]byte(testCatalog))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := testutil.NewManualScheduler()
	committer := &testutil.RecordingCommitter{}
	log := changelog.New()
	s := syncer.New(log, committer, docstore.DocRef{Collection: "masteryData", ID: "u1"},
		syncer.WithScheduler(sched), syncer.WithLogger(logger))

	return New(cat, log, WithFlusher(s), WithLogger(logger)), sched, committer
}

func TestRapidCounterEdits_OneWrite(t *testing.T) {
	tr, sched, committer := newSyncedTracker(t)

	require.NoError(t, tr.SetCounter(mastery.CounterMissions, 5))
	require.NoError(t, tr.SetCounter(mastery.CounterMissions, 7))
	sched.Advance(syncer.DefaultDebounce)

	batches := committer.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, map[string]any{"missions": 7}, batches[0].Ops[0].Fields)
	assert.Equal(t, 0, tr.Pending())
}

func TestFailedFlush_LosesNothing(t *testing.T) {
	tr, sched, committer := newSyncedTracker(t)

	require.NoError(t, tr.MasterItem("A"))
	committer.FailNext(1)
	sched.Advance(syncer.DefaultDebounce)
	assert.Equal(t, 1, tr.Pending())
	assert.True(t, tr.IsMastered("A"), "local state is unaffected by the failure")

	require.NoError(t, tr.SetPartialRank("Paracesis", 3, 40))
	require.NoError(t, tr.FlushNow(t.Context()))

	batches := committer.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"A"}, batches[0].Ops[1].Values)
	assert.Equal(t, map[string]any{"partiallyMastered": map[string]any{"Paracesis": 3}}, batches[0].Ops[3].Fields)
	assert.Equal(t, 0, sched.Pending(), "forced flush cancels the debounce timer")
}
