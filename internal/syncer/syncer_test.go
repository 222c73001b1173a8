package syncer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwoollett/FrameHub/internal/changelog"
	"github.com/lwoollett/FrameHub/internal/docstore"
	"github.com/lwoollett/FrameHub/internal/testutil"
)

var testRef = docstore.DocRef{Collection: "masteryData", ID: "user-1"}

type fixture struct {
	log       *changelog.Log
	sched     *testutil.ManualScheduler
	committer *testutil.RecordingCommitter
	syncer    *Syncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		log:       changelog.New(),
		sched:     testutil.NewManualScheduler(),
		committer: &testutil.RecordingCommitter{},
	}
	f.syncer = New(f.log, f.committer, testRef,
		WithScheduler(f.sched),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return f
}

func TestBuildBatch_Golden(t *testing.T) {
	log := changelog.New()
	log.RecordField("missions", 0, 5)
	log.RecordField("hideMastered", true, false)
	log.RecordItem("Lato", true)
	log.RecordItem("Braton", false)
	log.RecordItem("Akbolto", true)
	log.RecordPartial("Paracesis", 0, 12)
	log.RecordPartial("Boltor", 5, 0)
	log.RecordField("missions", 5, 7)

	out, err := docstore.FormatBatch(BuildBatch(log.Drain()))
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "batch", out)
}

func TestBuildBatch_AlwaysFourOps(t *testing.T) {
	ops := BuildBatch(nil)
	require.Len(t, ops, 4)

	out, err := docstore.FormatBatch(ops)
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "empty_batch", out)
}

func TestScheduleFlush_Debounces(t *testing.T) {
	f := newFixture(t)

	f.log.RecordField("missions", 0, 5)
	f.syncer.ScheduleFlush()
	f.sched.Advance(2 * time.Second)

	f.log.RecordField("missions", 5, 7)
	f.syncer.ScheduleFlush()
	assert.Equal(t, 1, f.sched.Pending(), "a new schedule replaces the live timer")

	f.sched.Advance(2 * time.Second)
	assert.Empty(t, f.committer.Batches(), "timer was reset by the second schedule")

	f.sched.Advance(500 * time.Millisecond)
	batches := f.committer.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, testRef, batches[0].Ref)
	assert.Equal(t, map[string]any{"missions": 7}, batches[0].Ops[0].Fields)
	assert.Equal(t, 0, f.log.Len())
	assert.False(t, f.syncer.Scheduled())
}

func TestFlushNow_CancelsTimer(t *testing.T) {
	f := newFixture(t)

	f.log.RecordItem("Lato", true)
	f.syncer.ScheduleFlush()
	require.True(t, f.syncer.Scheduled())

	require.NoError(t, f.syncer.FlushNow(t.Context()))
	assert.False(t, f.syncer.Scheduled())
	assert.Equal(t, 0, f.sched.Pending())

	f.sched.Advance(time.Minute)
	assert.Equal(t, 1, f.committer.Calls(), "cancelled timer never fires")
}

func TestFlushNow_EmptyLogDoesNotCommit(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.syncer.FlushNow(t.Context()))
	assert.Equal(t, 0, f.committer.Calls())
}

func TestFlushNow_FailureRestoresEntries(t *testing.T) {
	f := newFixture(t)

	f.log.RecordField("missions", 0, 5)
	f.log.RecordItem("Lato", true)
	f.committer.FailNext(1)

	err := f.syncer.FlushNow(t.Context())
	require.ErrorIs(t, err, testutil.ErrInjected)
	assert.Equal(t, 2, f.log.Len(), "drained entries are back in the log")

	f.log.RecordField("missions", 5, 6)
	require.NoError(t, f.syncer.FlushNow(t.Context()))

	batches := f.committer.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, map[string]any{"missions": 6}, batches[0].Ops[0].Fields)
	assert.Equal(t, []string{"Lato"}, batches[0].Ops[1].Values)
	assert.Equal(t, 0, f.log.Len())
}

func TestScheduledFlushFailure_KeepsEntries(t *testing.T) {
	f := newFixture(t)

	f.log.RecordField("junctions", 0, 3)
	f.committer.FailNext(1)
	f.syncer.ScheduleFlush()
	f.sched.Advance(DefaultDebounce)

	assert.Equal(t, 1, f.committer.Calls())
	assert.Equal(t, 1, f.log.Len())
	assert.Equal(t, 0, f.sched.Pending(), "no automatic retry until the next schedule")

	f.syncer.ScheduleFlush()
	f.sched.Advance(DefaultDebounce)
	assert.Len(t, f.committer.Batches(), 1)
	assert.Equal(t, 0, f.log.Len())
}

func TestFlushNow_NotReentrant(t *testing.T) {
	f := newFixture(t)
	entered := f.committer.Block()

	f.log.RecordField("missions", 0, 1)
	first := make(chan error, 1)
	go func() { first <- f.syncer.FlushNow(context.Background()) }()
	<-entered

	// Mutation while the first commit is in flight.
	f.log.RecordField("missions", 1, 2)

	second := make(chan error, 1)
	go func() { second <- f.syncer.FlushNow(context.Background()) }()

	select {
	case <-entered:
		t.Fatal("second flush committed while the first was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	f.committer.Release()
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	assert.Equal(t, 1, f.committer.MaxConcurrent())
	batches := f.committer.Batches()
	require.Len(t, batches, 2)
	assert.Equal(t, map[string]any{"missions": 1}, batches[0].Ops[0].Fields)
	assert.Equal(t, map[string]any{"missions": 2}, batches[1].Ops[0].Fields)
}

func TestFlushNow_WaitingFlushSkipsEmptyLog(t *testing.T) {
	f := newFixture(t)
	entered := f.committer.Block()

	f.log.RecordField("missions", 0, 1)
	first := make(chan error, 1)
	go func() { first <- f.syncer.FlushNow(context.Background()) }()
	<-entered

	second := make(chan error, 1)
	go func() { second <- f.syncer.FlushNow(context.Background()) }()

	f.committer.Release()
	require.NoError(t, <-first)
	require.NoError(t, <-second)
	assert.Equal(t, 1, f.committer.Calls())
}

func TestFlushNow_WaitHonoursContext(t *testing.T) {
	f := newFixture(t)
	entered := f.committer.Block()
	defer f.committer.Release()

	f.log.RecordField("missions", 0, 1)
	go f.syncer.FlushNow(context.Background())
	<-entered

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	err := f.syncer.FlushNow(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClose_FlushesAndStopsScheduling(t *testing.T) {
	f := newFixture(t)

	f.log.RecordPartial("Paracesis", 0, 4)
	f.syncer.ScheduleFlush()
	require.NoError(t, f.syncer.Close(t.Context()))
	assert.Len(t, f.committer.Batches(), 1)

	f.log.RecordPartial("Paracesis", 4, 5)
	f.syncer.ScheduleFlush()
	assert.False(t, f.syncer.Scheduled())
	assert.Equal(t, 0, f.sched.Pending())
}

func TestSyncer_CommitsToStore(t *testing.T) {
	store, err := docstore.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	log := changelog.New()
	s := New(log, store, testRef, WithScheduler(testutil.NewManualScheduler()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	log.RecordField("missions", 0, 7)
	log.RecordItem("Lato", true)
	log.RecordPartial("Paracesis", 0, 3)
	require.NoError(t, s.FlushNow(t.Context()))

	log.RecordPartial("Paracesis", 3, 0)
	require.NoError(t, s.FlushNow(t.Context()))

	doc, err := store.Get(t.Context(), testRef)
	require.NoError(t, err)
	assert.Equal(t, 7, doc.Int("missions"))
	assert.Equal(t, []string{"Lato"}, doc.Strings(FieldMastered))
	assert.Empty(t, doc.IntMap(FieldPartiallyMastered))
}
