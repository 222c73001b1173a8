package session

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwoollett/FrameHub/internal/catalog"
	"github.com/lwoollett/FrameHub/internal/docstore"
	"github.com/lwoollett/FrameHub/internal/mastery"
	"github.com/lwoollett/FrameHub/internal/syncer"
	"github.com/lwoollett/FrameHub/internal/testutil"
	"github.com/lwoollett/FrameHub/internal/tracker"
)

const itemsJSON = `{
	"MISC": {"A": {"xp": 100}, "B": {"xp": 200, "components": {"A": 2}}},
	"PRIMARY": {"Paracesis": {"maxLvl": 40}}
}`

type env struct {
	store  *docstore.Store
	source *catalog.FileSource
	sched  *testutil.ManualScheduler
	path   string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "items.json")
	require.NoError(t, os.WriteFile(path, []byte(itemsJSON), 0o644))

	store, err := docstore.Open(filepath.Join(dir, "framehub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &env{store: store, source: catalog.NewFileSource(path), sched: testutil.NewManualScheduler(), path: path}
}

func (e *env) options(kind Kind, id string) Options {
	return Options{
		Kind:      kind,
		UserID:    id,
		Store:     e.store,
		Source:    e.source,
		Scheduler: e.sched,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("shared")
	require.NoError(t, err)
	assert.Equal(t, KindShared, k)
	assert.Equal(t, CollectionMastery, k.Collection())
	assert.Equal(t, CollectionAnonymousMastery, KindAnonymous.Collection())

	_, err = ParseKind("guest")
	assert.Error(t, err)
}

func TestOpen_AnonymousGeneratesID(t *testing.T) {
	e := newEnv(t)

	s, err := Open(t.Context(), e.options(KindAnonymous, ""))
	require.NoError(t, err)

	assert.Equal(t, CollectionAnonymousMastery, s.Ref().Collection)
	id, err := uuid.Parse(s.Ref().ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestOpen_RequiresUserID(t *testing.T) {
	e := newEnv(t)
	_, err := Open(t.Context(), e.options(KindAuthenticated, ""))
	assert.Error(t, err)
}

func TestOpen_HydratesFromDocument(t *testing.T) {
	e := newEnv(t)
	ref := docstore.DocRef{Collection: CollectionMastery, ID: "u1"}
	require.NoError(t, e.store.CommitBatch(t.Context(), ref, []docstore.WriteOp{
		docstore.MergeFields(map[string]any{"missions": 10, "hideFounders": false}),
		docstore.AddToSet("mastered", "A"),
		docstore.MergeFields(map[string]any{"partiallyMastered": map[string]any{"Paracesis": 20}}),
	}))

	s, err := Open(t.Context(), e.options(KindAuthenticated, "u1"))
	require.NoError(t, err)
	tr := s.Tracker()

	assert.Equal(t, []string{"A"}, tr.Mastered())
	assert.Equal(t, map[string]int{"Paracesis": 20}, tr.PartialRanks())
	assert.Equal(t, 10, tr.Counters()[mastery.CounterMissions])
	assert.Equal(t, mastery.Filters{HideMastered: true, HideFounders: false}, tr.Filters())
	assert.Equal(t, 100+630+2000.0, tr.Stats().Experience)
	assert.Equal(t, 0, tr.Pending())
}

func TestSession_MutateAndClose(t *testing.T) {
	e := newEnv(t)

	s, err := Open(t.Context(), e.options(KindAuthenticated, "u1"))
	require.NoError(t, err)
	tr := s.Tracker()

	require.NoError(t, tr.MasterItem("B"))
	require.NoError(t, tr.SetCounter(mastery.CounterIntrinsics, 4))
	require.NoError(t, s.Close(t.Context()))

	doc, err := e.store.Get(t.Context(), s.Ref())
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, doc.Strings("mastered"))
	assert.Equal(t, 4, doc.Int("intrinsics"))

	again, err := Open(t.Context(), e.options(KindAuthenticated, "u1"))
	require.NoError(t, err)
	assert.Equal(t, tr.Stats(), again.Tracker().Stats())
}

func TestSession_DebouncedFlush(t *testing.T) {
	e := newEnv(t)

	s, err := Open(t.Context(), e.options(KindAuthenticated, "u1"))
	require.NoError(t, err)

	require.NoError(t, s.Tracker().SetCounter(mastery.CounterMissions, 5))
	require.NoError(t, s.Tracker().SetCounter(mastery.CounterMissions, 7))
	e.sched.Advance(syncer.DefaultDebounce)

	commits, err := e.store.Commits(t.Context(), s.Ref())
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Contains(t, string(commits[0].Ops), `"missions":7`)
}

func TestSession_SharedIsReadOnly(t *testing.T) {
	e := newEnv(t)
	ref := docstore.DocRef{Collection: CollectionMastery, ID: "owner"}
	require.NoError(t, e.store.CommitBatch(t.Context(), ref, []docstore.WriteOp{docstore.AddToSet("mastered", "A")}))

	s, err := Open(t.Context(), e.options(KindShared, "owner"))
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, s.Tracker().Mastered())
	assert.ErrorIs(t, s.Tracker().MasterItem("B"), tracker.ErrReadOnly)
	require.NoError(t, s.Close(t.Context()))

	commits, err := e.store.Commits(t.Context(), ref)
	require.NoError(t, err)
	assert.Len(t, commits, 1)
}

func TestOpen_CatalogFallsBackToCache(t *testing.T) {
	e := newEnv(t)

	_, err := Open(t.Context(), e.options(KindAuthenticated, "u1"))
	require.NoError(t, err)

	require.NoError(t, os.Remove(e.path))
	s, err := Open(t.Context(), e.options(KindAuthenticated, "u1"))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Tracker().Catalog().Len())
}

func TestOpen_NoCatalog(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.Remove(e.path))

	_, err := Open(t.Context(), e.options(KindAuthenticated, "u1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrNoCatalog))
}

func TestRefreshCatalog(t *testing.T) {
	e := newEnv(t)
	s, err := Open(t.Context(), e.options(KindAuthenticated, "u1"))
	require.NoError(t, err)

	changed, err := s.RefreshCatalog(t.Context())
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, os.WriteFile(e.path, []byte(`{"MISC": {"A": {"xp": 100}}}`), 0o644))
	changed, err = s.RefreshCatalog(t.Context())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, s.Tracker().Stats().TotalItemCount)
}
