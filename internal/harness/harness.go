package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lwoollett/FrameHub/internal/catalog"
	"github.com/lwoollett/FrameHub/internal/changelog"
	"github.com/lwoollett/FrameHub/internal/docstore"
	"github.com/lwoollett/FrameHub/internal/mastery"
	"github.com/lwoollett/FrameHub/internal/session"
	"github.com/lwoollett/FrameHub/internal/syncer"
	"github.com/lwoollett/FrameHub/internal/testutil"
	"github.com/lwoollett/FrameHub/internal/tracker"
)

// Harness is the test execution engine.
// It wires a tracker and sync engine exactly as a session does, but on a
// manual clock and behind a recording committer so every batch is observable
// and commit failures can be injected.
type Harness struct {
	store     *docstore.Store
	sched     *testutil.ManualScheduler
	committer *testutil.RecordingCommitter
	syncer    *syncer.Syncer // nil for read-only scenarios
	tracker   *tracker.Tracker
	ref       docstore.DocRef
	logger    *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and seed the document
// 2. Build the catalog and hydrate a tracker from the document
// 3. Execute steps, checking expected step errors
// 4. Collect final state and evaluate assertions
//
// The returned error reports a scenario that could not be executed at all;
// behavioural failures are recorded in the result.
func Run(scenario *Scenario) (*Result, error) {
	cat, err := loadCatalog(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	st, err := docstore.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	h := &Harness{
		store: st,
		sched: testutil.NewManualScheduler(),
		ref:   docstore.DocRef{Collection: session.CollectionMastery, ID: scenario.Name},
		// Suppress logs in tests
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	h.committer = &testutil.RecordingCommitter{Next: st}

	if err := h.seed(ctx, scenario.Document); err != nil {
		return nil, fmt.Errorf("failed to seed document: %w", err)
	}

	log := changelog.New()
	opts := []tracker.Option{tracker.WithLogger(h.logger)}
	if scenario.ReadOnly {
		opts = append(opts, tracker.ReadOnly())
	} else {
		debounce := syncer.DefaultDebounce
		if scenario.Debounce != "" {
			debounce, _ = time.ParseDuration(scenario.Debounce) // validated on load
		}
		h.syncer = syncer.New(log, h.committer, h.ref,
			syncer.WithScheduler(h.sched),
			syncer.WithDebounce(debounce),
			syncer.WithLogger(h.logger),
		)
		opts = append(opts, tracker.WithFlusher(h.syncer))
	}
	h.tracker = tracker.New(cat, log, opts...)

	if err := h.reload(ctx); err != nil {
		return nil, fmt.Errorf("failed to hydrate tracker: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		code := errorCode(h.executeStep(ctx, step))
		result.Steps = append(result.Steps, StepOutcome{Index: i, Error: code})

		if code != step.ExpectError {
			want := step.ExpectError
			if want == "" {
				want = "success"
			}
			got := code
			if got == "" {
				got = "success"
			}
			result.AddError(fmt.Sprintf("steps[%d]: expected %s, got %s", i, want, got))
		}
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to collect final state: %w", err)
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// loadCatalog builds the scenario's catalog from the inline map or file.
func loadCatalog(s *Scenario) (*catalog.Catalog, error) {
	if s.CatalogFile != "" {
		data, err := os.ReadFile(s.CatalogFile)
		if err != nil {
			return nil, err
		}
		return catalog.Decode(data, filepath.Base(s.CatalogFile))
	}

	data, err := json.Marshal(s.Catalog)
	if err != nil {
		return nil, fmt.Errorf("encode inline catalog: %w", err)
	}
	return catalog.DecodeJSON(data)
}

// seed writes the scenario's starting document straight to the store.
func (h *Harness) seed(ctx context.Context, doc *Document) error {
	if doc == nil {
		return nil
	}

	fields := map[string]any{
		string(mastery.CounterMissions):   doc.Missions,
		string(mastery.CounterJunctions):  doc.Junctions,
		string(mastery.CounterIntrinsics): doc.Intrinsics,
	}
	if doc.HideMastered != nil {
		fields[tracker.FilterHideMastered] = *doc.HideMastered
	}
	if doc.HideFounders != nil {
		fields[tracker.FilterHideFounders] = *doc.HideFounders
	}
	partial := make(map[string]any, len(doc.PartiallyMastered))
	for name, rank := range doc.PartiallyMastered {
		partial[name] = rank
	}
	fields[syncer.FieldPartiallyMastered] = partial

	return h.store.CommitBatch(ctx, h.ref, []docstore.WriteOp{
		docstore.MergeFields(fields),
		docstore.AddToSet(syncer.FieldMastered, doc.Mastered...),
	})
}

// reload hydrates the tracker from the stored document.
func (h *Harness) reload(ctx context.Context) error {
	doc, err := h.store.Get(ctx, h.ref)
	if errors.Is(err, docstore.ErrNotFound) {
		doc, err = docstore.Document{}, nil
	}
	if err != nil {
		return err
	}
	h.tracker.Hydrate(session.SnapshotFromDocument(doc))
	return nil
}

// executeStep runs a single step and returns its error.
func (h *Harness) executeStep(ctx context.Context, step Step) error {
	t := h.tracker
	switch {
	case step.Master != "":
		return t.MasterItem(step.Master)
	case step.Unmaster != "":
		return t.UnmasterItem(step.Unmaster)
	case step.Rank != nil:
		maxRank := step.Rank.Max
		if maxRank == 0 {
			maxRank = catalog.DefaultMaxLevel
			if item, ok := t.Catalog().Item(step.Rank.Item); ok {
				maxRank = item.Levels()
			}
		}
		return t.SetPartialRank(step.Rank.Item, step.Rank.Rank, maxRank)
	case step.MasterAll:
		return t.MasterAll()
	case step.UnmasterAll:
		return t.UnmasterAll()
	case step.Counter != nil:
		return t.SetCounter(mastery.Counter(step.Counter.Kind), step.Counter.Value)
	case step.Filter != nil:
		return t.SetFilter(step.Filter.Key, step.Filter.Value)
	case step.Advance != "":
		d, _ := time.ParseDuration(step.Advance) // validated on load
		h.sched.Advance(d)
		return nil
	case step.Flush:
		return t.FlushNow(ctx)
	case step.FailNext > 0:
		h.committer.FailNext(step.FailNext)
		return nil
	case step.Reload:
		return h.reload(ctx)
	default:
		return fmt.Errorf("step has no action")
	}
}

// errorCode maps a step error to the code scenarios name it by.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var mutErr *tracker.MutationError
	if errors.As(err, &mutErr) {
		return string(mutErr.Code)
	}
	if errors.Is(err, testutil.ErrInjected) {
		return CodeCommitFailed
	}
	return err.Error()
}

// collect copies the final state into the result.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	result.Batches = h.committer.Batches()
	result.Stats = h.tracker.Stats()
	result.Ingredients = h.tracker.Ingredients()
	result.Mastered = h.tracker.Mastered()
	result.PartialRanks = h.tracker.PartialRanks()
	result.Pending = h.tracker.Pending()

	doc, err := h.store.Get(ctx, h.ref)
	if errors.Is(err, docstore.ErrNotFound) {
		doc, err = docstore.Document{}, nil
	}
	if err != nil {
		return err
	}
	result.Document = doc
	return nil
}
