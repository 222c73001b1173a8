// Package tracker owns a user's tracked progress and is the only way to
// change it.
//
// Every accepted mutation updates the in-memory state, records a net delta in
// the change-log, recomputes stats and ingredients before returning and asks
// the flusher to schedule a sync. Reads always reflect the latest mutation.
package tracker

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/lwoollett/FrameHub/internal/catalog"
	"github.com/lwoollett/FrameHub/internal/changelog"
	"github.com/lwoollett/FrameHub/internal/mastery"
)

// Filter keys accepted by SetFilter; they double as document field names.
const (
	FilterHideMastered = "hideMastered"
	FilterHideFounders = "hideFounders"
)

// Flusher schedules and forces persistence of the change-log.
// *syncer.Syncer implements it.
type Flusher interface {
	ScheduleFlush()
	FlushNow(ctx context.Context) error
}

type nopFlusher struct{}

func (nopFlusher) ScheduleFlush()                 {}
func (nopFlusher) FlushNow(context.Context) error { return nil }

// Option configures a Tracker.
type Option func(*Tracker)

// WithFlusher sets the flusher notified after each mutation.
func WithFlusher(f Flusher) Option {
	return func(t *Tracker) {
		if f != nil {
			t.flusher = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// ReadOnly rejects every mutation. Used for shared sessions.
func ReadOnly() Option {
	return func(t *Tracker) {
		t.readOnly = true
	}
}

// Tracker holds the progress state of one session.
//
// Thread-safety: Tracker is safe for concurrent use.
type Tracker struct {
	log      *changelog.Log
	flusher  Flusher
	logger   *slog.Logger
	readOnly bool

	mu          sync.RWMutex
	cat         *catalog.Catalog
	mastered    map[string]struct{}
	partial     map[string]int
	counters    mastery.CounterValues
	filters     mastery.Filters
	stats       mastery.Stats
	ingredients mastery.Ingredients
}

// New creates a tracker with empty progress and default filters.
func New(cat *catalog.Catalog, log *changelog.Log, opts ...Option) *Tracker {
	t := &Tracker{
		log:      log,
		flusher:  nopFlusher{},
		logger:   slog.Default(),
		cat:      cat,
		mastered: make(map[string]struct{}),
		partial:  make(map[string]int),
		counters: make(mastery.CounterValues),
		filters:  mastery.DefaultFilters(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.recomputeLocked()
	return t
}

// recomputeLocked rebuilds stats and ingredients from scratch.
// Caller must hold t.mu for writing.
func (t *Tracker) recomputeLocked() {
	t.stats = mastery.ComputeStats(t.cat, mastery.State{
		Mastered:     t.mastered,
		PartialRanks: t.partial,
		Counters:     t.counters,
		Filters:      t.filters,
	})
	t.ingredients = mastery.ComputeIngredients(t.cat, t.mastered, t.partial)
}

// ReplaceCatalog swaps in a refreshed catalog and recomputes.
func (t *Tracker) ReplaceCatalog(cat *catalog.Catalog) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cat = cat
	t.normalizePartialLocked()
	t.recomputeLocked()
	t.logger.Info("catalog replaced", "items", cat.Len(), "rank", t.stats.Rank)
}

// FlushNow forces the pending change-log to the store.
func (t *Tracker) FlushNow(ctx context.Context) error {
	return t.flusher.FlushNow(ctx)
}

// Catalog returns the catalog in use.
func (t *Tracker) Catalog() *catalog.Catalog {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cat
}

// IsReadOnly reports whether mutations are rejected.
func (t *Tracker) IsReadOnly() bool {
	return t.readOnly
}

// Stats returns the derived statistics.
func (t *Tracker) Stats() mastery.Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}

// Ingredients returns a copy of the components still required.
func (t *Tracker) Ingredients() mastery.Ingredients {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.ingredients)
}

// Mastered returns the mastered item names in sorted order.
func (t *Tracker) Mastered() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Sorted(maps.Keys(t.mastered))
}

// IsMastered reports whether the item is mastered.
func (t *Tracker) IsMastered(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.mastered[catalog.NormalizeName(name)]
	return ok
}

// PartialRanks returns a copy of the partial ranks.
func (t *Tracker) PartialRanks() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.partial)
}

// Counters returns a copy of the counter values.
func (t *Tracker) Counters() mastery.CounterValues {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(mastery.CounterValues, len(mastery.Counters))
	for _, c := range mastery.Counters {
		out[c] = t.counters[c]
	}
	return out
}

// Filters returns the active filters.
func (t *Tracker) Filters() mastery.Filters {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.filters
}

// Pending returns the number of change-log entries awaiting a flush.
func (t *Tracker) Pending() int {
	return t.log.Len()
}

// Locked reports whether the item's mastery requirement is above the
// current rank.
func (t *Tracker) Locked(name string) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	item, ok := t.cat.Item(name)
	if !ok {
		return false, unknownItem("Locked", name)
	}
	return item.MasteryReq > t.stats.Rank, nil
}

// VisibleItems returns the catalog items the active filters show, in catalog
// order. hideMastered drops mastered items; hideFounders drops founders
// items that are not mastered.
func (t *Tracker) VisibleItems() []catalog.Item {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []catalog.Item
	for _, item := range t.cat.Items() {
		_, mastered := t.mastered[item.Name]
		if mastered && t.filters.HideMastered {
			continue
		}
		if !mastered && t.filters.Excludes(item.Name) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Snapshot is persisted progress used to seed a tracker.
type Snapshot struct {
	Mastered     []string
	PartialRanks map[string]int
	Counters     mastery.CounterValues
	Filters      mastery.Filters
}

// Snapshot returns the current progress.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Mastered:     t.Mastered(),
		PartialRanks: t.PartialRanks(),
		Counters:     t.Counters(),
		Filters:      t.Filters(),
	}
}

// Hydrate replaces the state with a persisted snapshot without recording
// change-log entries or scheduling a flush.
//
// The snapshot is normalised: mastered items lose any partial rank, ranks
// of 0 or less are dropped and ranks at or above an item's level cap count
// as mastered. Entries still pending in the change-log are re-applied on top
// so unsaved local mutations survive.
func (t *Tracker) Hydrate(snap Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.mastered = make(map[string]struct{}, len(snap.Mastered))
	for _, name := range snap.Mastered {
		t.mastered[catalog.NormalizeName(name)] = struct{}{}
	}

	t.partial = make(map[string]int, len(snap.PartialRanks))
	for name, rank := range snap.PartialRanks {
		name = catalog.NormalizeName(name)
		if _, ok := t.mastered[name]; ok || rank <= 0 {
			continue
		}
		t.partial[name] = rank
	}

	t.counters = make(mastery.CounterValues, len(mastery.Counters))
	for _, c := range mastery.Counters {
		if v := snap.Counters[c]; v > 0 {
			t.counters[c] = v
		}
	}
	t.filters = snap.Filters

	pending := t.log.Entries()
	for _, e := range pending {
		t.applyLocked(e)
	}
	t.normalizePartialLocked()

	t.recomputeLocked()
	t.logger.Debug("tracker hydrated",
		"mastered", len(t.mastered),
		"partial", len(t.partial),
		"pending", len(pending),
		"rank", t.stats.Rank,
	)
}

// applyLocked re-applies a pending entry's new value to the state.
func (t *Tracker) applyLocked(e changelog.Entry) {
	switch e.Kind {
	case changelog.KindField:
		switch e.Key {
		case FilterHideMastered:
			t.filters.HideMastered, _ = e.New.(bool)
		case FilterHideFounders:
			t.filters.HideFounders, _ = e.New.(bool)
		default:
			if c := mastery.Counter(e.Key); c.Valid() {
				t.counters[c], _ = e.New.(int)
			}
		}
	case changelog.KindItem:
		if mastered, _ := e.New.(bool); mastered {
			t.mastered[e.Key] = struct{}{}
			delete(t.partial, e.Key)
		} else {
			delete(t.mastered, e.Key)
		}
	case changelog.KindPartial:
		if rank, _ := e.New.(int); rank > 0 {
			if _, ok := t.mastered[e.Key]; !ok {
				t.partial[e.Key] = rank
			}
		} else {
			delete(t.partial, e.Key)
		}
	}
}

// normalizePartialLocked moves ranks at or above the level cap into the
// mastered set. Names missing from the catalog are left as they are.
func (t *Tracker) normalizePartialLocked() {
	for name, rank := range t.partial {
		item, ok := t.cat.Item(name)
		if !ok || rank < item.Levels() {
			continue
		}
		delete(t.partial, name)
		t.mastered[name] = struct{}{}
		t.logger.Warn("partial rank at level cap treated as mastered", "item", name, "rank", rank, "cap", item.Levels())
	}
}
