package tracker

import (
	"github.com/lwoollett/FrameHub/internal/catalog"
	"github.com/lwoollett/FrameHub/internal/mastery"
)

// MasterItem marks an item fully mastered, converting any partial rank.
// Mastering an already mastered item is a no-op.
func (t *Tracker) MasterItem(name string) error {
	const op = "MasterItem"
	if t.readOnly {
		return readOnly(op)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	item, ok := t.cat.Item(name)
	if !ok {
		return unknownItem(op, name)
	}
	if t.masterLocked(item.Name) {
		t.committedLocked(op, "item", item.Name)
	}
	return nil
}

// UnmasterItem clears an item's mastery. Unmastering an item that is not
// mastered is a no-op.
func (t *Tracker) UnmasterItem(name string) error {
	const op = "UnmasterItem"
	if t.readOnly {
		return readOnly(op)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	item, ok := t.cat.Item(name)
	if !ok {
		return unknownItem(op, name)
	}
	if t.unmasterLocked(item.Name) {
		t.committedLocked(op, "item", item.Name)
	}
	return nil
}

// SetPartialRank sets an item's partial rank, 0 ≤ rank ≤ maxRank.
//
// maxRank must be the item's level cap. rank == maxRank masters the item.
// Otherwise a mastered item is unmastered first and a rank of 0 clears the
// partial rank; items without a level cap accept only those two. The
// change-log entry is compared against the last confirmed rank, so edits
// that return to it leave nothing pending.
func (t *Tracker) SetPartialRank(name string, rank, maxRank int) error {
	const op = "SetPartialRank"
	if t.readOnly {
		return readOnly(op)
	}
	if maxRank <= 0 {
		return invalidArgument(op, name, "max rank %d must be positive", maxRank)
	}
	if rank < 0 || rank > maxRank {
		return invalidArgument(op, name, "rank %d outside [0, %d]", rank, maxRank)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	item, ok := t.cat.Item(name)
	if !ok {
		return unknownItem(op, name)
	}
	name = item.Name
	if maxRank != item.Levels() {
		return invalidArgument(op, name, "max rank %d does not match level cap %d", maxRank, item.Levels())
	}
	if rank > 0 && rank < maxRank && !item.Rankable() {
		return invalidArgument(op, name, "item has no partial ranks")
	}

	if rank == maxRank {
		if t.masterLocked(name) {
			t.committedLocked(op, "item", name)
		}
		return nil
	}

	changed := t.unmasterLocked(name)
	if t.setPartialLocked(name, rank) {
		changed = true
	}
	if changed {
		t.committedLocked(op, "item", name, "rank", rank)
	}
	return nil
}

// MasterAll masters every item the founders filter keeps visible.
// Stats are recomputed and a flush scheduled once for the whole batch.
func (t *Tracker) MasterAll() error {
	const op = "MasterAll"
	if t.readOnly {
		return readOnly(op)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for _, item := range t.bulkTargetsLocked() {
		if t.masterLocked(item.Name) {
			count++
		}
	}
	if count > 0 {
		t.committedLocked(op, "items", count)
	}
	return nil
}

// UnmasterAll unmasters every visible item and clears their partial ranks,
// with a single recompute and flush schedule. Mastered founders items stay
// visible and are unmastered too.
func (t *Tracker) UnmasterAll() error {
	const op = "UnmasterAll"
	if t.readOnly {
		return readOnly(op)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for _, item := range t.bulkTargetsLocked() {
		changed := t.unmasterLocked(item.Name)
		if t.setPartialLocked(item.Name, 0) {
			changed = true
		}
		if changed {
			count++
		}
	}
	if count > 0 {
		t.committedLocked(op, "items", count)
	}
	return nil
}

// SetCounter sets a counter to a value within [0, total].
func (t *Tracker) SetCounter(kind mastery.Counter, value int) error {
	const op = "SetCounter"
	if t.readOnly {
		return readOnly(op)
	}
	if !kind.Valid() {
		return invalidArgument(op, "", "unknown counter %q", kind)
	}
	if value < 0 || value > kind.Total() {
		return invalidArgument(op, "", "%s value %d outside [0, %d]", kind, value, kind.Total())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.counters[kind]
	if old == value {
		return nil
	}
	t.counters[kind] = value
	t.log.RecordField(string(kind), old, value)
	t.committedLocked(op, "counter", kind, "value", value)
	return nil
}

// SetFilter sets one of the visibility filters.
func (t *Tracker) SetFilter(key string, value bool) error {
	const op = "SetFilter"
	if t.readOnly {
		return readOnly(op)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var field *bool
	switch key {
	case FilterHideMastered:
		field = &t.filters.HideMastered
	case FilterHideFounders:
		field = &t.filters.HideFounders
	default:
		return invalidArgument(op, "", "unknown filter %q", key)
	}

	old := *field
	if old == value {
		return nil
	}
	*field = value
	t.log.RecordField(key, old, value)
	t.committedLocked(op, "filter", key, "value", value)
	return nil
}

// masterLocked adds name to the mastered set, converting a partial rank.
// Reports whether anything changed.
func (t *Tracker) masterLocked(name string) bool {
	if _, ok := t.mastered[name]; ok {
		return false
	}
	t.setPartialLocked(name, 0)
	t.mastered[name] = struct{}{}
	t.log.RecordItem(name, true)
	return true
}

// unmasterLocked removes name from the mastered set.
func (t *Tracker) unmasterLocked(name string) bool {
	if _, ok := t.mastered[name]; !ok {
		return false
	}
	delete(t.mastered, name)
	t.log.RecordItem(name, false)
	return true
}

// setPartialLocked stores a partial rank, 0 meaning absent.
func (t *Tracker) setPartialLocked(name string, rank int) bool {
	old := t.partial[name]
	if old == rank {
		return false
	}
	if rank == 0 {
		delete(t.partial, name)
	} else {
		t.partial[name] = rank
	}
	t.log.RecordPartial(name, old, rank)
	return true
}

// bulkTargetsLocked returns the items bulk operations act on: everything
// except founders items the filter hides. A mastered founders item is never
// hidden.
func (t *Tracker) bulkTargetsLocked() []catalog.Item {
	items := t.cat.Items()
	out := make([]catalog.Item, 0, len(items))
	for _, item := range items {
		if _, mastered := t.mastered[item.Name]; !mastered && t.filters.Excludes(item.Name) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// committedLocked finishes an accepted mutation: recompute, schedule a
// flush and log.
func (t *Tracker) committedLocked(op string, attrs ...any) {
	t.recomputeLocked()
	t.flusher.ScheduleFlush()
	t.logger.Debug(op, append(attrs, "xp", t.stats.Experience, "rank", t.stats.Rank, "pending", t.log.Len())...)
}
