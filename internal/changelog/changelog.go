// Package changelog records the net deltas that have not yet been confirmed
// by the remote store.
//
// The log holds at most one entry per (Kind, Key). Recording a second edit to
// the same key updates the existing entry in place; an edit that returns the
// key to the value it had when the entry was created removes the entry.
package changelog

import "sync"

// Kind tags the shape of an entry.
type Kind string

const (
	// KindField is a scalar document field such as a counter or filter.
	KindField Kind = "field"
	// KindItem toggles membership of an item in the mastered set.
	KindItem Kind = "item"
	// KindPartial changes an item's partial rank. A rank of 0 means absent.
	KindPartial Kind = "partial"
)

// Entry is one pending net delta. Old is the confirmed value the delta
// started from; New is the latest local value. Values must be comparable.
type Entry struct {
	Kind Kind
	Key  string
	Old  any
	New  any
}

type entryKey struct {
	kind Kind
	key  string
}

func (e Entry) id() entryKey { return entryKey{e.Kind, e.Key} }

// Log is an ordered set of pending entries. It is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns an empty log.
func New() *Log {
	return &Log{}
}

// Record merges e into the log.
//
// If an entry for (e.Kind, e.Key) exists its New is replaced and the entry is
// dropped when New equals its Old. Otherwise e is appended, unless it is
// already a no-op. Record reports whether the log holds an entry for the key
// afterwards.
func (l *Log) Record(e Entry) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i := l.index(e.id()); i >= 0 {
		l.entries[i].New = e.New
		if l.entries[i].New == l.entries[i].Old {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return false
		}
		return true
	}

	if e.Old == e.New {
		return false
	}
	l.entries = append(l.entries, e)
	return true
}

// RecordField records a scalar field change from old to value.
func (l *Log) RecordField(field string, old, value any) bool {
	return l.Record(Entry{Kind: KindField, Key: field, Old: old, New: value})
}

// RecordItem records that item became mastered or unmastered.
func (l *Log) RecordItem(item string, mastered bool) bool {
	return l.Record(Entry{Kind: KindItem, Key: item, Old: !mastered, New: mastered})
}

// RecordPartial records a partial rank change. Ranks of 0 mean absent.
func (l *Log) RecordPartial(item string, old, rank int) bool {
	return l.Record(Entry{Kind: KindPartial, Key: item, Old: old, New: rank})
}

// Lookup returns the pending entry for (kind, key).
func (l *Log) Lookup(kind Kind, key string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i := l.index(entryKey{kind, key}); i >= 0 {
		return l.entries[i], true
	}
	return Entry{}, false
}

// Drain returns every entry and empties the log.
func (l *Log) Drain() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.entries
	l.entries = nil
	return out
}

// Restore puts entries returned by Drain back in front of anything recorded
// since. When both sides hold an entry for the same key they are merged: the
// restored Old is kept, the newer New wins, and the merged entry disappears if
// the two cancel out.
func (l *Log) Restore(drained []Entry) {
	if len(drained) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	newer := make(map[entryKey]int, len(l.entries))
	for i, e := range l.entries {
		newer[e.id()] = i
	}

	merged := make([]Entry, 0, len(drained)+len(l.entries))
	consumed := make(map[int]bool)
	for _, d := range drained {
		if i, ok := newer[d.id()]; ok {
			consumed[i] = true
			d.New = l.entries[i].New
			if d.New == d.Old {
				continue
			}
		}
		merged = append(merged, d)
	}
	for i, e := range l.entries {
		if !consumed[i] {
			merged = append(merged, e)
		}
	}
	l.entries = merged
}

// Entries returns a copy of the pending entries in order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of pending entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset discards every pending entry.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

func (l *Log) index(k entryKey) int {
	for i, e := range l.entries {
		if e.id() == k {
			return i
		}
	}
	return -1
}
