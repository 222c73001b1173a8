// Package session assembles a tracking session: it opens the document
// store, resolves the catalog, hydrates a tracker from the user's document
// and wires the sync engine behind it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lwoollett/FrameHub/internal/catalog"
	"github.com/lwoollett/FrameHub/internal/changelog"
	"github.com/lwoollett/FrameHub/internal/docstore"
	"github.com/lwoollett/FrameHub/internal/mastery"
	"github.com/lwoollett/FrameHub/internal/syncer"
	"github.com/lwoollett/FrameHub/internal/tracker"
)

// Kind is the type of session.
type Kind string

const (
	// KindAuthenticated tracks a signed-in user's own document.
	KindAuthenticated Kind = "authenticated"
	// KindAnonymous tracks a device-local document with a generated id.
	KindAnonymous Kind = "anonymous"
	// KindShared views another user's document without modifying it.
	KindShared Kind = "shared"
)

// Collections holding progress documents.
const (
	CollectionMastery          = "masteryData"
	CollectionAnonymousMastery = "anonymousMasteryData"
)

// ParseKind validates a session kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindAuthenticated, KindAnonymous, KindShared:
		return k, nil
	default:
		return "", fmt.Errorf("invalid session kind %q (must be authenticated, anonymous or shared)", s)
	}
}

// Collection returns the collection the kind's documents live in.
func (k Kind) Collection() string {
	if k == KindAnonymous {
		return CollectionAnonymousMastery
	}
	return CollectionMastery
}

// Options configure Open.
type Options struct {
	Kind   Kind
	UserID string // Required unless Kind is anonymous.

	Store  *docstore.Store
	Source catalog.Source

	Debounce        time.Duration // Zero means syncer.DefaultDebounce.
	RefreshInterval time.Duration // Minimum gap between catalog version checks.
	Scheduler       syncer.Scheduler
	Logger          *slog.Logger
}

// Session is an open tracking session.
type Session struct {
	kind    Kind
	ref     docstore.DocRef
	store   *docstore.Store
	loader  *catalog.Loader
	log     *changelog.Log
	syncer  *syncer.Syncer // nil for shared sessions
	tracker *tracker.Tracker
	logger  *slog.Logger
}

// Open resolves the catalog, reads the session's document and returns a
// hydrated session. The store stays owned by the caller until Close.
//
// A missing document is an empty progress state. Failing to obtain any
// catalog returns an error wrapping catalog.ErrNoCatalog.
func Open(ctx context.Context, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Store == nil {
		return nil, errors.New("open session: store is required")
	}
	if opts.Source == nil {
		return nil, errors.New("open session: catalog source is required")
	}

	id := opts.UserID
	if id == "" {
		if opts.Kind != KindAnonymous {
			return nil, fmt.Errorf("open session: %s session requires a user id", opts.Kind)
		}
		generated, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("open session: generate anonymous id: %w", err)
		}
		id = generated.String()
	}

	s := &Session{
		kind:   opts.Kind,
		ref:    docstore.DocRef{Collection: opts.Kind.Collection(), ID: id},
		store:  opts.Store,
		log:    changelog.New(),
		logger: logger.With("doc", opts.Kind.Collection()+"/"+id),
	}

	s.loader = catalog.NewLoader(opts.Source, opts.Store,
		catalog.WithRefreshInterval(opts.RefreshInterval),
		catalog.WithLoaderLogger(s.logger),
	)
	cat, err := s.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	trackerOpts := []tracker.Option{tracker.WithLogger(s.logger)}
	if opts.Kind == KindShared {
		trackerOpts = append(trackerOpts, tracker.ReadOnly())
	} else {
		syncOpts := []syncer.Option{syncer.WithLogger(s.logger), syncer.WithDebounce(opts.Debounce)}
		if opts.Scheduler != nil {
			syncOpts = append(syncOpts, syncer.WithScheduler(opts.Scheduler))
		}
		s.syncer = syncer.New(s.log, opts.Store, s.ref, syncOpts...)
		trackerOpts = append(trackerOpts, tracker.WithFlusher(s.syncer))
	}
	s.tracker = tracker.New(cat, s.log, trackerOpts...)

	if err := s.Reload(ctx); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	s.logger.Info("session opened", "kind", opts.Kind, "items", cat.Len(), "rank", s.tracker.Stats().Rank)
	return s, nil
}

// Reload re-reads the document and hydrates the tracker. Pending local
// changes are kept on top of the stored state.
func (s *Session) Reload(ctx context.Context) error {
	doc, err := s.store.Get(ctx, s.ref)
	if errors.Is(err, docstore.ErrNotFound) {
		doc, err = docstore.Document{}, nil
	}
	if err != nil {
		return fmt.Errorf("read progress: %w", err)
	}
	s.tracker.Hydrate(SnapshotFromDocument(doc))
	return nil
}

// RefreshCatalog asks the source for a newer catalog and swaps it in.
func (s *Session) RefreshCatalog(ctx context.Context) (bool, error) {
	cat, changed, err := s.loader.Refresh(ctx)
	if err != nil {
		return false, err
	}
	if changed {
		s.tracker.ReplaceCatalog(cat)
	}
	return changed, nil
}

// Close flushes pending changes. The store is not closed. A failed flush is
// returned; the changes stay in the session's log.
func (s *Session) Close(ctx context.Context) error {
	if s.syncer == nil {
		return nil
	}
	if err := s.syncer.Close(ctx); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	s.logger.Info("session closed")
	return nil
}

// Kind returns the session kind.
func (s *Session) Kind() Kind { return s.kind }

// Ref returns the tracked document.
func (s *Session) Ref() docstore.DocRef { return s.ref }

// Tracker returns the session's tracker.
func (s *Session) Tracker() *tracker.Tracker { return s.tracker }

// Loader returns the session's catalog loader.
func (s *Session) Loader() *catalog.Loader { return s.loader }

// SnapshotFromDocument converts a stored document into a tracker snapshot.
// Absent filters default to true.
func SnapshotFromDocument(doc docstore.Document) tracker.Snapshot {
	counters := make(mastery.CounterValues, len(mastery.Counters))
	for _, c := range mastery.Counters {
		counters[c] = doc.Int(string(c))
	}

	return tracker.Snapshot{
		Mastered:     doc.Strings(syncer.FieldMastered),
		PartialRanks: doc.IntMap(syncer.FieldPartiallyMastered),
		Counters:     counters,
		Filters: mastery.Filters{
			HideMastered: doc.Bool(tracker.FilterHideMastered, true),
			HideFounders: doc.Bool(tracker.FilterHideFounders, true),
		},
	}
}
