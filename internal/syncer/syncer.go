// Package syncer persists the change-log to the document store.
//
// A Syncer owns a single-slot debounce timer. Every ScheduleFlush resets the
// timer; when it fires the whole log is drained, converted to one atomic
// batch and committed. A failed commit puts the drained entries back so the
// next flush retries them. At most one commit is in flight at any time.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lwoollett/FrameHub/internal/changelog"
	"github.com/lwoollett/FrameHub/internal/docstore"
)

// DefaultDebounce is the quiet period before a scheduled flush runs.
const DefaultDebounce = 2500 * time.Millisecond

// Committer applies a batch of operations to one document atomically.
type Committer interface {
	CommitBatch(ctx context.Context, ref docstore.DocRef, ops []docstore.WriteOp) error
}

// Scheduler runs f after d. The returned function cancels the call and
// reports whether it was still pending.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type wallScheduler struct{}

func (wallScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithDebounce sets the quiet period before a scheduled flush.
func WithDebounce(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithScheduler replaces the wall-clock timer, mainly for tests.
func WithScheduler(sched Scheduler) Option {
	return func(s *Syncer) {
		s.scheduler = sched
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		s.logger = logger
	}
}

// WithFlushTimeout bounds flushes started by the debounce timer. Zero means
// no bound.
func WithFlushTimeout(d time.Duration) Option {
	return func(s *Syncer) {
		s.timeout = d
	}
}

// Syncer flushes a change-log to one document.
//
// Thread-safety: Syncer is safe for concurrent use.
type Syncer struct {
	log       *changelog.Log
	committer Committer
	ref       docstore.DocRef
	scheduler Scheduler
	delay     time.Duration
	timeout   time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	stop     func() bool
	gen      uint64
	inFlight chan struct{}
	closed   bool
}

// New creates a Syncer that drains log into the document at ref.
func New(log *changelog.Log, committer Committer, ref docstore.DocRef, opts ...Option) *Syncer {
	s := &Syncer{
		log:       log,
		committer: committer,
		ref:       ref,
		scheduler: wallScheduler{},
		delay:     DefaultDebounce,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ref returns the document the syncer writes to.
func (s *Syncer) Ref() docstore.DocRef {
	return s.ref
}

// ScheduleFlush starts the debounce timer, replacing any live one.
func (s *Syncer) ScheduleFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	pendingEntries.Set(float64(s.log.Len()))

	if s.closed {
		s.logger.Debug("flush not scheduled, syncer closed", "doc", s.ref)
		return
	}

	s.cancelTimerLocked()
	gen := s.gen
	s.stop = s.scheduler.AfterFunc(s.delay, func() { s.fire(gen) })
}

// Scheduled reports whether a debounce timer is live.
func (s *Syncer) Scheduled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// fire runs a timer-triggered flush unless the timer was superseded.
func (s *Syncer) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.stop = nil
	s.mu.Unlock()

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.FlushNow(ctx); err != nil {
		s.logger.Error("scheduled flush failed", "doc", s.ref, "pending", s.log.Len(), "error", err)
	}
}

// FlushNow cancels the debounce timer and commits the log if it is not
// empty. A flush already in flight is waited for first, then the log is
// checked again, so two commits never overlap.
//
// On commit failure the drained entries are restored and the error returned.
func (s *Syncer) FlushNow(ctx context.Context) error {
	for {
		s.mu.Lock()
		s.cancelTimerLocked()

		if wait := s.inFlight; wait != nil {
			s.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return fmt.Errorf("wait for in-flight flush: %w", ctx.Err())
			}
		}

		entries := s.log.Drain()
		if len(entries) == 0 {
			s.mu.Unlock()
			flushTotal.WithLabelValues("empty").Inc()
			return nil
		}

		done := make(chan struct{})
		s.inFlight = done
		s.mu.Unlock()

		err := s.commit(ctx, entries)

		s.mu.Lock()
		s.inFlight = nil
		close(done)
		s.mu.Unlock()

		return err
	}
}

func (s *Syncer) commit(ctx context.Context, entries []changelog.Entry) error {
	ops := BuildBatch(entries)

	start := time.Now()
	err := s.committer.CommitBatch(ctx, s.ref, ops)
	commitDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		s.log.Restore(entries)
		pendingEntries.Set(float64(s.log.Len()))
		flushTotal.WithLabelValues("failed").Inc()
		s.logger.Warn("flush failed, entries restored", "doc", s.ref, "entries", len(entries), "error", err)
		return fmt.Errorf("commit %s: %w", s.ref, err)
	}

	pendingEntries.Set(float64(s.log.Len()))
	flushTotal.WithLabelValues("committed").Inc()
	committedEntries.Add(float64(len(entries)))
	s.logger.Info("flush committed", "doc", s.ref, "entries", len(entries))
	return nil
}

// Close flushes whatever is pending and stops accepting schedules. The
// syncer is closed even when the final flush fails.
func (s *Syncer) Close(ctx context.Context) error {
	err := s.FlushNow(ctx)

	s.mu.Lock()
	s.closed = true
	s.cancelTimerLocked()
	s.mu.Unlock()

	return err
}

// cancelTimerLocked stops the live timer and invalidates any callback that
// has already been dispatched. Caller must hold s.mu.
func (s *Syncer) cancelTimerLocked() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	s.gen++
}
