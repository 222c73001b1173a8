package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/lwoollett/FrameHub/internal/docstore"
)

// ErrInjected is returned by RecordingCommitter when a failure is queued.
var ErrInjected = errors.New("injected commit failure")

// Batch is one call to CommitBatch.
type Batch struct {
	Ref docstore.DocRef
	Ops []docstore.WriteOp
}

// RecordingCommitter records committed batches and optionally forwards them
// to a real store.
type RecordingCommitter struct {
	// Next receives each successful batch when non-nil.
	Next interface {
		CommitBatch(ctx context.Context, ref docstore.DocRef, ops []docstore.WriteOp) error
	}

	mu       sync.Mutex
	batches  []Batch
	failures int
	calls    int
	inFlight int
	maxPar   int
	gate     chan struct{}
	entered  chan struct{}
}

// FailNext makes the next n commits fail with ErrInjected.
func (c *RecordingCommitter) FailNext(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = n
}

// Block makes subsequent commits wait until Release is called. The returned
// channel receives once each time a commit starts waiting.
func (c *RecordingCommitter) Block() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gate = make(chan struct{})
	c.entered = make(chan struct{}, 16)
	return c.entered
}

// Release lets blocked commits proceed.
func (c *RecordingCommitter) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gate != nil {
		close(c.gate)
		c.gate = nil
	}
}

// CommitBatch implements the sync engine's committer.
func (c *RecordingCommitter) CommitBatch(ctx context.Context, ref docstore.DocRef, ops []docstore.WriteOp) error {
	c.mu.Lock()
	c.calls++
	c.inFlight++
	if c.inFlight > c.maxPar {
		c.maxPar = c.inFlight
	}
	gate, entered := c.gate, c.entered
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	if gate != nil {
		entered <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	if c.failures > 0 {
		c.failures--
		c.mu.Unlock()
		return ErrInjected
	}
	c.mu.Unlock()

	if c.Next != nil {
		if err := c.Next.CommitBatch(ctx, ref, ops); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.batches = append(c.batches, Batch{Ref: ref, Ops: ops})
	c.mu.Unlock()
	return nil
}

// Batches returns the successful batches in order.
func (c *RecordingCommitter) Batches() []Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Batch, len(c.batches))
	copy(out, c.batches)
	return out
}

// Calls returns how many times CommitBatch was called, failures included.
func (c *RecordingCommitter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// MaxConcurrent returns the highest number of overlapping commits observed.
func (c *RecordingCommitter) MaxConcurrent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxPar
}
