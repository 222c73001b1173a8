package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwoollett/FrameHub/internal/docstore"
)

func TestManualScheduler_FiresInDeadlineOrder(t *testing.T) {
	s := NewManualScheduler()
	var fired []string

	s.AfterFunc(3*time.Second, func() { fired = append(fired, "late") })
	s.AfterFunc(time.Second, func() { fired = append(fired, "early") })
	assert.Equal(t, 2, s.Pending())

	s.Advance(999 * time.Millisecond)
	assert.Empty(t, fired)

	s.Advance(5 * time.Second)
	assert.Equal(t, []string{"early", "late"}, fired)
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, 5999*time.Millisecond, s.Now())
}

func TestManualScheduler_Stop(t *testing.T) {
	s := NewManualScheduler()
	fired := false

	stop := s.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, stop())
	assert.False(t, stop(), "second stop reports the timer is gone")

	s.Advance(time.Minute)
	assert.False(t, fired)
}

func TestManualScheduler_CallbackMayReschedule(t *testing.T) {
	s := NewManualScheduler()
	count := 0
	var tick func()
	tick = func() {
		count++
		s.AfterFunc(time.Second, tick)
	}
	s.AfterFunc(time.Second, tick)

	s.Advance(time.Second)
	s.Advance(time.Second)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, s.Pending())
}

func TestRecordingCommitter(t *testing.T) {
	c := &RecordingCommitter{}
	ref := docstore.DocRef{Collection: "masteryData", ID: "u"}
	ops := []docstore.WriteOp{docstore.MergeFields(map[string]any{"missions": 1})}

	c.FailNext(1)
	assert.ErrorIs(t, c.CommitBatch(context.Background(), ref, ops), ErrInjected)
	require.NoError(t, c.CommitBatch(context.Background(), ref, ops))

	assert.Equal(t, 2, c.Calls())
	require.Len(t, c.Batches(), 1)
	assert.Equal(t, ref, c.Batches()[0].Ref)
}

func TestRecordingCommitter_Block(t *testing.T) {
	c := &RecordingCommitter{}
	entered := c.Block()

	done := make(chan error, 1)
	go func() { done <- c.CommitBatch(context.Background(), docstore.DocRef{}, nil) }()

	<-entered
	assert.Empty(t, c.Batches())
	c.Release()
	require.NoError(t, <-done)
	assert.Len(t, c.Batches(), 1)
	assert.Equal(t, 1, c.MaxConcurrent())
}
