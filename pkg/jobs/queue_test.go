package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForState(t *testing.T, q *Queue, id, status string) JobState {
	t.Helper()
	var st JobState
	require.Eventually(t, func() bool {
		var ok bool
		st, ok = q.State(id)
		return ok && st.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	q := NewQueue("reoptimize", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "reoptimize"}))

	st := waitForState(t, q, "job-1", StateSucceeded)
	assert.Equal(t, 2, st.Attempts)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestQueuePermanentErrorSkipsRetry(t *testing.T) {
	var calls int32
	q := NewQueue("reoptimize", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return Permanent(errors.New("bad payload"))
	}, QueueConfig{MaxRetries: 5, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-2", Type: "reoptimize"}))

	st := waitForState(t, q, "job-2", StateFailed)
	assert.Equal(t, "bad payload", st.Error)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("reoptimize", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "job-3"}))
}

func TestQueueFullBuffer(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("reoptimize", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	waitForState(t, q, "a", StateRunning)
	require.NoError(t, q.Enqueue(Job{ID: "b"}))

	err := q.Enqueue(Job{ID: "c"})
	assert.ErrorIs(t, err, ErrQueueFull)
	_, known := q.State("c")
	assert.False(t, known)
}
