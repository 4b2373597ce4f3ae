package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueJoinCompletes(t *testing.T) {
	abort := NewAbort()
	q := NewQueue[int](4, abort)

	require.True(t, q.Put(1))
	require.True(t, q.Put(2))

	go func() {
		v, ok := q.Get()
		require.True(t, ok)
		_ = v
		q.TaskDone()
		v, ok = q.Get()
		require.True(t, ok)
		_ = v
		q.TaskDone()
	}()

	aborted := q.Join()
	assert.False(t, aborted)
	assert.Equal(t, int64(0), q.Unfinished())
}

func TestQueueJoinReusedAcrossCycles(t *testing.T) {
	abort := NewAbort()
	q := NewQueue[int](4, abort)

	for i := 0; i < 3; i++ {
		require.True(t, q.Put(i))
		go func() {
			_, ok := q.Get()
			require.True(t, ok)
			q.TaskDone()
		}()
		aborted := q.Join()
		assert.False(t, aborted)
	}
}

func TestQueueJoinReturnsOnAbort(t *testing.T) {
	abort := NewAbort()
	q := NewQueue[int](4, abort)
	require.True(t, q.Put(1))

	go func() {
		time.Sleep(10 * time.Millisecond)
		abort.Set(assert.AnError)
	}()

	aborted := q.Join()
	assert.True(t, aborted)
}

func TestQueuePutReturnsFalseAfterAbort(t *testing.T) {
	abort := NewAbort()
	q := NewQueue[int](0, abort)
	abort.Set(nil)
	assert.False(t, q.Put(1))
}

func TestQueueGetTimeoutFires(t *testing.T) {
	abort := NewAbort()
	q := NewQueue[int](1, abort)
	_, ok, timedOut := q.GetTimeout(10 * time.Millisecond)
	assert.False(t, ok)
	assert.True(t, timedOut)
}
