package pipeline

import (
	"sync"
	"time"
)

// Queue is a bounded, joinable FIFO of items of type T (spec §5, §9). It
// generalizes the teacher's dirQueue-plus-inFlight-counter pattern
// (internal/scan/scanner.go) into a standalone type reusable at all three
// stage boundaries (walker->Stage A, Stage A->Stage C, and the per-process
// absorb queue).
//
// Producers call Put after incrementing the unfinished count (done
// automatically inside Put); consumers call Get to receive an item and
// TaskDone once they have finished processing it. Join blocks until the
// unfinished count reaches zero or abort fires, whichever comes first
// (spec §5 "cancellable join", §9 "the standard bounded joinable queue does
// not expose an abortable join").
type Queue[T any] struct {
	ch         chan T
	abort      *Abort
	mu         sync.Mutex
	cond       *sync.Cond
	unfinished int64
	closeOnce  sync.Once
}

// NewQueue returns a queue with the given capacity, sharing abort with the
// rest of the pipeline. The queue may be driven through many Put/Join
// cycles over its lifetime (the per-worker absorb queue is joined once per
// directory task, then reused for the next).
func NewQueue[T any](capacity int, abort *Abort) *Queue[T] {
	q := &Queue[T]{
		ch:    make(chan T, capacity),
		abort: abort,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put enqueues one item, blocking if the queue is full, and increments the
// unfinished-task count. It returns false without enqueueing if abort has
// already fired.
func (q *Queue[T]) Put(item T) bool {
	q.addUnfinished(1)
	select {
	case q.ch <- item:
		return true
	case <-q.abort.Done():
		q.addUnfinished(-1)
		return false
	}
}

func (q *Queue[T]) addUnfinished(delta int64) {
	q.mu.Lock()
	q.unfinished += delta
	if q.unfinished == 0 {
		q.cond.Broadcast()
	}
	q.mu.Unlock()
}

// Get receives the next item. ok is false if the queue has been Closed and
// drained, or if abort fired while waiting.
func (q *Queue[T]) Get() (item T, ok bool) {
	select {
	case item, ok = <-q.ch:
		return item, ok
	case <-q.abort.Done():
		var zero T
		return zero, false
	}
}

// GetTimeout receives the next item with a bounded wait (spec §5 "all
// blocking waits elsewhere ... use bounded timeouts"). timedOut is true if
// neither an item nor closure nor abort arrived within d.
func (q *Queue[T]) GetTimeout(d time.Duration) (item T, ok bool, timedOut bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case item, ok = <-q.ch:
		return item, ok, false
	case <-q.abort.Done():
		var zero T
		return zero, false, false
	case <-timer.C:
		var zero T
		return zero, false, true
	}
}

// TaskDone marks one previously-Put item as finished, waking any Join
// waiter once the unfinished count reaches zero.
func (q *Queue[T]) TaskDone() {
	q.addUnfinished(-1)
}

// Unfinished returns the current unfinished-task count.
func (q *Queue[T]) Unfinished() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}

// Join blocks until the unfinished count reaches zero or abort fires
// (spec §5 "join-or-abort", §9). aborted reports which condition woke it.
// A background waiter wakes the condition variable on abort so Join never
// waits past the signal even with no further TaskDone calls.
func (q *Queue[T]) Join() (aborted bool) {
	waking := make(chan struct{})
	go func() {
		select {
		case <-q.abort.Done():
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		case <-waking:
		}
	}()
	defer close(waking)

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.unfinished != 0 && !q.abort.Fired() {
		q.cond.Wait()
	}
	return q.abort.Fired()
}

// Close closes the underlying channel so pending Get calls return ok=false
// once drained. Safe to call more than once.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() { close(q.ch) })
}

// Len returns the number of items currently buffered (for metrics/logging,
// mirroring the teacher's verbose queueLen diagnostics).
func (q *Queue[T]) Len() int {
	return len(q.ch)
}
