// Package pipeline implements the cancellable, joinable queue network that
// connects the Walker, Stage A, Stage B, and Stage C (spec §5, §9). It is
// grounded on the teacher's dirQueue/entryCh/inFlight trio in
// internal/scan/scanner.go and worker.go, generalized from a single bounded
// channel with an atomic counter into a reusable joinable-queue type shared
// by every stage boundary.
package pipeline

import "sync"

// Abort is the set-once, observe-many event shared across every stage of
// one volume scan (spec §5 "shared mutable state" (b)). It is safe for
// concurrent use; Set is idempotent.
type Abort struct {
	once sync.Once
	ch   chan struct{}
	errOnce sync.Once
	err     error
	mu      sync.Mutex
}

// NewAbort returns an unset abort signal.
func NewAbort() *Abort {
	return &Abort{ch: make(chan struct{})}
}

// Set fires the signal. The first non-nil err passed to Set is retained;
// the channel is closed once, on the first call.
func (a *Abort) Set(err error) {
	a.mu.Lock()
	if a.err == nil {
		a.err = err
	}
	a.mu.Unlock()
	a.once.Do(func() { close(a.ch) })
}

// Fired reports whether Set has been called.
func (a *Abort) Fired() bool {
	select {
	case <-a.ch:
		return true
	default:
		return false
	}
}

// Err returns the first non-nil error passed to Set, or nil if none was.
func (a *Abort) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Done returns the channel closed when the signal fires, for use in select
// statements alongside context cancellation and queue operations.
func (a *Abort) Done() <-chan struct{} {
	return a.ch
}
