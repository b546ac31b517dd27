package engine

import (
	"sync"
	"time"
)

// ScheduledStop is a pending delayed Stop. It resolves exactly once:
// either with Stop's result when the timer fires, or with ErrStopCanceled.
type ScheduledStop struct {
	deadline time.Time

	mu       sync.Mutex
	timer    *time.Timer
	fired    bool
	resolved bool
	err      error
	done     chan struct{}
}

func newScheduledStop(delay time.Duration, stop func() error) *ScheduledStop {
	ss := &ScheduledStop{
		deadline: time.Now().Add(delay),
		done:     make(chan struct{}),
	}

	ss.mu.Lock()
	ss.timer = time.AfterFunc(delay, func() { ss.fire(stop) })
	ss.mu.Unlock()
	return ss
}

func (ss *ScheduledStop) fire(stop func() error) {
	ss.mu.Lock()
	if ss.resolved {
		ss.mu.Unlock()
		return
	}
	ss.fired = true
	ss.mu.Unlock()

	err := stop()

	ss.mu.Lock()
	ss.resolve(err)
	ss.mu.Unlock()
}

// cancel resolves ss with ErrStopCanceled unless it already fired.
func (ss *ScheduledStop) cancel() bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.fired || ss.resolved {
		return false
	}
	ss.timer.Stop()
	ss.resolve(ErrStopCanceled)
	return true
}

func (ss *ScheduledStop) resolve(err error) {
	ss.resolved = true
	ss.err = err
	close(ss.done)
}

// Cancel prevents the stop from happening. It reports false if the stop
// already fired or was canceled.
func (ss *ScheduledStop) Cancel() bool {
	return ss.cancel()
}

// Deadline is when the stop is due.
func (ss *ScheduledStop) Deadline() time.Time {
	return ss.deadline
}

// Done is closed once the stop has run or been canceled.
func (ss *ScheduledStop) Done() <-chan struct{} {
	return ss.done
}

// Err returns the result: nil or Stop's error after firing,
// ErrStopCanceled after cancellation, nil while still pending.
func (ss *ScheduledStop) Err() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.err
}
