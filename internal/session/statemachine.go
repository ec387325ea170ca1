package session

import (
	"sync"
	"time"
)

// CanResolve reports whether a session in state from may still receive a
// terminal resolution. Only pending sessions are resolvable; every terminal
// state is final.
func CanResolve(from Status) bool {
	return from == StatusPendingApproval
}

// TimeoutScheduler owns the delayed expiry actions for pending transfers.
//
// One timer is scheduled per pending session at creation time and cancelled
// on any terminal resolution, so no timer dangles past its session. A late
// firing is harmless either way: Resolve is idempotent and the losing side
// becomes a no-op.
type TimeoutScheduler struct {
	expire func(sessionID string)

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewTimeoutScheduler constructs a scheduler that invokes expire when a
// pending session's window elapses. expire runs on the timer goroutine.
func NewTimeoutScheduler(expire func(sessionID string)) *TimeoutScheduler {
	return &TimeoutScheduler{
		expire: expire,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms the expiry timer for a pending session.
// Scheduling the same session again replaces the previous timer.
func (t *TimeoutScheduler) Schedule(sessionID string, d time.Duration) {
	if t == nil || sessionID == "" || d <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	if old, ok := t.timers[sessionID]; ok {
		old.Stop()
	}

	t.timers[sessionID] = time.AfterFunc(d, func() {
		t.Cancel(sessionID)
		t.expire(sessionID)
	})
}

// Cancel disarms the expiry timer for a session (idempotent).
func (t *TimeoutScheduler) Cancel(sessionID string) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if tm, ok := t.timers[sessionID]; ok {
		tm.Stop()
		delete(t.timers, sessionID)
	}
}

// Stop cancels all outstanding timers and rejects further scheduling.
func (t *TimeoutScheduler) Stop() {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	for id, tm := range t.timers {
		tm.Stop()
		delete(t.timers, id)
	}
}
