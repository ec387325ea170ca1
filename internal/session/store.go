package session

import (
	"context"
	"time"
)

// Store abstracts persistence for session and pending-transfer state.
//
// Requirements:
//   - TryActivate is atomic per user: two simultaneous logins for the same
//     user must never both admit.
//   - Resolve is idempotent: the first terminal resolution wins; later calls
//     return the prior outcome with Applied=false and no side effects.
//   - Implementations guarantee serializability per user ID. Operations on
//     different users never contend on correctness.
type Store interface {
	// TryActivate performs the atomic check-and-set for a login attempt.
	// If no active session exists for the user, it creates and returns an
	// admitted session. Otherwise it creates a pending session plus a
	// PendingTransfer contesting the incumbent.
	TryActivate(ctx context.Context, in TryActivateInput) (Activation, error)

	// Resolve applies a terminal outcome to a pending session.
	// Approved promotes the session to active and expires the incumbent in
	// the same atomic step. Returns ErrNotFound if the session has no
	// transfer record, ErrInvalidOutcome for a non-terminal outcome.
	Resolve(ctx context.Context, in ResolveInput) (Resolution, error)

	// GetByID is a point-in-time read of a session, used by the fallback path.
	GetByID(ctx context.Context, sessionID string) (Session, error)

	// GetTransfer loads the transfer record for a contested session.
	// Resolved transfers remain readable so duplicate approve/deny calls can
	// still be authorized against the recorded incumbent.
	GetTransfer(ctx context.Context, sessionID string) (PendingTransfer, error)

	// Invalidate forcibly marks the user's current active session expired.
	// It is a no-op when the user has no active session.
	Invalidate(ctx context.Context, now time.Time, userID string) error

	// UnresolvedTransfers lists transfers with no recorded outcome together
	// with their pending session's deadline. Expiry timers live in process
	// memory, so a restarted coordinator uses this to re-arm them.
	UnresolvedTransfers(ctx context.Context) ([]PendingExpiry, error)

	// Close releases store resources.
	Close() error
}

// TryActivateInput describes a login activation request.
type TryActivateInput struct {
	UserID     string
	DeviceInfo string
	Now        time.Time

	// PendingTTL bounds how long a contested login may wait for the incumbent.
	PendingTTL time.Duration
}

// ResolveInput describes a terminal resolution request.
type ResolveInput struct {
	SessionID string
	Outcome   Status
	Now       time.Time
}

// PendingExpiry identifies an unresolved pending transfer and the deadline
// after which it must expire.
type PendingExpiry struct {
	SessionID string
	ExpiresAt time.Time
}
