package session

import "time"

// Status is the lifecycle state of a session record.
type Status string

const (
	// StatusActive is the single admitted session for a user.
	StatusActive Status = "active"
	// StatusPendingApproval is a contested login waiting for the incumbent.
	StatusPendingApproval Status = "pending_approval"
	// StatusApproved marks a transfer that was approved by the incumbent.
	// The session itself is promoted to active; Approved survives as the
	// recorded transfer outcome.
	StatusApproved Status = "approved"
	// StatusDenied marks a contested session rejected by the incumbent.
	StatusDenied Status = "denied"
	// StatusExpired marks a session that timed out or was superseded.
	StatusExpired Status = "expired"
)

// TerminalOutcome reports whether s is a valid terminal resolution outcome
// for a pending transfer.
func TerminalOutcome(s Status) bool {
	switch s {
	case StatusApproved, StatusDenied, StatusExpired:
		return true
	default:
		return false
	}
}

// Session represents one authenticated login attempt.
//
// Invariant: for a given UserID, at most one Session has StatusActive at any
// instant. Pending sessions do not count toward the invariant and exist only
// until resolved.
type Session struct {
	ID         string
	UserID     string
	DeviceInfo string
	Status     Status
	CreatedAt  time.Time

	// ExpiresAt is set only while the session is pending approval.
	ExpiresAt *time.Time
}

// PendingTransfer links a contested login to the incumbent session it wants
// to replace. It is created atomically with the pending session and resolved
// exactly once.
type PendingTransfer struct {
	SessionID         string
	ExistingSessionID string
	UserID            string
	CreatedAt         time.Time
}

// Activation is the result of TryActivate: either an immediate admission or
// a contested login parked behind a pending transfer.
type Activation struct {
	// Admitted is set when no active session existed for the user.
	Admitted *Session

	// Pending and Transfer are set when the login is contested.
	Pending  *Session
	Transfer *PendingTransfer
}

// Contested reports whether the login was parked behind a pending transfer.
func (a Activation) Contested() bool { return a.Transfer != nil }

// Resolution is the result of Resolve.
//
// Applied is true only for the first resolution of a session. Duplicate
// resolutions (double-click, concurrent approve/deny, late timeout) return
// the prior outcome with Applied=false so callers skip side effects.
type Resolution struct {
	Session Session
	Outcome Status
	Applied bool
}
