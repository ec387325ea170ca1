package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// InMemoryStore is the dev/no-DB fallback Store implementation.
//
// A single mutex serializes all operations, which trivially satisfies the
// per-user atomicity contract. The Postgres store is the production path.
type InMemoryStore struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	activeByUser map[string]string
	transfers    map[string]*transferRecord
}

// transferRecord keeps resolved transfers around so duplicate resolutions can
// return the recorded outcome and late approve/deny calls can still be
// authorized against the incumbent.
type transferRecord struct {
	PendingTransfer
	outcome Status // zero until resolved
}

// NewInMemoryStore constructs an in-memory Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:     make(map[string]*Session),
		activeByUser: make(map[string]string),
		transfers:    make(map[string]*transferRecord),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// TryActivate performs the admit-or-contest check-and-set under the store lock.
func (s *InMemoryStore) TryActivate(ctx context.Context, in TryActivateInput) (Activation, error) {
	if in.UserID == "" {
		return Activation{}, errors.New("missing user id")
	}
	if err := ctx.Err(); err != nil {
		return Activation{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	incumbentID, contested := s.activeByUser[in.UserID]

	sess := &Session{
		ID:         ulid.Make().String(),
		UserID:     in.UserID,
		DeviceInfo: in.DeviceInfo,
		CreatedAt:  now,
	}

	if !contested {
		sess.Status = StatusActive
		s.sessions[sess.ID] = sess
		s.activeByUser[in.UserID] = sess.ID

		admitted := *sess
		return Activation{Admitted: &admitted}, nil
	}

	exp := now.Add(in.PendingTTL)
	sess.Status = StatusPendingApproval
	sess.ExpiresAt = &exp
	s.sessions[sess.ID] = sess

	tr := &transferRecord{
		PendingTransfer: PendingTransfer{
			SessionID:         sess.ID,
			ExistingSessionID: incumbentID,
			UserID:            in.UserID,
			CreatedAt:         now,
		},
	}
	s.transfers[sess.ID] = tr

	pending := *sess
	transfer := tr.PendingTransfer
	return Activation{Pending: &pending, Transfer: &transfer}, nil
}

// Resolve applies the first terminal outcome for a pending session and
// returns the prior outcome for any later call.
func (s *InMemoryStore) Resolve(ctx context.Context, in ResolveInput) (Resolution, error) {
	if !TerminalOutcome(in.Outcome) {
		return Resolution{}, ErrInvalidOutcome
	}
	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tr, ok := s.transfers[in.SessionID]
	if !ok {
		return Resolution{}, ErrNotFound
	}
	sess, ok := s.sessions[in.SessionID]
	if !ok {
		return Resolution{}, ErrNotFound
	}

	// First resolution wins; everything later is a no-op echo.
	if tr.outcome != "" {
		return Resolution{Session: *sess, Outcome: tr.outcome, Applied: false}, nil
	}
	if !CanResolve(sess.Status) {
		return Resolution{Session: *sess, Outcome: sess.Status, Applied: false}, nil
	}

	switch in.Outcome {
	case StatusApproved:
		// Supersede whatever is currently active for the user, not only the
		// recorded incumbent, so the single-active invariant holds even when
		// the incumbent changed since the transfer was created.
		if curID, ok := s.activeByUser[tr.UserID]; ok && curID != sess.ID {
			if cur := s.sessions[curID]; cur != nil {
				cur.Status = StatusExpired
			}
		}
		if inc := s.sessions[tr.ExistingSessionID]; inc != nil && inc.Status == StatusActive {
			inc.Status = StatusExpired
		}

		sess.Status = StatusActive
		sess.ExpiresAt = nil
		s.activeByUser[tr.UserID] = sess.ID

	case StatusDenied, StatusExpired:
		sess.Status = in.Outcome
	}

	tr.outcome = in.Outcome
	return Resolution{Session: *sess, Outcome: in.Outcome, Applied: true}, nil
}

// GetByID loads a session snapshot by ID.
func (s *InMemoryStore) GetByID(ctx context.Context, sessionID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return *sess, nil
}

// GetTransfer loads the transfer record for a contested session.
func (s *InMemoryStore) GetTransfer(ctx context.Context, sessionID string) (PendingTransfer, error) {
	if err := ctx.Err(); err != nil {
		return PendingTransfer{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tr, ok := s.transfers[sessionID]
	if !ok {
		return PendingTransfer{}, ErrNotFound
	}
	return tr.PendingTransfer, nil
}

// UnresolvedTransfers lists transfers that still await a terminal outcome.
func (s *InMemoryStore) UnresolvedTransfers(ctx context.Context) ([]PendingExpiry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []PendingExpiry
	for id, tr := range s.transfers {
		if tr.outcome != "" {
			continue
		}
		sess, ok := s.sessions[id]
		if !ok || sess.ExpiresAt == nil {
			continue
		}
		out = append(out, PendingExpiry{SessionID: id, ExpiresAt: *sess.ExpiresAt})
	}
	return out, nil
}

// Invalidate expires the user's current active session, if any.
func (s *InMemoryStore) Invalidate(ctx context.Context, now time.Time, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	curID, ok := s.activeByUser[userID]
	if !ok {
		return nil
	}
	if cur := s.sessions[curID]; cur != nil {
		cur.Status = StatusExpired
	}
	delete(s.activeByUser, userID)
	return nil
}
