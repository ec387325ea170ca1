package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// PostgresStore implements Store using PostgreSQL (lms.sessions,
// lms.pending_transfers).
//
// Per-user serialization uses pg_advisory_xact_lock on the user ID: unlike a
// row lock it also serializes the "no active session yet" case where there is
// no row to lock. A partial unique index on (user_id) WHERE status='active'
// backs the single-active invariant at the schema level.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("session: nil db pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// Close closes the store. The pool lifecycle is owned by the app, so this is
// a no-op.
func (s *PostgresStore) Close() error { return nil }

// TryActivate performs the admit-or-contest check-and-set inside one
// transaction holding the per-user advisory lock.
func (s *PostgresStore) TryActivate(ctx context.Context, in TryActivateInput) (Activation, error) {
	if in.UserID == "" {
		return Activation{}, errors.New("missing user id")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Activation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockUserTx(ctx, tx, in.UserID); err != nil {
		return Activation{}, err
	}

	var incumbentID string
	err = tx.QueryRow(ctx, `
		SELECT id FROM lms.sessions
		WHERE user_id = $1 AND status = 'active'
	`, in.UserID).Scan(&incumbentID)

	contested := true
	if errors.Is(err, pgx.ErrNoRows) {
		contested = false
	} else if err != nil {
		return Activation{}, err
	}

	id := ulid.Make().String()

	if !contested {
		_, err = tx.Exec(ctx, `
			INSERT INTO lms.sessions (id, user_id, device_info, status, created_at, expires_at)
			VALUES ($1, $2, $3, 'active', $4, NULL)
		`, id, in.UserID, in.DeviceInfo, now)
		if err != nil {
			return Activation{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return Activation{}, err
		}

		return Activation{Admitted: &Session{
			ID:         id,
			UserID:     in.UserID,
			DeviceInfo: in.DeviceInfo,
			Status:     StatusActive,
			CreatedAt:  now,
		}}, nil
	}

	exp := now.Add(in.PendingTTL)

	_, err = tx.Exec(ctx, `
		INSERT INTO lms.sessions (id, user_id, device_info, status, created_at, expires_at)
		VALUES ($1, $2, $3, 'pending_approval', $4, $5)
	`, id, in.UserID, in.DeviceInfo, now, exp)
	if err != nil {
		return Activation{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO lms.pending_transfers (session_id, existing_session_id, user_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, id, incumbentID, in.UserID, now)
	if err != nil {
		return Activation{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Activation{}, err
	}

	return Activation{
		Pending: &Session{
			ID:         id,
			UserID:     in.UserID,
			DeviceInfo: in.DeviceInfo,
			Status:     StatusPendingApproval,
			CreatedAt:  now,
			ExpiresAt:  &exp,
		},
		Transfer: &PendingTransfer{
			SessionID:         id,
			ExistingSessionID: incumbentID,
			UserID:            in.UserID,
			CreatedAt:         now,
		},
	}, nil
}

// Resolve applies the first terminal outcome for a pending session under the
// per-user advisory lock, so it cannot interleave with a concurrent
// TryActivate or another Resolve for the same user.
func (s *PostgresStore) Resolve(ctx context.Context, in ResolveInput) (Resolution, error) {
	if !TerminalOutcome(in.Outcome) {
		return Resolution{}, ErrInvalidOutcome
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Resolution{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// First read resolves the user, then the advisory lock stabilizes the
	// transfer row for the re-read.
	var userID string
	err = tx.QueryRow(ctx, `
		SELECT user_id FROM lms.pending_transfers WHERE session_id = $1
	`, in.SessionID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Resolution{}, ErrNotFound
	}
	if err != nil {
		return Resolution{}, err
	}

	if err := lockUserTx(ctx, tx, userID); err != nil {
		return Resolution{}, err
	}

	var (
		tr       PendingTransfer
		resolved *time.Time
		outcome  *string
	)
	err = tx.QueryRow(ctx, `
		SELECT session_id, existing_session_id, user_id, created_at, resolved_at, outcome
		FROM lms.pending_transfers
		WHERE session_id = $1
	`, in.SessionID).Scan(&tr.SessionID, &tr.ExistingSessionID, &tr.UserID, &tr.CreatedAt, &resolved, &outcome)
	if err != nil {
		return Resolution{}, err
	}

	if outcome != nil {
		sess, err := getSessionTx(ctx, tx, in.SessionID)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Session: sess, Outcome: Status(*outcome), Applied: false}, nil
	}

	cur, err := getSessionTx(ctx, tx, in.SessionID)
	if err != nil {
		return Resolution{}, err
	}
	if !CanResolve(cur.Status) {
		return Resolution{Session: cur, Outcome: cur.Status, Applied: false}, nil
	}

	switch in.Outcome {
	case StatusApproved:
		// Expire whatever is active for the user (the recorded incumbent or
		// a successor), then promote the pending session.
		_, err = tx.Exec(ctx, `
			UPDATE lms.sessions
			SET status = 'expired', expires_at = NULL
			WHERE user_id = $1 AND status = 'active' AND id <> $2
		`, tr.UserID, in.SessionID)
		if err != nil {
			return Resolution{}, err
		}

		_, err = tx.Exec(ctx, `
			UPDATE lms.sessions
			SET status = 'active', expires_at = NULL
			WHERE id = $1
		`, in.SessionID)
		if err != nil {
			return Resolution{}, err
		}

	case StatusDenied, StatusExpired:
		_, err = tx.Exec(ctx, `
			UPDATE lms.sessions
			SET status = $2
			WHERE id = $1
		`, in.SessionID, string(in.Outcome))
		if err != nil {
			return Resolution{}, err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE lms.pending_transfers
		SET resolved_at = $2, outcome = $3
		WHERE session_id = $1
	`, in.SessionID, now, string(in.Outcome))
	if err != nil {
		return Resolution{}, err
	}

	sess, err := getSessionTx(ctx, tx, in.SessionID)
	if err != nil {
		return Resolution{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Resolution{}, err
	}

	return Resolution{Session: sess, Outcome: in.Outcome, Applied: true}, nil
}

// GetByID loads a session row by ID.
func (s *PostgresStore) GetByID(ctx context.Context, sessionID string) (Session, error) {
	var sess Session
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, device_info, status, created_at, expires_at
		FROM lms.sessions
		WHERE id = $1
	`, sessionID).Scan(&sess.ID, &sess.UserID, &sess.DeviceInfo, &sess.Status, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// GetTransfer loads the transfer record for a contested session.
func (s *PostgresStore) GetTransfer(ctx context.Context, sessionID string) (PendingTransfer, error) {
	var tr PendingTransfer
	err := s.pool.QueryRow(ctx, `
		SELECT session_id, existing_session_id, user_id, created_at
		FROM lms.pending_transfers
		WHERE session_id = $1
	`, sessionID).Scan(&tr.SessionID, &tr.ExistingSessionID, &tr.UserID, &tr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PendingTransfer{}, ErrNotFound
	}
	if err != nil {
		return PendingTransfer{}, err
	}
	return tr, nil
}

// UnresolvedTransfers lists transfers that still await a terminal outcome.
func (s *PostgresStore) UnresolvedTransfers(ctx context.Context) ([]PendingExpiry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pt.session_id, s.expires_at
		FROM lms.pending_transfers pt
		JOIN lms.sessions s ON s.id = pt.session_id
		WHERE pt.outcome IS NULL AND s.expires_at IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingExpiry
	for rows.Next() {
		var p PendingExpiry
		if err := rows.Scan(&p.SessionID, &p.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Invalidate expires the user's current active session, if any.
func (s *PostgresStore) Invalidate(ctx context.Context, now time.Time, userID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE lms.sessions
		SET status = 'expired', expires_at = NULL
		WHERE user_id = $1 AND status = 'active'
	`, userID)
	return err
}

func getSessionTx(ctx context.Context, tx pgx.Tx, sessionID string) (Session, error) {
	var sess Session
	err := tx.QueryRow(ctx, `
		SELECT id, user_id, device_info, status, created_at, expires_at
		FROM lms.sessions
		WHERE id = $1
	`, sessionID).Scan(&sess.ID, &sess.UserID, &sess.DeviceInfo, &sess.Status, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

func lockUserTx(ctx context.Context, tx pgx.Tx, userID string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return fmt.Errorf("session: user lock: %w", err)
	}
	return nil
}
