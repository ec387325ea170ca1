package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/Prithvi164/LMSQMS-sub006/contracts/session/v1"
)

// Authenticator is the credential-check collaborator. The surrounding LMS
// owns user records; this subsystem only needs a user ID for valid credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (userID string, err error)
}

// Publisher delivers approval-workflow events to the live channel registered
// for (userID, sessionID). Delivery is best-effort: false means no channel
// was connected and the event was dropped (the fallback poller covers this).
type Publisher interface {
	Publish(userID, sessionID string, env v1.Envelope) bool
}

// Credentials are the opaque login inputs forwarded to the Authenticator.
type Credentials struct {
	Username string
	Password string
}

// LoginOutcome is the result of a login request.
//
// When the session was admitted immediately, Token carries the opaque session
// token. When the login is contested, Token is empty and Session.Status is
// pending_approval; the caller polls or subscribes on Session.ID.
type LoginOutcome struct {
	Session Session
	Token   string
}

// Coordinator is the façade over the store, the state machine timers, and the
// realtime publisher. All state transitions flow through here; the UI layer
// consumes the returned outcomes as pure reactions.
type Coordinator struct {
	log   *slog.Logger
	cfg   Config
	store Store
	auth  Authenticator
	hub   Publisher

	timers *TimeoutScheduler
}

// NewCoordinator wires a Coordinator. The hub may be a no-op publisher in
// tests; the store and authenticator are required.
func NewCoordinator(log *slog.Logger, cfg Config, store Store, auth Authenticator, hub Publisher) *Coordinator {
	if log == nil {
		log = slog.Default()
	}

	c := &Coordinator{
		log:   log,
		cfg:   cfg,
		store: store,
		auth:  auth,
		hub:   hub,
	}
	c.timers = NewTimeoutScheduler(c.expireTransfer)
	return c
}

// Close cancels all pending-transfer timers.
func (c *Coordinator) Close() {
	c.timers.Stop()
}

// ResumePendingTimers re-arms expiry timers for transfers that were still
// pending when the process last stopped. Timers live in memory only, so
// without this a restart would leave persisted pending sessions waiting
// forever. Overdue transfers are expired immediately.
func (c *Coordinator) ResumePendingTimers(ctx context.Context) error {
	pend, err := c.store.UnresolvedTransfers(ctx)
	if err != nil {
		return fmt.Errorf("resume pending timers: %w", err)
	}

	now := time.Now().UTC()
	for _, p := range pend {
		if d := p.ExpiresAt.Sub(now); d > 0 {
			c.timers.Schedule(p.SessionID, d)
		} else {
			c.expireTransfer(p.SessionID)
		}
	}

	if len(pend) > 0 {
		c.log.Info("coordinator.resume", "pending_transfers", len(pend))
	}
	return nil
}

// Login validates credentials and runs the admit-or-contest activation.
//
// On contest, the incumbent is notified over the realtime channel with a
// session_request event and the expiry timer for the pending transfer is
// armed. Returns ErrInvalidCredentials when the collaborator rejects.
func (c *Coordinator) Login(ctx context.Context, now time.Time, creds Credentials, deviceInfo string) (LoginOutcome, error) {
	userID, err := c.auth.Authenticate(ctx, creds.Username, creds.Password)
	if err != nil {
		return LoginOutcome{}, fmt.Errorf("login: %w", ErrInvalidCredentials)
	}

	act, err := c.store.TryActivate(ctx, TryActivateInput{
		UserID:     userID,
		DeviceInfo: deviceInfo,
		Now:        now,
		PendingTTL: c.cfg.PendingTimeout,
	})
	if err != nil {
		return LoginOutcome{}, fmt.Errorf("login: %w", err)
	}

	if !act.Contested() {
		c.log.Info("coordinator.login.admitted", "user_id", userID, "session_id", act.Admitted.ID)
		return LoginOutcome{Session: *act.Admitted, Token: newOpaqueToken()}, nil
	}

	c.timers.Schedule(act.Pending.ID, c.cfg.PendingTimeout)

	payload, _ := json.Marshal(v1.SessionRequestPayload{
		SessionID:  act.Pending.ID,
		DeviceInfo: act.Pending.DeviceInfo,
	})
	delivered := c.hub.Publish(userID, act.Transfer.ExistingSessionID, newEnvelope(v1.TypeSessionRequest, payload, now))

	c.log.Info("coordinator.login.contested",
		"user_id", userID,
		"session_id", act.Pending.ID,
		"incumbent_session_id", act.Transfer.ExistingSessionID,
		"request_delivered", delivered,
	)

	return LoginOutcome{Session: *act.Pending}, nil
}

// Approve resolves a pending transfer in favor of the requester.
//
// Only the recorded incumbent may approve. On the first resolution the
// incumbent's own session is expired, the requester is promoted to active,
// and both parties are notified. Duplicate calls echo the prior outcome.
func (c *Coordinator) Approve(ctx context.Context, now time.Time, callerSessionID, sessionID string) (Session, error) {
	tr, err := c.authorizeIncumbent(ctx, callerSessionID, sessionID)
	if err != nil {
		return Session{}, err
	}

	res, err := c.store.Resolve(ctx, ResolveInput{SessionID: sessionID, Outcome: StatusApproved, Now: now})
	if err != nil {
		return Session{}, fmt.Errorf("approve: %w", err)
	}

	if res.Applied {
		c.timers.Cancel(sessionID)

		c.publishResolved(tr.UserID, sessionID, v1.TypeSessionApproval, StatusApproved, "", now)
		// The approving device just ended its own session; tell it so the UI
		// can react without waiting for a page reload.
		c.publishResolved(tr.UserID, tr.ExistingSessionID, v1.TypeSessionExpired, StatusExpired,
			"this session was transferred to another device", now)

		c.log.Info("coordinator.approve", "user_id", tr.UserID, "session_id", sessionID, "incumbent_session_id", tr.ExistingSessionID)
	}

	return res.Session, nil
}

// Deny resolves a pending transfer against the requester. The incumbent
// session is left untouched.
func (c *Coordinator) Deny(ctx context.Context, now time.Time, callerSessionID, sessionID string) (Session, error) {
	tr, err := c.authorizeIncumbent(ctx, callerSessionID, sessionID)
	if err != nil {
		return Session{}, err
	}

	res, err := c.store.Resolve(ctx, ResolveInput{SessionID: sessionID, Outcome: StatusDenied, Now: now})
	if err != nil {
		return Session{}, fmt.Errorf("deny: %w", err)
	}

	if res.Applied {
		c.timers.Cancel(sessionID)
		c.publishResolved(tr.UserID, sessionID, v1.TypeSessionDenial, StatusDenied,
			"transfer denied by the active device", now)

		c.log.Info("coordinator.deny", "user_id", tr.UserID, "session_id", sessionID)
	}

	return res.Session, nil
}

// Status is the point-in-time read used by the fallback poller and the
// status endpoint.
func (c *Coordinator) Status(ctx context.Context, sessionID string) (Session, error) {
	return c.store.GetByID(ctx, sessionID)
}

// authorizeIncumbent verifies the caller is the incumbent recorded on the
// transfer. An unknown caller session maps to ErrForbidden, not ErrNotFound,
// to avoid leaking which session IDs exist.
func (c *Coordinator) authorizeIncumbent(ctx context.Context, callerSessionID, sessionID string) (PendingTransfer, error) {
	tr, err := c.store.GetTransfer(ctx, sessionID)
	if err != nil {
		return PendingTransfer{}, err
	}

	caller, err := c.store.GetByID(ctx, callerSessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PendingTransfer{}, ErrForbidden
		}
		return PendingTransfer{}, err
	}

	if caller.ID != tr.ExistingSessionID || caller.UserID != tr.UserID {
		return PendingTransfer{}, ErrForbidden
	}

	return tr, nil
}

// expireTransfer is the scheduler callback for the pending-window timeout.
// It runs on the timer goroutine, so it carries its own context and reports
// failures only to the log.
func (c *Coordinator) expireTransfer(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()

	tr, err := c.store.GetTransfer(ctx, sessionID)
	if err != nil {
		c.log.Error("coordinator.expire.lookup.fail", "session_id", sessionID, "err", err)
		return
	}

	res, err := c.store.Resolve(ctx, ResolveInput{SessionID: sessionID, Outcome: StatusExpired, Now: now})
	if err != nil {
		c.log.Error("coordinator.expire.fail", "session_id", sessionID, "err", err)
		return
	}
	if !res.Applied {
		// Lost the race against an approve/deny; nothing to do.
		return
	}

	c.publishResolved(tr.UserID, sessionID, v1.TypeSessionExpired, StatusExpired,
		"transfer request timed out", now)

	c.log.Info("coordinator.expire", "user_id", tr.UserID, "session_id", sessionID)
}

func (c *Coordinator) publishResolved(userID, targetSessionID, eventType string, outcome Status, msg string, now time.Time) {
	payload, _ := json.Marshal(v1.SessionResolvedPayload{
		SessionID: targetSessionID,
		Status:    string(outcome),
		Message:   msg,
	})
	if !c.hub.Publish(userID, targetSessionID, newEnvelope(eventType, payload, now)) {
		c.log.Info("coordinator.publish.drop", "type", eventType, "user_id", userID, "session_id", targetSessionID)
	}
}

func newEnvelope(typ string, payload json.RawMessage, ts time.Time) v1.Envelope {
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      newRandomHex(10),
		TS:      ts,
		Payload: payload,
	}
}

// newOpaqueToken returns the opaque bearer token handed to admitted sessions.
// Token verification beyond the session record itself belongs to the
// surrounding LMS and is out of scope here.
func newOpaqueToken() string {
	return newRandomHex(32)
}

func newRandomHex(nBytes int) string {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}
