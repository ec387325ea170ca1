package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	v1 "github.com/Prithvi164/LMSQMS-sub006/contracts/session/v1"
	"github.com/Prithvi164/LMSQMS-sub006/internal/session"
)

// StatusFunc returns the authoritative status for a session. Server-side this
// is the Coordinator's Status; remote clients wrap GET /session/{id}/status.
type StatusFunc func(ctx context.Context, sessionID string) (session.Status, error)

// EventHandler consumes a resolution event. Handlers must be idempotent in
// effect; the Poller already guarantees at most one invocation.
type EventHandler func(env v1.Envelope)

// Poller is the fallback consistency mechanism for a requester waiting on a
// pending transfer.
//
// It polls the authoritative status at a bounded interval and raises the same
// event the realtime channel would have delivered. Realtime delivery feeds in
// through Deliver; whichever signal observes the terminal state first wins,
// and the handler fires exactly once either way, so callers cannot tell which
// path resolved.
type Poller struct {
	log       *slog.Logger
	sessionID string
	interval  time.Duration
	status    StatusFunc
	handler   EventHandler

	resolveOnce sync.Once
	resolved    chan struct{}
}

// NewPoller constructs a Poller for one pending session.
func NewPoller(log *slog.Logger, sessionID string, interval time.Duration, status StatusFunc, handler EventHandler) *Poller {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		log:       log,
		sessionID: sessionID,
		interval:  interval,
		status:    status,
		handler:   handler,
		resolved:  make(chan struct{}),
	}
}

// Resolved is closed once the terminal event has been raised (by either path).
func (p *Poller) Resolved() <-chan struct{} { return p.resolved }

// Run polls until the session leaves pending_approval, the event arrives via
// Deliver, or the context is cancelled. The first poll fires immediately.
//
// Poll errors are transport-level by definition and are recovered locally:
// the next tick is the retry.
func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		if p.poll(ctx) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.resolved:
			return nil
		case <-t.C:
		}
	}
}

// Deliver feeds a realtime event into the same resolution path the poller
// uses. Non-resolution events are ignored.
func (p *Poller) Deliver(env v1.Envelope) {
	switch env.Type {
	case v1.TypeSessionApproval, v1.TypeSessionDenial, v1.TypeSessionExpired:
		p.fire(env)
	}
}

// poll returns true when the terminal state was observed.
func (p *Poller) poll(ctx context.Context) bool {
	st, err := p.status(ctx, p.sessionID)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.log.Info("poller.poll.fail", "session_id", p.sessionID, "err", err)
		return false
	}

	var typ string
	switch st {
	case session.StatusPendingApproval:
		return false
	case session.StatusActive, session.StatusApproved:
		typ = v1.TypeSessionApproval
		st = session.StatusApproved
	case session.StatusDenied:
		typ = v1.TypeSessionDenial
	case session.StatusExpired:
		typ = v1.TypeSessionExpired
	default:
		p.log.Info("poller.poll.unknown_status", "session_id", p.sessionID, "status", string(st))
		return false
	}

	payload, _ := json.Marshal(v1.SessionResolvedPayload{
		SessionID: p.sessionID,
		Status:    string(st),
	})
	p.fire(v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      NewRandomHex(10),
		TS:      time.Now().UTC(),
		Payload: payload,
	})
	return true
}

func (p *Poller) fire(env v1.Envelope) {
	p.resolveOnce.Do(func() {
		close(p.resolved)
		if p.handler != nil {
			p.handler(env)
		}
		p.log.Info("poller.resolved", "session_id", p.sessionID, "type", env.Type)
	})
}
