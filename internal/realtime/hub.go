package realtime

import (
	"log/slog"
	"sync"

	v1 "github.com/Prithvi164/LMSQMS-sub006/contracts/session/v1"
)

// Hub owns the live channels for approval-workflow events, keyed by
// (userID, sessionID).
//
// Delivery semantics:
// - At most one channel is registered per (userID, sessionID); a later
//   Connect for the same key replaces (and closes) the previous channel.
// - Publish targets exactly one channel and never blocks: with no channel
//   registered, or a full queue, the event is dropped. The fallback poller
//   exists precisely because this path is best-effort.
type Hub struct {
	log *slog.Logger

	mu       sync.RWMutex
	channels map[string]map[string]*Client // userID -> sessionID -> client
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:      log,
		channels: make(map[string]map[string]*Client),
	}
}

// Connect registers a live channel. Last connection wins: a previous channel
// for the same (userID, sessionID) is closed and replaced.
func (h *Hub) Connect(client *Client) {
	if h == nil || client == nil || client.UserID == "" || client.SessionID == "" {
		return
	}

	var prev *Client

	h.mu.Lock()
	byUser := h.channels[client.UserID]
	if byUser == nil {
		byUser = make(map[string]*Client)
		h.channels[client.UserID] = byUser
	}
	prev = byUser[client.SessionID]
	byUser[client.SessionID] = client
	h.mu.Unlock()

	// Close the superseded channel after releasing the lock so its teardown
	// cannot deadlock against a concurrent Publish.
	if prev != nil && prev != client {
		prev.Close()
		h.log.Info("hub.connect.replace", "user_id", client.UserID, "session_id", client.SessionID)
	}

	// A replacement swaps an existing map entry, so the registered-channel
	// count only grows when there was no previous channel.
	if prev == nil {
		hubConnections.Inc()
	}
	h.log.Info("hub.connect", "user_id", client.UserID, "session_id", client.SessionID)
}

// Disconnect deregisters a channel. The client pointer must match the
// registered one; a channel replaced by a newer Connect is left alone.
func (h *Hub) Disconnect(client *Client) {
	if h == nil || client == nil {
		return
	}

	removed := false

	h.mu.Lock()
	if byUser := h.channels[client.UserID]; byUser != nil {
		if cur := byUser[client.SessionID]; cur == client {
			delete(byUser, client.SessionID)
			if len(byUser) == 0 {
				delete(h.channels, client.UserID)
			}
			removed = true
		}
	}
	h.mu.Unlock()

	client.Close()

	if removed {
		hubConnections.Dec()
		h.log.Info("hub.disconnect", "user_id", client.UserID, "session_id", client.SessionID)
	}
}

// Publish delivers an envelope to the channel registered for
// (userID, sessionID). Returns false when the event was dropped.
func (h *Hub) Publish(userID, sessionID string, env v1.Envelope) bool {
	if h == nil || userID == "" || sessionID == "" {
		return false
	}

	h.mu.RLock()
	var target *Client
	if byUser := h.channels[userID]; byUser != nil {
		target = byUser[sessionID]
	}
	h.mu.RUnlock()

	if target == nil {
		hubDropped.WithLabelValues(env.Type, "no_channel").Inc()
		return false
	}

	select {
	case <-target.Done():
		hubDropped.WithLabelValues(env.Type, "closed").Inc()
		return false
	default:
	}

	select {
	case target.Send <- env:
		hubDelivered.WithLabelValues(env.Type).Inc()
		return true
	default:
		// Drop rather than block the coordinator on a slow consumer.
		hubDropped.WithLabelValues(env.Type, "backpressure").Inc()
		return false
	}
}
