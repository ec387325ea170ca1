// Package v1 defines the LMS session-transfer wire contract (v1).
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Type constants (wire-stable).
const (
	// TypeSessionRequest notifies the incumbent that a new device wants its session
	// (server -> incumbent).
	TypeSessionRequest = "session_request"

	// TypeSessionApproval notifies the requester that the transfer was approved
	// (server -> requester).
	TypeSessionApproval = "session_approval"

	// TypeSessionDenial notifies the requester that the transfer was denied
	// (server -> requester).
	TypeSessionDenial = "session_denial"

	// TypeSessionExpired is sent to the requester when the pending transfer timed out,
	// and to the incumbent when an approval ended its own session (server -> client).
	TypeSessionExpired = "session_expired"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeSessionRequest,
		TypeSessionApproval,
		TypeSessionDenial,
		TypeSessionExpired,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

// SessionRequestPayload asks the incumbent to approve or deny a login attempt
// from another device.
type SessionRequestPayload struct {
	SessionID  string `json:"session_id"`
	DeviceInfo string `json:"device_info"`
}

// SessionResolvedPayload reports the terminal outcome of a pending transfer.
// It is the payload for session_approval, session_denial and session_expired.
type SessionResolvedPayload struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
