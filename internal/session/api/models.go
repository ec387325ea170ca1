package sessionapi

import "time"

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	DeviceInfo string `json:"device_info"`
}

// loginResponse covers both outcomes. Token is present only for immediate
// admission; PollIntervalMS is the advertised fallback cadence for a pending
// transfer.
type loginResponse struct {
	Status         string `json:"status"`
	SessionID      string `json:"session_id"`
	Token          string `json:"token,omitempty"`
	PollIntervalMS int64  `json:"poll_interval_ms,omitempty"`
}

type sessionResponse struct {
	SessionID  string     `json:"session_id"`
	UserID     string     `json:"user_id"`
	DeviceInfo string     `json:"device_info"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type statusResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}
