package sessionapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Prithvi164/LMSQMS-sub006/internal/session"
)

// callerHeader carries the caller's own session ID on approve/deny requests.
// The surrounding LMS maps its auth cookie/token to this before the request
// reaches this subsystem.
const callerHeader = "X-Session-Id"

// Handler wires the session-transfer HTTP endpoints to the Coordinator.
type Handler struct {
	log *slog.Logger
	cfg Config

	coord   *session.Coordinator
	sessCfg session.Config
}

// NewHandler constructs a session API handler.
func NewHandler(log *slog.Logger, cfg Config, sessCfg session.Config, coord *session.Coordinator) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if coord == nil {
		return nil, errors.New("sessionapi: nil coordinator")
	}

	return &Handler{
		log:     log,
		cfg:     cfg,
		coord:   coord,
		sessCfg: sessCfg,
	}, nil
}

// Register wires session routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /session", h.handleLogin)
	mux.HandleFunc("POST /session/{id}/approve", h.handleApprove)
	mux.HandleFunc("POST /session/{id}/deny", h.handleDeny)
	mux.HandleFunc("GET /session/{id}/status", h.handleStatus)
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	deviceInfo := h.deviceInfo(req.DeviceInfo, r.UserAgent())
	now := time.Now().UTC()

	out, err := h.coord.Login(r.Context(), now, session.Credentials{
		Username: req.Username,
		Password: req.Password,
	}, deviceInfo)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		h.log.Error("sessionapi.login.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	resp := loginResponse{
		Status:    string(out.Session.Status),
		SessionID: out.Session.ID,
	}
	if out.Session.Status == session.StatusActive {
		resp.Token = out.Token
	} else {
		resp.PollIntervalMS = h.sessCfg.PollInterval.Milliseconds()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleResolve(w, r, h.coord.Approve)
}

func (h *Handler) handleDeny(w http.ResponseWriter, r *http.Request) {
	h.handleResolve(w, r, h.coord.Deny)
}

func (h *Handler) handleResolve(
	w http.ResponseWriter,
	r *http.Request,
	resolve func(ctx context.Context, now time.Time, callerSessionID, sessionID string) (session.Session, error),
) {
	sessionID := strings.TrimSpace(r.PathValue("id"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing session id")
		return
	}

	caller := strings.TrimSpace(r.Header.Get(callerHeader))
	if caller == "" {
		writeError(w, http.StatusForbidden, "forbidden", "caller session required")
		return
	}

	sess, err := resolve(r.Context(), time.Now().UTC(), caller, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "unknown session")
		case errors.Is(err, session.ErrForbidden):
			writeError(w, http.StatusForbidden, "forbidden", "caller is not the active session holder")
		default:
			h.log.Error("sessionapi.resolve.fail", "session_id", sessionID, "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.PathValue("id"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing session id")
		return
	}

	sess, err := h.coord.Status(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "unknown session")
			return
		}
		h.log.Error("sessionapi.status.fail", "session_id", sessionID, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{SessionID: sess.ID, Status: string(sess.Status)})
}

// ---- helpers ----

// deviceInfo prefers the client-supplied label, falls back to the User-Agent,
// and caps the result.
func (h *Handler) deviceInfo(label, userAgent string) string {
	s := strings.TrimSpace(label)
	if s == "" {
		s = strings.TrimSpace(userAgent)
	}
	if s == "" {
		s = "unknown device"
	}

	runes := []rune(s)
	if len(runes) > h.cfg.MaxDeviceInfoChars {
		runes = runes[:h.cfg.MaxDeviceInfoChars]
		s = string(runes)
	}
	return s
}

func toSessionResponse(sess session.Session) sessionResponse {
	return sessionResponse{
		SessionID:  sess.ID,
		UserID:     sess.UserID,
		DeviceInfo: sess.DeviceInfo,
		Status:     string(sess.Status),
		CreatedAt:  sess.CreatedAt,
		ExpiresAt:  sess.ExpiresAt,
	}
}
