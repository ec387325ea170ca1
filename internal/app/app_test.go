package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// Exercises the full construction path end to end: New wires the store,
// coordinator, websocket gateway and session API handler, and registerHTTP
// exposes them behind one mux.
func TestNew_WiresSessionEndpoints(t *testing.T) {
	cfg := Config{
		Env:      "development",
		LogLevel: "error",
		DevUsers: "alice:secret",
	}

	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		a.coord.Close()
		closeStore(a.store, a.dbPool)
	})

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.ws, a.sessions)
	srv := httptest.NewServer(WithRequestLogging(mux, a.log))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz status=%d want 200", resp.StatusCode)
	}

	body := strings.NewReader(`{"username":"alice","password":"secret","device_info":"laptop"}`)
	resp, err = http.Post(srv.URL+"/session", "application/json", body)
	if err != nil {
		t.Fatalf("POST /session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status=%d want 200", resp.StatusCode)
	}

	var login struct {
		Status    string `json:"status"`
		SessionID string `json:"session_id"`
		Token     string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Status != "active" || login.SessionID == "" || login.Token == "" {
		t.Fatalf("unexpected login response: %+v", login)
	}

	resp, err = http.Get(srv.URL + "/session/" + login.SessionID + "/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status endpoint=%d want 200", resp.StatusCode)
	}

	var status struct {
		SessionID string `json:"session_id"`
		Status    string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.SessionID != login.SessionID || status.Status != "active" {
		t.Fatalf("unexpected status response: %+v", status)
	}
}

func TestNew_RejectsMalformedDevUsers(t *testing.T) {
	cfg := Config{
		Env:      "development",
		LogLevel: "error",
		DevUsers: "alice",
	}

	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("New must reject a dev-user entry without a password")
	}
}
