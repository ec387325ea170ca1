package v1

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEnvelopeValidate(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	payload, _ := json.Marshal(SessionRequestPayload{SessionID: "s1", DeviceInfo: "test"})

	cases := []struct {
		name    string
		env     Envelope
		wantErr bool
	}{
		{name: "valid request", env: Envelope{V: Version, Type: TypeSessionRequest, ID: "e1", TS: now, Payload: payload}},
		{name: "valid approval", env: Envelope{V: Version, Type: TypeSessionApproval, TS: now}},
		{name: "valid denial", env: Envelope{V: Version, Type: TypeSessionDenial}},
		{name: "valid expired", env: Envelope{V: Version, Type: TypeSessionExpired}},
		{name: "valid error", env: Envelope{V: Version, Type: TypeError}},
		{name: "missing version", env: Envelope{Type: TypeSessionRequest}, wantErr: true},
		{name: "wrong version", env: Envelope{V: "v2", Type: TypeSessionRequest}, wantErr: true},
		{name: "missing type", env: Envelope{V: Version}, wantErr: true},
		{name: "unknown type", env: Envelope{V: Version, Type: "session_hijack"}, wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.env.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	t.Parallel()

	payload, _ := json.Marshal(SessionResolvedPayload{SessionID: "s1", Status: "denied", Message: "transfer denied"})
	in := Envelope{V: Version, Type: TypeSessionDenial, ID: "e1", TS: time.Now().UTC(), Payload: payload}

	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Envelope
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := out.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	var p SessionResolvedPayload
	if err := json.Unmarshal(out.Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.SessionID != "s1" || p.Status != "denied" {
		t.Fatalf("unexpected payload: %+v", p)
	}
}
