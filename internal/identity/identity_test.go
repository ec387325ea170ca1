package identity

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryAuthenticator_RegisterAndAuthenticate(t *testing.T) {
	t.Parallel()

	a := NewMemoryAuthenticator()
	ctx := context.Background()

	id, err := a.Register("alice", "hunter2")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id == "" {
		t.Fatalf("empty user id")
	}

	got, err := a.Authenticate(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got != id {
		t.Fatalf("user id=%q want %q", got, id)
	}
}

func TestMemoryAuthenticator_RejectsBadCredentials(t *testing.T) {
	t.Parallel()

	a := NewMemoryAuthenticator()
	ctx := context.Background()

	if _, err := a.Register("alice", "hunter2"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := a.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err=%v want ErrInvalidCredentials", err)
	}
	if _, err := a.Authenticate(ctx, "nobody", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user err=%v want ErrInvalidCredentials", err)
	}
}

func TestMemoryAuthenticator_ReRegisterKeepsUserID(t *testing.T) {
	t.Parallel()

	a := NewMemoryAuthenticator()
	ctx := context.Background()

	id1, _ := a.Register("alice", "old-password")
	id2, err := a.Register("alice", "new-password")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("re-register changed user id: %q -> %q", id1, id2)
	}

	if _, err := a.Authenticate(ctx, "alice", "old-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working")
	}
	if _, err := a.Authenticate(ctx, "alice", "new-password"); err != nil {
		t.Fatalf("new password: %v", err)
	}
}

func TestMemoryAuthenticator_RejectsEmptyInputs(t *testing.T) {
	t.Parallel()

	a := NewMemoryAuthenticator()

	if _, err := a.Register("", "pw"); err == nil {
		t.Fatalf("empty username must fail")
	}
	if _, err := a.Register("alice", ""); err == nil {
		t.Fatalf("empty password must fail")
	}
}
