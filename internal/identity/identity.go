// Package identity is the credential-check seam to the surrounding LMS.
//
// User management (registration, profile, roles) lives outside this
// subsystem; the session coordinator only needs "are these credentials valid,
// and for which user ID". MemoryAuthenticator is the dev/test implementation;
// deployments plug the LMS user service in behind the same interface.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/argon2"
)

// ErrInvalidCredentials is returned for unknown users and wrong passwords
// alike; callers must not be able to distinguish the two.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Argon2id parameters. Balanced for interactive login latency.
const (
	argonMemoryKiB   = 64 * 1024
	argonIterations  = 1
	argonParallelism = 4
	argonSaltLen     = 16
	argonKeyLen      = 32
)

type userRecord struct {
	userID string
	salt   []byte
	key    []byte
}

// MemoryAuthenticator is an in-memory credential store with Argon2id hashes.
type MemoryAuthenticator struct {
	mu    sync.RWMutex
	users map[string]userRecord // username -> record

	// dummy salt/key give unknown-user lookups the same hashing cost as a
	// real verification (timing resistance).
	dummySalt []byte
	dummyKey  []byte
}

// NewMemoryAuthenticator constructs an empty in-memory authenticator.
func NewMemoryAuthenticator() *MemoryAuthenticator {
	a := &MemoryAuthenticator{users: make(map[string]userRecord)}
	a.dummySalt = newSalt()
	a.dummyKey = deriveKey("dummy-password-for-timing-only", a.dummySalt)
	return a
}

// Register adds a user and returns the assigned user ID.
// Registering an existing username replaces its password.
func (a *MemoryAuthenticator) Register(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", errors.New("username and password are required")
	}

	salt := newSalt()
	rec := userRecord{
		userID: ulid.Make().String(),
		salt:   salt,
		key:    deriveKey(password, salt),
	}

	a.mu.Lock()
	if prev, ok := a.users[username]; ok {
		rec.userID = prev.userID
	}
	a.users[username] = rec
	a.mu.Unlock()

	return rec.userID, nil
}

// Authenticate verifies credentials and returns the owning user ID.
func (a *MemoryAuthenticator) Authenticate(ctx context.Context, username, password string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	a.mu.RLock()
	rec, ok := a.users[strings.TrimSpace(username)]
	a.mu.RUnlock()

	if !ok {
		// Burn the same hashing cost as a real check.
		_ = subtle.ConstantTimeCompare(deriveKey(password, a.dummySalt), a.dummyKey)
		return "", ErrInvalidCredentials
	}

	if subtle.ConstantTimeCompare(deriveKey(password, rec.salt), rec.key) != 1 {
		return "", ErrInvalidCredentials
	}
	return rec.userID, nil
}

func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonIterations, argonMemoryKiB, argonParallelism, argonKeyLen)
}

func newSalt() []byte {
	b := make([]byte, argonSaltLen)
	_, _ = rand.Read(b)
	return b
}
