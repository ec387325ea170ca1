// Package session implements the single-active-session transfer subsystem.
//
// It enforces that an account holds at most one active session at a time:
// a login against an account with an existing active session is parked as a
// pending transfer until the incumbent device approves or denies it, or the
// pending window times out.
//
// The Store is the only shared mutable resource. Its per-user atomic
// operations (TryActivate, Resolve) are the sole serialization point; the
// Coordinator and the realtime layer never mutate session state directly.
//
// Transport (HTTP/WS) integration is intentionally out of scope here.
package session
