package session

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	// ErrNotFound is returned when a referenced session or transfer does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrForbidden is returned when approve/deny is attempted by a caller that is
	// not the recorded incumbent for the pending transfer.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidCredentials is returned by Login when the credential collaborator
	// rejects the supplied credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidOutcome is returned when Resolve is called with a non-terminal
	// outcome. It indicates a programming error, not a caller race.
	ErrInvalidOutcome = errors.New("invalid resolution outcome")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
