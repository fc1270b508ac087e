package gatekit

import "errors"

// Sentinel errors returned by the Auth orchestrator. Callers branch with
// errors.Is; the concrete cause from the underlying store is wrapped in.
var (
	// ErrUnconfigured is returned when no backing store has been
	// configured. Auth operations fail closed without touching Redis.
	ErrUnconfigured = errors.New("gatekit: backing store not configured")

	// ErrDuplicateEmail is returned by SignUp when the email address is
	// already claimed by another account.
	ErrDuplicateEmail = errors.New("gatekit: email already registered")

	// ErrInvalidCredentials is returned by SignIn for any verification
	// failure. Unknown email and wrong password produce the same error.
	ErrInvalidCredentials = errors.New("gatekit: invalid credentials")

	// ErrSessionNotFound is returned when a session id does not resolve
	// to a live session.
	ErrSessionNotFound = errors.New("gatekit: session not found")

	// ErrStoreUnavailable is returned when the backing store is
	// configured but unreachable.
	ErrStoreUnavailable = errors.New("gatekit: store unavailable")

	// ErrInvalidInput is returned when a request carries malformed
	// fields, such as an empty email or an unknown role.
	ErrInvalidInput = errors.New("gatekit: invalid input")

	// ErrInvalidConfig is returned by Build and Validate when the
	// configuration is internally inconsistent.
	ErrInvalidConfig = errors.New("gatekit: invalid config")
)
