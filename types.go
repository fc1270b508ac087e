package gatekit

import (
	"time"

	"github.com/dealgrid/gatekit/identity"
	"github.com/dealgrid/gatekit/session"
)

// User aliases the identity model so callers that only need the root
// package do not import identity directly.
type User = identity.User

// Role aliases the identity role enum.
type Role = identity.Role

// AuthResult pairs a resolved user with the session that authenticated it.
type AuthResult struct {
	User    *identity.User
	Session *session.Session
}

// State describes where a request sits in the authentication lifecycle.
type State uint8

const (
	// StateAnonymous means no session cookie resolved to a live session.
	StateAnonymous State = iota

	// StateAuthenticating means credentials are being verified. Transient;
	// never observed outside a SignIn or SignUp call.
	StateAuthenticating

	// StateAuthenticated means a live session resolved to a user.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// StateOf reports the lifecycle state a resolved result represents.
func StateOf(result *AuthResult) State {
	if result == nil || result.User == nil || result.Session == nil {
		return StateAnonymous
	}
	if result.Session.Expired(time.Now()) {
		return StateAnonymous
	}
	return StateAuthenticated
}
