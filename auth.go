package gatekit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dealgrid/gatekit/identity"
	"github.com/dealgrid/gatekit/kv"
	"github.com/dealgrid/gatekit/password"
	"github.com/dealgrid/gatekit/redirect"
	"github.com/dealgrid/gatekit/session"
)

// Auth is the orchestrator tying the identity store, the session store and
// the redirect engine together behind one API. Construct it with a Builder.
//
// Every operation degrades gracefully when the backing store is not
// configured: mutations return ErrUnconfigured without touching the store,
// and CurrentUser resolves to anonymous.
type Auth struct {
	config   Config
	kv       *kv.Store
	hasher   *password.Hasher
	users    *identity.Store
	sessions *session.Store
	engine   *redirect.Engine
	audit    *auditDispatcher
	metrics  *Metrics
	logger   *slog.Logger
}

// SignUp creates an account and opens its first session. Duplicate emails
// return ErrDuplicateEmail; malformed input returns ErrInvalidInput.
func (a *Auth) SignUp(ctx context.Context, input identity.CreateInput, plaintext string) (*AuthResult, error) {
	if !a.kv.Configured() {
		a.metrics.Inc(MetricUnconfigured)
		return nil, ErrUnconfigured
	}

	user, err := a.users.Create(ctx, input, plaintext)
	if err != nil {
		a.emitAuth(ctx, AuditSignUp, "", "", false, err)
		switch {
		case errors.Is(err, identity.ErrDuplicateEmail):
			a.metrics.Inc(MetricSignUpDuplicate)
		case errors.Is(err, identity.ErrInvalidInput):
			a.metrics.Inc(MetricSignUpFailure)
		}
		return nil, a.convertIdentityErr(err)
	}

	sess, err := a.sessions.Create(ctx, user.ID, a.config.Session.TTL)
	if err != nil {
		a.emitAuth(ctx, AuditSignUp, user.ID, "", false, err)
		return nil, a.convertStoreErr(err)
	}

	a.metrics.Inc(MetricSignUpSuccess)
	a.metrics.Inc(MetricSessionCreated)
	a.emitAuth(ctx, AuditSignUp, user.ID, sess.ID, true, nil)

	return &AuthResult{User: user, Session: sess}, nil
}

// SignIn verifies credentials and opens a fresh session. Every verification
// failure, unknown email included, returns ErrInvalidCredentials.
func (a *Auth) SignIn(ctx context.Context, email, plaintext string) (*AuthResult, error) {
	if !a.kv.Configured() {
		a.metrics.Inc(MetricUnconfigured)
		return nil, ErrUnconfigured
	}

	user := a.users.VerifyPassword(ctx, email, plaintext)
	if user == nil {
		a.metrics.Inc(MetricSignInFailure)
		a.emitAuth(ctx, AuditSignIn, "", "", false, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	sess, err := a.sessions.Create(ctx, user.ID, a.config.Session.TTL)
	if err != nil {
		a.emitAuth(ctx, AuditSignIn, user.ID, "", false, err)
		return nil, a.convertStoreErr(err)
	}

	a.metrics.Inc(MetricSignInSuccess)
	a.metrics.Inc(MetricSessionCreated)
	a.emitAuth(ctx, AuditSignIn, user.ID, sess.ID, true, nil)

	return &AuthResult{User: user, Session: sess}, nil
}

// SignOut deletes the session. Unknown and already-deleted ids are a no-op.
func (a *Auth) SignOut(ctx context.Context, sessionID string) error {
	if !a.kv.Configured() {
		return nil
	}
	if err := a.sessions.Delete(ctx, sessionID); err != nil {
		return a.convertStoreErr(err)
	}
	a.metrics.Inc(MetricSignOut)
	a.emitAuth(ctx, AuditSignOut, "", sessionID, true, nil)
	return nil
}

// SignOutAll deletes every live session belonging to the user.
func (a *Auth) SignOutAll(ctx context.Context, userID string) error {
	if !a.kv.Configured() {
		return nil
	}
	if err := a.sessions.DeleteAllForUser(ctx, userID); err != nil {
		return a.convertStoreErr(err)
	}
	a.metrics.Inc(MetricSignOutAll)
	a.emitAuth(ctx, AuditSignOutAll, userID, "", true, nil)
	return nil
}

// CurrentUser resolves a session id to its user. It never returns an error
// for "not signed in": a missing, expired or malformed session, an
// unconfigured store, and a deleted user all resolve to (nil, nil).
// Only infrastructure failures surface as errors.
func (a *Auth) CurrentUser(ctx context.Context, sessionID string) (*AuthResult, error) {
	if sessionID == "" || !a.kv.Configured() {
		return nil, nil
	}

	sess, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, nil
		}
		return nil, a.convertStoreErr(err)
	}

	user, err := a.users.FindByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			// Session outlived its account. Reap it.
			_ = a.sessions.Delete(ctx, sessionID)
			return nil, nil
		}
		return nil, a.convertStoreErr(err)
	}

	return &AuthResult{User: user, Session: sess}, nil
}

// RefreshSession slides the session's expiry a full TTL from now. The
// session must still be live; a vanished session returns ErrSessionNotFound.
func (a *Auth) RefreshSession(ctx context.Context, sessionID string) (*session.Session, error) {
	if !a.kv.Configured() {
		return nil, ErrUnconfigured
	}
	sess, err := a.sessions.Refresh(ctx, sessionID, a.config.Session.TTL)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			a.metrics.Inc(MetricSessionExpired)
			return nil, ErrSessionNotFound
		}
		return nil, a.convertStoreErr(err)
	}
	a.metrics.Inc(MetricSessionRefreshed)
	a.emitAuth(ctx, AuditSessionRefresh, sess.UserID, sess.ID, true, nil)
	return sess, nil
}

// ChangePassword verifies the old password, stores the new hash and revokes
// every session of the user. The caller signs the user back in afterwards.
func (a *Auth) ChangePassword(ctx context.Context, userID, oldPlaintext, newPlaintext string) error {
	if !a.kv.Configured() {
		return ErrUnconfigured
	}

	current, err := a.users.PasswordHash(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			a.metrics.Inc(MetricPasswordChangeInvalidOld)
			return ErrInvalidCredentials
		}
		return a.convertStoreErr(err)
	}
	if !a.hasher.Verify(oldPlaintext, current) {
		a.metrics.Inc(MetricPasswordChangeInvalidOld)
		a.emitAuth(ctx, AuditPasswordChange, userID, "", false, ErrInvalidCredentials)
		return ErrInvalidCredentials
	}

	if err := a.users.SetPassword(ctx, userID, newPlaintext); err != nil {
		return a.convertIdentityErr(err)
	}
	if err := a.sessions.DeleteAllForUser(ctx, userID); err != nil {
		return a.convertStoreErr(err)
	}

	a.metrics.Inc(MetricPasswordChangeSuccess)
	a.emitAuth(ctx, AuditPasswordChange, userID, "", true, nil)
	return nil
}

// UpdateProfile applies a partial profile update. Email is immutable.
func (a *Auth) UpdateProfile(ctx context.Context, userID string, patch identity.Patch) (*identity.User, error) {
	if !a.kv.Configured() {
		return nil, ErrUnconfigured
	}
	user, err := a.users.Update(ctx, userID, patch)
	if err != nil {
		return nil, a.convertIdentityErr(err)
	}
	return user, nil
}

// ActiveSessionIDs lists the live session ids of a user.
func (a *Auth) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	if !a.kv.Configured() {
		return nil, nil
	}
	ids, err := a.sessions.ActiveSessionIDs(ctx, userID)
	if err != nil {
		return nil, a.convertStoreErr(err)
	}
	return ids, nil
}

// SweepOrphanedEmails removes email index entries whose account record is
// gone. Meant for a periodic maintenance job, not the request path.
func (a *Auth) SweepOrphanedEmails(ctx context.Context) (int, error) {
	if !a.kv.Configured() {
		return 0, ErrUnconfigured
	}
	n, err := a.users.SweepOrphans(ctx)
	if err != nil {
		return n, a.convertStoreErr(err)
	}
	return n, nil
}

// Engine exposes the redirect rule engine for runtime rule management.
func (a *Auth) Engine() *redirect.Engine {
	return a.engine
}

// RedirectHistory returns recent redirect decisions, oldest first.
func (a *Auth) RedirectHistory() []redirect.Entry {
	return a.engine.History()
}

// RedirectStats returns cumulative evaluation counters.
func (a *Auth) RedirectStats() redirect.Stats {
	return a.engine.Stats()
}

// Metrics exposes the in-process counters.
func (a *Auth) Metrics() *Metrics {
	return a.metrics
}

// AuditDropped reports how many audit events were shed since startup.
func (a *Auth) AuditDropped() uint64 {
	return a.audit.Dropped()
}

// Close flushes the audit dispatcher. The Auth must not be used afterwards.
func (a *Auth) Close() {
	a.audit.Close()
}

func (a *Auth) convertIdentityErr(err error) error {
	switch {
	case errors.Is(err, identity.ErrDuplicateEmail):
		return fmt.Errorf("%w: %v", ErrDuplicateEmail, err)
	case errors.Is(err, identity.ErrInvalidInput):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case errors.Is(err, identity.ErrUserNotFound):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	default:
		return a.convertStoreErr(err)
	}
}

func (a *Auth) convertStoreErr(err error) error {
	switch {
	case errors.Is(err, kv.ErrUnconfigured):
		a.metrics.Inc(MetricUnconfigured)
		return ErrUnconfigured
	case errors.Is(err, kv.ErrUnavailable):
		a.metrics.Inc(MetricStoreUnavailable)
		a.logger.Error("gatekit: store unavailable", "error", err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}

func (a *Auth) emitAuth(ctx context.Context, eventType, userID, sessionID string, success bool, err error) {
	if a.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	a.audit.Emit(ctx, event)
}
