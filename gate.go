package gatekit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dealgrid/gatekit/redirect"
)

// Gate is the request-path front door. For each request it resolves the
// session cookie to a user, slides the session when it nears expiry, runs
// the redirect engine, and either issues the redirect or forwards the
// request with the auth result on its context.
type Gate struct {
	auth   *Auth
	engine *redirect.Engine
	logger *slog.Logger
}

// NewGate wraps an Auth built by the Builder.
func NewGate(auth *Auth) *Gate {
	return &Gate{
		auth:   auth,
		engine: auth.engine,
		logger: auth.logger,
	}
}

// Middleware returns the http.Handler wrapper. Store failures during
// session resolution degrade to anonymous rather than erroring the request;
// the redirect rules then decide what an anonymous visitor may reach.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := g.resolve(w, r)

		decision := g.engine.Evaluate(redirect.FromRequest(r, userOf(result)))
		if decision != nil {
			g.auth.metrics.Inc(MetricGateRedirect)
			g.emitRedirect(r, decision)
			http.Redirect(w, r, decision.To, http.StatusFound)
			return
		}

		g.auth.metrics.Inc(MetricGatePass)
		next.ServeHTTP(w, r.WithContext(ContextWithResult(r.Context(), result)))
	})
}

// ProcessRedirect evaluates the rules for a request without writing a
// response. A nil decision means the request may pass.
func (g *Gate) ProcessRedirect(r *http.Request) *redirect.Decision {
	result, err := g.auth.CurrentUser(r.Context(), g.sessionID(r))
	if err != nil {
		result = nil
	}
	return g.engine.Evaluate(redirect.FromRequest(r, userOf(result)))
}

// resolve turns the request cookie into an auth result and performs the
// sliding refresh when the session is inside the refresh window.
func (g *Gate) resolve(w http.ResponseWriter, r *http.Request) *AuthResult {
	sid := g.sessionID(r)
	if sid == "" {
		return nil
	}

	result, err := g.auth.CurrentUser(r.Context(), sid)
	if err != nil {
		g.logger.Error("gatekit: session resolution failed", "error", err)
		return nil
	}
	if result == nil {
		return nil
	}

	if result.Session.Remaining(time.Now()) < g.auth.config.Session.RefreshThreshold {
		refreshed, err := g.auth.RefreshSession(r.Context(), sid)
		if err == nil {
			result.Session = refreshed
			g.auth.SetSessionCookie(w, refreshed.ID)
		}
		// A failed refresh leaves the original session in force.
	}

	return result
}

func (g *Gate) sessionID(r *http.Request) string {
	sid, ok := g.auth.SessionIDFromRequest(r)
	if !ok {
		return ""
	}
	return sid
}

func (g *Gate) emitRedirect(r *http.Request, decision *redirect.Decision) {
	if g.auth.audit == nil {
		return
	}
	g.auth.audit.Emit(r.Context(), AuditEvent{
		Timestamp: decision.Timestamp,
		EventType: AuditRedirect,
		UserID:    decision.UserID,
		Path:      decision.From,
		Target:    decision.To,
		RuleName:  decision.RuleName,
		Reason:    decision.Reason,
		Success:   true,
	})
}

func userOf(result *AuthResult) *User {
	if result == nil {
		return nil
	}
	return result.User
}
