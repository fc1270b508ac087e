package gatekit

import "net/http"

// SetSessionCookie writes the session cookie. The value is the opaque
// session id only; the record itself lives server-side. The cookie is
// HttpOnly, SameSite Lax, and Secure when running in production mode.
func (a *Auth) SetSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.config.Cookie.Name,
		Value:    sessionID,
		Path:     a.config.Cookie.Path,
		Domain:   a.config.Cookie.Domain,
		MaxAge:   int(a.config.Session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   a.config.Security.ProductionMode,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie on the client.
func (a *Auth) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.config.Cookie.Name,
		Value:    "",
		Path:     a.config.Cookie.Path,
		Domain:   a.config.Cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.config.Security.ProductionMode,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionIDFromRequest extracts the session id from the request cookie.
func (a *Auth) SessionIDFromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(a.config.Cookie.Name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
