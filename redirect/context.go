package redirect

import (
	"net/http"
	"net/url"
	"time"

	"github.com/dealgrid/gatekit/identity"
)

// Context is the ephemeral per-request input to rule evaluation. It is
// built fresh for each request and never persisted; conditions must be
// pure functions of it.
type Context struct {
	// User is nil for anonymous requests.
	User      *identity.User
	Pathname  string
	Query     url.Values
	Headers   http.Header
	Timestamp time.Time
}

// FromRequest normalizes an incoming request and the resolved user (nil
// when anonymous) into an evaluation context.
func FromRequest(r *http.Request, user *identity.User) Context {
	return Context{
		User:      user,
		Pathname:  r.URL.Path,
		Query:     r.URL.Query(),
		Headers:   r.Header,
		Timestamp: time.Now(),
	}
}
