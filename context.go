package gatekit

import "context"

type contextKey uint8

const authResultKey contextKey = 0

// ContextWithResult stores the resolved auth result on a request context.
// The gate does this for every request that passes the rule engine.
func ContextWithResult(ctx context.Context, result *AuthResult) context.Context {
	return context.WithValue(ctx, authResultKey, result)
}

// ResultFromContext returns the auth result placed by the gate, or nil for
// anonymous requests.
func ResultFromContext(ctx context.Context) *AuthResult {
	result, _ := ctx.Value(authResultKey).(*AuthResult)
	return result
}

// UserFromContext returns the authenticated user, or nil when anonymous.
func UserFromContext(ctx context.Context) *User {
	if result := ResultFromContext(ctx); result != nil {
		return result.User
	}
	return nil
}
