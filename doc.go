// Package gatekit provides a Redis-backed access-control substrate: password
// hashing, an identity store with a unique email index, opaque cookie
// sessions with sliding refresh, and a priority-ordered redirect rule
// engine fronting HTTP handlers.
//
// The package is designed for concurrent server workloads: Auth and Gate
// methods are safe to call from multiple goroutines after initialization
// through [Builder.Build].
//
// # Architecture boundaries
//
// gatekit is the public surface. It exposes [Auth], [Gate], [Builder],
// [Config], and value types (AuthResult, AuditEvent, MetricsSnapshot). The
// stores live in kv, identity and session; rule evaluation lives in
// redirect. None of those packages import gatekit back.
//
// # Degraded mode
//
// When no Redis address is configured, the engine stays constructible and
// fails closed: mutations return ErrUnconfigured without touching the
// store, session resolution reports anonymous, and the redirect rules
// treat every visitor as signed out.
//
// # Session contract
//
// The browser holds only an opaque session id in an HttpOnly cookie. The
// record, including identity and expiry, lives server-side with a store
// TTL as the eviction backstop. The gate slides a session forward a full
// TTL whenever its remaining lifetime drops below the refresh threshold.
package gatekit
