// Package session is the Redis-backed session store.
//
// Each session lives under one record key with a store-level TTL, and its id
// is tracked in a per-user set for bulk revocation. The invariant across
// both writes: a session id appears in the record and in its owner's set, or
// in neither. Deletion therefore removes set membership before the record
// (one Lua script, SREM then DEL), and expired records found on read are
// reconciled lazily the same way.
//
// Expiry is sliding only when a caller refreshes: Refresh recomputes the
// absolute expiry from now and rewrites the record with a matching TTL, so
// actively used sessions never expire while idle ones expire exactly once —
// on lookup or on store eviction, whichever comes first.
package session
