// Package kv is the thin adapter between gatekit stores and Redis.
//
// A Store is either configured (backed by a live client) or unconfigured
// (no connection secrets were present at startup). The mode is decided once
// and never changes: unconfigured writes fail with ErrUnconfigured so that
// every layer above fails closed instead of fabricating durability, while
// unconfigured reads report absence.
package kv
