// Package redirect is the declarative access-control and redirect engine.
//
// An Engine owns a registry of priority-ordered rules. Per request the gate
// builds an ephemeral [Context], and Evaluate walks the enabled rules in
// descending priority, acting on the first condition that holds: lower
// rules are never consulted once one matches, and precedence never depends
// on registration order (ties break on rule name). No match is the pass
// outcome, not a failure — the engine raises no domain errors.
//
// The registry is process-wide state: mutable at runtime through
// Add/Remove/Enable/Disable/Update for operational toggles, reset to its
// compiled defaults on restart. Readers take a snapshot under a read lock;
// a request racing a toggle may observe the rule mid-change, which is
// accepted as eventually consistent.
//
// Every match is appended to a bounded in-memory history ring and counted
// in per-rule stats, both for observability only.
package redirect
