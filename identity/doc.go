// Package identity owns user records, the email uniqueness index, and
// credential records.
//
// Three key families back the store: usr:<id> holds the profile, uem:<email>
// maps the lowercased email to the owning id, and ucr:<id> holds the
// password hash. Credential records never leave this package except as a
// verified/not-verified outcome.
//
// Without multi-key transactions, Create claims the email index with SETNX
// before writing anything else. A crash mid-create therefore leaves at worst
// an orphaned index entry — never two users sharing one email — and
// SweepOrphans reclaims those entries out of band.
package identity
