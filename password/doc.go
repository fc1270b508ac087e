// Package password implements the credential hashing service.
//
// Keys are derived with PBKDF2-HMAC-SHA256 over low-level primitives: a
// fresh random salt per hash, an iteration count of 2^cost, and a 256-bit
// derived key. The encoded form is a PHC-style string carrying the cost and
// the salt, so stored hashes remain verifiable after the configured cost
// changes.
//
// The cost factor is a security parameter, not a tuning knob: each +1
// doubles CPU cost for defender and attacker alike. The default of 17
// (131072 iterations) targets tens of milliseconds on current server
// hardware; deployments must pick it deliberately via Config.
package password
