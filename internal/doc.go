// Package internal contains helper utilities that are intentionally private
// to gatekit: secure random identifier generation shared by the session
// store and the auth orchestrator.
//
// # What this package must NOT do
//
//   - Export types that appear in the public gatekit API.
//   - Be imported by any package outside the gatekit module.
package internal
