// Package limiter enforces a per-user cap on concurrently active sessions.
//
// The package is built from three cooperating pieces:
//
//   - Decide is the pure policy function: given the active session count,
//     the configured maximum and the policy mode it returns a Verdict —
//     allow, log only, evict the oldest sessions, or block the new one.
//   - Gate is the per-request middleware that gathers the inputs (session
//     count, settings, per-user overrides, masquerade exclusions), calls
//     Decide and applies the verdict.
//   - Evictor terminates a chosen session: it deletes the record, leaves a
//     termination notice for the session's owner, publishes an eviction
//     event and writes an audit entry.
//
// # Race handling
//
// A freshly created session row may not be visible to a concurrent count
// query, so a single clean pass through the gate is not trusted. The gate
// marks the session CheckedOnce on its first clean pass and Verified on
// the second; a Verified session skips all future checks. This two-pass
// protocol is a deliberate best-effort heuristic: near-simultaneous logins
// exceeding the limit by more than one can still slip through. The cap is
// a policy, not a security boundary, which is also why every store failure
// fails open — the worst outcome for a user is one unchecked request.
package limiter
