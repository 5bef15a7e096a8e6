// Package debounce provides a per-key deferred execution scheduler with
// last-writer-wins semantics.
//
// # Supersession semantics
//
// Each Schedule call bumps a per-key generation counter. A fired task compares
// its captured generation against the current one before running; a stale task
// is discarded at apply time. Timer cancellation is best-effort only — the
// generation check is what guarantees correctness.
//
// # What this package must NOT do
//
//   - Know anything about form fields, validators, or sessionkit types.
//   - Be imported outside the sessionkit module.
package debounce
