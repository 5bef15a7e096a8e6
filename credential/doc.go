// Package credential provides pure, stateless validation of raw login input.
//
// # Determinism
//
// Validators are referentially transparent: no I/O, no clock, no shared state.
// The same input always yields the same result, which is what allows the
// debounced form machinery to discard superseded evaluations safely.
//
// # What this package must NOT do
//
//   - Touch the network or any store.
//   - Import sessionkit or any sibling package (no upward imports).
//   - Localize beyond the fixed user-facing messages it owns.
package credential
