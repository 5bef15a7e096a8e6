// Package session provides durable persistence for the bearer token that
// represents the authenticated session.
//
// # Single-writer convention
//
// Only the session manager writes the token key. The transport reads it before
// every outbound request and clears it on authorization failure; no other
// component may touch it.
//
// # Architecture boundaries
//
// This package owns the [Store] (key-value operations on the token). It does
// NOT interpret the token, decide authentication state, or perform logout —
// those responsibilities belong to the Client.
//
// # What this package must NOT do
//
//   - Import sessionkit, biometric, or transport (no upward imports).
//   - Cache the token in memory; the in-memory fast path lives in the Client.
//   - Store anything besides the raw bearer string.
package session
