// Package biometric manages the persisted credential record that backs
// biometric re-authentication, plus the device capability probe.
//
// # Record lifecycle
//
// A record is created when the user opts in after a successful login,
// overwritten on re-enrollment, and destroyed by explicit opt-out or by lazy
// expiry: a record older than the validity window is deleted the moment a read
// detects it. There is no background sweep.
//
// # Encryption
//
// Records are sealed at rest with XChaCha20-Poly1305 under a key derived from
// the device secret via HKDF-SHA256. The persisted blob is opaque; nothing
// outside this package can interpret it.
//
// # What this package must NOT do
//
//   - Perform logins. It hands credentials back to the Client and stops there.
//   - Import sessionkit, session, or transport (no upward imports).
//   - Cache capability results; capability is recomputed on every query.
package biometric
