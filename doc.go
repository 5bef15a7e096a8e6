// Package sessionkit implements the session and authentication lifecycle for
// mobile banking clients: credential validation, debounced field validation
// state, login attempt lockout, biometric credential enrollment with expiry,
// and bearer-token session management with forced logout on authorization
// failures.
//
// The package is designed around a single [Client] built through [Builder].
// Client methods are safe to call from multiple goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// sessionkit is the public surface. It exposes [Client], [Builder], [Config],
// and value types (MetricsSnapshot, AuditEvent, Capability, FieldState).
// All internal coordination — debounce scheduling, attempt counting, audit
// dispatch — lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose the key-value client, record encodings, or encryption details in
//     its public API.
//   - Render anything: UI state is reported through events and getters, never
//     drawn.
//   - Validate tokens locally. The backend owns token validity; the client only
//     reacts to 401/403 responses.
//
// # Failure contract
//
// Every asynchronous path terminates in a definite state. Lockout, validation,
// and biometric failures are reported through sentinel errors matchable with
// errors.Is. The transport never swallows an authorization failure: it clears
// the session and returns the original response to the caller.
package sessionkit
