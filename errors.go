package sessionkit

import "errors"

var (
	// ErrClientNotReady is returned when a Client method is called before Build
	// completed or on a nil receiver.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrSessionLoading is returned when a routing decision is requested while
	// the persisted token is still being loaded.
	ErrSessionLoading = errors.New("session state still loading")
	// ErrNotAuthenticated is returned by operations that need an active session
	// when no token is held.
	ErrNotAuthenticated = errors.New("no active session")
	// ErrLoginLocked is returned when the attempt governor blocks a login
	// submission before any network call is made.
	ErrLoginLocked = errors.New("too many login attempts")
	// ErrInvalidCredentials is returned when the backend rejects a login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrValidationFailed is returned by Login when submission-time validation
	// rejects the email or password.
	ErrValidationFailed = errors.New("credential validation failed")
	// ErrBiometricUnavailable is returned when biometric hardware is absent,
	// not enrolled, or the capability probe failed.
	ErrBiometricUnavailable = errors.New("biometric capability unavailable")
	// ErrBiometricDenied is returned when the user fails or cancels the
	// biometric verification prompt.
	ErrBiometricDenied = errors.New("biometric verification denied")
	// ErrNoStoredCredential is returned when a biometric login is attempted
	// without an enrolled credential record.
	ErrNoStoredCredential = errors.New("no stored biometric credential")
	// ErrCredentialExpired is returned when the stored biometric credential is
	// older than the configured validity window. The record is already deleted
	// when this error is observed.
	ErrCredentialExpired = errors.New("biometric credential expired")
	// ErrStoreUnavailable is returned when the device key-value store is
	// unreachable.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrLoginUnavailable is returned when the login endpoint cannot be
	// reached at all (transport-level failure, no HTTP response).
	ErrLoginUnavailable = errors.New("login backend unavailable")
)
