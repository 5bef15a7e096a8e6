// Package transport provides the HTTP round tripper that binds every outbound
// request to the current session.
//
// # Request path
//
// Before each request the persisted token is read and attached as a bearer
// credential; a missing token sends the request unauthenticated without error.
// Each request also carries a generated X-Request-ID for correlation.
//
// # Response path
//
// A 401 or 403 response clears the persisted token and notifies the injected
// [Terminator] once per failing response, then the original response is
// returned untouched. Callers always observe the failure themselves; the
// interceptor never swallows it.
//
// # What this package must NOT do
//
//   - Retry, redirect, or rewrite requests.
//   - Decide authentication state; it only reports failures to the Terminator.
//   - Hold the token in memory between requests.
package transport
