package transport

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// TokenStore is the read side of the persisted session token.
// *session.Store satisfies it.
type TokenStore interface {
	Load(ctx context.Context) (string, bool, error)
	Clear(ctx context.Context) error
}

// Terminator receives forced-logout notifications when the backend rejects the
// session. The session manager satisfies it.
type Terminator interface {
	Logout(ctx context.Context) error
}

// Authorizer is an [http.RoundTripper] that attaches the bearer token to
// outbound requests and forces logout on authorization failures.
type Authorizer struct {
	base       http.RoundTripper
	tokens     TokenStore
	terminator Terminator
}

// New creates an Authorizer. base == nil selects http.DefaultTransport.
// terminator may be nil, in which case authorization failures still clear the
// persisted token but no forced logout is delivered.
func New(base http.RoundTripper, tokens TokenStore, terminator Terminator) *Authorizer {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Authorizer{base: base, tokens: tokens, terminator: terminator}
}

// RoundTrip implements http.RoundTripper.
func (a *Authorizer) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	// RoundTrippers must not mutate the caller's request.
	out := req.Clone(ctx)
	if out.Header.Get("X-Request-ID") == "" {
		out.Header.Set("X-Request-ID", uuid.NewString())
	}

	if a.tokens != nil {
		// A store failure sends the request unauthenticated; the backend's
		// 401 is the terminal signal, not a local error.
		if token, ok, err := a.tokens.Load(ctx); err == nil && ok && token != "" {
			out.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := a.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if a.tokens != nil {
			_ = a.tokens.Clear(ctx)
		}
		if a.terminator != nil {
			_ = a.terminator.Logout(ctx)
		}
	}

	return resp, nil
}
