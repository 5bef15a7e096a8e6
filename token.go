package sessionkit

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrOpaqueToken indicates the session token is not a parseable JWT. Opaque
// tokens are fully supported for authentication; only introspection refuses
// them.
var ErrOpaqueToken = errors.New("token is not a JWT")

// TokenInfo is the unverified claim set of a JWT session token. The backend
// owns validity; nothing here is signature-checked and nothing must be trusted
// for authorization decisions. It exists for display and diagnostics only.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Expired reports whether the unverified expiry claim is in the past. False
// when the claim is absent.
func (t TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && t.ExpiresAt.Before(now)
}

// InspectToken parses raw as a JWT without verifying its signature.
func InspectToken(raw string) (TokenInfo, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %v", ErrOpaqueToken, err)
	}

	info := TokenInfo{}
	if sub, err := token.Claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if exp, err := token.Claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	if iat, err := token.Claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	return info, nil
}

// TokenInfo introspects the current in-memory session token.
func (c *Client) TokenInfo() (TokenInfo, error) {
	token, ok := c.Token()
	if !ok {
		return TokenInfo{}, ErrNotAuthenticated
	}
	return InspectToken(token)
}
