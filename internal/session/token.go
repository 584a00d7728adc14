package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo holds the display claims of the console operator's bearer token.
// The token is parsed without verification: validation happens server-side,
// the console only surfaces who is logged in and when the token runs out.
type TokenInfo struct {
	Subject   string    `json:"subject"`
	IssuedAt  time.Time `json:"issued_at,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// InspectToken extracts display claims from a bearer token.
func InspectToken(token string) (TokenInfo, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return TokenInfo{}, fmt.Errorf("failed to parse bearer token: %w", err)
	}

	var info TokenInfo
	if sub, err := parsed.Claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if iat, err := parsed.Claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}

// ExpiringSoon reports whether the token expires within the given window.
// Tokens without an expiry claim never report as expiring.
func (t TokenInfo) ExpiringSoon(window time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Until(t.ExpiresAt) < window
}
