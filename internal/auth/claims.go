package auth

import (
	"time"
)

// Claims represents the claims stored in a PASETO token.
// These are encrypted in v4.local tokens, so they're not readable without the key.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`

	// Standard PASETO claims. Expiration stays zero for tokens minted
	// without a lifetime.
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// ExpiresAt reports the token expiry, if one was set.
func (c *Claims) ExpiresAt() (time.Time, bool) {
	if c.Expiration.IsZero() {
		return time.Time{}, false
	}
	return c.Expiration, true
}
