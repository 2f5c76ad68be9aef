package auth

import (
	"encoding/json/v2"
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/id"
)

const (
	tokenIssuer   = "inkwell-server"
	tokenAudience = "inkwell-client"

	// PASETO v4 symmetric key requirement.
	keyBytesSize = 32 // 256 bits
)

var (
	// ErrInvalidToken covers tokens that fail decryption or carry claims
	// we didn't issue. Tampering lands here.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired covers well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
)

// TokenService handles PASETO token generation and verification.
type TokenService struct {
	symmetricKey  paseto.V4SymmetricKey
	tokenDuration time.Duration
}

// NewTokenService creates a token service around a 32-byte symmetric key.
// A zero duration mints tokens without an expiry.
func NewTokenService(key []byte, duration time.Duration) (*TokenService, error) {
	if len(key) != keyBytesSize {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d bytes, got %d", keyBytesSize, len(key))
	}

	symmetricKey, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}

	return &TokenService{
		symmetricKey:  symmetricKey,
		tokenDuration: duration,
	}, nil
}

// GenerateToken creates a new PASETO v4.local token for the user.
// The token is encrypted and carries the username and user ID claims.
func (s *TokenService) GenerateToken(user *domain.User) (string, error) {
	now := time.Now()

	token := paseto.NewToken()

	// Standard claims
	token.SetIssuer(tokenIssuer)
	token.SetSubject(user.ID)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	if s.tokenDuration > 0 {
		token.SetExpiration(now.Add(s.tokenDuration))
	}

	tokenID, err := id.Generate("token")
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}
	token.SetJti(tokenID)

	// Our custom claims
	//nolint:errcheck // Token.Set only errors on invalid types, which we control
	_ = token.Set("user_id", user.ID)
	//nolint:errcheck // Token.Set only errors on invalid types, which we control
	_ = token.Set("username", user.Username)

	encrypted := token.V4Encrypt(s.symmetricKey, nil)
	return encrypted, nil
}

// VerifyToken verifies and parses a PASETO token.
// Returns the claims if valid, ErrTokenExpired for a stale token, and
// ErrInvalidToken for anything that fails decryption or claim checks.
func (s *TokenService) VerifyToken(tokenString string) (*Claims, error) {
	// NewParser preloads a NotExpired rule, which rejects tokens without
	// an exp claim. We mint those when no lifetime is configured, so the
	// expiry check happens manually below instead.
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))

	// Parse and decrypt v4.local token
	token, err := parser.ParseV4Local(s.symmetricKey, tokenString, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	var claims Claims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, fmt.Errorf("%w: parse claims: %w", ErrInvalidToken, err)
	}

	now := time.Now()
	if expiry, ok := claims.ExpiresAt(); ok && now.After(expiry) {
		return nil, ErrTokenExpired
	}
	if !claims.NotBefore.IsZero() && now.Before(claims.NotBefore) {
		return nil, fmt.Errorf("%w: not yet valid", ErrInvalidToken)
	}

	return &claims, nil
}

// TokenDuration returns the configured token lifetime. Zero means tokens
// never expire.
func (s *TokenService) TokenDuration() time.Duration {
	return s.tokenDuration
}
