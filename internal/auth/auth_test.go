package auth

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwellapp/inkwell-server/internal/domain"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func testUser() *domain.User {
	u := &domain.User{Username: "alice", FavoriteGenre: "refactoring"}
	u.ID = "user-test1"
	return u
}

func TestTokenRoundTrip(t *testing.T) {
	svc, err := NewTokenService(testKey(t), time.Hour)
	require.NoError(t, err)

	token, err := svc.GenerateToken(testUser())
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.True(t, strings.HasPrefix(token, "v4.local."))

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-test1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "user-test1", claims.Subject)
	assert.Equal(t, tokenIssuer, claims.Issuer)
	assert.Equal(t, tokenAudience, claims.Audience)
	assert.NotEmpty(t, claims.TokenID)

	expiry, ok := claims.ExpiresAt()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, time.Minute)
}

func TestTokenWithoutExpiry(t *testing.T) {
	svc, err := NewTokenService(testKey(t), 0)
	require.NoError(t, err)

	token, err := svc.GenerateToken(testUser())
	require.NoError(t, err)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)

	_, ok := claims.ExpiresAt()
	assert.False(t, ok, "zero duration should mint tokens without expiry")
}

func TestExpiredTokenRejected(t *testing.T) {
	svc, err := NewTokenService(testKey(t), time.Millisecond)
	require.NoError(t, err)

	token, err := svc.GenerateToken(testUser())
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTamperedTokenRejected(t *testing.T) {
	svc, err := NewTokenService(testKey(t), time.Hour)
	require.NoError(t, err)

	token, err := svc.GenerateToken(testUser())
	require.NoError(t, err)

	// Flip one character of the ciphertext.
	mid := len(token) / 2
	replacement := byte('A')
	if token[mid] == replacement {
		replacement = 'B'
	}
	tampered := token[:mid] + string(replacement) + token[mid+1:]

	_, err = svc.VerifyToken(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestWrongKeyRejected(t *testing.T) {
	minter, err := NewTokenService(testKey(t), time.Hour)
	require.NoError(t, err)
	verifier, err := NewTokenService(testKey(t), time.Hour)
	require.NoError(t, err)

	token, err := minter.GenerateToken(testUser())
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGarbageTokenRejected(t *testing.T) {
	svc, err := NewTokenService(testKey(t), time.Hour)
	require.NoError(t, err)

	for _, tok := range []string{"", "not-a-token", "v4.local.AAAA"} {
		_, err := svc.VerifyToken(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestNewTokenServiceRejectsBadKey(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Hour)
	assert.Error(t, err)

	_, err = NewTokenService(make([]byte, 64), time.Hour)
	assert.Error(t, err)
}

func TestHashSecretAndVerify(t *testing.T) {
	encoded, err := HashSecret("parole")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	ok, err := VerifySecret(encoded, "parole")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifySecret(encoded, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashSecretUsesFreshSalt(t *testing.T) {
	first, err := HashSecret("parole")
	require.NoError(t, err)
	second, err := HashSecret("parole")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestHashSecretRejectsUnusable(t *testing.T) {
	_, err := HashSecret("")
	assert.Error(t, err)

	_, err = HashSecret(strings.Repeat("a", maxSecretLength+1))
	assert.Error(t, err)
}

func TestVerifySecretBadInput(t *testing.T) {
	ok, err := VerifySecret("not-an-encoded-hash", "parole")
	require.NoError(t, err)
	assert.False(t, ok)

	encoded, err := HashSecret("parole")
	require.NoError(t, err)

	ok, err = VerifySecret(encoded, strings.Repeat("a", maxSecretLength+1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := t.TempDir()

	key, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	// A second load returns the persisted key, not a fresh one.
	again, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestLoadOrGenerateKeyRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "auth.key")

	require.NoError(t, os.WriteFile(keyPath, []byte("zz"), 0o600))
	_, err := LoadOrGenerateKey(dir)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(keyPath, []byte(strings.Repeat("zx", 32)), 0o600))
	_, err = LoadOrGenerateKey(dir)
	assert.Error(t, err)
}
