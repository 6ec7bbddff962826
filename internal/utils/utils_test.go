package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "restaurant-admin", 5)
	require.NoError(t, err)

	claims, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	id, _ := claims.UserID()
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, "restaurant-admin", claims.Role)
	assert.WithinDuration(t, time.Now(), claims.IssuedAtTime(), 5*time.Second)

	_, err = ParseAccessToken("other", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredAccessTokenIsRejected(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 1, "user", -1)
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNonNumericSubjectIsRejected(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "abc", "role": "user"}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = ParseAccessToken("k", raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetTokenHash(t *testing.T) {
	raw, hash, err := NewResetToken()
	require.NoError(t, err)
	assert.Len(t, raw, 64)
	assert.Equal(t, HashToken(raw), hash)
	assert.Len(t, hash, 64)
}

func TestPasswordHelpers(t *testing.T) {
	assert.ErrorIs(t, CheckPassword("short"), ErrWeakPassword)
	assert.NoError(t, CheckPassword("longenough"))

	h, err := HashPassword("longenough", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(h, "longenough"))
	assert.False(t, VerifyPassword(h, "wrong"))
}
