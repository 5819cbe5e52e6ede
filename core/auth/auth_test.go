package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.True(t, CheckPasswordHash("secret1", hash))
	assert.False(t, CheckPasswordHash("secret2", hash))
}

func TestHashPasswordTooShort(t *testing.T) {
	_, err := HashPassword("12345")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", 0)
	token, err := m.IssueToken(42)
	require.NoError(t, err)

	id, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestTokenExpiresAfterThirtyDays(t *testing.T) {
	m := NewTokenManager("test-secret", 0)
	issuedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issuedAt }
	token, err := m.IssueToken(7)
	require.NoError(t, err)

	m.now = func() time.Time { return issuedAt.Add(29 * 24 * time.Hour) }
	_, err = m.ParseToken(token)
	assert.NoError(t, err)

	m.now = func() time.Time { return issuedAt.Add(31 * 24 * time.Hour) }
	_, err = m.ParseToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsBadInput(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	other := NewTokenManager("other-secret", time.Hour)
	foreign, err := other.IssueToken(1)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":         "",
		"malformed":     "not-a-token",
		"bad signature": foreign,
		"alg none":      unsigned,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := m.ParseToken(token)
			assert.True(t, errors.Is(err, ErrInvalidToken))
		})
	}
}
