package security

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	secret := "test-secret-test-secret-test-secret!"

	signed, err := GenerateAccessToken(secret, "user-1", "sess-1", "dev-1", time.Minute)
	require.NoError(t, err)

	claims, err := ParseAccessToken(signed, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "dev-1", claims.DeviceID)
}

func TestAccessTokenRejectsWrongSecret(t *testing.T) {
	signed, err := GenerateAccessToken("right-secret", "user-1", "sess-1", "dev-1", time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(signed, "wrong-secret")
	assert.Error(t, err)
}

func TestAccessTokenRejectsExpired(t *testing.T) {
	signed, err := GenerateAccessToken("secret", "user-1", "sess-1", "dev-1", -time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(signed, "secret")
	assert.Error(t, err)
}

func TestRefreshTokenHashMatches(t *testing.T) {
	token, hash, err := GenerateRefreshToken(64)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, bytes.Equal(hash, HashRefreshToken(token)))
}

func TestRefreshTokensAreUnique(t *testing.T) {
	first, _, err := GenerateRefreshToken(64)
	require.NoError(t, err)
	second, _, err := GenerateRefreshToken(64)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
