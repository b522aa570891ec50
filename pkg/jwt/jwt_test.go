package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-0123456789abcdef"

func TestGenerateAndValidateAccessToken(t *testing.T) {
	s := NewJWTService(testSecret, time.Hour, 24*time.Hour)

	token, err := s.GenerateAccessToken(42, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "access", claims.Subject)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	s := NewJWTService(testSecret, time.Hour, 24*time.Hour)
	token, err := s.GenerateAccessToken(1, "alice")
	require.NoError(t, err)

	other := NewJWTService("another-secret-key-zzzzzzzzzzzzz", time.Hour, 24*time.Hour)
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpiredToken(t *testing.T) {
	s := NewJWTService(testSecret, -time.Minute, 24*time.Hour)
	token, err := s.GenerateAccessToken(1, "alice")
	require.NoError(t, err)

	_, err = s.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateRefreshToken(t *testing.T) {
	s := NewJWTService(testSecret, time.Hour, 24*time.Hour)

	refresh, err := s.GenerateRefreshToken(42, "alice")
	require.NoError(t, err)

	claims, err := s.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)

	// Access Token 不能当 Refresh Token 用
	access, err := s.GenerateAccessToken(42, "alice")
	require.NoError(t, err)
	_, err = s.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseUserToken(t *testing.T) {
	s := NewJWTService(testSecret, time.Hour, 24*time.Hour)
	token, err := s.GenerateAccessToken(7, "bob")
	require.NoError(t, err)

	claims, err := ParseUserToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "bob", claims.Username)

	_, err = ParseUserToken(token, "wrong-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseUserToken("garbage", testSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
