package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvarela/gapfill/internal/config"
)

func testService(t *testing.T, ttl time.Duration) *Service {
	t.Helper()

	hash, err := HashPassword("hunter2-but-longer")
	require.NoError(t, err)

	return NewService(config.AuthConfig{
		Enabled:           true,
		AdminUser:         "admin",
		AdminPasswordHash: hash,
		JWT: config.JWTConfig{
			Secret:   "a-test-secret-that-is-long-enough-32",
			Issuer:   "gapfill",
			TokenTTL: ttl,
		},
	})
}

func TestService_Login(t *testing.T) {
	svc := testService(t, time.Hour)

	token, expiresAt, err := svc.Login("admin", "hunter2-but-longer")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
}

func TestService_LoginRejectsBadCredentials(t *testing.T) {
	svc := testService(t, time.Hour)

	_, _, err := svc.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login("intruder", "hunter2-but-longer")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_ValidateToken_Invalid(t *testing.T) {
	svc := testService(t, time.Hour)

	_, err := svc.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Token signed with a different secret.
	other := testService(t, time.Hour)
	other.secret = []byte("an-entirely-different-secret-key-32")
	token, _, err := other.GenerateToken("admin")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_ValidateToken_Expired(t *testing.T) {
	svc := testService(t, -time.Minute)

	token, _, err := svc.GenerateToken("admin")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestService_ValidateToken_WrongIssuer(t *testing.T) {
	svc := testService(t, time.Hour)

	other := testService(t, time.Hour)
	other.issuer = "someone-else"
	token, _, err := other.GenerateToken("admin")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
