package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret", "phms", time.Hour)

	token, err := svc.GenerateAccessToken("uid-1", "a@example.com")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", claims.UserID())
	assert.Equal(t, "a@example.com", claims.Email)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService("secret", "phms", time.Hour)
	good, err := svc.GenerateAccessToken("uid-1", "")
	require.NoError(t, err)

	other, err := NewJWTService("other", "phms", time.Hour).GenerateAccessToken("uid-1", "")
	require.NoError(t, err)

	wrongIssuer, err := NewJWTService("secret", "someone-else", time.Hour).GenerateAccessToken("uid-1", "")
	require.NoError(t, err)

	expiredSvc := NewJWTService("secret", "phms", time.Hour).(*hmacService)
	expiredSvc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredSvc.GenerateAccessToken("uid-1", "")
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "phms",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not.a.token",
		"wrong secret": other,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"no subject":   noSubject,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = svc.ValidateToken(good)
	assert.NoError(t, err)
}
