package service

import (
	"testing"
	"time"

	"github.com/apimeter/backend/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewAuthService("test-secret", "admin@example.com", "pw", nil, nil, nil)

	account := &domain.Account{ID: "acc-1", Email: "user@example.com", Role: domain.RoleUser}
	token, err := svc.signToken(account)
	require.NoError(t, err)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Sub)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, domain.RoleUser, claims.Role)
}

func TestVerifyTokenRejectsBadTokens(t *testing.T) {
	svc := NewAuthService("test-secret", "admin@example.com", "pw", nil, nil, nil)

	_, err := svc.VerifyToken("not-a-token")
	assert.Error(t, err)

	// Token signed with a different secret.
	other := NewAuthService("other-secret", "admin@example.com", "pw", nil, nil, nil)
	token, err := other.signToken(&domain.Account{ID: "acc-1"})
	require.NoError(t, err)
	_, err = svc.VerifyToken(token)
	assert.Error(t, err)

	// Expired token.
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "acc-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = svc.VerifyToken(signed)
	assert.Error(t, err)

	// Wrong algorithm family.
	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "acc-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.VerifyToken(unsigned)
	assert.Error(t, err)
}
