package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdmox/internal/core/apperror"
)

func TestJWTService_RoundTrip(t *testing.T) {
	s := NewJWTService(DefaultJWTConfig("secret"))

	token, expiresAt, err := s.GenerateToken("ops-bot", []string{RoleOperator})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	caller, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-bot", caller.Subject)
	assert.Equal(t, []string{RoleOperator}, caller.Roles)
}

func TestJWTService_Rejects(t *testing.T) {
	s := NewJWTService(DefaultJWTConfig("secret"))
	other := NewJWTService(DefaultJWTConfig("other-secret"))
	foreign, _, err := other.GenerateToken("ops-bot", nil)
	require.NoError(t, err)

	expired := NewJWTService(DefaultJWTConfig("secret"))
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _, err := expired.GenerateToken("ops-bot", nil)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "sdmox", Subject: "ops-bot"},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"wrong secret": foreign,
		"expired":      stale,
		"unsigned":     unsigned,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.ValidateToken(token)
			assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
		})
	}
}
