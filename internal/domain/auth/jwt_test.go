package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "github.com/alvarodevdoo/ERP-sub000/internal/core/context"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTService_RoundTrip(t *testing.T) {
	svc, err := NewJWTService(DefaultJWTConfig(testSecret))
	require.NoError(t, err)

	user := appctx.UserContext{
		UserID:      "user-1",
		TenantID:    "8f14e45f-ceea-4e6a-9c1b-5c4a1f5f6a11",
		Email:       "clerk@example.com",
		Roles:       []string{"stock_clerk"},
		Permissions: []string{"stock:read", "stock:write"},
	}
	token, expiresAt, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.UserID, got.UserID)
	assert.Equal(t, user.TenantID, got.TenantID)
	assert.Equal(t, user.Roles, got.Roles)
	assert.Equal(t, user.Permissions, got.Permissions)
	assert.False(t, got.IsAdmin)
}

func TestJWTService_Rejects(t *testing.T) {
	svc, err := NewJWTService(DefaultJWTConfig(testSecret))
	require.NoError(t, err)

	other, err := NewJWTService(DefaultJWTConfig("another-secret-of-enough-length"))
	require.NoError(t, err)
	foreign, _, err := other.GenerateAccessToken(appctx.UserContext{UserID: "u"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(foreign)
	assert.Error(t, err, "wrong signature")

	past := time.Now().Add(-time.Hour)
	svc.now = func() time.Time { return past }
	expired, _, err := svc.GenerateAccessToken(appctx.UserContext{UserID: "u"})
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.ValidateToken(expired)
	assert.Error(t, err, "expired")

	cfg := DefaultJWTConfig(testSecret)
	cfg.Issuer = "someone-else"
	wrongIssuer, err := NewJWTService(cfg)
	require.NoError(t, err)
	token, _, err := wrongIssuer.GenerateAccessToken(appctx.UserContext{UserID: "u"})
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err, "issuer")

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestNewJWTService_ShortSecret(t *testing.T) {
	_, err := NewJWTService(DefaultJWTConfig("short"))
	assert.Error(t, err)
}
