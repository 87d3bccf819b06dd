package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/bookshelf/pkg/models"
)

func TestAuthService_TokenRoundTrip(t *testing.T) {
	auth := NewAuthService(testConfig(), testLogger(), nil)
	ctx := context.Background()

	token, err := auth.GenerateToken(ctx, "u1", models.RoleAdmin)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthService_RejectsForeignTokens(t *testing.T) {
	cfg := testConfig()
	auth := NewAuthService(cfg, testLogger(), nil)

	other := testConfig()
	other.Auth.JWTSecret = "someone-else"
	forged, err := NewAuthService(other, testLogger(), nil).GenerateToken(context.Background(), "u1", models.RoleUser)
	require.NoError(t, err)

	_, err = auth.ValidateToken(context.Background(), forged)
	assert.Error(t, err)

	_, err = auth.ValidateToken(context.Background(), "not-a-token")
	assert.Error(t, err)
}

func TestRateLimitService_WithoutRedisAllows(t *testing.T) {
	rl := NewRateLimitService(testConfig(), testLogger(), nil)

	allowed, info, err := rl.IsAllowed(context.Background(), "u1", models.RoleUser)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 100, info.Limit)

	_, info, err = rl.IsAllowed(context.Background(), "admin", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1000, info.Limit)
}
