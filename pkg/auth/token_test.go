package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/lootmarket-backend/pkg/config"
	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "lootmarket", ExpirationMinutes: 30}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{UserID: userID, Role: enums.UserRoleAdmin, JTI: "session-1"})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, enums.UserRoleAdmin, claims.Role)
	assert.Equal(t, "session-1", claims.ID)
	assert.Equal(t, cfg.Issuer, claims.Issuer)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestParseAccessTokenToleratesSmallSkew(t *testing.T) {
	cfg := testJWTConfig()
	cfg.ExpirationMinutes = 1
	issued := time.Now().Add(-time.Minute - 10*time.Second)
	token, err := MintAccessToken(cfg, issued, AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleUser})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	assert.NoError(t, err)
}

func TestParseAccessTokenRejectsForeignIssuer(t *testing.T) {
	other := testJWTConfig()
	other.Issuer = "someone-else"
	token, err := MintAccessToken(other, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleUser})
	require.NoError(t, err)

	_, err = ParseAccessToken(testJWTConfig(), token)
	assert.Error(t, err)
	_, err = ParseAccessTokenAllowExpired(testJWTConfig(), token)
	assert.Error(t, err)
}

func TestMintAssignsJTIWhenMissing(t *testing.T) {
	token, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleUser})
	require.NoError(t, err)
	claims, err := ParseAccessToken(testJWTConfig(), token)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)
}

func TestMintRejectsInvalidPayload(t *testing.T) {
	_, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: "vendor"})
	assert.Error(t, err)

	_, err = MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{Role: enums.UserRoleUser})
	assert.Error(t, err)

	_, err = MintAccessToken(config.JWTConfig{Issuer: "x", ExpirationMinutes: 1}, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleUser})
	assert.Error(t, err)
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	token, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleUser})
	require.NoError(t, err)

	_, err = ParseAccessToken(testJWTConfig(), token+"x")
	assert.Error(t, err)
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleUser, JTI: "old"})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")

	claims, err := ParseAccessTokenAllowExpired(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "old", claims.ID)
}

func TestRequireAdmin(t *testing.T) {
	assert.NoError(t, RequireAdmin(Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}))
	assert.True(t, pkgerrors.IsCode(RequireAdmin(Actor{UserID: uuid.New(), Role: enums.UserRoleUser}), pkgerrors.CodeForbidden))
	assert.True(t, pkgerrors.IsCode(RequireAdmin(Actor{Role: enums.UserRoleAdmin}), pkgerrors.CodeUnauthorized))
}

type stubRoles struct {
	role enums.UserRole
	err  error
}

func (s stubRoles) CurrentRole(context.Context, uuid.UUID) (enums.UserRole, error) {
	return s.role, s.err
}

func TestRequireCurrentAdmin(t *testing.T) {
	ctx := context.Background()
	admin := Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	assert.NoError(t, RequireCurrentAdmin(ctx, stubRoles{role: enums.UserRoleAdmin}, admin))
	assert.NoError(t, RequireCurrentAdmin(ctx, nil, admin))

	demoted := RequireCurrentAdmin(ctx, stubRoles{role: enums.UserRoleUser}, admin)
	assert.True(t, pkgerrors.IsCode(demoted, pkgerrors.CodeForbidden))

	gone := RequireCurrentAdmin(ctx, stubRoles{err: pkgerrors.New(pkgerrors.CodeNotFound, "user not found")}, admin)
	assert.True(t, pkgerrors.IsCode(gone, pkgerrors.CodeUnauthorized))

	boom := errors.New("db down")
	assert.ErrorIs(t, RequireCurrentAdmin(ctx, stubRoles{err: boom}, admin), boom)

	user := Actor{UserID: uuid.New(), Role: enums.UserRoleUser}
	assert.True(t, pkgerrors.IsCode(RequireCurrentAdmin(ctx, stubRoles{role: enums.UserRoleAdmin}, user), pkgerrors.CodeForbidden))
}
