package auth

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/lootmarket-backend/pkg/auth"
	"github.com/angelmondragon/lootmarket-backend/pkg/auth/session"
	"github.com/angelmondragon/lootmarket-backend/pkg/config"
	"github.com/angelmondragon/lootmarket-backend/pkg/db/models"
	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
	"github.com/angelmondragon/lootmarket-backend/pkg/security"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "lootmarket",
	ExpirationMinutes: 30,
}

func TestServiceLoginMintsRoleClaim(t *testing.T) {
	password := "admin-secret-1"
	user := testUser(t, password, enums.UserRoleAdmin)
	svc, sessions, _ := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "  ADMIN@example.com ", Password: password})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.UserRoleAdmin {
		t.Fatalf("expected admin role claim, got %s", claims.Role)
	}
	if claims.ID == "" || sessions.generated != claims.ID {
		t.Fatalf("expected refresh session keyed by jti %q, got %q", claims.ID, sessions.generated)
	}
	if resp.RefreshToken != "refresh-token" {
		t.Fatalf("unexpected refresh token %q", resp.RefreshToken)
	}
	if user.LastLoginAt == nil {
		t.Fatalf("expected last login to be recorded")
	}
}

func TestServiceLoginRejectsBadPassword(t *testing.T) {
	user := testUser(t, "correct-horse-1", enums.UserRoleUser)
	svc, _, _ := buildTestService(t, user)

	_, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "wrong-horse-1"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestServiceLoginRejectsInactiveUser(t *testing.T) {
	user := testUser(t, "sleepy-user-1", enums.UserRoleUser)
	user.IsActive = false
	svc, _, _ := buildTestService(t, user)

	_, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "sleepy-user-1"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestServiceLoginUnknownEmail(t *testing.T) {
	svc, _, _ := buildTestService(t, nil)

	_, err := svc.Login(context.Background(), LoginRequest{Email: "ghost@example.com", Password: "whatever-1"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestServiceLogoutDropsCart(t *testing.T) {
	svc, sessions, carts := buildTestService(t, nil)

	if err := svc.Logout(context.Background(), "access-1"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if sessions.revoked != "access-1" {
		t.Fatalf("expected session revoke, got %q", sessions.revoked)
	}
	if carts.dropped != "access-1" {
		t.Fatalf("expected cart drop, got %q", carts.dropped)
	}

	if err := svc.Logout(context.Background(), " "); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for empty session, got %v", err)
	}
}

func TestServiceRefreshUsesStoredRole(t *testing.T) {
	user := testUser(t, "demoted-admin-1", enums.UserRoleUser)
	svc, sessions, carts := buildTestService(t, user)

	pair, err := svc.Refresh(context.Background(), RefreshInput{UserID: user.ID, AccessID: "old", RefreshToken: "refresh-token"})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWT, pair.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.UserRoleUser {
		t.Fatalf("expected stored role, got %s", claims.Role)
	}
	if claims.ID != sessions.rotatedTo {
		t.Fatalf("expected jti %q, got %q", sessions.rotatedTo, claims.ID)
	}
	if carts.movedFrom != "old" || carts.movedTo != sessions.rotatedTo {
		t.Fatalf("expected cart to follow session, got %q -> %q", carts.movedFrom, carts.movedTo)
	}
}

func TestServiceRefreshInvalidToken(t *testing.T) {
	user := testUser(t, "some-user-1", enums.UserRoleUser)
	svc, _, _ := buildTestService(t, user)

	_, err := svc.Refresh(context.Background(), RefreshInput{UserID: user.ID, AccessID: "old", RefreshToken: "stale"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func buildTestService(t *testing.T, user *models.User) (Service, *stubSessionManager, *stubCarts) {
	t.Helper()
	sessions := &stubSessionManager{refreshToken: "refresh-token"}
	carts := &stubCarts{}
	svc, err := NewService(ServiceParams{
		UserRepo:       &stubUserRepo{user: user},
		SessionManager: sessions,
		Carts:          carts,
		JWTConfig:      testJWT,
		PasswordConfig: testPasswordConfig,
		Logger:         logger.New(logger.Options{ServiceName: "auth-test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, sessions, carts
}

var testPasswordConfig = config.PasswordConfig{
	ArgonMemoryKB:    8,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func testUser(t *testing.T, password string, role enums.UserRole) *models.User {
	t.Helper()
	return &models.User{
		ID:           uuid.New(),
		Email:        "admin@example.com",
		PasswordHash: mustHashPassword(t, password),
		Role:         role,
		IsActive:     true,
	}
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, testPasswordConfig)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

type stubUserRepo struct {
	user *models.User
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s.user != nil && s.user.ID == id {
		s.user.LastLoginAt = &at
	}
	return nil
}

func (s *stubUserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	if s.user == nil {
		return errors.New("no user")
	}
	s.user.PasswordHash = hash
	return nil
}

type stubSessionManager struct {
	refreshToken string
	generated    string
	revoked      string
	rotatedTo    string
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	s.generated = accessID
	return s.refreshToken, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if provided != s.refreshToken {
		return "", "", session.ErrInvalidRefreshToken
	}
	s.rotatedTo = session.NewAccessID()
	return s.rotatedTo, "rotated-token", nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	s.revoked = accessID
	return nil
}

type stubCarts struct {
	dropped   string
	movedFrom string
	movedTo   string
}

func (s *stubCarts) Move(from, to string) {
	s.movedFrom, s.movedTo = from, to
}

func (s *stubCarts) Drop(sessionID string) {
	s.dropped = sessionID
}
