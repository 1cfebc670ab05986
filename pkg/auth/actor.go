package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID    uuid.UUID
	Role      enums.UserRole
	SessionID string
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

// RequireAdmin rejects non-admin actors. Mutating admin operations call it even
// when the route is already guarded.
func RequireAdmin(actor Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required")
	}
	if !actor.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

// RoleSource reports the stored role for a user.
type RoleSource interface {
	CurrentRole(ctx context.Context, userID uuid.UUID) (enums.UserRole, error)
}

// RequireCurrentAdmin checks the token role and then the stored role, so a
// demotion takes effect before the access token expires.
func RequireCurrentAdmin(ctx context.Context, roles RoleSource, actor Actor) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	if roles == nil {
		return nil
	}
	role, err := roles.CurrentRole(ctx, actor.UserID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "account no longer exists")
		}
		return err
	}
	if role != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}
