package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/lootmarket-backend/internal/repo"
	"github.com/angelmondragon/lootmarket-backend/pkg/db/models"
	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
)

type Repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.base.DB(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail expects an already lowercased address; the unique index is on
// the stored lowercase form.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return repo.FindOne[models.User](r.base.DB(ctx), "email = ?", email)
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return repo.FindByID[models.User](r.base.DB(ctx), id)
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return repo.SetColumns[models.User](r.base.DB(ctx), id, map[string]any{"last_login_at": at})
}

// UpdatePasswordHash stores a re-hashed password after a parameter upgrade.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return repo.SetColumns[models.User](r.base.DB(ctx), id, map[string]any{"password_hash": hash})
}

// UpdateDisplayName sets the display name, or clears it when name is nil.
func (r *Repository) UpdateDisplayName(ctx context.Context, id uuid.UUID, name *string) error {
	return repo.SetColumns[models.User](r.base.DB(ctx), id, map[string]any{
		"display_name": name,
		"updated_at":   time.Now().UTC(),
	})
}

// CurrentRole returns the stored role of an active user. Deactivated accounts
// report NOT_FOUND.
func (r *Repository) CurrentRole(ctx context.Context, userID uuid.UUID) (enums.UserRole, error) {
	user, err := r.FindByID(ctx, userID)
	if err != nil {
		return "", repo.MapError(err, "user not found")
	}
	if !user.IsActive {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return user.Role, nil
}
