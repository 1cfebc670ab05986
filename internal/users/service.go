package users

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/angelmondragon/lootmarket-backend/internal/repo"
	"github.com/angelmondragon/lootmarket-backend/pkg/auth"
	"github.com/angelmondragon/lootmarket-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
)

// MaxDisplayNameLength bounds profile display names in runes.
const MaxDisplayNameLength = 64

// Service serves the caller's own profile.
type Service interface {
	Profile(ctx context.Context, actor auth.Actor) (*UserDTO, error)
	UpdateDisplayName(ctx context.Context, actor auth.Actor, name string) (*UserDTO, error)
}

type profileRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateDisplayName(ctx context.Context, id uuid.UUID, name *string) error
}

type service struct {
	repo profileRepository
}

func NewService(repo profileRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Profile(ctx context.Context, actor auth.Actor) (*UserDTO, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required")
	}
	user, err := s.repo.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, repo.MapError(err, "user not found")
	}
	return FromModel(user), nil
}

// UpdateDisplayName trims name and stores it; an empty name clears it.
func (s *service) UpdateDisplayName(ctx context.Context, actor auth.Actor, name string) (*UserDTO, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required")
	}
	trimmed := strings.TrimSpace(name)
	if utf8.RuneCountInString(trimmed) > MaxDisplayNameLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"display_name": fmt.Sprintf("must be at most %d characters", MaxDisplayNameLength)})
	}
	var value *string
	if trimmed != "" {
		value = &trimmed
	}
	if err := s.repo.UpdateDisplayName(ctx, actor.UserID, value); err != nil {
		return nil, repo.MapError(err, "user not found")
	}
	return s.Profile(ctx, actor)
}
