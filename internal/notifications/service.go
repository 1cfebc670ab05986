package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/lootmarket-backend/internal/repo"
	"github.com/angelmondragon/lootmarket-backend/pkg/auth"
	"github.com/angelmondragon/lootmarket-backend/pkg/db/models"
	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
	"github.com/angelmondragon/lootmarket-backend/pkg/pagination"
)

// Service lists and acknowledges the caller's notifications.
type Service interface {
	List(ctx context.Context, actor auth.Actor, input ListInput) (*List, error)
	MarkRead(ctx context.Context, actor auth.Actor, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, actor auth.Actor) (int64, error)
}

type ListInput struct {
	UnreadOnly bool
	Page       pagination.Params
}

// Notification is the API view of a stored notification.
type Notification struct {
	ID        uuid.UUID              `json:"id"`
	OrderID   *uuid.UUID             `json:"order_id,omitempty"`
	Type      enums.NotificationType `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Read      bool                   `json:"read"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type List struct {
	Items []Notification `json:"items"`
	pagination.Window
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires notifications dependencies.
func NewService(repository Repository) (Service, error) {
	if repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return &service{repo: repository, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, actor auth.Actor, input ListInput) (*List, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required")
	}
	params := input.Page
	params.Size = pagination.NormalizeSize(params.Size, 0, 0)

	rows, total, err := s.repo.ListByUser(ctx, actor.UserID, input.UnreadOnly, params)
	if err != nil {
		return nil, repo.MapError(err, "notifications not found")
	}
	items := make([]Notification, 0, len(rows))
	for _, row := range rows {
		items = append(items, fromModel(row))
	}
	return &List{Items: items, Window: pagination.Resolve(params, int(total))}, nil
}

func (s *service) MarkRead(ctx context.Context, actor auth.Actor, notificationID uuid.UUID) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	found, err := s.repo.MarkRead(ctx, actor.UserID, notificationID, s.now().UTC())
	if err != nil {
		return repo.MapError(err, "notification not found")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, actor auth.Actor) (int64, error) {
	if actor.UserID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required")
	}
	count, err := s.repo.MarkAllRead(ctx, actor.UserID, s.now().UTC())
	if err != nil {
		return 0, repo.MapError(err, "notifications not found")
	}
	return count, nil
}

func fromModel(m models.Notification) Notification {
	return Notification{
		ID:        m.ID,
		OrderID:   m.OrderID,
		Type:      m.Type,
		Title:     m.Title,
		Message:   m.Message,
		Read:      m.ReadAt != nil,
		ReadAt:    m.ReadAt,
		CreatedAt: m.CreatedAt,
	}
}
