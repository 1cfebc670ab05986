package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
)

// Notification is an in-app message addressed to one buyer.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null"`
	OrderID   *uuid.UUID             `gorm:"column:order_id;type:uuid"`
	EventID   uuid.UUID              `gorm:"column:event_id;type:uuid;not null;uniqueIndex"`
	Type      enums.NotificationType `gorm:"column:type;type:text;not null"`
	Title     string                 `gorm:"column:title;not null"`
	Message   string                 `gorm:"column:message;not null"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
