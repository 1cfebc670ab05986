package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
)

// Order records one purchase of one listing.
type Order struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	ListingID    uuid.UUID         `gorm:"column:listing_id;type:uuid;not null"`
	Quantity     int               `gorm:"column:quantity;not null"`
	TotalPrice   decimal.Decimal   `gorm:"column:total_price;type:numeric(12,4);not null"`
	Status       enums.OrderStatus `gorm:"column:status;type:text;not null;default:pending"`
	DeliveryInfo *string           `gorm:"column:delivery_info"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Listing *Listing `gorm:"foreignKey:ListingID"`
}
