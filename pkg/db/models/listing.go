package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing is a sellable offer. Price is quoted per 500 quantity units.
type Listing struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Title       string          `gorm:"column:title;not null"`
	Description *string         `gorm:"column:description"`
	Details     *string         `gorm:"column:details"`
	Server      *string         `gorm:"column:server"`
	GameID      uuid.UUID       `gorm:"column:game_id;type:uuid;not null"`
	CategoryID  uuid.UUID       `gorm:"column:category_id;type:uuid;not null"`
	Stock       int             `gorm:"column:stock;not null;default:0"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,4);not null"`
	IsActive    bool            `gorm:"column:is_active;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`

	Game     *Game     `gorm:"foreignKey:GameID"`
	Category *Category `gorm:"foreignKey:CategoryID"`
}
