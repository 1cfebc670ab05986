package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once per order row written at checkout.
type OrderCreatedEvent struct {
	OrderID    uuid.UUID       `json:"order_id"`
	UserID     uuid.UUID       `json:"user_id"`
	ListingID  uuid.UUID       `json:"listing_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// OrderStatusChangedEvent carries an applied lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID      uuid.UUID         `json:"order_id"`
	UserID       uuid.UUID         `json:"user_id"`
	Action       enums.OrderAction `json:"action"`
	From         enums.OrderStatus `json:"from"`
	To           enums.OrderStatus `json:"to"`
	DeliveryInfo *string           `json:"delivery_info,omitempty"`
}

// ListingDeletedEvent tells downstream caches to drop a listing.
type ListingDeletedEvent struct {
	ListingID uuid.UUID `json:"listing_id"`
	Title     string    `json:"title"`
}
