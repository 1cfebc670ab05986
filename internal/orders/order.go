// Package orders owns checkout, the order status lifecycle and order reads.
package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lootmarket-backend/internal/pricing"
	"github.com/angelmondragon/lootmarket-backend/pkg/db/models"
	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
)

// ListingSummary is the listing snapshot shown next to an order.
type ListingSummary struct {
	ID     uuid.UUID `json:"id"`
	Title  string    `json:"title"`
	Game   string    `json:"game,omitempty"`
	Server *string   `json:"server,omitempty"`
}

// Order is the API shape of a persisted order.
type Order struct {
	ID           uuid.UUID         `json:"id"`
	UserID       uuid.UUID         `json:"user_id"`
	ListingID    uuid.UUID         `json:"listing_id"`
	Listing      *ListingSummary   `json:"listing,omitempty"`
	Quantity     int               `json:"quantity"`
	TotalPrice   decimal.Decimal   `json:"total_price"`
	TotalDisplay string            `json:"total_display"`
	Status       enums.OrderStatus `json:"status"`
	DeliveryInfo *string           `json:"delivery_info,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// FromModel maps a stored order. Unknown statuses and non-positive quantities
// are reported as dependency errors.
func FromModel(m models.Order) (Order, error) {
	if !m.Status.IsValid() {
		return Order{}, malformed(m.ID, "unknown status "+string(m.Status))
	}
	if m.Quantity <= 0 {
		return Order{}, malformed(m.ID, "non-positive quantity")
	}
	out := Order{
		ID:           m.ID,
		UserID:       m.UserID,
		ListingID:    m.ListingID,
		Quantity:     m.Quantity,
		TotalPrice:   m.TotalPrice,
		TotalDisplay: pricing.FormatTotal(m.TotalPrice),
		Status:       m.Status,
		DeliveryInfo: m.DeliveryInfo,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.Listing != nil {
		summary := &ListingSummary{ID: m.Listing.ID, Title: m.Listing.Title, Server: m.Listing.Server}
		if m.Listing.Game != nil {
			summary.Game = m.Listing.Game.Name
		}
		out.Listing = summary
	}
	return out, nil
}

func FromModels(rows []models.Order) ([]Order, error) {
	out := make([]Order, 0, len(rows))
	for _, row := range rows {
		order, err := FromModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, nil
}

func malformed(id uuid.UUID, reason string) error {
	return pkgerrors.New(pkgerrors.CodeDependency, "malformed order record").
		WithDetails(map[string]string{"order_id": id.String(), "reason": reason})
}
