package listings

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lootmarket-backend/internal/pricing"
	"github.com/angelmondragon/lootmarket-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
)

// Ref is the embedded game or category summary of a listing.
type Ref struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// Listing is the storefront view of a sellable offer.
type Listing struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description *string         `json:"description,omitempty"`
	Details     *string         `json:"details,omitempty"`
	Server      *string         `json:"server,omitempty"`
	Game        Ref             `json:"game"`
	Category    Ref             `json:"category"`
	Stock       int             `json:"stock"`
	Price       decimal.Decimal `json:"price"`
	UnitPrice   string          `json:"unit_price"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	OrderCount  int64           `json:"order_count"`
}

// FromModel maps a persisted listing into the storefront shape. Rows missing
// their game or category, or carrying impossible values, are reported as
// dependency errors instead of leaking half-populated listings.
func FromModel(m models.Listing) (Listing, error) {
	if m.ID == uuid.Nil {
		return Listing{}, malformed(m.ID, "missing id")
	}
	if strings.TrimSpace(m.Title) == "" {
		return Listing{}, malformed(m.ID, "missing title")
	}
	if m.Game == nil || m.Game.ID != m.GameID {
		return Listing{}, malformed(m.ID, "game not loaded")
	}
	if m.Category == nil || m.Category.ID != m.CategoryID {
		return Listing{}, malformed(m.ID, "category not loaded")
	}
	if m.Price.IsNegative() {
		return Listing{}, malformed(m.ID, "negative price")
	}
	if m.Stock < 0 {
		return Listing{}, malformed(m.ID, "negative stock")
	}
	return Listing{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Details:     m.Details,
		Server:      m.Server,
		Game:        Ref{ID: m.Game.ID, Name: m.Game.Name, Slug: m.Game.Slug},
		Category:    Ref{ID: m.Category.ID, Name: m.Category.Name, Slug: m.Category.Slug},
		Stock:       m.Stock,
		Price:       m.Price,
		UnitPrice:   pricing.FormatUnitPrice(m.Price),
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
	}, nil
}

// FromModels maps a batch, failing on the first malformed row.
func FromModels(rows []models.Listing) ([]Listing, error) {
	out := make([]Listing, 0, len(rows))
	for _, row := range rows {
		item, err := FromModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func malformed(id uuid.UUID, reason string) error {
	return pkgerrors.New(pkgerrors.CodeDependency, "malformed listing record").
		WithDetails(map[string]string{"listing_id": id.String(), "reason": reason})
}
