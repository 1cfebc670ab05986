package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/lootmarket-backend/pkg/db/models"
	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	"github.com/angelmondragon/lootmarket-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, order *models.Order) error
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, int64, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, int64, error)
	StatsSince(ctx context.Context, since time.Time) (*StatsRow, error)
	FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}

// ListFilters narrows the admin order list.
type ListFilters struct {
	Status *enums.OrderStatus
}

// StatsRow aggregates orders created in a window.
type StatsRow struct {
	Orders        int64
	Delivered     int64
	Refunded      int64
	Cancelled     int64
	DeliveredSale string
}
