package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/lootmarket-backend/internal/repo"
	"github.com/angelmondragon/lootmarket-backend/pkg/db/models"
	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	"github.com/angelmondragon/lootmarket-backend/pkg/pagination"
)

type repository struct {
	base repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.Bound(tx)}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return r.base.DB(ctx).Omit("Listing").Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return repo.FindByID[models.Order](r.base.DB(ctx).Preload("Listing.Game"), id)
}

// FindForUpdate loads the order row locked for the rest of the transaction on
// postgres. SQLite serializes writers on its own.
func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	db := r.base.DB(ctx)
	if db.Dialector != nil && db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var order models.Order
	if err := db.First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateStatus(ctx context.Context, order *models.Order) error {
	return r.base.DB(ctx).
		Model(&models.Order{ID: order.ID}).
		Updates(map[string]any{
			"status":        order.Status,
			"delivery_info": order.DeliveryInfo,
			"updated_at":    time.Now().UTC(),
		}).Error
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, int64, error) {
	q := r.base.DB(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	return r.page(q, params)
}

func (r *repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, int64, error) {
	q := r.base.DB(ctx).Model(&models.Order{})
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	return r.page(q, params)
}

func (r *repository) page(q *gorm.DB, params pagination.Params) ([]models.Order, int64, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	window := pagination.Resolve(params, int(total))
	var rows []models.Order
	err := q.
		Preload("Listing.Game").
		Order("created_at DESC").
		Order("id ASC").
		Offset(window.Offset).
		Limit(window.Size).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// StatsSince aggregates orders created at or after since.
func (r *repository) StatsSince(ctx context.Context, since time.Time) (*StatsRow, error) {
	var row StatsRow
	err := r.base.DB(ctx).
		Model(&models.Order{}).
		Select(
			"COUNT(*) AS orders, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS delivered, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS refunded, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS cancelled, "+
				"CAST(COALESCE(SUM(CASE WHEN status = ? THEN total_price ELSE 0 END), 0) AS TEXT) AS delivered_sale",
			enums.OrderStatusDelivered,
			enums.OrderStatusRefunded,
			enums.OrderStatusCancelled,
			enums.OrderStatusDelivered,
		).
		Where("created_at >= ?", since).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindListing loads the listing an order is being placed against, on the
// repository's connection so checkout reads it inside its transaction.
func (r *repository) FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.base.DB(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}
