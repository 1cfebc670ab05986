package listings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/lootmarket-backend/internal/repo"
	"github.com/angelmondragon/lootmarket-backend/pkg/db/models"
	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
)

// Query selects listing rows. Title search is applied by Apply, not in SQL,
// so case folding behaves the same on every driver.
type Query struct {
	CategorySlug    string
	GameID          uuid.UUID
	IncludeInactive bool
}

// Repository persists listings.
type Repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.Bound(tx)}
}

func (r *Repository) List(ctx context.Context, q Query) ([]models.Listing, error) {
	db := r.base.DB(ctx).
		Model(&models.Listing{}).
		Preload("Game").
		Preload("Category")
	if !q.IncludeInactive {
		db = db.Where("listings.is_active = ?", true)
	}
	if q.GameID != uuid.Nil {
		db = db.Where("listings.game_id = ?", q.GameID)
	}
	if q.CategorySlug != "" {
		sub := r.base.DB(ctx).Model(&models.Category{}).Select("id").Where("slug = ?", q.CategorySlug)
		db = db.Where("listings.category_id IN (?)", sub)
	}
	var rows []models.Listing
	if err := db.Order("listings.created_at DESC").Order("listings.id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return repo.FindByID[models.Listing](r.base.DB(ctx).Preload("Game").Preload("Category"), id)
}

func (r *Repository) Create(ctx context.Context, listing *models.Listing) error {
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	return r.base.DB(ctx).Omit("Game", "Category").Create(listing).Error
}

func (r *Repository) Update(ctx context.Context, listing *models.Listing) error {
	return r.base.DB(ctx).
		Model(listing).
		Select("title", "description", "details", "server", "game_id", "category_id", "stock", "price", "is_active", "updated_at").
		Updates(listing).Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.base.DB(ctx).Where("id = ?", id).Delete(&models.Listing{})
	return res.RowsAffected, res.Error
}

type orderCountRow struct {
	ListingID uuid.UUID
	Orders    int64
}

// OrderCounts returns how many live orders each listing has. Refunded and
// cancelled orders do not count toward popularity.
func (r *Repository) OrderCounts(ctx context.Context) (map[uuid.UUID]int64, error) {
	var rows []orderCountRow
	err := r.base.DB(ctx).
		Model(&models.Order{}).
		Select("listing_id, COUNT(*) AS orders").
		Where("status NOT IN ?", []string{string(enums.OrderStatusRefunded), string(enums.OrderStatusCancelled)}).
		Group("listing_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.ListingID] = row.Orders
	}
	return counts, nil
}

func (r *Repository) HasOrders(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.base.DB(ctx).Model(&models.Order{}).Where("listing_id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
