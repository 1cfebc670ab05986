package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/lootmarket-backend/internal/repo"
	"github.com/angelmondragon/lootmarket-backend/pkg/db/models"
)

type Repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := r.base.DB(ctx).Order("sort_order ASC").Order("slug ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) ListGames(ctx context.Context) ([]models.Game, error) {
	var rows []models.Game
	err := r.base.DB(ctx).Order("name ASC").Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) CategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	return repo.FindByID[models.Category](r.base.DB(ctx), id)
}

func (r *Repository) GameByID(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	return repo.FindByID[models.Game](r.base.DB(ctx), id)
}

func (r *Repository) CreateGame(ctx context.Context, game *models.Game) error {
	if game.ID == uuid.Nil {
		game.ID = uuid.New()
	}
	return r.base.DB(ctx).Create(game).Error
}

type categoryCountRow struct {
	CategoryID uuid.UUID
	Listings   int64
}

// ActiveListingCounts returns the number of active listings per category id.
func (r *Repository) ActiveListingCounts(ctx context.Context) (map[uuid.UUID]int64, error) {
	var rows []categoryCountRow
	err := r.base.DB(ctx).
		Model(&models.Listing{}).
		Select("category_id, COUNT(*) AS listings").
		Where("is_active = ?", true).
		Group("category_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.CategoryID] = row.Listings
	}
	return counts, nil
}
