// Package dbtest opens migrated in-memory sqlite databases for repository tests.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/lootmarket-backend/pkg/db"
	"github.com/angelmondragon/lootmarket-backend/pkg/db/models"
	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	"github.com/angelmondragon/lootmarket-backend/pkg/migrate"
)

// Open returns a client over a fresh, fully migrated in-memory database.
func Open(t testing.TB) *db.Client {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_busy_timeout=5000", name, uuid.NewString()[:8])
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetConnMaxLifetime(0)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.Up(context.Background(), sqlDB, migrate.DialectFor("sqlite")); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db.Wrap(conn)
}

// Category loads a seeded category by slug.
func Category(t testing.TB, conn *gorm.DB, slug string) models.Category {
	t.Helper()
	var category models.Category
	if err := conn.Where("slug = ?", slug).First(&category).Error; err != nil {
		t.Fatalf("load category %s: %v", slug, err)
	}
	return category
}

// CreateGame inserts a game with the given slug.
func CreateGame(t testing.TB, conn *gorm.DB, name, slug string) models.Game {
	t.Helper()
	game := models.Game{ID: uuid.New(), Name: name, Slug: slug}
	if err := conn.Create(&game).Error; err != nil {
		t.Fatalf("create game: %v", err)
	}
	return game
}

// ListingSeed describes a listing to insert.
type ListingSeed struct {
	Title     string
	Game      models.Game
	Category  models.Category
	Price     string
	Stock     int
	Inactive  bool
	CreatedAt time.Time
}

// CreateListing inserts a listing built from seed.
func CreateListing(t testing.TB, conn *gorm.DB, seed ListingSeed) models.Listing {
	t.Helper()
	created := seed.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	listing := models.Listing{
		ID:         uuid.New(),
		Title:      seed.Title,
		GameID:     seed.Game.ID,
		CategoryID: seed.Category.ID,
		Stock:      seed.Stock,
		Price:      decimal.RequireFromString(seed.Price),
		IsActive:   !seed.Inactive,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	if err := conn.Create(&listing).Error; err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return listing
}

// CreateUser inserts an active account.
func CreateUser(t testing.TB, conn *gorm.DB, role enums.UserRole) models.User {
	t.Helper()
	user := models.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("lm_test_%s@example.com", uuid.NewString()),
		PasswordHash: "hash",
		Role:         role,
		IsActive:     true,
	}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// CreateOrder inserts an order for listing at the given status.
func CreateOrder(t testing.TB, conn *gorm.DB, userID uuid.UUID, listing models.Listing, quantity int, status enums.OrderStatus) models.Order {
	t.Helper()
	order := models.Order{
		ID:         uuid.New(),
		UserID:     userID,
		ListingID:  listing.ID,
		Quantity:   quantity,
		TotalPrice: listing.Price.Mul(decimal.NewFromInt(int64(quantity))).Div(decimal.NewFromInt(500)),
		Status:     status,
	}
	if err := conn.Create(&order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}
