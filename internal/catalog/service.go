// Package catalog serves the reference data storefront filters are built from.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/lootmarket-backend/internal/repo"
	"github.com/angelmondragon/lootmarket-backend/pkg/auth"
	"github.com/angelmondragon/lootmarket-backend/pkg/db"
	"github.com/angelmondragon/lootmarket-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
	"github.com/angelmondragon/lootmarket-backend/pkg/metrics"
)

const defaultCountsTTL = time.Minute

// CategoryView is a category with its active listing count.
type CategoryView struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	ListingCount int64     `json:"listing_count"`
}

type GameView struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

type CreateGameInput struct {
	Name string
	Slug string
}

// Service exposes categories and games.
type Service interface {
	Categories(ctx context.Context) ([]CategoryView, error)
	Games(ctx context.Context) ([]GameView, error)
	CreateGame(ctx context.Context, actor auth.Actor, input CreateGameInput) (*GameView, error)
	RefreshCounts(ctx context.Context) ([]CategoryView, error)
	InvalidateCounts(ctx context.Context)
}

type repository interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListGames(ctx context.Context) ([]models.Game, error)
	CreateGame(ctx context.Context, game *models.Game) error
	ActiveListingCounts(ctx context.Context) (map[uuid.UUID]int64, error)
}

// Cache is the subset of the redis client used for category counts.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(parts ...string) string
}

type ServiceParams struct {
	Repository repository
	Cache      Cache
	Roles      auth.RoleSource
	Metrics    *metrics.CatalogMetrics
	Logger     *logger.Logger
	CountsTTL  time.Duration
}

type service struct {
	repo    repository
	cache   Cache
	roles   auth.RoleSource
	metrics *metrics.CatalogMetrics
	logg    *logger.Logger
	ttl     time.Duration
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	ttl := params.CountsTTL
	if ttl <= 0 {
		ttl = defaultCountsTTL
	}
	return &service{
		repo:    params.Repository,
		cache:   params.Cache,
		roles:   params.Roles,
		metrics: params.Metrics,
		logg:    params.Logger,
		ttl:     ttl,
	}, nil
}

func (s *service) Categories(ctx context.Context) ([]CategoryView, error) {
	if cached, ok := s.cachedCategories(ctx); ok {
		return cached, nil
	}
	return s.RefreshCounts(ctx)
}

// RefreshCounts recomputes category counts and rewrites the cache entry.
func (s *service) RefreshCounts(ctx context.Context) ([]CategoryView, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, repo.MapError(err, "categories not found")
	}
	counts, err := s.repo.ActiveListingCounts(ctx)
	if err != nil {
		return nil, repo.MapError(err, "categories not found")
	}
	views := make([]CategoryView, 0, len(categories))
	for _, c := range categories {
		views = append(views, CategoryView{ID: c.ID, Name: c.Name, Slug: c.Slug, ListingCount: counts[c.ID]})
	}
	s.storeCategories(ctx, views)
	return views, nil
}

func (s *service) InvalidateCounts(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.countsKey()); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "category count cache invalidation failed")
	}
}

func (s *service) Games(ctx context.Context) ([]GameView, error) {
	games, err := s.repo.ListGames(ctx)
	if err != nil {
		return nil, repo.MapError(err, "games not found")
	}
	views := make([]GameView, 0, len(games))
	for _, g := range games {
		views = append(views, GameView{ID: g.ID, Name: g.Name, Slug: g.Slug})
	}
	return views, nil
}

func (s *service) CreateGame(ctx context.Context, actor auth.Actor, input CreateGameInput) (*GameView, error) {
	if err := auth.RequireCurrentAdmin(ctx, s.roles, actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if name == "" || slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and slug are required")
	}
	game := &models.Game{Name: name, Slug: slug}
	if err := s.repo.CreateGame(ctx, game); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "game slug already exists")
		}
		return nil, repo.MapError(err, "game not found")
	}
	return &GameView{ID: game.ID, Name: game.Name, Slug: game.Slug}, nil
}

func (s *service) countsKey() string {
	return s.cache.CacheKey("catalog", "category-counts")
}

func (s *service) cachedCategories(ctx context.Context) ([]CategoryView, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.countsKey())
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "category count cache read failed")
		}
		s.metrics.ObserveCache(false)
		return nil, false
	}
	var views []CategoryView
	if err := json.Unmarshal([]byte(raw), &views); err != nil {
		s.metrics.ObserveCache(false)
		return nil, false
	}
	s.metrics.ObserveCache(true)
	return views, true
}

func (s *service) storeCategories(ctx context.Context, views []CategoryView) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(views)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.countsKey(), payload, s.ttl); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "category count cache write failed")
	}
}
