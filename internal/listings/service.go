package listings

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/lootmarket-backend/internal/repo"
	"github.com/angelmondragon/lootmarket-backend/pkg/auth"
	"github.com/angelmondragon/lootmarket-backend/pkg/db/models"
	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
	"github.com/angelmondragon/lootmarket-backend/pkg/metrics"
	"github.com/angelmondragon/lootmarket-backend/pkg/outbox"
	"github.com/angelmondragon/lootmarket-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/lootmarket-backend/pkg/pagination"
)

// BrowseInput is a storefront catalog request. ClientKey and Generation are
// optional; when both are set, responses to superseded requests are dropped.
type BrowseInput struct {
	Filter     Filter
	Page       pagination.Params
	ClientKey  string
	Generation uint64
}

// AdminListInput lists every listing, including inactive ones.
type AdminListInput struct {
	Filter Filter
	Page   pagination.Params
}

// UpsertInput carries the admin-editable listing fields.
type UpsertInput struct {
	Title       string
	Description *string
	Details     *string
	Server      *string
	GameID      uuid.UUID
	CategoryID  uuid.UUID
	Stock       int
	Price       decimal.Decimal
	IsActive    bool
}

// Service exposes storefront reads and admin listing management.
type Service interface {
	Browse(ctx context.Context, input BrowseInput) (*Result, error)
	Get(ctx context.Context, id uuid.UUID) (*Listing, error)
	AdminList(ctx context.Context, actor auth.Actor, input AdminListInput) (*Result, error)
	Create(ctx context.Context, actor auth.Actor, input UpsertInput) (*Listing, error)
	Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpsertInput) (*Listing, error)
	Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error
}

type listingRepository interface {
	List(ctx context.Context, q Query) ([]models.Listing, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	OrderCounts(ctx context.Context) (map[uuid.UUID]int64, error)
	WithTx(tx *gorm.DB) *Repository
}

type referenceReader interface {
	CategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	GameByID(ctx context.Context, id uuid.UUID) (*models.Game, error)
}

type countInvalidator interface {
	InvalidateCounts(ctx context.Context)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ServiceParams struct {
	Repository  listingRepository
	References  referenceReader
	DB          txRunner
	Outbox      outboxEmitter
	Roles       auth.RoleSource
	Generations *Generations
	Counts      countInvalidator
	Metrics     *metrics.CatalogMetrics
	Logger      *logger.Logger
	PageSize    int
	MaxPageSize int
}

type service struct {
	repo        listingRepository
	refs        referenceReader
	db          txRunner
	outbox      outboxEmitter
	roles       auth.RoleSource
	generations *Generations
	counts      countInvalidator
	metrics     *metrics.CatalogMetrics
	logg        *logger.Logger
	pageSize    int
	maxPageSize int
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("listing repository required")
	}
	if params.References == nil {
		return nil, fmt.Errorf("reference reader required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	generations := params.Generations
	if generations == nil {
		generations = NewGenerations(0)
	}
	return &service{
		repo:        params.Repository,
		refs:        params.References,
		db:          params.DB,
		outbox:      params.Outbox,
		roles:       params.Roles,
		generations: generations,
		counts:      params.Counts,
		metrics:     params.Metrics,
		logg:        params.Logger,
		pageSize:    params.PageSize,
		maxPageSize: params.MaxPageSize,
	}, nil
}

func (s *service) Browse(ctx context.Context, input BrowseInput) (*Result, error) {
	ticket, ok := s.generations.Begin(input.ClientKey, input.Generation)
	if !ok {
		return nil, s.superseded(ctx, ticket)
	}

	result, err := s.load(ctx, Query{
		CategorySlug: input.Filter.CategorySlug,
		GameID:       input.Filter.GameID,
	}, input.Filter, input.Page)
	if err != nil {
		return nil, err
	}

	if !s.generations.Current(ticket) {
		return nil, s.superseded(ctx, ticket)
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Listing, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repo.MapError(err, "listing not found")
	}
	if !row.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	listing, err := FromModel(*row)
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (s *service) AdminList(ctx context.Context, actor auth.Actor, input AdminListInput) (*Result, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.load(ctx, Query{
		CategorySlug:    input.Filter.CategorySlug,
		GameID:          input.Filter.GameID,
		IncludeInactive: true,
	}, input.Filter, input.Page)
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input UpsertInput) (*Listing, error) {
	if err := auth.RequireCurrentAdmin(ctx, s.roles, actor); err != nil {
		return nil, err
	}
	if err := s.validate(ctx, &input); err != nil {
		return nil, err
	}
	row := &models.Listing{ID: uuid.New()}
	applyInput(row, input)

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, row)
	})
	if err != nil {
		return nil, repo.MapError(err, "listing not found")
	}
	s.invalidate(ctx)
	s.logg.Info(s.logg.WithField(ctx, "listing_id", row.ID.String()), "listing created")
	return s.reload(ctx, row.ID)
}

func (s *service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpsertInput) (*Listing, error) {
	if err := auth.RequireCurrentAdmin(ctx, s.roles, actor); err != nil {
		return nil, err
	}
	if err := s.validate(ctx, &input); err != nil {
		return nil, err
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		row, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		applyInput(row, input)
		row.Game, row.Category = nil, nil
		return txRepo.Update(ctx, row)
	})
	if err != nil {
		return nil, repo.MapError(err, "listing not found")
	}
	s.invalidate(ctx)
	s.logg.Info(s.logg.WithField(ctx, "listing_id", id.String()), "listing updated")
	return s.reload(ctx, id)
}

// Delete removes a listing that has never been ordered. Listings with order
// history are deactivated through Update instead.
func (s *service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if err := auth.RequireCurrentAdmin(ctx, s.roles, actor); err != nil {
		return err
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		row, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		hasOrders, err := txRepo.HasOrders(ctx, id)
		if err != nil {
			return err
		}
		if hasOrders {
			return pkgerrors.New(pkgerrors.CodeConflict, "listing has orders; deactivate it instead")
		}
		if _, err := txRepo.Delete(ctx, id); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventListingDeleted,
			AggregateType: enums.AggregateListing,
			AggregateID:   id,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Data:          payloads.ListingDeletedEvent{ListingID: id, Title: row.Title},
		})
	})
	if err != nil {
		return repo.MapError(err, "listing not found")
	}
	s.invalidate(ctx)
	s.logg.Info(s.logg.WithField(ctx, "listing_id", id.String()), "listing deleted")
	return nil
}

func (s *service) load(ctx context.Context, q Query, f Filter, page pagination.Params) (*Result, error) {
	rows, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, repo.MapError(err, "listings not found")
	}
	items, err := FromModels(rows)
	if err != nil {
		return nil, err
	}
	if f.Sort == enums.ListingSortPopular {
		counts, err := s.repo.OrderCounts(ctx)
		if err != nil {
			return nil, repo.MapError(err, "listings not found")
		}
		for i := range items {
			items[i].OrderCount = counts[items[i].ID]
		}
	}
	page.Size = pagination.NormalizeSize(page.Size, s.pageSize, s.maxPageSize)
	result := Apply(items, f, page)
	return &result, nil
}

func (s *service) reload(ctx context.Context, id uuid.UUID) (*Listing, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repo.MapError(err, "listing not found")
	}
	listing, err := FromModel(*row)
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (s *service) validate(ctx context.Context, input *UpsertInput) error {
	input.Title = strings.TrimSpace(input.Title)
	problems := map[string]string{}
	if input.Title == "" {
		problems["title"] = "required"
	}
	if input.Price.IsNegative() {
		problems["price"] = "must be >= 0"
	}
	if input.Stock < 0 {
		problems["stock"] = "must be >= 0"
	}
	if input.GameID == uuid.Nil {
		problems["game_id"] = "required"
	}
	if input.CategoryID == uuid.Nil {
		problems["category_id"] = "required"
	}
	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid listing").WithDetails(problems)
	}
	if _, err := s.refs.GameByID(ctx, input.GameID); err != nil {
		return referenceError(err, "game_id")
	}
	if _, err := s.refs.CategoryByID(ctx, input.CategoryID); err != nil {
		return referenceError(err, "category_id")
	}
	return nil
}

func referenceError(err error, field string) error {
	mapped := repo.MapError(err, "reference not found")
	if pkgerrors.IsCode(mapped, pkgerrors.CodeNotFound) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid listing").
			WithDetails(map[string]string{field: "does not exist"})
	}
	return mapped
}

func applyInput(row *models.Listing, input UpsertInput) {
	row.Title = input.Title
	row.Description = input.Description
	row.Details = input.Details
	row.Server = input.Server
	row.GameID = input.GameID
	row.CategoryID = input.CategoryID
	row.Stock = input.Stock
	row.Price = input.Price
	row.IsActive = input.IsActive
}

func (s *service) invalidate(ctx context.Context) {
	if s.counts != nil {
		s.counts.InvalidateCounts(ctx)
	}
}

func (s *service) superseded(ctx context.Context, ticket Ticket) error {
	s.metrics.IncSuperseded()
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"client_key": ticket.Key,
		"generation": ticket.Generation,
	}), "browse response superseded")
	return pkgerrors.New(pkgerrors.CodeStateConflict, "superseded by a newer request")
}
