package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/lootmarket-backend/internal/cart"
	"github.com/angelmondragon/lootmarket-backend/internal/pricing"
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

// PerformanceWindow is the look-back of the seller performance banner.
const PerformanceWindow = 30 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type cartSource interface {
	For(sessionID string) *cart.Store
}

// Service defines order operations for buyers and admins.
type Service interface {
	Checkout(ctx context.Context, actor auth.Actor) (*CheckoutResult, error)
	ApplyAction(ctx context.Context, actor auth.Actor, input ApplyActionInput) (*Order, error)
	ListForUser(ctx context.Context, actor auth.Actor, params pagination.Params) (*OrderList, error)
	ListAll(ctx context.Context, actor auth.Actor, filters ListFilters, params pagination.Params) (*OrderList, error)
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Order, error)
	SellerPerformance(ctx context.Context, actor auth.Actor, now time.Time) (*Performance, error)
}

// ApplyActionInput is an admin request to move an order through its lifecycle.
type ApplyActionInput struct {
	OrderID      uuid.UUID
	Action       enums.OrderAction
	DeliveryInfo string
}

// CheckoutResult lists the orders created from the cart.
type CheckoutResult struct {
	Orders       []Order         `json:"orders"`
	Total        decimal.Decimal `json:"total"`
	TotalDisplay string          `json:"total_display"`
}

type OrderList struct {
	Items []Order `json:"items"`
	pagination.Window
}

// Performance summarizes orders created in the trailing window.
type Performance struct {
	Since           time.Time       `json:"since"`
	Orders          int64           `json:"orders"`
	DeliveredOrders int64           `json:"delivered_orders"`
	Sales           decimal.Decimal `json:"sales"`
	SalesDisplay    string          `json:"sales_display"`
	DeliveryRate    float64         `json:"delivery_rate"`
}

type ServiceParams struct {
	Repository  Repository
	DB          txRunner
	Outbox      outboxPublisher
	Carts       cartSource
	Roles       auth.RoleSource
	Metrics     *metrics.OrderMetrics
	Logger      *logger.Logger
	PageSize    int
	MaxPageSize int
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	carts       cartSource
	roles       auth.RoleSource
	metrics     *metrics.OrderMetrics
	logg        *logger.Logger
	pageSize    int
	maxPageSize int
}

// NewService builds an order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart registry required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        params.Repository,
		tx:          params.DB,
		outbox:      params.Outbox,
		carts:       params.Carts,
		roles:       params.Roles,
		metrics:     params.Metrics,
		logg:        params.Logger,
		pageSize:    params.PageSize,
		maxPageSize: params.MaxPageSize,
	}, nil
}

// Checkout turns every cart line into a pending order priced from the current
// listing, then removes the ordered lines. Only one checkout per session runs
// at a time. Stock is checked but never decremented.
func (s *service) Checkout(ctx context.Context, actor auth.Actor) (*CheckoutResult, error) {
	if actor.UserID == uuid.Nil || actor.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session required")
	}
	store := s.carts.For(actor.SessionID)
	lines, ok := store.BeginCheckout()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress")
	}
	if len(lines) == 0 {
		store.EndCheckout()
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	created := make([]models.Order, 0, len(lines))
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		for _, line := range lines {
			listing, err := txRepo.FindListing(ctx, line.ListingID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return unavailable(line.ListingID, "no longer available")
				}
				return err
			}
			if !listing.IsActive {
				return unavailable(line.ListingID, "no longer available")
			}
			if !pricing.ValidQuantity(line.Quantity) {
				return unavailable(line.ListingID, "invalid quantity")
			}
			if line.Quantity > listing.Stock {
				return unavailable(line.ListingID, "exceeds available stock")
			}

			order := models.Order{
				ID:         uuid.New(),
				UserID:     actor.UserID,
				ListingID:  listing.ID,
				Quantity:   line.Quantity,
				TotalPrice: pricing.LineTotal(listing.Price, line.Quantity),
				Status:     enums.OrderStatusPending,
			}
			if err := txRepo.Create(ctx, &order); err != nil {
				return err
			}
			event := outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         actorRef(actor),
				Data: payloads.OrderCreatedEvent{
					OrderID:    order.ID,
					UserID:     order.UserID,
					ListingID:  order.ListingID,
					Quantity:   order.Quantity,
					TotalPrice: order.TotalPrice,
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
			created = append(created, order)
		}
		return nil
	})
	if err != nil {
		store.EndCheckout()
		return nil, repo.MapError(err, "listing not found")
	}

	ordered := make([]uuid.UUID, 0, len(created))
	for _, order := range created {
		ordered = append(ordered, order.ListingID)
	}
	store.EndCheckout(ordered...)
	s.metrics.AddCreated(len(created))

	out, err := FromModels(created)
	if err != nil {
		return nil, err
	}
	result := &CheckoutResult{Orders: out, Total: decimal.Zero}
	for _, order := range out {
		result.Total = result.Total.Add(order.TotalPrice)
	}
	result.TotalDisplay = pricing.FormatTotal(result.Total)

	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id": actor.UserID.String(),
		"orders":  len(out),
		"total":   result.TotalDisplay,
	})
	s.logg.Info(ctx, "checkout completed")
	return result, nil
}

// ApplyAction re-checks the caller's stored role, then applies the lifecycle
// transition and its outbox event in one transaction.
func (s *service) ApplyAction(ctx context.Context, actor auth.Actor, input ApplyActionInput) (*Order, error) {
	if err := auth.RequireCurrentAdmin(ctx, s.roles, actor); err != nil {
		return nil, err
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var from, to enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		row, err := txRepo.FindForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		current, err := FromModel(*row)
		if err != nil {
			return err
		}
		next, err := Transition(current, input.Action, TransitionPayload{DeliveryInfo: input.DeliveryInfo})
		if err != nil {
			return err
		}

		row.Status = next.Status
		row.DeliveryInfo = next.DeliveryInfo
		if err := txRepo.UpdateStatus(ctx, row); err != nil {
			return err
		}
		from, to = current.Status, next.Status

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   row.ID,
			Actor:         actorRef(actor),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:      row.ID,
				UserID:       row.UserID,
				Action:       input.Action,
				From:         from,
				To:           to,
				DeliveryInfo: next.DeliveryInfo,
			},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			switch typed.Code() {
			case pkgerrors.CodeIllegalTransition, pkgerrors.CodeValidation:
				s.metrics.ObserveRejected(string(input.Action), string(typed.Code()))
			}
		}
		return nil, repo.MapError(err, "order not found")
	}

	s.metrics.ObserveTransition(string(from), string(to))
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id": input.OrderID.String(),
		"from":     string(from),
		"to":       string(to),
	})
	s.logg.Info(ctx, "order status changed")

	return s.load(ctx, input.OrderID)
}

func (s *service) ListForUser(ctx context.Context, actor auth.Actor, params pagination.Params) (*OrderList, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required")
	}
	params.Size = pagination.NormalizeSize(params.Size, s.pageSize, s.maxPageSize)
	rows, total, err := s.repo.ListByUser(ctx, actor.UserID, params)
	if err != nil {
		return nil, repo.MapError(err, "orders not found")
	}
	return buildList(rows, total, params)
}

func (s *service) ListAll(ctx context.Context, actor auth.Actor, filters ListFilters, params pagination.Params) (*OrderList, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	params.Size = pagination.NormalizeSize(params.Size, s.pageSize, s.maxPageSize)
	rows, total, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, repo.MapError(err, "orders not found")
	}
	return buildList(rows, total, params)
}

// Get returns an order to its buyer or to an admin. Other callers get
// NOT_FOUND so order ids cannot be probed.
func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Order, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required")
	}
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) SellerPerformance(ctx context.Context, actor auth.Actor, now time.Time) (*Performance, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	since := now.UTC().Add(-PerformanceWindow)
	row, err := s.repo.StatsSince(ctx, since)
	if err != nil {
		return nil, repo.MapError(err, "orders not found")
	}
	sales := decimal.Zero
	if row.DeliveredSale != "" {
		sales, err = decimal.NewFromString(row.DeliveredSale)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "malformed sales aggregate")
		}
	}
	perf := &Performance{
		Since:           since,
		Orders:          row.Orders,
		DeliveredOrders: row.Delivered,
		Sales:           sales,
		SalesDisplay:    pricing.FormatTotal(sales),
	}
	if settled := row.Delivered + row.Refunded + row.Cancelled; settled > 0 {
		perf.DeliveryRate = float64(row.Delivered) * 100 / float64(settled)
	}
	return perf, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*Order, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repo.MapError(err, "order not found")
	}
	order, err := FromModel(*row)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func buildList(rows []models.Order, total int64, params pagination.Params) (*OrderList, error) {
	items, err := FromModels(rows)
	if err != nil {
		return nil, err
	}
	return &OrderList{Items: items, Window: pagination.Resolve(params, int(total))}, nil
}

func actorRef(actor auth.Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}

func unavailable(listingID uuid.UUID, reason string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "cart line cannot be ordered").
		WithDetails(map[string]string{"listing_id": listingID.String(), "reason": reason})
}
