package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lootmarket-backend/internal/listings"
	"github.com/angelmondragon/lootmarket-backend/internal/pricing"
	"github.com/angelmondragon/lootmarket-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
)

// DefaultMaxLines caps distinct listings per cart when no limit is configured.
const DefaultMaxLines = 50

// LineView is a cart line with display-ready prices.
type LineView struct {
	ListingID uuid.UUID       `json:"listing_id"`
	Title     string          `json:"title"`
	Game      string          `json:"game"`
	Server    *string         `json:"server,omitempty"`
	Price     decimal.Decimal `json:"price"`
	UnitPrice string          `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Stock     int             `json:"stock"`
	LineTotal string          `json:"line_total"`
}

// View is the cart as returned to the storefront.
type View struct {
	Items     []LineView      `json:"items"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
	TotalText string          `json:"total_display"`
}

type AddItemInput struct {
	ListingID uuid.UUID
	Quantity  int
}

// Service mutates the caller's session cart.
type Service interface {
	View(ctx context.Context, actor auth.Actor) (*View, error)
	AddItem(ctx context.Context, actor auth.Actor, input AddItemInput) (*View, error)
	UpdateQuantity(ctx context.Context, actor auth.Actor, listingID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, actor auth.Actor, listingID uuid.UUID) (*View, error)
	Clear(ctx context.Context, actor auth.Actor) error
}

type listingReader interface {
	Get(ctx context.Context, id uuid.UUID) (*listings.Listing, error)
}

type ServiceParams struct {
	Registry *Registry
	Listings listingReader
	Logger   *logger.Logger
	MaxLines int
}

type service struct {
	registry *Registry
	listings listingReader
	logg     *logger.Logger
	maxLines int
}

func NewService(params ServiceParams) (Service, error) {
	if params.Registry == nil {
		return nil, fmt.Errorf("cart registry required")
	}
	if params.Listings == nil {
		return nil, fmt.Errorf("listing reader required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	maxLines := params.MaxLines
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return &service{
		registry: params.Registry,
		listings: params.Listings,
		logg:     params.Logger,
		maxLines: maxLines,
	}, nil
}

func (s *service) View(ctx context.Context, actor auth.Actor) (*View, error) {
	store, err := s.store(actor)
	if err != nil {
		return nil, err
	}
	return BuildView(store.Items()), nil
}

func (s *service) AddItem(ctx context.Context, actor auth.Actor, input AddItemInput) (*View, error) {
	store, err := s.store(actor)
	if err != nil {
		return nil, err
	}
	if input.ListingID == uuid.Nil {
		return nil, validation("listing_id", "is required")
	}
	if !pricing.ValidQuantity(input.Quantity) {
		return nil, quantityError(input.Quantity)
	}

	listing, err := s.listings.Get(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if pricing.MaxOrderable(listing.Stock) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing is out of stock").
			WithDetails(map[string]any{"listing_id": listing.ID.String(), "stock": listing.Stock})
	}
	if _, exists := store.Find(listing.ID); !exists && store.Len() >= s.maxLines {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is full").
			WithDetails(map[string]any{"max_lines": s.maxLines})
	}

	items := store.AddItem(Item{
		ListingID: listing.ID,
		Title:     listing.Title,
		Game:      listing.Game.Name,
		Server:    listing.Server,
		UnitPrice: listing.Price,
		Quantity:  input.Quantity,
		Stock:     listing.Stock,
	})

	ctx = s.logg.WithFields(ctx, map[string]any{
		"listing_id": listing.ID.String(),
		"quantity":   input.Quantity,
	})
	s.logg.Debug(ctx, "cart item added")
	return BuildView(items), nil
}

func (s *service) UpdateQuantity(ctx context.Context, actor auth.Actor, listingID uuid.UUID, quantity int) (*View, error) {
	store, err := s.store(actor)
	if err != nil {
		return nil, err
	}
	if quantity > 0 && !pricing.ValidQuantity(quantity) {
		return nil, quantityError(quantity)
	}
	if line, ok := store.Find(listingID); ok && line.Stock > 0 && quantity > line.Stock {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds available stock").
			WithDetails(map[string]any{"listing_id": listingID.String(), "stock": line.Stock})
	}
	return BuildView(store.UpdateQuantity(listingID, quantity)), nil
}

func (s *service) RemoveItem(ctx context.Context, actor auth.Actor, listingID uuid.UUID) (*View, error) {
	store, err := s.store(actor)
	if err != nil {
		return nil, err
	}
	return BuildView(store.RemoveItem(listingID)), nil
}

func (s *service) Clear(ctx context.Context, actor auth.Actor) error {
	store, err := s.store(actor)
	if err != nil {
		return err
	}
	store.Clear()
	return nil
}

func (s *service) store(actor auth.Actor) (*Store, error) {
	if actor.UserID == uuid.Nil || actor.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session required")
	}
	return s.registry.For(actor.SessionID), nil
}

// BuildView renders cart lines with formatted prices.
func BuildView(items []Item) *View {
	view := &View{Items: make([]LineView, 0, len(items)), Total: decimal.Zero}
	for _, item := range items {
		line := item.LineTotal()
		view.Items = append(view.Items, LineView{
			ListingID: item.ListingID,
			Title:     item.Title,
			Game:      item.Game,
			Server:    item.Server,
			Price:     item.UnitPrice,
			UnitPrice: pricing.FormatUnitPrice(item.UnitPrice),
			Quantity:  item.Quantity,
			Stock:     item.Stock,
			LineTotal: pricing.FormatTotal(line),
		})
		view.Total = view.Total.Add(line)
		view.ItemCount += item.Quantity
	}
	view.TotalText = pricing.FormatTotal(view.Total)
	return view
}

func quantityError(quantity int) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid quantity").
		WithDetails(map[string]any{
			"quantity": quantity,
			"minimum":  pricing.QuantityMin,
			"step":     pricing.QuantityStep,
		})
}

func validation(field, reason string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
		WithDetails(map[string]string{field: reason})
}
