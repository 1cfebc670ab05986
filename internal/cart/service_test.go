package cart

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/lootmarket-backend/internal/listings"
	"github.com/angelmondragon/lootmarket-backend/pkg/auth"
	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
)

type stubListings struct {
	rows map[uuid.UUID]listings.Listing
}

func (s *stubListings) Get(ctx context.Context, id uuid.UUID) (*listings.Listing, error) {
	row, ok := s.rows[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return &row, nil
}

func newTestService(t *testing.T, maxLines int, rows ...listings.Listing) (Service, *Registry) {
	t.Helper()
	stub := &stubListings{rows: map[uuid.UUID]listings.Listing{}}
	for _, row := range rows {
		stub.rows[row.ID] = row
	}
	registry := NewRegistry()
	svc, err := NewService(ServiceParams{
		Registry: registry,
		Listings: stub,
		Logger:   logger.New(logger.Options{ServiceName: "cart-test", Output: io.Discard}),
		MaxLines: maxLines,
	})
	require.NoError(t, err)
	return svc, registry
}

func listing(title, price string, stock int) listings.Listing {
	return listings.Listing{
		ID:       uuid.New(),
		Title:    title,
		Game:     listings.Ref{ID: uuid.New(), Name: "Realm", Slug: "realm"},
		Category: listings.Ref{ID: uuid.New(), Name: "Gold", Slug: "gold"},
		Stock:    stock,
		Price:    decimal.RequireFromString(price),
		IsActive: true,
	}
}

func shopper() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Role: enums.UserRoleUser, SessionID: "sess-1"}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

func TestServiceAddItemBuildsView(t *testing.T) {
	gold := listing("Gold Pack", "10", 10000)
	sword := listing("Sword", "5", 1000)
	svc, _ := newTestService(t, 0, gold, sword)
	actor := shopper()

	_, err := svc.AddItem(context.Background(), actor, AddItemInput{ListingID: gold.ID, Quantity: 500})
	require.NoError(t, err)
	view, err := svc.AddItem(context.Background(), actor, AddItemInput{ListingID: sword.ID, Quantity: 100})
	require.NoError(t, err)

	require.Len(t, view.Items, 2)
	assert.Equal(t, "10.00", view.Items[0].LineTotal)
	assert.Equal(t, "0.0200", view.Items[0].UnitPrice)
	assert.Equal(t, "1.00", view.Items[1].LineTotal)
	assert.Equal(t, "11.00", view.TotalText)
	assert.Equal(t, 600, view.ItemCount)
}

func TestServiceAddItemRejectsInvalidQuantity(t *testing.T) {
	gold := listing("Gold Pack", "10", 10000)
	svc, _ := newTestService(t, 0, gold)

	for _, quantity := range []int{0, -100, 50, 150} {
		_, err := svc.AddItem(context.Background(), shopper(), AddItemInput{ListingID: gold.ID, Quantity: quantity})
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "quantity %d", quantity)
	}
}

func TestServiceAddItemUnknownListing(t *testing.T) {
	svc, _ := newTestService(t, 0)

	_, err := svc.AddItem(context.Background(), shopper(), AddItemInput{ListingID: uuid.New(), Quantity: 100})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestServiceAddItemOutOfStock(t *testing.T) {
	empty := listing("Gold Pack", "10", 0)
	svc, _ := newTestService(t, 0, empty)

	_, err := svc.AddItem(context.Background(), shopper(), AddItemInput{ListingID: empty.ID, Quantity: 100})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestServiceAddItemKeepsOrderableQuantity(t *testing.T) {
	gold := listing("Gold Pack", "10", 250)
	svc, _ := newTestService(t, 0, gold)
	actor := shopper()

	_, err := svc.AddItem(context.Background(), actor, AddItemInput{ListingID: gold.ID, Quantity: 200})
	require.NoError(t, err)
	view, err := svc.AddItem(context.Background(), actor, AddItemInput{ListingID: gold.ID, Quantity: 100})
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 200, view.Items[0].Quantity)

	view, err = svc.UpdateQuantity(context.Background(), actor, gold.ID, 200)
	require.NoError(t, err)
	assert.Equal(t, 200, view.Items[0].Quantity)
}

func TestServiceAddItemRejectsStockBelowMinimum(t *testing.T) {
	scraps := listing("Gold Pack", "10", 50)
	svc, registry := newTestService(t, 0, scraps)
	actor := shopper()

	_, err := svc.AddItem(context.Background(), actor, AddItemInput{ListingID: scraps.ID, Quantity: 100})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, registry.For(actor.SessionID).Len())
}

func TestServiceAddItemEnforcesMaxLines(t *testing.T) {
	first := listing("Gold Pack", "10", 1000)
	second := listing("Sword", "5", 1000)
	svc, _ := newTestService(t, 1, first, second)
	actor := shopper()

	_, err := svc.AddItem(context.Background(), actor, AddItemInput{ListingID: first.ID, Quantity: 100})
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), actor, AddItemInput{ListingID: first.ID, Quantity: 100})
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), actor, AddItemInput{ListingID: second.ID, Quantity: 100})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestServiceUpdateQuantity(t *testing.T) {
	gold := listing("Gold Pack", "10", 1000)
	svc, _ := newTestService(t, 0, gold)
	actor := shopper()
	_, err := svc.AddItem(context.Background(), actor, AddItemInput{ListingID: gold.ID, Quantity: 100})
	require.NoError(t, err)

	view, err := svc.UpdateQuantity(context.Background(), actor, gold.ID, 800)
	require.NoError(t, err)
	assert.Equal(t, 800, view.Items[0].Quantity)

	_, err = svc.UpdateQuantity(context.Background(), actor, gold.ID, 1100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.UpdateQuantity(context.Background(), actor, gold.ID, 250)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	view, err = svc.UpdateQuantity(context.Background(), actor, gold.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestServiceRemoveAndClear(t *testing.T) {
	gold := listing("Gold Pack", "10", 1000)
	svc, registry := newTestService(t, 0, gold)
	actor := shopper()
	_, err := svc.AddItem(context.Background(), actor, AddItemInput{ListingID: gold.ID, Quantity: 100})
	require.NoError(t, err)

	view, err := svc.RemoveItem(context.Background(), actor, uuid.New())
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)

	require.NoError(t, svc.Clear(context.Background(), actor))
	assert.Equal(t, 0, registry.For(actor.SessionID).Len())

	view, err = svc.View(context.Background(), actor)
	require.NoError(t, err)
	assert.Equal(t, "0.00", view.TotalText)
}

func TestServiceRequiresSession(t *testing.T) {
	svc, _ := newTestService(t, 0)

	_, err := svc.View(context.Background(), auth.Actor{UserID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}
