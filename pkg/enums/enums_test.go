package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatusProcessing.IsTerminal())
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusRefunded.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
}

func TestParseOrderStatus(t *testing.T) {
	got, err := ParseOrderStatus("processing")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusProcessing, got)

	_, err = ParseOrderStatus("shipped")
	assert.Error(t, err)
}

func TestParseOrderAction(t *testing.T) {
	got, err := ParseOrderAction(" Deliver ")
	require.NoError(t, err)
	assert.Equal(t, OrderActionDeliver, got)

	_, err = ParseOrderAction("archive")
	assert.Error(t, err)
}

func TestParseListingSort(t *testing.T) {
	cases := map[string]ListingSort{
		"":           ListingSortNewest,
		"newest":     ListingSortNewest,
		"price-asc":  ListingSortPriceAsc,
		"price-low":  ListingSortPriceAsc,
		"price-high": ListingSortPriceDesc,
		"popular":    ListingSortPopular,
	}
	for raw, want := range cases {
		got, err := ParseListingSort(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseListingSort("cheapest")
	assert.Error(t, err)
}

func TestParseUserRole(t *testing.T) {
	got, err := ParseUserRole("ADMIN")
	require.NoError(t, err)
	assert.Equal(t, UserRoleAdmin, got)
	assert.False(t, UserRole("vendor").IsValid())
}

func TestOutboxEnums(t *testing.T) {
	assert.True(t, AggregateOrder.IsValid())
	assert.True(t, EventOrderStatusChanged.IsValid())
	_, err := ParseOutboxEventType("media_uploaded")
	assert.Error(t, err)
}

func TestParseNotificationType(t *testing.T) {
	got, err := ParseNotificationType("order_update")
	require.NoError(t, err)
	assert.Equal(t, NotificationTypeOrderUpdate, got)
	_, err = ParseNotificationType("compliance")
	assert.Error(t, err)
}
