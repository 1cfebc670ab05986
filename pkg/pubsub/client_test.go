package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/lootmarket-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	c := &Client{projectID: "loot-prod"}

	assert.Equal(t, "projects/loot-prod/topics/lm-order-events", c.resourceName(kindTopic, "lm-order-events"))
	assert.Equal(t, "projects/other/topics/x", c.resourceName(kindTopic, "projects/other/topics/x"))
	assert.Equal(t, "projects/loot-prod/subscriptions/orders-sub", c.resourceName(kindSubscription, " orders-sub "))
	assert.Equal(t, "projects/loot-prod/subscriptions/projects/other/topics/x",
		c.resourceName(kindSubscription, "projects/other/topics/x"))
	assert.Empty(t, c.resourceName(kindSubscription, ""))

	var nilClient *Client
	assert.Empty(t, nilClient.resourceName(kindTopic, "x"))
	assert.Nil(t, nilClient.Publisher("x"))
	assert.Nil(t, nilClient.Subscriber("x"))
	assert.ErrorIs(t, nilClient.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, nilClient.Close())
}

func TestRequiredResources(t *testing.T) {
	cfg := config.PubSubConfig{OrdersTopic: "orders", CatalogTopic: " ", OrdersSubscription: "orders-sub"}

	assert.Equal(t, []resource{
		{kind: kindTopic, name: "orders"},
		{kind: kindSubscription, name: "orders-sub"},
	}, requiredResources(cfg))
	assert.Empty(t, requiredResources(config.PubSubConfig{}))
}

func TestPingReportsEveryMissingResource(t *testing.T) {
	var seen []string
	c := &Client{
		projectID: "loot",
		required: requiredResources(config.PubSubConfig{
			OrdersTopic:        "orders",
			CatalogTopic:       "catalog",
			OrdersSubscription: "orders-sub",
		}),
	}
	c.lookup = func(_ context.Context, r resource, full string) error {
		seen = append(seen, full)
		switch r.name {
		case "catalog":
			return describeLookupError(r, status.Error(codes.NotFound, "gone"))
		case "orders-sub":
			return describeLookupError(r, status.Error(codes.Unavailable, "down"))
		}
		return nil
	}

	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `topics "catalog" does not exist`)
	assert.Contains(t, err.Error(), `checking subscriptions "orders-sub"`)
	assert.Equal(t, []string{
		"projects/loot/topics/orders",
		"projects/loot/topics/catalog",
		"projects/loot/subscriptions/orders-sub",
	}, seen)
}

func TestPingHealthy(t *testing.T) {
	c := &Client{projectID: "loot", required: []resource{{kind: kindTopic, name: "orders"}}}
	c.lookup = func(context.Context, resource, string) error { return nil }

	assert.NoError(t, c.Ping(context.Background()))
}

func TestDescribeLookupErrorWraps(t *testing.T) {
	cause := errors.New("tls handshake")
	err := describeLookupError(resource{kind: kindTopic, name: "orders"}, cause)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, describeLookupError(resource{kind: kindTopic, name: "orders"}, nil))
}
