package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/lootmarket-backend/pkg/config"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

type kind string

const (
	kindTopic        kind = "topics"
	kindSubscription kind = "subscriptions"
)

// resource is a topic or subscription the services expect to find provisioned.
type resource struct {
	kind kind
	name string
}

// lookup answers whether a fully qualified resource exists.
type lookup func(ctx context.Context, r resource, fullName string) error

// Client wraps the Pub/Sub v2 client with the project's topic and
// subscription names. Resources are provisioned out of band; the client
// only verifies they exist.
type Client struct {
	client    *pubsub.Client
	projectID string
	required  []resource
	lookup    lookup
}

// NewClient connects to Pub/Sub and fails when a configured topic or
// subscription is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:    psClient,
		projectID: projectID,
		required:  requiredResources(cfg),
	}
	c.lookup = c.adminLookup

	if err := c.verify(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	logg.Info(logg.WithField(ctx, "project_id", projectID), "pubsub client initialized")
	return c, nil
}

// requiredResources lists the non-empty configured names. Subscriptions are
// only checked when a consumer in this deployment owns one.
func requiredResources(cfg config.PubSubConfig) []resource {
	var out []resource
	add := func(k kind, name string) {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, resource{kind: k, name: name})
		}
	}
	add(kindTopic, cfg.OrdersTopic)
	add(kindTopic, cfg.CatalogTopic)
	add(kindSubscription, cfg.OrdersSubscription)
	return out
}

// verify checks every required resource and reports all missing ones at once.
func (c *Client) verify(ctx context.Context) error {
	var errs error
	for _, r := range c.required {
		full := c.resourceName(r.kind, r.name)
		if full == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s %q not configured", r.kind, r.name))
			continue
		}
		errs = multierr.Append(errs, c.lookup(ctx, r, full))
	}
	return errs
}

func (c *Client) adminLookup(ctx context.Context, r resource, fullName string) error {
	var err error
	switch r.kind {
	case kindTopic:
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
	case kindSubscription:
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: fullName})
	default:
		return fmt.Errorf("unknown pubsub resource kind %q", r.kind)
	}
	return describeLookupError(r, err)
}

func describeLookupError(r resource, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", r.kind, r.name)
	default:
		return fmt.Errorf("checking %s %q: %w", r.kind, r.name, err)
	}
}

// Publisher returns a publisher for a topic ID or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.resourceName(kindTopic, name)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

// Subscriber returns a receive handle for a subscription ID or full resource name.
func (c *Client) Subscriber(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.resourceName(kindSubscription, name)
	if full == "" {
		return nil
	}
	return c.client.Subscriber(full)
}

// Ping re-verifies the configured resources.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.lookup == nil {
		return errNotInitialized
	}
	return c.verify(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName qualifies a short name with the client's project. Names that
// are already qualified for the same kind pass through.
func (c *Client) resourceName(k kind, name string) string {
	if c == nil {
		return ""
	}
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+string(k)+"/") {
		return n
	}
	if c.projectID == "" {
		return ""
	}
	return "projects/" + c.projectID + "/" + string(k) + "/" + n
}
