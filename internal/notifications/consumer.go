package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/lootmarket-backend/pkg/db/models"
	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
	"github.com/angelmondragon/lootmarket-backend/pkg/outbox"
	"github.com/angelmondragon/lootmarket-backend/pkg/outbox/payloads"
)

// ConsumerName scopes the consumer's dedupe keys.
const ConsumerName = "order-notifications"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type dedupeGuard interface {
	Claim(ctx context.Context, scope string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, scope string, eventID uuid.UUID) error
}

type writer interface {
	Create(ctx context.Context, notification *models.Notification) (bool, error)
}

// Consumer turns order events into buyer notifications.
type Consumer struct {
	repo         writer
	subscription receiver
	guard        dedupeGuard
	logg         *logger.Logger
}

// NewConsumer builds an order notification consumer.
func NewConsumer(repo writer, subscription receiver, guard dedupeGuard, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		guard:        guard,
		logg:         logg,
	}, nil
}

// Run receives messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

var (
	ack  = processResult{}
	nack = processResult{nack: true}
)

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if eventType != enums.EventOrderCreated && eventType != enums.EventOrderStatusChanged {
		c.logg.Debug(logCtx, "skipping non-order event")
		return ack
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return ack
	}
	eventID := envelope.ID()

	notification, err := buildNotification(eventType, eventID, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return ack
	}
	if notification == nil {
		return ack
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"event_id": eventID.String(),
		"user_id":  notification.UserID.String(),
	})

	claimed, err := c.guard.Claim(ctx, ConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return nack
	}
	if !claimed {
		c.logg.Info(logCtx, "event already processed")
		return ack
	}

	created, err := c.repo.Create(ctx, notification)
	if err != nil {
		c.logg.Error(logCtx, "failed to store notification", err)
		if releaseErr := c.guard.Release(ctx, ConsumerName, eventID); releaseErr != nil {
			c.logg.Error(logCtx, "failed to release dedupe claim", releaseErr)
		}
		return nack
	}
	if created {
		c.logg.Info(logCtx, "buyer notified")
	}
	return ack
}

// buildNotification maps an order event onto a notification. It returns nil
// for events that do not concern the buyer.
func buildNotification(eventType enums.OutboxEventType, eventID uuid.UUID, data json.RawMessage) (*models.Notification, error) {
	switch eventType {
	case enums.EventOrderCreated:
		var payload payloads.OrderCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.UserID == uuid.Nil || payload.OrderID == uuid.Nil {
			return nil, fmt.Errorf("order created payload missing ids")
		}
		return newOrderNotification(eventID, payload.UserID, payload.OrderID,
			"Order placed",
			fmt.Sprintf("Order %s was placed for %d unit(s).", shortID(payload.OrderID), payload.Quantity),
		), nil
	case enums.EventOrderStatusChanged:
		var payload payloads.OrderStatusChangedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.UserID == uuid.Nil || payload.OrderID == uuid.Nil {
			return nil, fmt.Errorf("order status payload missing ids")
		}
		title, message := statusCopy(payload)
		if title == "" {
			return nil, nil
		}
		return newOrderNotification(eventID, payload.UserID, payload.OrderID, title, message), nil
	}
	return nil, nil
}

func statusCopy(payload payloads.OrderStatusChangedEvent) (string, string) {
	id := shortID(payload.OrderID)
	switch payload.To {
	case enums.OrderStatusProcessing:
		return "Order in progress", fmt.Sprintf("The seller started working on order %s.", id)
	case enums.OrderStatusDelivered:
		message := fmt.Sprintf("Order %s was delivered.", id)
		if payload.DeliveryInfo != nil && strings.TrimSpace(*payload.DeliveryInfo) != "" {
			message = fmt.Sprintf("Order %s was delivered. Details: %s", id, strings.TrimSpace(*payload.DeliveryInfo))
		}
		return "Order delivered", message
	case enums.OrderStatusRefunded:
		return "Order refunded", fmt.Sprintf("Order %s was refunded.", id)
	case enums.OrderStatusCancelled:
		return "Order cancelled", fmt.Sprintf("Order %s was cancelled.", id)
	default:
		return "", ""
	}
}

func newOrderNotification(eventID, userID, orderID uuid.UUID, title, message string) *models.Notification {
	return &models.Notification{
		UserID:  userID,
		OrderID: &orderID,
		EventID: eventID,
		Type:    enums.NotificationTypeOrderUpdate,
		Title:   title,
		Message: message,
	}
}

func shortID(id uuid.UUID) string {
	return strings.ToUpper(id.String()[:8])
}
