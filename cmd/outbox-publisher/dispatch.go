package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/lootmarket-backend/pkg/db/models"
	"github.com/angelmondragon/lootmarket-backend/pkg/outbox/registry"
)

const dedupeScope = "outbox"

type verdict int

const (
	verdictPublished verdict = iota
	// verdictDuplicate: another replica already pushed the event.
	verdictDuplicate
	verdictRetry
	verdictPark
)

const (
	reasonNonRetryable = "non_retryable"
	reasonMaxAttempts  = "max_attempts"
)

// outcome is what publishing one row decided. settle turns it into row
// bookkeeping inside the batch transaction.
type outcome struct {
	verdict verdict
	reason  string
	err     error
	fields  map[string]any
}

// processBatch reports whether any rows were fetched. Only bookkeeping
// failures abort the batch; publish failures are recorded on the row.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		processed = len(events) > 0
		for _, event := range events {
			if err := s.settle(ctx, tx, event, s.dispatch(ctx, event)); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

func (s *Service) dispatch(ctx context.Context, event models.OutboxEvent) outcome {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return outcome{verdict: verdictPark, reason: reasonNonRetryable, err: err, fields: rowFields(event, nil)}
	}
	fields := rowFields(event, resolved)

	if s.guard != nil {
		claimed, err := s.guard.Claim(ctx, dedupeScope, event.ID)
		if err != nil {
			return outcome{verdict: verdictRetry, err: fmt.Errorf("dedupe claim: %w", err), fields: fields}
		}
		if !claimed {
			return outcome{verdict: verdictDuplicate, fields: fields}
		}
	}

	if err := s.publish(ctx, event, resolved); err != nil {
		s.releaseClaim(ctx, event)
		var nonRetry registry.NonRetryableError
		if errors.As(err, &nonRetry) {
			return outcome{verdict: verdictPark, reason: reasonNonRetryable, err: err, fields: fields}
		}
		return outcome{verdict: verdictRetry, err: err, fields: fields}
	}
	return outcome{verdict: verdictPublished, fields: fields}
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, o outcome) error {
	if o.verdict == verdictRetry && event.AttemptCount+1 >= s.maxAttempts {
		o.verdict = verdictPark
		o.reason = reasonMaxAttempts
		o.err = fmt.Errorf("max publish attempts reached: %w", o.err)
	}

	logCtx := s.logg.WithFields(ctx, o.fields)
	if o.err != nil {
		logCtx = s.logg.WithField(logCtx, "error", o.err.Error())
	}

	switch o.verdict {
	case verdictPublished, verdictDuplicate:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		msg := "outbox event published"
		if o.verdict == verdictDuplicate {
			msg = "outbox event already published by another replica"
		}
		s.logg.Info(logCtx, msg)
	case verdictRetry:
		s.logg.Warn(s.logg.WithField(logCtx, "attempt_count", event.AttemptCount+1), "outbox publish failed")
		if err := s.repo.MarkFailedTx(tx, event.ID, o.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
	case verdictPark:
		// Parked rows sit at the attempt budget so the fetch query skips them;
		// the retention job prunes them later.
		s.logg.Warn(s.logg.WithField(logCtx, "terminal_reason", o.reason), "outbox event parked")
		if err := s.repo.MarkTerminalTx(tx, event.ID, o.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
	}
	return nil
}

func (s *Service) releaseClaim(ctx context.Context, event models.OutboxEvent) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Release(ctx, dedupeScope, event.ID); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "outbox_id", event.ID.String()), "failed to release dedupe claim", err)
	}
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFactory(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, messageFor(event, resolved))
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

// messageFor carries the stored envelope verbatim and mirrors the routing
// fields into attributes so subscribers can filter without decoding.
func messageFor(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}
}

func rowFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	if resolved == nil {
		return fields
	}
	fields["topic"] = resolved.Descriptor.Topic
	if resolved.Envelope.EventID != "" {
		fields["event_id"] = resolved.Envelope.EventID
		fields["occurred_at"] = resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	return fields
}
