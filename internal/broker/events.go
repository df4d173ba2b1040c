package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"funnel-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing funnel domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishCustomerClaimed publishes CustomerClaimed event
func (ep *EventPublisher) PublishCustomerClaimed(ctx context.Context, event *models.CustomerClaimedEvent) error {
	key := fmt.Sprintf("customer-%d", event.CustomerID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCustomerReleased publishes CustomerReleased event
func (ep *EventPublisher) PublishCustomerReleased(ctx context.Context, event *models.CustomerReleasedEvent) error {
	key := fmt.Sprintf("customer-%d", event.CustomerID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCustomerDeleted publishes CustomerDeleted event
func (ep *EventPublisher) PublishCustomerDeleted(ctx context.Context, event *models.CustomerDeletedEvent) error {
	key := fmt.Sprintf("customer-%d", event.CustomerID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishStageChanged publishes OpportunityStageChanged event
func (ep *EventPublisher) PublishStageChanged(ctx context.Context, event *models.StageChangedEvent) error {
	key := fmt.Sprintf("opportunity-%d", event.OpportunityID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishQuoteSubmitted publishes QuoteSubmitted event
func (ep *EventPublisher) PublishQuoteSubmitted(ctx context.Context, event *models.QuoteSubmittedEvent) error {
	key := fmt.Sprintf("quote-%d", event.QuoteID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishQuoteDecision publishes QuoteApproved / QuoteRejected events
func (ep *EventPublisher) PublishQuoteDecision(ctx context.Context, event *models.QuoteDecisionEvent) error {
	key := fmt.Sprintf("quote-%d", event.QuoteID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishQuoteConverted publishes QuoteConverted event
func (ep *EventPublisher) PublishQuoteConverted(ctx context.Context, event *models.QuoteConvertedEvent) error {
	key := fmt.Sprintf("quote-%d", event.QuoteID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes consumed funnel events to registered callbacks
type EventHandler struct {
	onCustomerClaimed  func(context.Context, *models.CustomerClaimedEvent) error
	onCustomerReleased func(context.Context, *models.CustomerReleasedEvent) error
	onCustomerDeleted  func(context.Context, *models.CustomerDeletedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnCustomerClaimed registers a handler for CustomerClaimed events
func (eh *EventHandler) OnCustomerClaimed(handler func(context.Context, *models.CustomerClaimedEvent) error) {
	eh.onCustomerClaimed = handler
}

// OnCustomerReleased registers a handler for CustomerReleased events
func (eh *EventHandler) OnCustomerReleased(handler func(context.Context, *models.CustomerReleasedEvent) error) {
	eh.onCustomerReleased = handler
}

// OnCustomerDeleted registers a handler for CustomerDeleted events
func (eh *EventHandler) OnCustomerDeleted(handler func(context.Context, *models.CustomerDeletedEvent) error) {
	eh.onCustomerDeleted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeCustomerClaimed:
		if eh.onCustomerClaimed != nil {
			var event models.CustomerClaimedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CustomerClaimed event: %w", err)
			}
			return eh.onCustomerClaimed(ctx, &event)
		}

	case models.EventTypeCustomerReleased:
		if eh.onCustomerReleased != nil {
			var event models.CustomerReleasedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CustomerReleased event: %w", err)
			}
			return eh.onCustomerReleased(ctx, &event)
		}

	case models.EventTypeCustomerDeleted:
		if eh.onCustomerDeleted != nil {
			var event models.CustomerDeletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CustomerDeleted event: %w", err)
			}
			return eh.onCustomerDeleted(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
