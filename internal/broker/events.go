package broker

import (
	"context"
	"fmt"

	"stock-service/internal/models"
)

// EventPublisher publishes transfer lifecycle events for downstream
// consumers (ERP integration, reporting). Events are keyed by order ID so a
// single order's lifecycle stays in one partition.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishTransferCreated publishes a TransferCreated event
func (ep *EventPublisher) PublishTransferCreated(ctx context.Context, event *models.TransferCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishTransferConfirmed publishes a TransferConfirmed event
func (ep *EventPublisher) PublishTransferConfirmed(ctx context.Context, event *models.TransferConfirmedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishTransferDeleted publishes a TransferDeleted event
func (ep *EventPublisher) PublishTransferDeleted(ctx context.Context, event *models.TransferDeletedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishSnapshotSynced publishes a SnapshotSynced event
func (ep *EventPublisher) PublishSnapshotSynced(ctx context.Context, event *models.SnapshotSyncedEvent) error {
	return ep.producer.PublishEvent(ctx, "snapshot", event)
}

func orderKey(orderID string) string {
	return fmt.Sprintf("transfer-%s", orderID)
}
