package models

import "time"

// Event types
const (
	EventTypeTransferCreated   = "TRANSFER_CREATED"
	EventTypeTransferConfirmed = "TRANSFER_CONFIRMED"
	EventTypeTransferDeleted   = "TRANSFER_DELETED"
	EventTypeSnapshotSynced    = "SNAPSHOT_SYNCED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// TransferItemData represents item data in transfer events
type TransferItemData struct {
	ProductID int64   `json:"product_id"`
	Qty       float64 `json:"qty"`
}

// TransferCreatedEvent published when a pending transfer order is committed
type TransferCreatedEvent struct {
	BaseEvent
	OrderID         string             `json:"order_id"`
	FromWarehouseID string             `json:"from_warehouse_id"`
	ToWarehouseID   string             `json:"to_warehouse_id"`
	Items           []TransferItemData `json:"items"`
	User            string             `json:"user"`
}

// TransferConfirmedEvent published on the pending->received transition
type TransferConfirmedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	User    string `json:"user"`
}

// TransferDeletedEvent published when a pending transfer order is deleted
type TransferDeletedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	User    string `json:"user"`
}

// SnapshotSyncedEvent published after a fresh ERP snapshot is applied
type SnapshotSyncedEvent struct {
	BaseEvent
	ProductCount   int    `json:"product_count"`
	WarehouseCount int    `json:"warehouse_count"`
	LastUpdate     string `json:"last_update"`
}
