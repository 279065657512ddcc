package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"stock-service/internal/models"
	"stock-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type transferStore interface {
	CreateTransferOrder(ctx context.Context, order *models.PendingTransferOrder) error
	GetTransferOrderByID(ctx context.Context, id string) (*models.PendingTransferOrder, error)
	ListPendingTransferOrders(ctx context.Context) ([]models.PendingTransferOrder, error)
	ConfirmTransferOrder(ctx context.Context, id string) error
	DeleteTransferOrder(ctx context.Context, id string) error
}

type auditAppender interface {
	AppendHistory(ctx context.Context, entry *models.HistoryEntry) error
}

type transferEventPublisher interface {
	PublishTransferCreated(ctx context.Context, event *models.TransferCreatedEvent) error
	PublishTransferConfirmed(ctx context.Context, event *models.TransferConfirmedEvent) error
	PublishTransferDeleted(ctx context.Context, event *models.TransferDeletedEvent) error
}

// sessionWriter persists session state. Save is debounced; Flush writes
// whatever is pending immediately.
type sessionWriter interface {
	Save(ctx context.Context, state *models.SessionState)
	Flush(ctx context.Context) error
}

type deferredFlusher interface {
	FlushDeferred(ctx context.Context) bool
}

type warehouseNamer interface {
	WarehouseName(warehouseID string) string
}

// StagingService owns the ephemeral staged-transfer set and turns it into
// durable pending transfer orders on commit. All mutation goes through here
// so the exclusivity and clamp rules hold no matter which endpoint called.
type StagingService struct {
	store     transferStore
	audit     auditAppender
	publisher transferEventPublisher
	sessions  sessionWriter
	deferred  deferredFlusher
	names     warehouseNamer
	logger    *zap.Logger

	mu    sync.Mutex
	state *models.SessionState
}

func NewStagingService(store transferStore, audit auditAppender, publisher transferEventPublisher, sessions sessionWriter, deferred deferredFlusher, names warehouseNamer, state *models.SessionState) *StagingService {
	if state == nil {
		state = models.NewSessionState()
	}
	return &StagingService{
		store:     store,
		audit:     audit,
		publisher: publisher,
		sessions:  sessions,
		deferred:  deferred,
		names:     names,
		logger:    util.GetLogger(),
		state:     state,
	}
}

// AttachSync wires the snapshot store in after construction. Staging and
// sync need each other (dirty guard one way, deferred flush and warehouse
// names the other), so one side attaches late.
func (s *StagingService) AttachSync(sync *SyncService) {
	s.deferred = sync
	s.names = sync
}

// Dirty exposes the session guard for the sync service.
func (s *StagingService) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Dirty()
}

// Stage toggles a product's staged entry. Same product and same source
// removes the entry; a different source replaces it, so a product never has
// two donors at once. The destination is the viewing warehouse at stage
// time. Qty is clamped to [0, maxSourceStock] and a zero result is not
// staged.
func (s *StagingService) Stage(ctx context.Context, productID int64, sourceWarehouseID string, qty, maxSourceStock float64) {
	key := productKey(productID)

	s.mu.Lock()
	if prev, ok := s.state.StagedTransfers[key]; ok && prev.SourceWarehouseID == sourceWarehouseID {
		delete(s.state.StagedTransfers, key)
		s.afterMutateLocked(ctx)
		s.mu.Unlock()
		return
	}
	qty = clampQty(qty, maxSourceStock)
	if qty <= 0 {
		delete(s.state.StagedTransfers, key)
	} else {
		s.state.StagedTransfers[key] = models.StagedTransfer{
			ProductID:         productID,
			SourceWarehouseID: sourceWarehouseID,
			DestWarehouseID:   s.state.ViewingWarehouse,
			Qty:               qty,
			MaxSourceStock:    maxSourceStock,
		}
	}
	s.afterMutateLocked(ctx)
	s.mu.Unlock()
}

// SetQty adjusts a staged entry's quantity, clamped to [0, cap]. Zero
// removes the entry. An over-cap request is stored at the cap and reported
// via ErrQuantityExceedsCap.
func (s *StagingService) SetQty(ctx context.Context, productID int64, qty float64) error {
	key := productKey(productID)

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.state.StagedTransfers[key]
	if !ok {
		return fmt.Errorf("%w: product %d is not staged", ErrNothingStaged, productID)
	}
	var errCap error
	if qty > entry.MaxSourceStock {
		errCap = fmt.Errorf("%w: %g > %g for product %d", ErrQuantityExceedsCap, qty, entry.MaxSourceStock, productID)
	}
	qty = clampQty(qty, entry.MaxSourceStock)
	if qty <= 0 {
		delete(s.state.StagedTransfers, key)
	} else {
		entry.Qty = qty
		s.state.StagedTransfers[key] = entry
	}
	s.afterMutateLocked(ctx)
	return errCap
}

// SetScratch stores a raw per-product quantity draft. Drafts are free text
// until commit time so typing "1" on the way to "15" never round-trips a
// bad value.
func (s *StagingService) SetScratch(ctx context.Context, key, raw string) {
	s.mu.Lock()
	if raw == "" {
		delete(s.state.ScratchQty, key)
	} else {
		s.state.ScratchQty[key] = raw
	}
	s.afterMutateLocked(ctx)
	s.mu.Unlock()
}

// NormalizeScratch drops empty and zero drafts so the dirty guard does not
// stay latched on leftovers.
func (s *StagingService) NormalizeScratch(ctx context.Context) {
	s.mu.Lock()
	for key, raw := range s.state.ScratchQty {
		if raw == "" || raw == "0" {
			delete(s.state.ScratchQty, key)
		}
	}
	s.afterMutateLocked(ctx)
	s.mu.Unlock()
}

// Staged returns a copy of the current staged set.
func (s *StagingService) Staged() []models.StagedTransfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.StagedTransfer, 0, len(s.state.StagedTransfers))
	for _, entry := range s.state.StagedTransfers {
		out = append(out, entry)
	}
	return out
}

// StagedQtyFor is the qty lookup the sort pipeline uses.
func (s *StagingService) StagedQtyFor(productID int64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.state.StagedTransfers[productKey(productID)]; ok {
		return entry.Qty
	}
	return 0
}

// SetFilters replaces the persisted filter set.
func (s *StagingService) SetFilters(ctx context.Context, f models.FilterSet) {
	s.mu.Lock()
	s.state.ActiveFilters = f
	s.afterMutateLocked(ctx)
	s.mu.Unlock()
}

// SetViewingWarehouse switches the viewing context. Scratch drafts belong
// to the previous view and are dropped on an actual switch. Staged entries
// carry their own destination, so browsing another warehouse leaves them
// alone.
func (s *StagingService) SetViewingWarehouse(ctx context.Context, warehouseID string) {
	s.mu.Lock()
	if s.state.ViewingWarehouse != warehouseID {
		s.state.ViewingWarehouse = warehouseID
		s.state.ScratchQty = make(map[string]string)
	}
	s.afterMutateLocked(ctx)
	s.mu.Unlock()
}

// State returns a deep copy of the session for the API layer.
func (s *StagingService) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := models.SessionState{
		ViewingWarehouse: s.state.ViewingWarehouse,
		ActiveFilters:    s.state.ActiveFilters,
		StagedTransfers:  make(map[string]models.StagedTransfer, len(s.state.StagedTransfers)),
		ScratchQty:       make(map[string]string, len(s.state.ScratchQty)),
	}
	for k, v := range s.state.StagedTransfers {
		out.StagedTransfers[k] = v
	}
	for k, v := range s.state.ScratchQty {
		out.ScratchQty[k] = v
	}
	return out
}

// Clear empties the staged set without committing. The session write is
// flushed right away so a cleared set cannot come back after a restart.
func (s *StagingService) Clear(ctx context.Context) {
	s.mu.Lock()
	s.state.StagedTransfers = make(map[string]models.StagedTransfer)
	s.afterMutateLocked(ctx)
	s.mu.Unlock()

	if s.sessions != nil {
		if err := s.sessions.Flush(ctx); err != nil {
			s.logger.Error("Failed to flush session state after clear", zap.Error(err))
		}
	}
}

// Commit turns the staged set into pending transfer orders, one per source
// warehouse and destination. Entries staged before destinations were
// recorded fall back to toWarehouseID. The staged set is cleared only after
// every order was created,
// the session write is flushed, and any deferred snapshot is applied.
func (s *StagingService) Commit(ctx context.Context, toWarehouseID, username string) ([]models.PendingTransferOrder, error) {
	ctx, span := util.StartSpan(ctx, "StagingService.Commit")
	defer span.End()

	s.mu.Lock()
	if len(s.state.StagedTransfers) == 0 {
		s.mu.Unlock()
		return nil, ErrNothingStaged
	}
	type route struct {
		source, dest string
	}
	byRoute := make(map[route][]models.StagedTransfer)
	for _, entry := range s.state.StagedTransfers {
		dest := entry.DestWarehouseID
		if dest == "" {
			dest = toWarehouseID
		}
		r := route{source: entry.SourceWarehouseID, dest: dest}
		byRoute[r] = append(byRoute[r], entry)
	}
	s.mu.Unlock()

	now := time.Now()
	orders := make([]models.PendingTransferOrder, 0, len(byRoute))
	for r, entries := range byRoute {
		order := models.PendingTransferOrder{
			ID:              uuid.New().String(),
			FromWarehouseID: r.source,
			ToWarehouseID:   r.dest,
			Status:          models.TransferStatusPending,
			CreatedBy:       username,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		for _, entry := range entries {
			order.Items = append(order.Items, models.TransferItem{
				OrderID:   order.ID,
				ProductID: entry.ProductID,
				Qty:       entry.Qty,
			})
		}
		if err := s.store.CreateTransferOrder(ctx, &order); err != nil {
			return orders, fmt.Errorf("create transfer order from %s: %w", r.source, err)
		}
		orders = append(orders, order)
		util.TransfersCreatedTotal.Inc()

		s.recordCreated(ctx, &order, username)
	}

	s.mu.Lock()
	s.state.StagedTransfers = make(map[string]models.StagedTransfer)
	s.state.ScratchQty = make(map[string]string)
	s.afterMutateLocked(ctx)
	s.mu.Unlock()

	if s.sessions != nil {
		if err := s.sessions.Flush(ctx); err != nil {
			s.logger.Error("Failed to flush session state after commit", zap.Error(err))
		}
	}
	if s.deferred != nil {
		s.deferred.FlushDeferred(ctx)
	}

	s.logger.Info("Staged transfers committed",
		zap.Int("orders", len(orders)),
		zap.String("to_warehouse", toWarehouseID),
		zap.String("user", username))
	return orders, nil
}

// recordCreated writes the audit entry and publishes the created event.
// Neither failure rolls the order back; the order is already durable.
func (s *StagingService) recordCreated(ctx context.Context, order *models.PendingTransferOrder, username string) {
	s.appendAudit(ctx, models.AuditActionCreated, order, username)
	if s.publisher != nil {
		items := make([]models.TransferItemData, 0, len(order.Items))
		for _, it := range order.Items {
			items = append(items, models.TransferItemData{ProductID: it.ProductID, Qty: it.Qty})
		}
		event := &models.TransferCreatedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeTransferCreated,
				Timestamp: time.Now(),
			},
			OrderID:         order.ID,
			FromWarehouseID: order.FromWarehouseID,
			ToWarehouseID:   order.ToWarehouseID,
			Items:           items,
			User:            username,
		}
		if err := s.publisher.PublishTransferCreated(ctx, event); err != nil {
			s.logger.Error("Failed to publish TransferCreated event", zap.Error(err), zap.String("order_id", order.ID))
		}
	}
}

func (s *StagingService) warehouseName(warehouseID string) string {
	if s.names == nil {
		return warehouseID
	}
	if name := s.names.WarehouseName(warehouseID); name != "" {
		return name
	}
	return warehouseID
}

// afterMutateLocked updates the gauge and schedules a debounced persist.
// Callers hold s.mu.
func (s *StagingService) afterMutateLocked(ctx context.Context) {
	util.StagedTransfersActive.Set(float64(len(s.state.StagedTransfers)))
	if s.sessions != nil {
		s.sessions.Save(ctx, s.state)
	}
}

// productKey renders a product ID for use as a session map key.
func productKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func clampQty(qty, max float64) float64 {
	if qty < 0 {
		return 0
	}
	if qty > max {
		return max
	}
	return qty
}

// ListPending returns the pending transfer orders with items.
func (s *StagingService) ListPending(ctx context.Context) ([]models.PendingTransferOrder, error) {
	return s.store.ListPendingTransferOrders(ctx)
}

// Confirm moves one pending order to received, which drops it from the
// overlay exactly when the real stock movement shows up in the next
// snapshot.
func (s *StagingService) Confirm(ctx context.Context, orderID, username string) error {
	order, err := s.store.GetTransferOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.store.ConfirmTransferOrder(ctx, orderID); err != nil {
		return err
	}
	util.TransfersConfirmedTotal.Inc()

	s.appendAudit(ctx, models.AuditActionConfirmed, order, username)
	if s.publisher != nil {
		event := &models.TransferConfirmedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeTransferConfirmed,
				Timestamp: time.Now(),
			},
			OrderID: orderID,
			User:    username,
		}
		if err := s.publisher.PublishTransferConfirmed(ctx, event); err != nil {
			s.logger.Error("Failed to publish TransferConfirmed event", zap.Error(err), zap.String("order_id", orderID))
		}
	}
	return nil
}

// Delete removes a transfer order entirely. The audit entry outlives the
// order.
func (s *StagingService) Delete(ctx context.Context, orderID, username string) error {
	order, err := s.store.GetTransferOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTransferOrder(ctx, orderID); err != nil {
		return err
	}
	util.TransfersDeletedTotal.Inc()

	s.appendAudit(ctx, models.AuditActionDeleted, order, username)
	if s.publisher != nil {
		event := &models.TransferDeletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeTransferDeleted,
				Timestamp: time.Now(),
			},
			OrderID: orderID,
			User:    username,
		}
		if err := s.publisher.PublishTransferDeleted(ctx, event); err != nil {
			s.logger.Error("Failed to publish TransferDeleted event", zap.Error(err), zap.String("order_id", orderID))
		}
	}
	return nil
}

func (s *StagingService) appendAudit(ctx context.Context, action string, order *models.PendingTransferOrder, username string) {
	if s.audit == nil {
		return
	}
	entry := &models.HistoryEntry{
		ID:              uuid.New().String(),
		Timestamp:       time.Now(),
		Action:          action,
		TransferOrderID: order.ID,
		FromName:        s.warehouseName(order.FromWarehouseID),
		ToName:          s.warehouseName(order.ToWarehouseID),
		ItemCount:       len(order.Items),
		User:            username,
	}
	if err := s.audit.AppendHistory(ctx, entry); err != nil {
		s.logger.Error("Failed to append audit entry", zap.Error(err), zap.String("order_id", order.ID))
	}
}
