package redisclient

import (
	"context"
	"sync"
	"time"

	"stock-service/internal/models"
	"stock-service/internal/util"

	"go.uber.org/zap"
)

// Each session field lives under its own key so a corrupt value resets only
// the field it belongs to.
const (
	KeyViewingWarehouse = "session:viewing_warehouse"
	KeyStagedTransfers  = "session:staged_transfers"
	KeyScratchQty       = "session:scratch_qty"
	KeyActiveFilters    = "session:active_filters"
)

type SessionStore struct {
	client *Client
	logger *zap.Logger
}

func NewSessionStore(client *Client) *SessionStore {
	return &SessionStore{client: client, logger: util.GetLogger()}
}

// Load restores the session field by field. A failed or corrupt field comes
// back at its default; the others load normally.
func (s *SessionStore) Load(ctx context.Context) *models.SessionState {
	state := models.NewSessionState()
	if err := s.client.GetJSON(ctx, KeyViewingWarehouse, &state.ViewingWarehouse); err != nil {
		s.logger.Warn("Failed to load viewing warehouse", zap.Error(err))
	}
	if err := s.client.GetJSON(ctx, KeyStagedTransfers, &state.StagedTransfers); err != nil {
		s.logger.Warn("Failed to load staged transfers", zap.Error(err))
	}
	if err := s.client.GetJSON(ctx, KeyScratchQty, &state.ScratchQty); err != nil {
		s.logger.Warn("Failed to load scratch quantities", zap.Error(err))
	}
	if err := s.client.GetJSON(ctx, KeyActiveFilters, &state.ActiveFilters); err != nil {
		s.logger.Warn("Failed to load active filters", zap.Error(err))
	}
	if state.StagedTransfers == nil {
		state.StagedTransfers = make(map[string]models.StagedTransfer)
	}
	if state.ScratchQty == nil {
		state.ScratchQty = make(map[string]string)
	}
	return state
}

// Write persists every session field under its own key
func (s *SessionStore) Write(ctx context.Context, state *models.SessionState) error {
	if err := s.client.SetJSON(ctx, KeyViewingWarehouse, state.ViewingWarehouse); err != nil {
		return err
	}
	if err := s.client.SetJSON(ctx, KeyStagedTransfers, state.StagedTransfers); err != nil {
		return err
	}
	if err := s.client.SetJSON(ctx, KeyScratchQty, state.ScratchQty); err != nil {
		return err
	}
	return s.client.SetJSON(ctx, KeyActiveFilters, state.ActiveFilters)
}

// DebouncedWriter coalesces session writes. Save parks a deep copy and arms
// a timer; rapid edits keep replacing the copy and only the last one hits
// Redis. Flush writes whatever is parked immediately, which commit relies on.
type DebouncedWriter struct {
	store  *SessionStore
	delay  time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	pending *models.SessionState
	timer   *time.Timer
}

func NewDebouncedWriter(store *SessionStore, delay time.Duration) *DebouncedWriter {
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &DebouncedWriter{store: store, delay: delay, logger: util.GetLogger()}
}

// Save schedules a write of a snapshot of state. Callers may keep mutating
// state after Save returns; the copy taken here is what gets written.
func (w *DebouncedWriter) Save(ctx context.Context, state *models.SessionState) {
	copied := copyState(state)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = copied
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() {
		if err := w.Flush(context.Background()); err != nil {
			w.logger.Error("Debounced session write failed", zap.Error(err))
		}
	})
}

// Flush writes the parked state now, if any
func (w *DebouncedWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	state := w.pending
	w.pending = nil
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	if state == nil {
		return nil
	}
	return w.store.Write(ctx, state)
}

// Close stops the timer and flushes any parked write
func (w *DebouncedWriter) Close() error {
	return w.Flush(context.Background())
}

func copyState(state *models.SessionState) *models.SessionState {
	out := &models.SessionState{
		ViewingWarehouse: state.ViewingWarehouse,
		ActiveFilters:    state.ActiveFilters,
		StagedTransfers:  make(map[string]models.StagedTransfer, len(state.StagedTransfers)),
		ScratchQty:       make(map[string]string, len(state.ScratchQty)),
	}
	for k, v := range state.StagedTransfers {
		out.StagedTransfers[k] = v
	}
	for k, v := range state.ScratchQty {
		out.ScratchQty[k] = v
	}
	return out
}
