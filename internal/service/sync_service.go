package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"stock-service/internal/models"
	"stock-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// snapshotFetcher is the slice of ERPClient the sync service needs.
type snapshotFetcher interface {
	FetchSnapshot(ctx context.Context, forceSync bool) (*models.Snapshot, SyncHints, error)
}

// syncEventPublisher publishes snapshot events; satisfied by
// *broker.EventPublisher.
type syncEventPublisher interface {
	PublishSnapshotSynced(ctx context.Context, event *models.SnapshotSyncedEvent) error
}

// DirtyChecker reports whether the session holds unsaved local work. While
// it does, fresh snapshots are deferred instead of applied, so a stale poll
// can never clobber edits the user is still making.
type DirtyChecker interface {
	Dirty() bool
}

// SyncStatus is the non-blocking sync indicator surfaced to the client.
type SyncStatus struct {
	HasSnapshot   bool   `json:"has_snapshot"`
	LastUpdate    string `json:"last_update,omitempty"`
	NextSync      string `json:"next_sync,omitempty"`
	DeferredReady bool   `json:"deferred_ready"`
	LastSyncError string `json:"last_sync_error,omitempty"`
}

// SyncService is the snapshot store: it holds the latest good snapshot,
// refreshes it from the ERP, and defers application while the session guard
// is dirty. The snapshot it hands out is never mutated downstream.
type SyncService struct {
	erp       snapshotFetcher
	dirty     DirtyChecker
	publisher syncEventPublisher
	logger    *zap.Logger

	mu       sync.RWMutex
	current  *models.Snapshot
	deferred *models.Snapshot
	hints    SyncHints
	lastErr  string
}

// NewSyncService creates the snapshot store. publisher may be nil.
func NewSyncService(erp snapshotFetcher, dirty DirtyChecker, publisher syncEventPublisher) *SyncService {
	return &SyncService{
		erp:       erp,
		dirty:     dirty,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Refresh fetches a snapshot and applies or defers it. ErrSyncInProgress is
// returned as-is so the poller can reschedule; any other failure keeps the
// last good snapshot in place.
func (s *SyncService) Refresh(ctx context.Context, force bool) error {
	ctx, span := util.StartSpan(ctx, "SyncService.Refresh")
	defer span.End()

	start := time.Now()
	snap, hints, err := s.erp.FetchSnapshot(ctx, force)
	util.SnapshotSyncLatency.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	s.hints = hints
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			return err
		}
		util.SnapshotSyncFailed.WithLabelValues("fetch").Inc()
		s.mu.Lock()
		s.lastErr = err.Error()
		s.mu.Unlock()
		s.logger.Warn("Snapshot sync failed, keeping last good snapshot", zap.Error(err))
		return err
	}

	s.apply(ctx, snap)
	return nil
}

func (s *SyncService) apply(ctx context.Context, snap *models.Snapshot) {
	s.mu.Lock()
	s.lastErr = ""
	if s.dirty != nil && s.dirty.Dirty() {
		// Only the newest deferred snapshot matters: a full snapshot
		// strictly supersedes any older one.
		s.deferred = snap
		s.mu.Unlock()
		util.SnapshotsDeferredTotal.Inc()
		s.logger.Info("Session has unsaved work, snapshot deferred",
			zap.String("last_update", snap.LastUpdate))
		return
	}
	s.current = snap
	s.deferred = nil
	s.mu.Unlock()

	util.SnapshotsSyncedTotal.Inc()
	s.logger.Info("Snapshot applied",
		zap.Int("products", len(snap.Products)),
		zap.String("last_update", snap.LastUpdate))

	if s.publisher != nil {
		event := &models.SnapshotSyncedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeSnapshotSynced,
				Timestamp: time.Now(),
			},
			ProductCount:   len(snap.Products),
			WarehouseCount: len(snap.Warehouses),
			LastUpdate:     snap.LastUpdate,
		}
		if err := s.publisher.PublishSnapshotSynced(ctx, event); err != nil {
			s.logger.Error("Failed to publish SnapshotSynced event", zap.Error(err))
		}
	}
}

// FlushDeferred applies the parked snapshot once the guard has cleared.
// Returns true if a deferred snapshot was applied.
func (s *SyncService) FlushDeferred(ctx context.Context) bool {
	s.mu.Lock()
	if s.deferred == nil || (s.dirty != nil && s.dirty.Dirty()) {
		s.mu.Unlock()
		return false
	}
	snap := s.deferred
	s.deferred = nil
	s.mu.Unlock()

	s.apply(ctx, snap)
	return true
}

// Current returns the latest applied snapshot.
func (s *SyncService) Current() (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoSnapshot
	}
	return s.current, nil
}

// Status returns the passive sync indicator.
func (s *SyncService) Status() SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := SyncStatus{
		HasSnapshot:   s.current != nil,
		DeferredReady: s.deferred != nil,
		LastSyncError: s.lastErr,
	}
	if s.current != nil {
		st.LastUpdate = s.current.LastUpdate
		st.NextSync = s.current.NextSync
	}
	if s.hints.NextSync != "" {
		st.NextSync = s.hints.NextSync
	}
	return st
}

// NextSyncAt parses the server-declared next sync time, preferring the
// header hint over the body.
func (s *SyncService) NextSyncAt() (time.Time, bool) {
	s.mu.RLock()
	raw := s.hints.NextSync
	if raw == "" && s.current != nil {
		raw = s.current.NextSync
	}
	s.mu.RUnlock()
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// The ERP emits naive ISO timestamps in local time.
		t, err = time.ParseInLocation("2006-01-02T15:04:05", raw, time.Local)
		if err != nil {
			return time.Time{}, false
		}
	}
	return t, true
}

// WarehouseName resolves a warehouse ID (string form) to its name.
func (s *SyncService) WarehouseName(warehouseID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	for _, w := range s.current.Warehouses {
		if WarehouseKey(w.ID) == warehouseID {
			return w.Name
		}
	}
	return ""
}

// WarehouseKey renders a warehouse ID the way the snapshot maps key it.
func WarehouseKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
