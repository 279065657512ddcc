package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"stock-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	snap  *models.Snapshot
	hints SyncHints
	err   error
}

func (f *fakeFetcher) FetchSnapshot(ctx context.Context, forceSync bool) (*models.Snapshot, SyncHints, error) {
	return f.snap, f.hints, f.err
}

type fakeDirty struct{ dirty bool }

func (f *fakeDirty) Dirty() bool { return f.dirty }

func snapshotWith(lastUpdate string) *models.Snapshot {
	return &models.Snapshot{
		Products:   []models.Product{{ID: 1, Name: "Arroz", StockByWH: map[string]float64{"1": 10}}},
		Warehouses: []models.Warehouse{{ID: 1, Name: "Andys Centro"}},
		LastUpdate: lastUpdate,
	}
}

func TestRefreshAppliesWhenClean(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{snap: snapshotWith("2026-08-31T10:00:00")}
	svc := NewSyncService(fetcher, &fakeDirty{}, nil)

	_, err := svc.Current()
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, svc.Refresh(ctx, false))

	snap, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, "2026-08-31T10:00:00", snap.LastUpdate)
	assert.False(t, svc.Status().DeferredReady)
}

func TestRefreshDefersWhileDirty(t *testing.T) {
	ctx := context.Background()
	dirty := &fakeDirty{}
	fetcher := &fakeFetcher{snap: snapshotWith("v1")}
	svc := NewSyncService(fetcher, dirty, nil)

	require.NoError(t, svc.Refresh(ctx, false))

	// session goes dirty; the next poll must not clobber the working set
	dirty.dirty = true
	fetcher.snap = snapshotWith("v2")
	require.NoError(t, svc.Refresh(ctx, false))

	snap, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, "v1", snap.LastUpdate)
	assert.True(t, svc.Status().DeferredReady)

	// flushing while still dirty is refused
	assert.False(t, svc.FlushDeferred(ctx))

	// once clean, the deferred snapshot applies
	dirty.dirty = false
	assert.True(t, svc.FlushDeferred(ctx))
	snap, err = svc.Current()
	require.NoError(t, err)
	assert.Equal(t, "v2", snap.LastUpdate)
	assert.False(t, svc.Status().DeferredReady)
}

func TestOnlyNewestDeferredSnapshotApplies(t *testing.T) {
	ctx := context.Background()
	dirty := &fakeDirty{dirty: true}
	fetcher := &fakeFetcher{snap: snapshotWith("v1")}
	svc := NewSyncService(fetcher, dirty, nil)

	require.NoError(t, svc.Refresh(ctx, false))
	fetcher.snap = snapshotWith("v2")
	require.NoError(t, svc.Refresh(ctx, false))
	fetcher.snap = snapshotWith("v3")
	require.NoError(t, svc.Refresh(ctx, false))

	dirty.dirty = false
	assert.True(t, svc.FlushDeferred(ctx))

	snap, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, "v3", snap.LastUpdate)
}

func TestRefreshKeepsLastGoodOnFailure(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{snap: snapshotWith("good")}
	svc := NewSyncService(fetcher, &fakeDirty{}, nil)
	require.NoError(t, svc.Refresh(ctx, false))

	fetcher.snap = nil
	fetcher.err = fmt.Errorf("%w: connection refused", ErrSyncFailed)
	err := svc.Refresh(ctx, false)
	assert.ErrorIs(t, err, ErrSyncFailed)

	snap, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, "good", snap.LastUpdate)
	assert.NotEmpty(t, svc.Status().LastSyncError)
}

func TestRefreshPassesThroughSyncInProgress(t *testing.T) {
	fetcher := &fakeFetcher{err: ErrSyncInProgress, hints: SyncHints{NextSync: "2026-08-31T11:00:00"}}
	svc := NewSyncService(fetcher, &fakeDirty{}, nil)

	err := svc.Refresh(context.Background(), false)
	assert.True(t, errors.Is(err, ErrSyncInProgress))

	// the hint still lands so the poller can schedule around it
	next, ok := svc.NextSyncAt()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 31, 11, 0, 0, 0, time.Local), next)
}

func TestWarehouseName(t *testing.T) {
	fetcher := &fakeFetcher{snap: snapshotWith("v1")}
	svc := NewSyncService(fetcher, &fakeDirty{}, nil)
	require.NoError(t, svc.Refresh(context.Background(), false))

	assert.Equal(t, "Andys Centro", svc.WarehouseName("1"))
	assert.Equal(t, "", svc.WarehouseName("99"))
}

func TestNextSyncAtAcceptsRFC3339(t *testing.T) {
	fetcher := &fakeFetcher{snap: snapshotWith("v1"), hints: SyncHints{NextSync: "2026-08-31T11:00:00Z"}}
	svc := NewSyncService(fetcher, &fakeDirty{}, nil)
	require.NoError(t, svc.Refresh(context.Background(), false))

	next, ok := svc.NextSyncAt()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 31, 11, 0, 0, 0, time.UTC), next)
}
