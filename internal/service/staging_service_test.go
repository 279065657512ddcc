package service

import (
	"context"
	"errors"
	"testing"

	"stock-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransferStore struct {
	created   []models.PendingTransferOrder
	confirmed []string
	deleted   []string
	failOn    string
}

func (f *fakeTransferStore) CreateTransferOrder(ctx context.Context, order *models.PendingTransferOrder) error {
	if f.failOn == order.FromWarehouseID {
		return errors.New("db down")
	}
	f.created = append(f.created, *order)
	return nil
}

func (f *fakeTransferStore) GetTransferOrderByID(ctx context.Context, id string) (*models.PendingTransferOrder, error) {
	for i := range f.created {
		if f.created[i].ID == id {
			return &f.created[i], nil
		}
	}
	return nil, errors.New("not found: " + id)
}

func (f *fakeTransferStore) ListPendingTransferOrders(ctx context.Context) ([]models.PendingTransferOrder, error) {
	return f.created, nil
}

func (f *fakeTransferStore) ConfirmTransferOrder(ctx context.Context, id string) error {
	f.confirmed = append(f.confirmed, id)
	return nil
}

func (f *fakeTransferStore) DeleteTransferOrder(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeAudit struct {
	entries []models.HistoryEntry
}

func (f *fakeAudit) AppendHistory(ctx context.Context, entry *models.HistoryEntry) error {
	f.entries = append(f.entries, *entry)
	return nil
}

type fakeSessionWriter struct {
	saves   int
	flushes int
}

func (f *fakeSessionWriter) Save(ctx context.Context, state *models.SessionState) { f.saves++ }
func (f *fakeSessionWriter) Flush(ctx context.Context) error                      { f.flushes++; return nil }

func newTestStaging(store *fakeTransferStore) (*StagingService, *fakeAudit, *fakeSessionWriter) {
	audit := &fakeAudit{}
	writer := &fakeSessionWriter{}
	svc := NewStagingService(store, audit, nil, writer, nil, nil, nil)
	return svc, audit, writer
}

func TestStageToggleAndReplace(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestStaging(&fakeTransferStore{})

	svc.Stage(ctx, 7, "1", 10, 50)
	staged := svc.Staged()
	require.Len(t, staged, 1)
	assert.Equal(t, "1", staged[0].SourceWarehouseID)
	assert.Equal(t, float64(10), staged[0].Qty)

	// a different source replaces; the product never has two donors
	svc.Stage(ctx, 7, "2", 5, 30)
	staged = svc.Staged()
	require.Len(t, staged, 1)
	assert.Equal(t, "2", staged[0].SourceWarehouseID)
	assert.Equal(t, float64(5), staged[0].Qty)

	// same product, same source toggles off
	svc.Stage(ctx, 7, "2", 5, 30)
	assert.Empty(t, svc.Staged())
}

func TestStageClampsToSourceStock(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestStaging(&fakeTransferStore{})

	svc.Stage(ctx, 7, "1", 80, 50)
	staged := svc.Staged()
	require.Len(t, staged, 1)
	assert.Equal(t, float64(50), staged[0].Qty)

	// negative and zero quantities never stage
	svc.Clear(ctx)
	svc.Stage(ctx, 8, "1", -3, 50)
	assert.Empty(t, svc.Staged())
}

func TestSetQty(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestStaging(&fakeTransferStore{})
	svc.Stage(ctx, 7, "1", 10, 50)

	require.NoError(t, svc.SetQty(ctx, 7, 30))
	assert.Equal(t, float64(30), svc.StagedQtyFor(7))

	// over-cap is clamped to the cap and reported
	err := svc.SetQty(ctx, 7, 200)
	assert.ErrorIs(t, err, ErrQuantityExceedsCap)
	assert.Equal(t, float64(50), svc.StagedQtyFor(7))

	// zero unstages
	require.NoError(t, svc.SetQty(ctx, 7, 0))
	assert.Empty(t, svc.Staged())

	// adjusting an unstaged product is an error
	assert.ErrorIs(t, svc.SetQty(ctx, 99, 5), ErrNothingStaged)
}

func TestDirtyGuard(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestStaging(&fakeTransferStore{})
	assert.False(t, svc.Dirty())

	svc.Stage(ctx, 7, "1", 10, 50)
	assert.True(t, svc.Dirty())

	svc.Clear(ctx)
	assert.False(t, svc.Dirty())

	// scratch drafts latch the guard too, but "" and "0" do not
	svc.SetScratch(ctx, "7", "15")
	assert.True(t, svc.Dirty())
	svc.SetScratch(ctx, "7", "0")
	assert.False(t, svc.Dirty())

	svc.SetScratch(ctx, "8", "3")
	svc.SetScratch(ctx, "9", "")
	svc.NormalizeScratch(ctx)
	assert.True(t, svc.Dirty())
	svc.SetScratch(ctx, "8", "")
	assert.False(t, svc.Dirty())
}

func TestCommitGroupsBySource(t *testing.T) {
	ctx := context.Background()
	store := &fakeTransferStore{}
	svc, audit, writer := newTestStaging(store)

	svc.Stage(ctx, 1, "10", 5, 50)
	svc.Stage(ctx, 2, "10", 8, 50)
	svc.Stage(ctx, 3, "11", 2, 20)

	orders, err := svc.Commit(ctx, "2", "maria")
	require.NoError(t, err)
	require.Len(t, orders, 2)

	// one order per source warehouse, each carrying its own items
	itemsBySource := map[string]int{}
	for _, o := range orders {
		assert.Equal(t, "2", o.ToWarehouseID)
		assert.Equal(t, models.TransferStatusPending, o.Status)
		assert.Equal(t, "maria", o.CreatedBy)
		itemsBySource[o.FromWarehouseID] = len(o.Items)
	}
	assert.Equal(t, map[string]int{"10": 2, "11": 1}, itemsBySource)

	// staged set cleared, session flushed, one audit entry per order
	assert.Empty(t, svc.Staged())
	assert.False(t, svc.Dirty())
	assert.GreaterOrEqual(t, writer.flushes, 1)
	assert.Len(t, audit.entries, 2)
	for _, e := range audit.entries {
		assert.Equal(t, models.AuditActionCreated, e.Action)
		assert.Equal(t, "maria", e.User)
	}
}

func TestCommitNothingStaged(t *testing.T) {
	svc, _, _ := newTestStaging(&fakeTransferStore{})
	_, err := svc.Commit(context.Background(), "2", "maria")
	assert.ErrorIs(t, err, ErrNothingStaged)
}

func TestCommitPartialFailureKeepsStagedSet(t *testing.T) {
	// if one of the per-source orders fails the staged set survives so the
	// user can retry; orders already created stay created
	ctx := context.Background()
	store := &fakeTransferStore{failOn: "11"}
	svc, _, _ := newTestStaging(store)

	svc.Stage(ctx, 1, "10", 5, 50)
	svc.Stage(ctx, 3, "11", 2, 20)

	_, err := svc.Commit(ctx, "2", "maria")
	require.Error(t, err)
	assert.NotEmpty(t, svc.Staged())
}

func TestConfirmAndDeleteWriteAudit(t *testing.T) {
	ctx := context.Background()
	store := &fakeTransferStore{}
	svc, audit, _ := newTestStaging(store)

	svc.Stage(ctx, 1, "10", 5, 50)
	orders, err := svc.Commit(ctx, "2", "maria")
	require.NoError(t, err)
	require.Len(t, orders, 1)

	require.NoError(t, svc.Confirm(ctx, orders[0].ID, "jose"))
	assert.Equal(t, []string{orders[0].ID}, store.confirmed)

	require.NoError(t, svc.Delete(ctx, orders[0].ID, "jose"))
	assert.Equal(t, []string{orders[0].ID}, store.deleted)

	actions := []string{}
	for _, e := range audit.entries {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{
		models.AuditActionCreated,
		models.AuditActionConfirmed,
		models.AuditActionDeleted,
	}, actions)
}

func TestSwitchingWarehouseDropsOnlyScratch(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestStaging(&fakeTransferStore{})

	svc.SetViewingWarehouse(ctx, "2")
	svc.Stage(ctx, 1, "10", 5, 50)
	svc.SetScratch(ctx, "2", "7")

	// browsing another warehouse loses the scratch drafts but not the
	// staged work tied to warehouse 2
	svc.SetViewingWarehouse(ctx, "3")
	assert.Empty(t, svc.State().ScratchQty)
	assert.Equal(t, "3", svc.State().ViewingWarehouse)
	staged := svc.Staged()
	require.Len(t, staged, 1)
	assert.Equal(t, "2", staged[0].DestWarehouseID)
}

func TestCommitUsesRecordedDestination(t *testing.T) {
	ctx := context.Background()
	store := &fakeTransferStore{}
	svc, _, _ := newTestStaging(store)

	svc.SetViewingWarehouse(ctx, "2")
	svc.Stage(ctx, 1, "10", 5, 50)
	svc.SetViewingWarehouse(ctx, "4")
	svc.Stage(ctx, 2, "10", 3, 50)

	orders, err := svc.Commit(ctx, "4", "maria")
	require.NoError(t, err)
	require.Len(t, orders, 2)

	dests := map[string]bool{}
	for _, o := range orders {
		assert.Equal(t, "10", o.FromWarehouseID)
		dests[o.ToWarehouseID] = true
	}
	assert.Equal(t, map[string]bool{"2": true, "4": true}, dests)
}

func TestClearFlushesSession(t *testing.T) {
	ctx := context.Background()
	svc, _, writer := newTestStaging(&fakeTransferStore{})

	svc.Stage(ctx, 1, "10", 5, 50)
	require.Zero(t, writer.flushes)

	// the cleared set must be durable before Clear returns, not after the
	// debounce fires
	svc.Clear(ctx)
	assert.Empty(t, svc.Staged())
	assert.GreaterOrEqual(t, writer.flushes, 1)
}
