package service

import (
	"testing"

	"stock-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func pendingOrder(id, from, to, status string, productID int64, qty float64) models.PendingTransferOrder {
	return models.PendingTransferOrder{
		ID:              id,
		FromWarehouseID: from,
		ToWarehouseID:   to,
		Status:          status,
		Items:           []models.TransferItem{{OrderID: id, ProductID: productID, Qty: qty}},
	}
}

func TestOverlayEffectiveValues(t *testing.T) {
	p := &models.Product{
		ID:          7,
		StockByWH:   map[string]float64{"1": 50, "2": 3},
		PendingByWH: map[string]float64{"2": 10},
	}

	ov := NewOverlay([]models.PendingTransferOrder{
		pendingOrder("t1", "1", "2", models.TransferStatusPending, 7, 20),
	})

	assert.Equal(t, float64(30), ov.EffectiveStock(p, "1"))
	assert.Equal(t, float64(30), ov.EffectivePending(p, "2"))
	assert.Equal(t, float64(3), ov.EffectiveStock(p, "2"))
	assert.Equal(t, float64(0), ov.EffectivePending(p, "1"))
}

func TestOverlayFloorsAtZero(t *testing.T) {
	// A transfer bigger than the snapshot stock (stale snapshot) must not
	// produce negative availability.
	p := &models.Product{ID: 7, StockByWH: map[string]float64{"1": 10}}

	ov := NewOverlay([]models.PendingTransferOrder{
		pendingOrder("t1", "1", "2", models.TransferStatusPending, 7, 25),
	})

	assert.Equal(t, float64(0), ov.EffectiveStock(p, "1"))
}

func TestOverlayCreateThenDeleteRestoresExactly(t *testing.T) {
	p := &models.Product{ID: 7, StockByWH: map[string]float64{"1": 50}}

	before := NewOverlay(nil).EffectiveStock(p, "1")

	// order exists: effect applied once
	with := NewOverlay([]models.PendingTransferOrder{
		pendingOrder("t1", "1", "2", models.TransferStatusPending, 7, 20),
	})
	assert.Equal(t, before-20, with.EffectiveStock(p, "1"))

	// order deleted: building from the remaining orders restores the
	// original values exactly
	after := NewOverlay(nil).EffectiveStock(p, "1")
	assert.Equal(t, before, after)
}

func TestOverlayConfirmedOrdersContributeNothing(t *testing.T) {
	// Confirmation hands the movement back to the ERP; keeping the overlay
	// effect too would double count it against the next snapshot.
	p := &models.Product{ID: 7, StockByWH: map[string]float64{"1": 50}}

	ov := NewOverlay([]models.PendingTransferOrder{
		pendingOrder("t1", "1", "2", models.TransferStatusReceived, 7, 20),
	})

	assert.Equal(t, float64(50), ov.EffectiveStock(p, "1"))
	assert.Equal(t, float64(0), ov.Incoming(7, "2"))
}

func TestOverlayAccumulatesAcrossOrders(t *testing.T) {
	p := &models.Product{ID: 7, StockByWH: map[string]float64{"1": 50}}

	ov := NewOverlay([]models.PendingTransferOrder{
		pendingOrder("t1", "1", "2", models.TransferStatusPending, 7, 10),
		pendingOrder("t2", "1", "3", models.TransferStatusPending, 7, 15),
	})

	assert.Equal(t, float64(25), ov.Outgoing(7, "1"))
	assert.Equal(t, float64(25), ov.EffectiveStock(p, "1"))
	assert.Equal(t, float64(10), ov.Incoming(7, "2"))
	assert.Equal(t, float64(15), ov.Incoming(7, "3"))
}

func TestProjectedCoverage(t *testing.T) {
	assert.Equal(t, 25, ProjectedCoverage(5, 30, 20))
	assert.Equal(t, models.CoverageNoSales, ProjectedCoverage(5, 0, 20))
}
