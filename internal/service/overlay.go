package service

import (
	"stock-service/internal/models"
)

// Overlay compensates for transfers created locally but not yet reflected by
// the ERP. It is built from the live pending transfer orders and applied only
// when computing allocation inputs and coverage previews; the snapshot itself
// is never mutated, so a failed or superseded sync cannot corrupt history.
//
// Both the point-to-point and the network-wide analysis flows share this one
// component.
type Overlay struct {
	outgoing map[int64]map[string]float64
	incoming map[int64]map[string]float64
}

// NewOverlay indexes the pending orders. Orders in any other status
// contribute nothing: the moment an order is confirmed or deleted its effect
// disappears, exactly once.
func NewOverlay(orders []models.PendingTransferOrder) *Overlay {
	o := &Overlay{
		outgoing: make(map[int64]map[string]float64),
		incoming: make(map[int64]map[string]float64),
	}
	for _, ord := range orders {
		if ord.Status != models.TransferStatusPending {
			continue
		}
		for _, item := range ord.Items {
			add(o.outgoing, item.ProductID, ord.FromWarehouseID, item.Qty)
			add(o.incoming, item.ProductID, ord.ToWarehouseID, item.Qty)
		}
	}
	return o
}

func add(m map[int64]map[string]float64, pid int64, wh string, qty float64) {
	byWH := m[pid]
	if byWH == nil {
		byWH = make(map[string]float64)
		m[pid] = byWH
	}
	byWH[wh] += qty
}

// Outgoing is the total quantity of the product leaving the warehouse on
// pending transfers.
func (o *Overlay) Outgoing(productID int64, warehouseID string) float64 {
	return o.outgoing[productID][warehouseID]
}

// Incoming is the total quantity of the product arriving at the warehouse on
// pending transfers.
func (o *Overlay) Incoming(productID int64, warehouseID string) float64 {
	return o.incoming[productID][warehouseID]
}

// EffectiveStock is the stock available for new allocations at a source:
// snapshot stock minus in-transit outgoing quantity, floored at zero so the
// same units are never proposed twice before the next sync.
func (o *Overlay) EffectiveStock(p *models.Product, warehouseID string) float64 {
	eff := p.StockAt(warehouseID) - o.Outgoing(p.ID, warehouseID)
	if eff < 0 {
		return 0
	}
	return eff
}

// EffectivePending is the inbound quantity at a destination: ERP pending
// purchase orders plus locally created incoming transfers.
func (o *Overlay) EffectivePending(p *models.Product, warehouseID string) float64 {
	return p.PendingAt(warehouseID) + o.Incoming(p.ID, warehouseID)
}

// ProjectedCoverage previews the destination coverage after receiving qty
// units, using the same sentinel rule as the normalizer.
func ProjectedCoverage(destStock, destSales30, qty float64) int {
	return CoverageDays(destStock+qty, destSales30)
}
