package service

import (
	"math"
	"time"

	"stock-service/internal/models"
)

// Recency windows over purchase-order dates. Mutually exclusive: "3d" covers
// days -3..-2 and "7d" days -7..-4, so a line matches at most one window.
const (
	RecencyToday     = "today"
	RecencyYesterday = "yesterday"
	RecencyThreeDays = "3d"
	RecencySevenDays = "7d"
)

// Coverage buckets, as offered by the coverage facet.
const (
	BucketNoSales = "sin-ventas"
)

// Normalizer projects a raw snapshot into per-product derived metrics for a
// viewing context. A zero-value Normalizer uses the real clock; tests inject
// a fixed one.
type Normalizer struct {
	Now func() time.Time
}

func (n *Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

// CoverageDays returns the projected days of stock at current sales velocity,
// or the CoverageNoSales sentinel when there is no velocity.
func CoverageDays(stock, sales30 float64) int {
	if sales30 <= 0 {
		return models.CoverageNoSales
	}
	return int(math.Round(stock / (sales30 / 30.0)))
}

// StatusFor classifies a product from its current stock and coverage.
func StatusFor(stock float64, coverage int) string {
	if stock <= 0 {
		return models.StatusOutOfStock
	}
	if coverage < 7 {
		return models.StatusDeficient
	}
	return models.StatusNormal
}

// CoverageBucket maps a coverage value onto the facet's bucket labels.
func CoverageBucket(coverage int) string {
	switch {
	case coverage >= models.CoverageNoSales:
		return BucketNoSales
	case coverage <= 1:
		return "0-1"
	case coverage <= 5:
		return "2-5"
	case coverage <= 7:
		return "5-7"
	case coverage <= 10:
		return "8-10"
	case coverage <= 15:
		return "11-15"
	case coverage <= 20:
		return "16-20"
	case coverage <= 30:
		return "21-30"
	default:
		return "+30"
	}
}

// Normalize produces one DerivedProduct per visible product. An empty
// viewingWarehouse means the global aggregate view. recency optionally
// restricts each product's pending-order lines (see FilterPendingOrders).
func (n *Normalizer) Normalize(snap *models.Snapshot, viewingWarehouse, recency string) []models.DerivedProduct {
	if snap == nil {
		return nil
	}
	today := n.now()
	out := make([]models.DerivedProduct, 0, len(snap.Products))
	for i := range snap.Products {
		p := &snap.Products[i]
		if !everStocked(p) {
			continue
		}

		var stock, sales, pending float64
		if viewingWarehouse == "" {
			stock, sales, pending = p.TotalStock, p.Sales30, p.TotalPending
		} else {
			stock = p.StockAt(viewingWarehouse)
			sales = p.SalesAt(viewingWarehouse)
			pending = p.PendingAt(viewingWarehouse)
		}

		cov := CoverageDays(stock, sales)
		out = append(out, models.DerivedProduct{
			Product:               *p,
			CurrentStock:          stock,
			CurrentSales:          sales,
			CurrentPending:        pending,
			Coverage:              cov,
			Status:                StatusFor(stock, cov),
			FilteredPendingOrders: FilterPendingOrders(p.PendingOrders, viewingWarehouse, recency, today),
		})
	}
	return out
}

// everStocked filters "never stocked" noise: a product is visible only if at
// least one warehouse has stock or sales. True out-of-stock products keep
// their sales history and stay visible.
func everStocked(p *models.Product) bool {
	if p.TotalStock > 0 || p.Sales30 > 0 {
		return true
	}
	for _, q := range p.StockByWH {
		if q > 0 {
			return true
		}
	}
	for _, q := range p.SalesByWH {
		if q > 0 {
			return true
		}
	}
	return false
}

// FilterPendingOrders restricts purchase-order lines to the viewing warehouse
// (when set) and to the given recency window (when set). Lines without an
// order date are excluded whenever a recency filter is active; they are never
// silently included.
func FilterPendingOrders(lines []models.PurchaseOrderLine, viewingWarehouse, recency string, today time.Time) []models.PurchaseOrderLine {
	if len(lines) == 0 {
		return nil
	}
	out := make([]models.PurchaseOrderLine, 0, len(lines))
	for _, l := range lines {
		if viewingWarehouse != "" && l.WarehouseID != viewingWarehouse {
			continue
		}
		if recency != "" && !matchesRecency(l.OrderDate, recency, today) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func matchesRecency(orderDate, recency string, today time.Time) bool {
	d, ok := parseOrderDate(orderDate)
	if !ok {
		return false
	}
	days := daysAgo(d, today)
	switch recency {
	case RecencyToday:
		return days == 0
	case RecencyYesterday:
		return days == 1
	case RecencyThreeDays:
		return days >= 2 && days <= 3
	case RecencySevenDays:
		return days >= 4 && days <= 7
	}
	return false
}

// parseOrderDate accepts the date formats the ERP emits: a bare date, a
// datetime, or RFC 3339.
func parseOrderDate(s string) (time.Time, bool) {
	if len(s) >= 10 {
		if d, err := time.ParseInLocation("2006-01-02", s[:10], time.Local); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// daysAgo counts whole local calendar days between d and today; 0 = today.
func daysAgo(d, today time.Time) int {
	y1, m1, d1 := d.Date()
	y2, m2, d2 := today.Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.Local)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.Local)
	return int(b.Sub(a).Hours() / 24)
}
