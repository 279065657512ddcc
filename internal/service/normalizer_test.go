package service

import (
	"testing"
	"time"

	"stock-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCoverageDays(t *testing.T) {
	// 100 units at 30/month is 100 days of stock
	assert.Equal(t, 100, CoverageDays(100, 30))

	// 5 units at 30/month rounds to 5 days
	assert.Equal(t, 5, CoverageDays(5, 30))

	// no velocity hits the sentinel regardless of stock
	assert.Equal(t, models.CoverageNoSales, CoverageDays(100, 0))
	assert.Equal(t, models.CoverageNoSales, CoverageDays(0, 0))

	// rounding, not truncation: 10 / (45/30) = 6.67 -> 7
	assert.Equal(t, 7, CoverageDays(10, 45))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, models.StatusOutOfStock, StatusFor(0, 0))
	assert.Equal(t, models.StatusOutOfStock, StatusFor(0, models.CoverageNoSales))
	assert.Equal(t, models.StatusDeficient, StatusFor(5, 5))
	assert.Equal(t, models.StatusDeficient, StatusFor(1, 6))
	assert.Equal(t, models.StatusNormal, StatusFor(10, 7))
	assert.Equal(t, models.StatusNormal, StatusFor(100, models.CoverageNoSales))
}

func TestCoverageBucket(t *testing.T) {
	cases := map[int]string{
		0:                      "0-1",
		1:                      "0-1",
		3:                      "2-5",
		6:                      "5-7",
		9:                      "8-10",
		12:                     "11-15",
		18:                     "16-20",
		25:                     "21-30",
		31:                     "+30",
		models.CoverageNoSales: BucketNoSales,
	}
	for cov, want := range cases {
		assert.Equal(t, want, CoverageBucket(cov), "coverage %d", cov)
	}
}

func TestNormalizePerWarehouseView(t *testing.T) {
	// One product, plenty of stock at A but thin at B where all the sales
	// happen. The global view looks healthy; the B view must not.
	snap := &models.Snapshot{
		Products: []models.Product{
			{
				ID:         1,
				Name:       "Arroz 1kg",
				TotalStock: 105,
				StockByWH:  map[string]float64{"1": 100, "2": 5},
				Sales30:    30,
				SalesByWH:  map[string]float64{"1": 0, "2": 30},
			},
		},
	}
	n := &Normalizer{}

	global := n.Normalize(snap, "", "")
	assert.Len(t, global, 1)
	assert.Equal(t, 105, global[0].Coverage)
	assert.Equal(t, models.StatusNormal, global[0].Status)

	atB := n.Normalize(snap, "2", "")
	assert.Len(t, atB, 1)
	assert.Equal(t, float64(5), atB[0].CurrentStock)
	assert.Equal(t, 5, atB[0].Coverage)
	assert.Equal(t, models.StatusDeficient, atB[0].Status)

	// transferring 20 units in lifts B to 25 days
	assert.Equal(t, 25, ProjectedCoverage(atB[0].CurrentStock, atB[0].CurrentSales, 20))
}

func TestNormalizeSkipsNeverStocked(t *testing.T) {
	snap := &models.Snapshot{
		Products: []models.Product{
			{ID: 1, Name: "ghost"},
			{ID: 2, Name: "sold out", SalesByWH: map[string]float64{"1": 4}},
			{ID: 3, Name: "stocked", StockByWH: map[string]float64{"1": 2}},
		},
	}
	n := &Normalizer{}

	out := n.Normalize(snap, "", "")
	assert.Len(t, out, 2)
	for _, d := range out {
		assert.NotEqual(t, int64(1), d.ID)
	}
}

func TestFilterPendingOrdersRecency(t *testing.T) {
	today := time.Date(2026, 8, 31, 12, 0, 0, 0, time.Local)
	lines := []models.PurchaseOrderLine{
		{OrderName: "PO-today", WarehouseID: "1", OrderDate: "2026-08-31"},
		{OrderName: "PO-yesterday", WarehouseID: "1", OrderDate: "2026-08-30 16:45:00"},
		{OrderName: "PO-3d", WarehouseID: "1", OrderDate: "2026-08-28"},
		{OrderName: "PO-7d", WarehouseID: "1", OrderDate: "2026-08-25"},
		{OrderName: "PO-old", WarehouseID: "1", OrderDate: "2026-08-01"},
		{OrderName: "PO-nodate", WarehouseID: "1"},
		{OrderName: "PO-other-wh", WarehouseID: "2", OrderDate: "2026-08-31"},
	}

	names := func(out []models.PurchaseOrderLine) []string {
		var got []string
		for _, l := range out {
			got = append(got, l.OrderName)
		}
		return got
	}

	assert.Equal(t, []string{"PO-today"},
		names(FilterPendingOrders(lines, "1", RecencyToday, today)))
	assert.Equal(t, []string{"PO-yesterday"},
		names(FilterPendingOrders(lines, "1", RecencyYesterday, today)))
	assert.Equal(t, []string{"PO-3d"},
		names(FilterPendingOrders(lines, "1", RecencyThreeDays, today)))
	assert.Equal(t, []string{"PO-7d"},
		names(FilterPendingOrders(lines, "1", RecencySevenDays, today)))

	// without a recency filter the undated line stays in
	all := FilterPendingOrders(lines, "1", "", today)
	assert.Len(t, all, 6)

	// with any recency filter the undated line is excluded, even "today"
	withRecency := FilterPendingOrders(lines, "1", RecencyToday, today)
	assert.NotContains(t, names(withRecency), "PO-nodate")
}

func TestRecencyWindowsAreDisjoint(t *testing.T) {
	today := time.Date(2026, 8, 31, 0, 0, 0, 0, time.Local)
	windows := []string{RecencyToday, RecencyYesterday, RecencyThreeDays, RecencySevenDays}

	for back := 0; back <= 10; back++ {
		date := today.AddDate(0, 0, -back).Format("2006-01-02")
		matches := 0
		for _, w := range windows {
			if matchesRecency(date, w, today) {
				matches++
			}
		}
		if back <= 7 {
			assert.Equal(t, 1, matches, "a line %d days back must match exactly one window", back)
		} else {
			assert.Zero(t, matches, "a line %d days back must match no window", back)
		}
	}
}
