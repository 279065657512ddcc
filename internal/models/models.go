package models

import "time"

// CoverageNoSales is the sentinel coverage for products with no sales
// velocity ("SIN VENTAS"). Comparisons treat it as effectively infinite.
const CoverageNoSales = 999

// Product statuses derived from coverage
const (
	StatusOutOfStock = "OutOfStock"
	StatusDeficient  = "Deficient"
	StatusNormal     = "Normal"
)

// Transfer order statuses
const (
	TransferStatusPending  = "pending"
	TransferStatusReceived = "received"
)

// Audit actions
const (
	AuditActionCreated   = "created"
	AuditActionConfirmed = "confirmed"
	AuditActionDeleted   = "deleted"
)

// ABCInfo holds the ABC classification of a product, globally or within a
// single warehouse.
type ABCInfo struct {
	Category string  `json:"category"`
	Rotation string  `json:"rotation"`
	Revenue  string  `json:"revenue"`
	ValRot   float64 `json:"val_rot,omitempty"`
	ValRev   float64 `json:"val_rev,omitempty"`
}

// PurchaseOrderLine is one pending inbound purchase-order line as reported by
// the ERP. Immutable after ingest; downstream code only filters over these.
type PurchaseOrderLine struct {
	OrderName   string  `json:"order_name"`
	Qty         float64 `json:"qty"`
	WarehouseID string  `json:"warehouse_id"`
	OrderDate   string  `json:"date_order"`
	PlannedDate string  `json:"date_planned"`
	Supplier    string  `json:"supplier"`
	State       string  `json:"state"`
	CompanyName string  `json:"company_name,omitempty"`
}

// Product is one product row from the ERP snapshot. Per-warehouse maps are
// keyed by the warehouse ID rendered as a string, matching the wire format.
type Product struct {
	ID            int64               `json:"id"`
	Barcode       string              `json:"barcode"`
	Name          string              `json:"name"`
	Provider      string              `json:"provider"`
	Origin        string              `json:"origen"`
	CategoryName  string              `json:"category_name"`
	BrandName     string              `json:"brand_name"`
	Tags          []string            `json:"tags"`
	TotalStock    float64             `json:"total_stock"`
	StockByWH     map[string]float64  `json:"stock_by_wh"`
	Sales30       float64             `json:"sales_30d"`
	SalesByWH     map[string]float64  `json:"sales_by_wh"`
	TotalPending  float64             `json:"total_pending"`
	PendingByWH   map[string]float64  `json:"pending_by_wh"`
	PendingOrders []PurchaseOrderLine `json:"pending_orders"`
	ABCCategory   string              `json:"abc_category"`
	ABCDetails    string              `json:"abc_details,omitempty"`
	ABCByWH       map[string]ABCInfo  `json:"abc_by_wh"`
}

// StockAt returns the snapshot stock at a warehouse, zero when absent.
func (p *Product) StockAt(warehouseID string) float64 {
	return p.StockByWH[warehouseID]
}

// SalesAt returns the trailing-30-day sales at a warehouse, zero when absent.
func (p *Product) SalesAt(warehouseID string) float64 {
	return p.SalesByWH[warehouseID]
}

// PendingAt returns the pending inbound quantity at a warehouse.
func (p *Product) PendingAt(warehouseID string) float64 {
	return p.PendingByWH[warehouseID]
}

// ABCAt returns the warehouse-local ABC category, falling back to the global
// category when the warehouse has no local classification.
func (p *Product) ABCAt(warehouseID string) string {
	if info, ok := p.ABCByWH[warehouseID]; ok && info.Category != "" {
		return info.Category
	}
	if p.ABCCategory == "" {
		return "E"
	}
	return p.ABCCategory
}

// Warehouse is one physical location from the snapshot.
type Warehouse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// Snapshot is a full point-in-time dump from the upstream ERP. Authoritative
// but stale between syncs.
type Snapshot struct {
	Status      string                    `json:"status,omitempty"`
	Products    []Product                 `json:"products"`
	Warehouses  []Warehouse               `json:"warehouses"`
	ABCSummary  map[string]map[string]int `json:"abc_summary,omitempty"`
	GlobalStats map[string]int            `json:"global_stats,omitempty"`
	LastUpdate  string                    `json:"last_update,omitempty"`
	NextSync    string                    `json:"next_sync,omitempty"`
}

// DerivedProduct is the Normalizer output: one product projected into a
// viewing context (global or a single warehouse).
type DerivedProduct struct {
	Product
	CurrentStock          float64             `json:"current_stock"`
	CurrentSales          float64             `json:"current_sales"`
	CurrentPending        float64             `json:"current_pending"`
	Coverage              int                 `json:"coverage"`
	Status                string              `json:"status"`
	FilteredPendingOrders []PurchaseOrderLine `json:"filtered_pending_orders"`
}

// TransferItem is one product line inside a transfer order.
type TransferItem struct {
	ID        int64   `db:"id" json:"-"`
	OrderID   string  `db:"order_id" json:"-"`
	ProductID int64   `db:"product_id" json:"product_id"`
	Qty       float64 `db:"qty" json:"qty"`
}

// PendingTransferOrder is a locally created transfer the ERP has not yet
// reflected. Mutated only by the pending->received transition or deletion.
type PendingTransferOrder struct {
	ID              string         `db:"id" json:"id"`
	FromWarehouseID string         `db:"from_warehouse_id" json:"from_warehouse_id"`
	ToWarehouseID   string         `db:"to_warehouse_id" json:"to_warehouse_id"`
	Status          string         `db:"status" json:"status"`
	CreatedBy       string         `db:"created_by" json:"created_by"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
	Items           []TransferItem `db:"-" json:"items"`
}

// StagedTransfer is an ephemeral, uncommitted transfer proposal. At most one
// staged entry exists per product within a destination context.
type StagedTransfer struct {
	ProductID         int64   `json:"product_id"`
	SourceWarehouseID string  `json:"source_warehouse_id"`
	DestWarehouseID   string  `json:"dest_warehouse_id,omitempty"`
	Qty               float64 `json:"qty"`
	MaxSourceStock    float64 `json:"max_source_stock"`
}

// HistoryEntry is one append-only audit record. From/to names and item count
// are denormalized so the log stays readable after renames or deletions.
type HistoryEntry struct {
	ID              string    `db:"id" json:"id"`
	Timestamp       time.Time `db:"ts" json:"timestamp"`
	Action          string    `db:"action" json:"action"`
	TransferOrderID string    `db:"transfer_order_id" json:"transfer_order_id"`
	FromName        string    `db:"from_name" json:"from_name"`
	ToName          string    `db:"to_name" json:"to_name"`
	ItemCount       int       `db:"item_count" json:"item_count"`
	User            string    `db:"username" json:"user"`
}

// FilterSet is the active facet predicate set. Empty string means the facet
// is inactive.
type FilterSet struct {
	Provider       string `json:"provider,omitempty"`
	Origin         string `json:"origin,omitempty"`
	Category       string `json:"category,omitempty"`
	ABCGlobal      string `json:"abc_global,omitempty"`
	ABCLocal       string `json:"abc_local,omitempty"`
	Tag            string `json:"tag,omitempty"`
	CoverageBucket string `json:"coverage_bucket,omitempty"`
	Status         string `json:"status,omitempty"`
	PendingRecency string `json:"pending_recency,omitempty"`
	Search         string `json:"search,omitempty"`
}

// SessionState is the client-local state with an explicit load/save
// lifecycle. Each field persists under its own storage key so corruption of
// one never takes down the others.
type SessionState struct {
	ViewingWarehouse string                    `json:"viewing_warehouse"`
	StagedTransfers  map[string]StagedTransfer `json:"staged_transfers"`
	ScratchQty       map[string]string         `json:"scratch_qty"`
	ActiveFilters    FilterSet                 `json:"active_filters"`
}

// NewSessionState returns an empty session.
func NewSessionState() *SessionState {
	return &SessionState{
		StagedTransfers: make(map[string]StagedTransfer),
		ScratchQty:      make(map[string]string),
	}
}

// Dirty reports whether the session holds unsaved local work: staged
// transfers or non-zero scratch quantities. While dirty, fresh snapshots are
// deferred instead of applied.
func (s *SessionState) Dirty() bool {
	if len(s.StagedTransfers) > 0 {
		return true
	}
	for _, raw := range s.ScratchQty {
		if raw != "" && raw != "0" {
			return true
		}
	}
	return false
}
