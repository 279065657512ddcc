package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"stock-service/internal/models"
	"stock-service/internal/util"

	"go.uber.org/zap"
)

// ERPClient fetches inventory snapshots from the upstream ERP bridge over
// plain HTTP. The bridge owns the Odoo conversation; this client only sees
// the assembled snapshot JSON.
type ERPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// SyncHints are the fast-path response headers. They only steer scheduling;
// the response body stays authoritative.
type SyncHints struct {
	NextSync   string
	IsSyncing  bool
	LastUpdate string
}

// Movement is one historical stock move for a product.
type Movement struct {
	Date string  `json:"date"`
	Ref  string  `json:"ref"`
	Qty  float64 `json:"qty"`
	From string  `json:"from"`
	To   string  `json:"to"`
}

// NewERPClient creates an ERP client.
func NewERPClient(baseURL string, timeout time.Duration) *ERPClient {
	return &ERPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     util.GetLogger(),
	}
}

// FetchSnapshot retrieves the current full snapshot. forceSync asks the ERP
// to rebuild it first; the ERP answers status "syncing" while it does, which
// surfaces here as ErrSyncInProgress so the caller can schedule a retry.
func (c *ERPClient) FetchSnapshot(ctx context.Context, forceSync bool) (*models.Snapshot, SyncHints, error) {
	u := c.baseURL + "/api/products"
	if forceSync {
		u += "?sync=true"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, SyncHints{}, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, SyncHints{}, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	defer resp.Body.Close()

	hints := SyncHints{
		NextSync:   resp.Header.Get("X-Next-Sync"),
		IsSyncing:  resp.Header.Get("X-Is-Syncing") == "true",
		LastUpdate: resp.Header.Get("X-Last-Update"),
	}

	if resp.StatusCode != http.StatusOK {
		return nil, hints, fmt.Errorf("%w: unexpected status %d", ErrSyncFailed, resp.StatusCode)
	}

	var snap models.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, hints, fmt.Errorf("%w: decode: %v", ErrSyncFailed, err)
	}

	if snap.Status == "syncing" || hints.IsSyncing {
		return nil, hints, ErrSyncInProgress
	}

	c.logger.Info("Snapshot fetched",
		zap.Int("products", len(snap.Products)),
		zap.Int("warehouses", len(snap.Warehouses)),
		zap.String("last_update", snap.LastUpdate))
	return &snap, hints, nil
}

// GetMovements retrieves recent stock moves for a product, optionally scoped
// to one warehouse.
func (c *ERPClient) GetMovements(ctx context.Context, productID int64, warehouseID string) ([]Movement, error) {
	u := fmt.Sprintf("%s/api/movements/%d", c.baseURL, productID)
	if warehouseID != "" {
		u += "?warehouse_id=" + url.QueryEscape(warehouseID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch movements: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch movements: unexpected status %d", resp.StatusCode)
	}

	var moves []Movement
	if err := json.NewDecoder(resp.Body).Decode(&moves); err != nil {
		return nil, fmt.Errorf("fetch movements: decode: %w", err)
	}
	return moves, nil
}
