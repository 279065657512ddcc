package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"stock-service/internal/models"
	"stock-service/internal/util"

	"go.uber.org/zap"
)

// RecommendClient talks to the external Recommendation Service that scores
// transfer candidates. The scoring model is opaque here: we ship minimized
// product payloads and consume ranked {source, qty, score, reason, coverage}
// tuples. Local guardrails are applied afterwards by the allocation service.
type RecommendClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRecommendClient creates a recommendation service client.
func NewRecommendClient(baseURL string, timeout time.Duration) *RecommendClient {
	return &RecommendClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     util.GetLogger(),
	}
}

// PairProduct is the minimized product payload for a point-to-point
// analysis: per-warehouse stock, pending and ABC maps are reduced to the two
// relevant warehouses before shipping. Sales stay network-wide because the
// scorer protects other branches' demand when draining a depot.
type PairProduct struct {
	ID           int64                     `json:"id"`
	Name         string                    `json:"name"`
	CategoryName string                    `json:"category_name,omitempty"`
	ABCCategory  string                    `json:"abc_category"`
	StockByWH    map[string]float64        `json:"stock_by_wh"`
	SalesByWH    map[string]float64        `json:"sales_by_wh"`
	PendingByWH  map[string]float64        `json:"pending_by_wh"`
	ABCByWH      map[string]models.ABCInfo `json:"abc_by_wh"`
}

// PairRequest is the point-to-point analysis request.
type PairRequest struct {
	Products            []PairProduct `json:"products"`
	SourceWarehouseID   string        `json:"source_warehouse_id"`
	TargetWarehouseID   string        `json:"target_warehouse_id"`
	SourceWarehouseName string        `json:"source_warehouse_name,omitempty"`
	TargetWarehouseName string        `json:"target_warehouse_name,omitempty"`
}

// Suggestion is one scored transfer candidate for a fixed source/destination
// pair. Details carry the scorer's breakdown opaquely.
type Suggestion struct {
	ID       int64                  `json:"id"`
	Name     string                 `json:"name"`
	Qty      float64                `json:"qty"`
	Score    float64                `json:"score"`
	Reason   string                 `json:"reason"`
	Priority string                 `json:"priority,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// PairAnalysis is the point-to-point response: primary suggestions plus
// low-priority fill opportunities.
type PairAnalysis struct {
	Analysis      string         `json:"analysis"`
	Suggestions   []Suggestion   `json:"suggestions"`
	Opportunities []Suggestion   `json:"opportunities"`
	Stats         map[string]int `json:"stats,omitempty"`
}

// NetworkRequest is the network-wide analysis request: fixed destination,
// every eligible warehouse a candidate source.
type NetworkRequest struct {
	Products               []models.Product   `json:"products"`
	Warehouses             []models.Warehouse `json:"warehouses"`
	DestinationWarehouseID string             `json:"destination_warehouse_id"`
	UseML                  bool               `json:"use_ml"`
}

// SourceOption is one candidate source for a product, with coverage before
// and after the proposed move.
type SourceOption struct {
	SourceID              string  `json:"source_id"`
	SourceName            string  `json:"source_name"`
	Qty                   float64 `json:"qty"`
	QtyFormula            float64 `json:"qty_formula,omitempty"`
	Score                 float64 `json:"score"`
	Phase                 string  `json:"phase,omitempty"`
	Reason                string  `json:"reason,omitempty"`
	DestInitialCoverage   float64 `json:"dest_initial_coverage,omitempty"`
	DestPostCoverage      float64 `json:"dest_post_coverage,omitempty"`
	SourceInitialCoverage float64 `json:"source_initial_coverage,omitempty"`
	SourcePostCoverage    float64 `json:"source_post_coverage,omitempty"`
	MLApplied             bool    `json:"ml_applied,omitempty"`
}

// NetworkProduct is the per-product network analysis: ranked alternative
// sources plus the scorer's own top pick(s), which may split one product's
// rescue quantity across several sources.
type NetworkProduct struct {
	ProductID        string         `json:"product_id"`
	ProductName      string         `json:"product_name"`
	ProductBarcode   string         `json:"product_barcode,omitempty"`
	DestStock        float64        `json:"dest_stock"`
	DestCoverageDays float64        `json:"dest_coverage_days"`
	Phase            string         `json:"phase"`
	TopSources       []SourceOption `json:"top_sources"`
	ProposedPlan     []SourceOption `json:"proposed_plan"`
	Score            float64        `json:"score,omitempty"`
}

// NetworkAnalysis is the network-wide response.
type NetworkAnalysis struct {
	Analysis string                 `json:"analysis"`
	Products []NetworkProduct       `json:"products"`
	Debug    map[string]interface{} `json:"debug,omitempty"`
}

// AnalyzePair runs a point-to-point analysis.
func (c *RecommendClient) AnalyzePair(ctx context.Context, req *PairRequest) (*PairAnalysis, error) {
	var out PairAnalysis
	if err := c.post(ctx, "/api/analyze_transfers", req, &out); err != nil {
		return nil, err
	}
	if out.Suggestions == nil && out.Opportunities == nil && out.Analysis == "" {
		return nil, fmt.Errorf("%w: empty response shape", ErrAnalysisFailed)
	}
	return &out, nil
}

// AnalyzeNetwork runs a network-wide analysis.
func (c *RecommendClient) AnalyzeNetwork(ctx context.Context, req *NetworkRequest) (*NetworkAnalysis, error) {
	var out NetworkAnalysis
	if err := c.post(ctx, "/api/analyze_all_transfers", req, &out); err != nil {
		return nil, err
	}
	if out.Products == nil && out.Analysis == "" {
		return nil, fmt.Errorf("%w: empty response shape", ErrAnalysisFailed)
	}
	return &out, nil
}

func (c *RecommendClient) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrAnalysisFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrAnalysisFailed, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrAnalysisFailed, err)
	}

	c.logger.Debug("Recommendation call completed",
		zap.String("path", path),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
