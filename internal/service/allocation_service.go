package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"stock-service/internal/models"
	"stock-service/internal/util"

	"go.uber.org/zap"
)

type recommender interface {
	AnalyzePair(ctx context.Context, req *PairRequest) (*PairAnalysis, error)
	AnalyzeNetwork(ctx context.Context, req *NetworkRequest) (*NetworkAnalysis, error)
}

type snapshotSource interface {
	Current() (*models.Snapshot, error)
	WarehouseName(warehouseID string) string
}

type pendingOrdersLister interface {
	ListPendingTransferOrders(ctx context.Context) ([]models.PendingTransferOrder, error)
}

// AllocationService prepares minimized payloads for the recommendation
// service and applies local guardrails to whatever comes back. The scoring
// itself is the recommender's business; qty caps and duplicate suppression
// are enforced here because only this side knows the effective stock.
type AllocationService struct {
	snapshots snapshotSource
	rec       recommender
	orders    pendingOrdersLister
	denylist  map[string]bool
	logger    *zap.Logger
}

func NewAllocationService(snapshots snapshotSource, rec recommender, orders pendingOrdersLister, sourceDenylist []string) *AllocationService {
	deny := make(map[string]bool, len(sourceDenylist))
	for _, name := range sourceDenylist {
		deny[strings.ToUpper(strings.TrimSpace(name))] = true
	}
	return &AllocationService{
		snapshots: snapshots,
		rec:       rec,
		orders:    orders,
		denylist:  deny,
		logger:    util.GetLogger(),
	}
}

// overlayForPending builds the pending-operation overlay from orders that
// have not been confirmed yet.
func (a *AllocationService) overlayForPending(ctx context.Context) *Overlay {
	if a.orders == nil {
		return NewOverlay(nil)
	}
	orders, err := a.orders.ListPendingTransferOrders(ctx)
	if err != nil {
		a.logger.Warn("Could not load pending transfer orders, analyzing without overlay", zap.Error(err))
		return NewOverlay(nil)
	}
	return NewOverlay(orders)
}

// BuildPairPayload minimizes every product to the two warehouses involved.
// Stock and pending are the overlay-adjusted effective values; sales maps
// are passed whole so the recommender can judge network demand.
func (a *AllocationService) BuildPairPayload(snap *models.Snapshot, ov *Overlay, sourceID, targetID string) *PairRequest {
	req := &PairRequest{
		SourceWarehouseID:   sourceID,
		TargetWarehouseID:   targetID,
		SourceWarehouseName: a.snapshots.WarehouseName(sourceID),
		TargetWarehouseName: a.snapshots.WarehouseName(targetID),
	}
	for i := range snap.Products {
		p := &snap.Products[i]
		pp := PairProduct{
			ID:           p.ID,
			Name:         p.Name,
			CategoryName: p.CategoryName,
			ABCCategory:  p.ABCCategory,
			StockByWH:    map[string]float64{},
			PendingByWH:  map[string]float64{},
			ABCByWH:      map[string]models.ABCInfo{},
			SalesByWH:    p.SalesByWH,
		}
		for _, wh := range []string{sourceID, targetID} {
			pp.StockByWH[wh] = ov.EffectiveStock(p, wh)
			pp.PendingByWH[wh] = ov.EffectivePending(p, wh)
			if abc, ok := p.ABCByWH[wh]; ok {
				pp.ABCByWH[wh] = abc
			}
		}
		req.Products = append(req.Products, pp)
	}
	return req
}

// AnalyzePair runs the point-to-point analysis between two warehouses and
// clamps the result against effective source stock.
func (a *AllocationService) AnalyzePair(ctx context.Context, sourceID, targetID string) (*PairAnalysis, error) {
	ctx, span := util.StartSpan(ctx, "AllocationService.AnalyzePair")
	defer span.End()

	snap, err := a.snapshots.Current()
	if err != nil {
		return nil, err
	}
	for _, wh := range []string{sourceID, targetID} {
		if a.snapshots.WarehouseName(wh) == "" {
			return nil, fmt.Errorf("%w: %s", ErrUnknownWarehouse, wh)
		}
	}
	ov := a.overlayForPending(ctx)
	req := a.BuildPairPayload(snap, ov, sourceID, targetID)

	start := time.Now()
	util.AnalysesTotal.WithLabelValues("pair").Inc()
	result, err := a.rec.AnalyzePair(ctx, req)
	util.AnalysisLatency.WithLabelValues("pair").Observe(time.Since(start).Seconds())
	if err != nil {
		util.AnalysesFailedTotal.WithLabelValues("pair", "upstream").Inc()
		return nil, err
	}

	byID := make(map[int64]*models.Product, len(snap.Products))
	for i := range snap.Products {
		byID[snap.Products[i].ID] = &snap.Products[i]
	}

	seen := make(map[int64]bool)
	result.Suggestions = a.clampSuggestions(result.Suggestions, byID, ov, sourceID, seen)
	result.Opportunities = a.clampSuggestions(result.Opportunities, byID, ov, sourceID, seen)

	if len(result.Suggestions) == 0 && len(result.Opportunities) == 0 {
		return nil, fmt.Errorf("%w: no viable transfers from %s to %s", ErrAnalysisEmpty, sourceID, targetID)
	}
	return result, nil
}

// clampSuggestions caps each quantity at the effective source stock, drops
// anything that clamps to zero, and keeps each product at most once across
// both result lists.
func (a *AllocationService) clampSuggestions(in []Suggestion, byID map[int64]*models.Product, ov *Overlay, sourceID string, seen map[int64]bool) []Suggestion {
	out := in[:0]
	for _, s := range in {
		if seen[s.ID] {
			continue
		}
		p, ok := byID[s.ID]
		if !ok {
			continue
		}
		limit := ov.EffectiveStock(p, sourceID)
		if s.Qty > limit {
			s.Qty = limit
		}
		if s.Qty <= 0 {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}

// EligibleSources returns the warehouses that may donate stock toward dest:
// every warehouse except the destination itself and the configured denylist.
// A non-empty group restricts donors to that business chain.
func (a *AllocationService) EligibleSources(snap *models.Snapshot, destID string, group GroupTag) []models.Warehouse {
	var out []models.Warehouse
	for _, w := range snap.Warehouses {
		if WarehouseKey(w.ID) == destID {
			continue
		}
		if a.denylist[strings.ToUpper(strings.TrimSpace(w.Name))] {
			continue
		}
		if group != "" && GroupFor(w.Name) != group {
			continue
		}
		out = append(out, w)
	}
	return out
}

// AnalyzeNetwork runs the network-wide analysis toward one destination,
// optionally restricted to donors within one group. The recommender decides
// phases and plans; each source option quantity still gets clamped to that
// source's effective stock on the way back.
func (a *AllocationService) AnalyzeNetwork(ctx context.Context, destID string, group GroupTag, useML bool) (*NetworkAnalysis, error) {
	ctx, span := util.StartSpan(ctx, "AllocationService.AnalyzeNetwork")
	defer span.End()

	snap, err := a.snapshots.Current()
	if err != nil {
		return nil, err
	}
	if a.snapshots.WarehouseName(destID) == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWarehouse, destID)
	}
	ov := a.overlayForPending(ctx)
	sources := a.EligibleSources(snap, destID, group)
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no eligible source warehouses for %s", ErrAnalysisEmpty, destID)
	}

	req := &NetworkRequest{
		Products:               snap.Products,
		Warehouses:             sources,
		DestinationWarehouseID: destID,
		UseML:                  useML,
	}

	start := time.Now()
	util.AnalysesTotal.WithLabelValues("network").Inc()
	result, err := a.rec.AnalyzeNetwork(ctx, req)
	util.AnalysisLatency.WithLabelValues("network").Observe(time.Since(start).Seconds())
	if err != nil {
		util.AnalysesFailedTotal.WithLabelValues("network", "upstream").Inc()
		return nil, err
	}

	byID := make(map[int64]*models.Product, len(snap.Products))
	for i := range snap.Products {
		byID[snap.Products[i].ID] = &snap.Products[i]
	}
	for i := range result.Products {
		np := &result.Products[i]
		p := lookupByStringID(byID, np.ProductID)
		if p == nil {
			continue
		}
		np.TopSources = a.clampSourceOptions(np.TopSources, p, ov)
		np.ProposedPlan = a.clampSourceOptions(np.ProposedPlan, p, ov)
	}

	if len(result.Products) == 0 {
		return nil, fmt.Errorf("%w: no transfer candidates toward %s", ErrAnalysisEmpty, destID)
	}
	return result, nil
}

func (a *AllocationService) clampSourceOptions(in []SourceOption, p *models.Product, ov *Overlay) []SourceOption {
	out := in[:0]
	for _, opt := range in {
		limit := ov.EffectiveStock(p, opt.SourceID)
		if opt.Qty > limit {
			opt.Qty = limit
		}
		if opt.Qty <= 0 {
			continue
		}
		out = append(out, opt)
	}
	return out
}

func lookupByStringID(byID map[int64]*models.Product, id string) *models.Product {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil
	}
	return byID[n]
}
