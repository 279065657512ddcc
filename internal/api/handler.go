package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"stock-service/internal/models"
	"stock-service/internal/service"
	"stock-service/internal/store"
	"stock-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	sync         *service.SyncService
	normalizer   *service.Normalizer
	allocation   *service.AllocationService
	staging      *service.StagingService
	erp          *service.ERPClient
	store        *store.Store
	historyLimit int
}

// NewHandler creates a new HTTP handler
func NewHandler(
	sync *service.SyncService,
	normalizer *service.Normalizer,
	allocation *service.AllocationService,
	staging *service.StagingService,
	erp *service.ERPClient,
	st *store.Store,
	historyLimit int,
) *Handler {
	return &Handler{
		sync:         sync,
		normalizer:   normalizer,
		allocation:   allocation,
		staging:      staging,
		erp:          erp,
		store:        st,
		historyLimit: historyLimit,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id/movements", h.getMovements)
		v1.GET("/products/:id/projection", h.getProjection)

		v1.POST("/sync", h.forceSync)
		v1.GET("/sync/status", h.syncStatus)

		v1.POST("/analyze", h.analyzePair)
		v1.POST("/analyze/network", h.analyzeNetwork)

		v1.GET("/session", h.getSession)
		v1.PUT("/session/warehouse", h.setViewingWarehouse)
		v1.PUT("/session/filters", h.setFilters)

		v1.GET("/staging", h.listStaged)
		v1.POST("/staging/toggle", h.toggleStaged)
		v1.PUT("/staging/qty", h.setStagedQty)
		v1.PUT("/staging/scratch", h.setScratch)
		v1.DELETE("/staging", h.clearStaged)
		v1.POST("/staging/commit", h.commitStaged)

		v1.GET("/transfers", h.listTransfers)
		v1.POST("/transfers/:id/confirm", h.confirmTransfer)
		v1.DELETE("/transfers/:id", h.deleteTransfer)

		v1.GET("/history", h.listHistory)
		v1.DELETE("/history", h.clearHistory)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once a snapshot has been applied
func (h *Handler) readinessCheck(c *gin.Context) {
	if _, err := h.sync.Current(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "waiting for snapshot",
			"time":   time.Now().Unix(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listProducts returns the normalized, filtered, faceted product list for
// one warehouse view. warehouse="" is the network-wide view.
func (h *Handler) listProducts(c *gin.Context) {
	snap, err := h.sync.Current()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No snapshot available yet"})
		return
	}

	warehouse := c.Query("warehouse")
	if warehouse != "" && h.sync.WarehouseName(warehouse) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown warehouse: " + warehouse})
		return
	}

	filters := models.FilterSet{
		Provider:       c.Query("provider"),
		Origin:         c.Query("origin"),
		Category:       c.Query("category"),
		ABCGlobal:      c.Query("abc_global"),
		ABCLocal:       c.Query("abc_local"),
		Tag:            c.Query("tag"),
		CoverageBucket: c.Query("coverage"),
		Status:         c.Query("status"),
		PendingRecency: c.Query("recency"),
		Search:         c.Query("search"),
	}

	derived := h.normalizer.Normalize(snap, warehouse, filters.PendingRecency)
	result := service.ApplyFilters(derived, filters, warehouse)

	sortState := service.SortState{Field: c.Query("sort")}
	switch c.Query("dir") {
	case "asc":
		sortState.Direction = service.SortAsc
	case "desc":
		sortState.Direction = service.SortDesc
	}
	if sortState.Field != "" && sortState.Direction != service.SortNone {
		service.SortProducts(result.Filtered, sortState, h.staging.StagedQtyFor)
	}

	groups := make(map[string]service.GroupTag, len(snap.Warehouses))
	for _, w := range snap.Warehouses {
		groups[service.WarehouseKey(w.ID)] = service.GroupFor(w.Name)
	}

	c.JSON(http.StatusOK, gin.H{
		"products":         result.Filtered,
		"facets":           result.OptionCounts,
		"total":            len(derived),
		"warehouses":       snap.Warehouses,
		"warehouse_groups": groups,
		"abc_summary":      snap.ABCSummary,
		"global_stats":     snap.GlobalStats,
		"sync":             h.sync.Status(),
	})
}

// getMovements proxies the per-product movement history from the ERP
func (h *Handler) getMovements(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	movements, err := h.erp.GetMovements(c.Request.Context(), productID, c.Query("warehouse"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch movements", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

// getProjection previews a destination's coverage after receiving qty units
// of a product, on top of stock already adjusted for in-flight transfers.
func (h *Handler) getProjection(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}
	warehouse := c.Query("warehouse")
	if warehouse == "" || h.sync.WarehouseName(warehouse) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown warehouse: " + warehouse})
		return
	}
	qty, err := strconv.ParseFloat(c.DefaultQuery("qty", "0"), 64)
	if err != nil || qty < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid qty"})
		return
	}

	snap, err := h.sync.Current()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No snapshot available yet"})
		return
	}
	var product *models.Product
	for i := range snap.Products {
		if snap.Products[i].ID == productID {
			product = &snap.Products[i]
			break
		}
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	orders, err := h.store.ListPendingTransferOrders(c.Request.Context())
	if err != nil {
		util.GetLogger().Warn("Failed to list pending orders for projection", zap.Error(err))
		orders = nil
	}
	overlay := service.NewOverlay(orders)
	stock := overlay.EffectiveStock(product, warehouse)
	sales := product.SalesAt(warehouse)

	c.JSON(http.StatusOK, gin.H{
		"product_id":         productID,
		"warehouse":          warehouse,
		"effective_stock":    stock,
		"current_coverage":   service.ProjectedCoverage(stock, sales, 0),
		"projected_coverage": service.ProjectedCoverage(stock, sales, qty),
	})
}

// forceSync asks the ERP for a fresh snapshot now
func (h *Handler) forceSync(c *gin.Context) {
	err := h.sync.Refresh(c.Request.Context(), true)
	if errors.Is(err, service.ErrSyncInProgress) {
		c.JSON(http.StatusAccepted, gin.H{"status": "sync in progress", "sync": h.sync.Status()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Sync failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "synced", "sync": h.sync.Status()})
}

// syncStatus is the passive indicator; it never triggers a fetch
func (h *Handler) syncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.Status())
}

type analyzePairRequest struct {
	SourceWarehouseID string `json:"source_warehouse_id" binding:"required"`
	TargetWarehouseID string `json:"target_warehouse_id" binding:"required"`
}

// analyzePair runs the point-to-point transfer analysis
func (h *Handler) analyzePair(c *gin.Context) {
	var req analyzePairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.allocation.AnalyzePair(c.Request.Context(), req.SourceWarehouseID, req.TargetWarehouseID)
	if err != nil {
		h.analysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type analyzeNetworkRequest struct {
	DestinationWarehouseID string `json:"destination_warehouse_id" binding:"required"`
	Group                  string `json:"group"`
	UseML                  bool   `json:"use_ml"`
}

// analyzeNetwork runs the network-wide analysis toward one destination
func (h *Handler) analyzeNetwork(c *gin.Context) {
	var req analyzeNetworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.allocation.AnalyzeNetwork(c.Request.Context(), req.DestinationWarehouseID, service.GroupTag(req.Group), req.UseML)
	if err != nil {
		h.analysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) analysisError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoSnapshot):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No snapshot available yet"})
	case errors.Is(err, service.ErrUnknownWarehouse):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAnalysisEmpty):
		c.JSON(http.StatusNotFound, gin.H{"error": "No viable transfers", "details": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Analysis failed", "details": err.Error()})
	}
}

// getSession returns the persisted session state
func (h *Handler) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.staging.State())
}

type setWarehouseRequest struct {
	WarehouseID string `json:"warehouse_id"`
}

// setViewingWarehouse switches the viewing context
func (h *Handler) setViewingWarehouse(c *gin.Context) {
	var req setWarehouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.WarehouseID != "" && h.sync.WarehouseName(req.WarehouseID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown warehouse: " + req.WarehouseID})
		return
	}
	h.staging.SetViewingWarehouse(c.Request.Context(), req.WarehouseID)
	c.JSON(http.StatusOK, h.staging.State())
}

// setFilters replaces the persisted filter set
func (h *Handler) setFilters(c *gin.Context) {
	var req models.FilterSet
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	h.staging.SetFilters(c.Request.Context(), req)
	c.JSON(http.StatusOK, h.staging.State())
}

// listStaged returns the staged transfer set
func (h *Handler) listStaged(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"staged": h.staging.Staged()})
}

type toggleStagedRequest struct {
	ProductID         int64   `json:"product_id" binding:"required"`
	SourceWarehouseID string  `json:"source_warehouse_id" binding:"required"`
	Qty               float64 `json:"qty"`
	MaxSourceStock    float64 `json:"max_source_stock"`
}

// toggleStaged stages, replaces or unstages one product
func (h *Handler) toggleStaged(c *gin.Context) {
	var req toggleStagedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	h.staging.Stage(c.Request.Context(), req.ProductID, req.SourceWarehouseID, req.Qty, req.MaxSourceStock)
	c.JSON(http.StatusOK, gin.H{"staged": h.staging.Staged()})
}

type setQtyRequest struct {
	ProductID int64   `json:"product_id" binding:"required"`
	Qty       float64 `json:"qty"`
}

// setStagedQty adjusts a staged quantity. An over-cap request is clamped
// and reported.
func (h *Handler) setStagedQty(c *gin.Context) {
	var req setQtyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	err := h.staging.SetQty(c.Request.Context(), req.ProductID, req.Qty)
	if errors.Is(err, service.ErrNothingStaged) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, service.ErrQuantityExceedsCap) {
		c.JSON(http.StatusOK, gin.H{"staged": h.staging.Staged(), "clamped": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"staged": h.staging.Staged()})
}

type setScratchRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

// setScratch stores one raw quantity draft
func (h *Handler) setScratch(c *gin.Context) {
	var req setScratchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	h.staging.SetScratch(c.Request.Context(), req.Key, req.Value)
	c.Status(http.StatusNoContent)
}

// clearStaged empties the staged set without committing
func (h *Handler) clearStaged(c *gin.Context) {
	h.staging.Clear(c.Request.Context())
	c.Status(http.StatusNoContent)
}

type commitRequest struct {
	ToWarehouseID string `json:"to_warehouse_id" binding:"required"`
	Username      string `json:"username"`
}

// commitStaged turns the staged set into pending transfer orders
func (h *Handler) commitStaged(c *gin.Context) {
	var req commitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.Username == "" {
		req.Username = c.GetHeader("X-Username")
	}

	orders, err := h.staging.Commit(c.Request.Context(), req.ToWarehouseID, req.Username)
	if errors.Is(err, service.ErrNothingStaged) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing staged to commit"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Commit failed", "details": err.Error(), "orders": orders})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"orders": orders})
}

// listTransfers returns pending transfer orders with items
func (h *Handler) listTransfers(c *gin.Context) {
	orders, err := h.staging.ListPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list transfers", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfers": orders})
}

// confirmTransfer moves one order from pending to received
func (h *Handler) confirmTransfer(c *gin.Context) {
	err := h.staging.Confirm(c.Request.Context(), c.Param("id"), c.GetHeader("X-Username"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transfer not found or not pending", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// deleteTransfer removes one order entirely
func (h *Handler) deleteTransfer(c *gin.Context) {
	err := h.staging.Delete(c.Request.Context(), c.Param("id"), c.GetHeader("X-Username"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transfer not found", "details": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// listHistory returns the audit log newest first
func (h *Handler) listHistory(c *gin.Context) {
	limit := h.historyLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := h.store.ListHistory(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list history", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// clearHistory wipes the audit log
func (h *Handler) clearHistory(c *gin.Context) {
	if err := h.store.ClearHistory(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear history", "details": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
