package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zstd"

	"stockledger/internal/core/entity"
	"stockledger/internal/domain/inventory"
	"stockledger/internal/infrastructure/http/v1/dto"
	"stockledger/pkg/logger"
)

// InventoryHandler handles HTTP requests for the inventory ledger.
type InventoryHandler struct {
	*BaseHandler
	service *inventory.Service
}

// NewInventoryHandler creates a new inventory ledger handler.
func NewInventoryHandler(base *BaseHandler, service *inventory.Service) *InventoryHandler {
	return &InventoryHandler{
		BaseHandler: base,
		service:     service,
	}
}

// --- Mutations ---

// Adjust handles POST /inventory/adjust
func (h *InventoryHandler) Adjust(c *gin.Context) {
	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput(h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.AdjustStock(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Transfer handles POST /inventory/transfer
func (h *InventoryHandler) Transfer(c *gin.Context) {
	var req dto.TransferStockRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput(h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.TransferStock(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Reserve handles POST /inventory/reserve
func (h *InventoryHandler) Reserve(c *gin.Context) {
	var req dto.ReserveStockRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput(h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.ReserveStock(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, res)
}

// Release handles POST /inventory/release
func (h *InventoryHandler) Release(c *gin.Context) {
	var req dto.ReleaseReservationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput(h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.ReleaseReservation(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Consume handles POST /inventory/consume
func (h *InventoryHandler) Consume(c *gin.Context) {
	var req dto.ConsumeStockRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput(h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.ConsumeStock(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// --- Queries ---

// List handles GET /inventory
func (h *InventoryHandler) List(c *gin.Context) {
	var req dto.InventoryListQuery
	if !h.BindQuery(c, &req) {
		return
	}
	q, err := req.ToQuery()
	if err != nil {
		h.Error(c, err)
		return
	}

	page, err := h.service.GetInventory(c.Request.Context(), q)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Summary handles GET /inventory/summary
func (h *InventoryHandler) Summary(c *gin.Context) {
	locationID, err := dto.ParseOptionalID("locationId", c.Query("locationId"))
	if err != nil {
		h.Error(c, err)
		return
	}

	summary, err := h.service.GetInventorySummary(c.Request.Context(), locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Valuation handles GET /inventory/valuation
func (h *InventoryHandler) Valuation(c *gin.Context) {
	productID, err := dto.ParseOptionalID("productId", c.Query("productId"))
	if err != nil {
		h.Error(c, err)
		return
	}
	locationID, err := dto.ParseOptionalID("locationId", c.Query("locationId"))
	if err != nil {
		h.Error(c, err)
		return
	}

	valuation, err := h.service.CalculateStockValuation(c.Request.Context(), productID, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, valuation)
}

// CostAnalysis handles GET /inventory/:productId/:locationId/cost-analysis
func (h *InventoryHandler) CostAnalysis(c *gin.Context) {
	var req dto.CostAnalysisQuery
	if !h.BindQuery(c, &req) {
		return
	}
	in, err := req.ToInput(c.Param("productId"), c.Param("locationId"))
	if err != nil {
		h.Error(c, err)
		return
	}

	analysis, err := h.service.AnalyzeCost(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// Reconcile handles GET /inventory/:productId/:locationId/reconcile
func (h *InventoryHandler) Reconcile(c *gin.Context) {
	productID, err := dto.ParseID("productId", c.Param("productId"))
	if err != nil {
		h.Error(c, err)
		return
	}
	locationID, err := dto.ParseID("locationId", c.Param("locationId"))
	if err != nil {
		h.Error(c, err)
		return
	}

	rec, err := h.service.Reconcile(c.Request.Context(), productID, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// --- Movements ---

// Movements handles GET /movements
func (h *InventoryHandler) Movements(c *gin.Context) {
	var req dto.MovementListQuery
	if !h.BindQuery(c, &req) {
		return
	}
	q, err := req.ToQuery()
	if err != nil {
		h.Error(c, err)
		return
	}

	page, err := h.service.GetMovements(c.Request.Context(), q)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ExportMovements handles GET /movements/export.
// The body is newline-delimited JSON, oldest first, compressed with zstd.
func (h *InventoryHandler) ExportMovements(c *gin.Context) {
	var req dto.MovementListQuery
	if !h.BindQuery(c, &req) {
		return
	}
	q, err := req.ToQuery()
	if err != nil {
		h.Error(c, err)
		return
	}
	// Validate before the first byte is written; errors after that can only be logged.
	q.Limit = 1
	if _, err := h.service.GetMovements(c.Request.Context(), q); err != nil {
		h.Error(c, err)
		return
	}

	enc, err := zstd.NewWriter(c.Writer)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Content-Encoding", "zstd")
	c.Header("Content-Disposition", `attachment; filename="movements.ndjson.zst"`)
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	jsonEnc := json.NewEncoder(enc)
	count := 0
	err = h.service.ExportMovements(ctx, q, func(m *entity.Movement) error {
		count++
		return jsonEnc.Encode(m)
	})
	if closeErr := enc.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		logger.Error(ctx, "movement export aborted", "exported", count, "error", err)
		return
	}
	logger.Info(ctx, "movements exported", "count", count)
}

// --- Alerts ---

// Alerts handles GET /alerts
func (h *InventoryHandler) Alerts(c *gin.Context) {
	var req dto.AlertListQuery
	if !h.BindQuery(c, &req) {
		return
	}
	q, err := req.ToQuery()
	if err != nil {
		h.Error(c, err)
		return
	}

	page, err := h.service.GetActiveAlerts(c.Request.Context(), q)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ResolveAlert handles POST /alerts/:id/resolve
func (h *InventoryHandler) ResolveAlert(c *gin.Context) {
	alertID, err := dto.ParseID("id", c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	var req dto.ResolveAlertRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	alert, err := h.service.ResolveAlert(c.Request.Context(), alertID, h.GetUserID(c), req.Notes)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, alert)
}
