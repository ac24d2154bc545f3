package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/costing"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// CostingHandler exposes the advisory cost calculator. Nothing here
// touches the ledger.
type CostingHandler struct {
	*BaseHandler
	calculator *costing.Calculator
	now        func() time.Time
}

// NewCostingHandler creates a new costing handler.
func NewCostingHandler(base *BaseHandler, calculator *costing.Calculator) *CostingHandler {
	return &CostingHandler{
		BaseHandler: base,
		calculator:  calculator,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Compare handles POST /costing/compare
func (h *CostingHandler) Compare(c *gin.Context) {
	var req dto.CompareCostRequest
	if !h.BindJSON(c, &req) {
		return
	}
	batches, err := dto.ToBatches(req.Batches)
	if err != nil {
		h.Error(c, err)
		return
	}

	if req.Method != "" {
		m, err := costing.ParseMethod(req.Method)
		if err != nil {
			h.Error(c, err)
			return
		}
		res, err := h.calculator.Calculate(batches, req.Quantity, m)
		if err != nil {
			h.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}

	cmp, err := h.calculator.Compare(batches, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, cmp)
}

// Optimize handles POST /costing/optimize
func (h *CostingHandler) Optimize(c *gin.Context) {
	var req dto.OptimizeCostRequest
	if !h.BindJSON(c, &req) {
		return
	}
	batches, err := dto.ToBatches(req.Batches)
	if err != nil {
		h.Error(c, err)
		return
	}

	rec, err := h.calculator.Optimize(batches, req.AnnualConsumption, req.ObjectiveValue())
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Project handles POST /costing/project
func (h *CostingHandler) Project(c *gin.Context) {
	var req dto.ProjectCostRequest
	if !h.BindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.calculator.Project(req.History, req.Periods))
}

// Metrics handles POST /costing/metrics
func (h *CostingHandler) Metrics(c *gin.Context) {
	var req dto.MetricsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	batches, err := dto.ToBatches(req.Batches)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, h.calculator.Metrics(batches, req.Sales, h.now()))
}
