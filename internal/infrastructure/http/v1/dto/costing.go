package dto

import (
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/costing"
)

// BatchInput is a batch supplied for an advisory cost calculation.
type BatchInput struct {
	BatchID      string         `json:"batchId" binding:"required"`
	Quantity     types.Quantity `json:"quantity"`
	CostPerUnit  types.Money    `json:"costPerUnit"`
	ReceivedDate time.Time      `json:"receivedDate"`
	ExpiryDate   *time.Time     `json:"expiryDate"`
	Status       string         `json:"status"`
}

// ToBatches validates and converts inputs into ledger batches.
func ToBatches(in []BatchInput) ([]entity.Batch, error) {
	out := make([]entity.Batch, 0, len(in))
	for _, b := range in {
		if b.Quantity.IsNegative() || b.CostPerUnit.IsNegative() {
			return nil, apperror.NewValidation("batch quantity and cost must not be negative").
				WithDetail("batch_id", b.BatchID)
		}
		status := entity.BatchStatus(strings.ToLower(strings.TrimSpace(b.Status)))
		if status == "" {
			status = entity.BatchAvailable
		}
		out = append(out, entity.Batch{
			BatchID:      b.BatchID,
			Quantity:     b.Quantity,
			CostPerUnit:  b.CostPerUnit,
			ReceivedDate: b.ReceivedDate,
			ExpiryDate:   b.ExpiryDate,
			Status:       status,
		})
	}
	return out, nil
}

// CompareCostRequest is the body of POST /costing/compare. With Method set
// only that method is calculated.
type CompareCostRequest struct {
	Batches  []BatchInput   `json:"batches" binding:"required,dive"`
	Quantity types.Quantity `json:"quantity"`
	Method   string         `json:"method"`
}

// OptimizeCostRequest is the body of POST /costing/optimize.
type OptimizeCostRequest struct {
	Batches           []BatchInput   `json:"batches" binding:"required,dive"`
	AnnualConsumption types.Quantity `json:"annualConsumption"`
	Objective         string         `json:"objective"`
}

// ObjectiveValue normalises the objective.
func (r *OptimizeCostRequest) ObjectiveValue() costing.Objective {
	return costing.Objective(strings.ToLower(strings.TrimSpace(r.Objective)))
}

// ProjectCostRequest is the body of POST /costing/project.
type ProjectCostRequest struct {
	History []costing.PricePoint `json:"history" binding:"required"`
	Periods int                  `json:"periods" binding:"required,min=1,max=120"`
}

// MetricsRequest is the body of POST /costing/metrics.
type MetricsRequest struct {
	Batches []BatchInput      `json:"batches" binding:"required,dive"`
	Sales   costing.SalesData `json:"sales"`
}
