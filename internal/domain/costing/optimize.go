package costing

import (
	"fmt"
	"math"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/types"
)

// Objective is the business goal a method recommendation optimises for.
type Objective string

const (
	MinimizeCost    Objective = "minimize_cost"
	TaxOptimization Objective = "tax_optimization"
	CashFlow        Objective = "cash_flow"
)

// DefaultObjective is used when none is given.
const DefaultObjective = MinimizeCost

// IsValid checks if the objective is known.
func (o Objective) IsValid() bool {
	switch o {
	case MinimizeCost, TaxOptimization, CashFlow:
		return true
	}
	return false
}

// PriceTrend is the direction of batch costs over receive dates.
type PriceTrend string

const (
	TrendRising  PriceTrend = "rising"
	TrendFalling PriceTrend = "falling"
	TrendStable  PriceTrend = "stable"
)

const (
	lowVolatility    = 0.05
	mediumVolatility = 0.10
	highVolatility   = 0.20
	trendThreshold   = 0.02
	fastRotation     = 12.0
	slowRotation     = 4.0
)

// Recommendation is advisory output of Optimize; it never binds the ledger.
type Recommendation struct {
	Method     Method     `json:"method"`
	Objective  Objective  `json:"objective"`
	Reasoning  []string   `json:"reasoning"`
	Risk       RiskLevel  `json:"risk"`
	Volatility float64    `json:"volatility"`
	Rotation   float64    `json:"rotation"`
	Trend      PriceTrend `json:"trend"`
}

// Optimize recommends a method from price volatility (coefficient of
// variation of batch costs), price trend and rotation (annual consumption
// divided by quantity on hand).
func (c *Calculator) Optimize(batches []entity.Batch, annualConsumption types.Quantity, objective Objective) (Recommendation, error) {
	if objective == "" {
		objective = DefaultObjective
	}
	if !objective.IsValid() {
		return Recommendation{}, apperror.NewValidation("unknown objective").WithDetail("objective", string(objective))
	}

	avail := SortForMethod(Available(batches), FIFO)
	rec := Recommendation{Objective: objective, Method: FIFO, Risk: RiskLow, Trend: TrendStable, Reasoning: []string{}}
	if len(avail) == 0 {
		rec.Reasoning = append(rec.Reasoning, "no available batches; defaulting to FIFO")
		return rec, nil
	}

	var totalQty float64
	costs := make([]float64, len(avail))
	for i, b := range avail {
		costs[i] = b.CostPerUnit.InexactFloat64()
		totalQty += b.Quantity.InexactFloat64()
	}

	rec.Volatility = round4(coefficientOfVariation(costs))
	rec.Trend = trendOf(costs)
	if totalQty > 0 {
		rec.Rotation = round4(annualConsumption.InexactFloat64() / totalQty)
	}

	switch objective {
	case MinimizeCost:
		switch {
		case rec.Volatility < lowVolatility:
			rec.Method = Average
			rec.Reasoning = append(rec.Reasoning, fmt.Sprintf("costs are stable (CV %.3f); weighted average smooths the remaining noise", rec.Volatility))
		case rec.Trend == TrendRising:
			rec.Method = FIFO
			rec.Reasoning = append(rec.Reasoning, "costs are rising; consuming older, cheaper batches first lowers cost of goods")
		case rec.Trend == TrendFalling:
			rec.Method = LIFO
			rec.Reasoning = append(rec.Reasoning, "costs are falling; consuming newer, cheaper batches first lowers cost of goods")
		default:
			rec.Method = Average
			rec.Reasoning = append(rec.Reasoning, "costs are volatile without a clear trend; weighted average avoids swings")
		}
	case TaxOptimization:
		switch rec.Trend {
		case TrendRising:
			rec.Method = LIFO
			rec.Reasoning = append(rec.Reasoning, "costs are rising; LIFO reports higher cost of goods and lower taxable margin")
		case TrendFalling:
			rec.Method = FIFO
			rec.Reasoning = append(rec.Reasoning, "costs are falling; FIFO reports higher cost of goods and lower taxable margin")
		default:
			rec.Method = Average
			rec.Reasoning = append(rec.Reasoning, "no clear cost trend; weighted average keeps reported margin steady")
		}
	case CashFlow:
		if rec.Rotation > fastRotation {
			rec.Method = FIFO
			rec.Reasoning = append(rec.Reasoning, fmt.Sprintf("fast rotation (%.1f/year); FIFO keeps valuation close to replacement cost", rec.Rotation))
		} else {
			rec.Method = Average
			rec.Reasoning = append(rec.Reasoning, fmt.Sprintf("rotation of %.1f/year; weighted average keeps cost predictable for cash planning", rec.Rotation))
		}
	}

	switch {
	case rec.Volatility > highVolatility:
		rec.Risk = RiskHigh
		rec.Reasoning = append(rec.Reasoning, "high cost volatility makes the recommendation sensitive to new receipts")
	case rec.Volatility > mediumVolatility:
		rec.Risk = RiskMedium
	}
	if rec.Rotation < slowRotation {
		rec.Risk = rec.Risk.bump()
		rec.Reasoning = append(rec.Reasoning, "slow rotation increases exposure to spoilage and obsolescence")
	}
	return rec, nil
}

// coefficientOfVariation is the population standard deviation over the mean.
func coefficientOfVariation(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if mean == 0 {
		return 0
	}

	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return math.Sqrt(sq/float64(len(xs))) / mean
}

// trendOf compares the newest cost with the oldest (xs in receive order).
func trendOf(xs []float64) PriceTrend {
	if len(xs) < 2 || xs[0] == 0 {
		return TrendStable
	}
	change := (xs[len(xs)-1] - xs[0]) / xs[0]
	switch {
	case change > trendThreshold:
		return TrendRising
	case change < -trendThreshold:
		return TrendFalling
	}
	return TrendStable
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
