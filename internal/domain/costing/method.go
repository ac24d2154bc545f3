// Package costing computes consumption cost under FIFO, LIFO and weighted
// average, and offers valuation, projection and method-selection analytics.
//
// Physical depletion in the ledger is always FIFO; the other methods are
// advisory and used for what-if comparisons only.
package costing

import (
	"strings"

	"stockledger/internal/core/apperror"
)

// Method is a cost flow assumption.
type Method string

const (
	// FIFO consumes the oldest batches first.
	FIFO Method = "FIFO"
	// LIFO consumes the newest batches first.
	LIFO Method = "LIFO"
	// Average applies the weighted average cost of all available batches.
	Average Method = "AVERAGE"
)

// Methods lists every method in tie-break order.
var Methods = []Method{FIFO, LIFO, Average}

// IsValid checks if the method is known.
func (m Method) IsValid() bool {
	switch m {
	case FIFO, LIFO, Average:
		return true
	}
	return false
}

// UsesLayers reports whether the method walks individual batches.
func (m Method) UsesLayers() bool {
	return m == FIFO || m == LIFO
}

// ParseMethod accepts "fifo", "LIFO", "average" or "weighted_average".
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FIFO":
		return FIFO, nil
	case "LIFO":
		return LIFO, nil
	case "AVERAGE", "AVG", "WEIGHTED_AVERAGE":
		return Average, nil
	}
	return "", apperror.NewValidation("unknown costing method").WithDetail("method", s)
}

func rank(m Method) int {
	for i, x := range Methods {
		if x == m {
			return i
		}
	}
	return len(Methods)
}

// RiskLevel grades advisory outputs.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

func (r RiskLevel) bump() RiskLevel {
	switch r {
	case RiskLow:
		return RiskMedium
	default:
		return RiskHigh
	}
}
