package entity

import (
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// AlertType is the condition that raised an alert.
type AlertType string

const (
	AlertLowStock       AlertType = "LOW_STOCK"
	AlertReorderPoint   AlertType = "REORDER_POINT"
	AlertExpiryWarning  AlertType = "EXPIRY_WARNING"
	AlertExpiredProduct AlertType = "EXPIRED_PRODUCT"
)

// Priority orders alerts by urgency and drives channel selection.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Rank returns a sortable weight, higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Alert is raised by the alerting pass after a mutation. It stays active
// until resolved explicitly; re-evaluation never overwrites it.
type Alert struct {
	ID              id.ID          `db:"id" json:"id"`
	Type            AlertType      `db:"type" json:"type"`
	Priority        Priority       `db:"priority" json:"priority"`
	ProductID       id.ID          `db:"product_id" json:"productId"`
	LocationID      id.ID          `db:"location_id" json:"locationId"`
	BatchID         *string        `db:"batch_id" json:"batchId,omitempty"`
	Threshold       types.Quantity `db:"threshold" json:"threshold"`
	CurrentValue    types.Quantity `db:"current_value" json:"currentValue"`
	ExpiryDate      *time.Time     `db:"expiry_date" json:"expiryDate,omitempty"`
	Message         string         `db:"message" json:"message"`
	IsActive        bool           `db:"is_active" json:"isActive"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
	ResolvedAt      *time.Time     `db:"resolved_at" json:"resolvedAt,omitempty"`
	ResolvedBy      *string        `db:"resolved_by" json:"resolvedBy,omitempty"`
	ResolutionNotes string         `db:"resolution_notes" json:"resolutionNotes,omitempty"`
}

// Resolve marks the alert as acknowledged.
func (a *Alert) Resolve(userID, notes string, at time.Time) {
	a.IsActive = false
	a.ResolvedAt = &at
	a.ResolvedBy = &userID
	a.ResolutionNotes = notes
}
