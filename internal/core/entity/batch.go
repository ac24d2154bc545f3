// Package entity provides core ledger entities shared by the domain services.
package entity

import (
	"time"

	"stockledger/internal/core/types"
)

// BatchStatus is the lifecycle state of a received lot.
type BatchStatus string

const (
	BatchAvailable  BatchStatus = "available"
	BatchQuarantine BatchStatus = "quarantine"
	BatchDepleted   BatchStatus = "depleted"
)

// Batch is a quantity of a product received at a specific cost and date.
// Identity is immutable; only Quantity changes. Quantity is in the product base unit.
type Batch struct {
	BatchID      string         `db:"batch_id" json:"batchId"`
	Quantity     types.Quantity `db:"quantity" json:"quantity"`
	CostPerUnit  types.Money    `db:"cost_per_unit" json:"costPerUnit"`
	ReceivedDate time.Time      `db:"received_date" json:"receivedDate"`
	ExpiryDate   *time.Time     `db:"expiry_date" json:"expiryDate,omitempty"`
	Status       BatchStatus    `db:"status" json:"status"`
}

// IsAvailable reports whether the batch can be consumed or valued.
func (b Batch) IsAvailable() bool {
	return b.Status == BatchAvailable && b.Quantity.IsPositive()
}

// SameLot reports whether o carries the same identity, cost and dates as b,
// so that the two quantities can be held as one batch.
func (b Batch) SameLot(o Batch) bool {
	if b.BatchID != o.BatchID || !b.CostPerUnit.Equal(o.CostPerUnit) || !b.ReceivedDate.Equal(o.ReceivedDate) {
		return false
	}
	if b.ExpiryDate == nil || o.ExpiryDate == nil {
		return b.ExpiryDate == nil && o.ExpiryDate == nil
	}
	return b.ExpiryDate.Equal(*o.ExpiryDate)
}

// WithQuantity returns a copy of b holding qty.
func (b Batch) WithQuantity(qty types.Quantity) Batch {
	if b.ExpiryDate != nil {
		e := *b.ExpiryDate
		b.ExpiryDate = &e
	}
	b.Quantity = qty
	return b
}

// Value returns quantity × cost.
func (b Batch) Value() types.Money {
	return b.Quantity.Mul(b.CostPerUnit)
}

// IsExpired reports whether the batch expiry is at or before now.
func (b Batch) IsExpired(now time.Time) bool {
	return b.ExpiryDate != nil && !b.ExpiryDate.After(now)
}

// ExpiresWithin reports whether the batch expires after now but no later than now+window.
func (b Batch) ExpiresWithin(now time.Time, window time.Duration) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return b.ExpiryDate.After(now) && !b.ExpiryDate.After(now.Add(window))
}

// AgeDays returns whole days elapsed since the batch was received.
func (b Batch) AgeDays(now time.Time) int {
	if b.ReceivedDate.IsZero() || now.Before(b.ReceivedDate) {
		return 0
	}
	return int(now.Sub(b.ReceivedDate).Hours() / 24)
}
