package entity

import (
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// MovementType classifies a ledger movement.
type MovementType string

const (
	MovementEntry      MovementType = "ENTRADA"
	MovementExit       MovementType = "SALIDA"
	MovementTransfer   MovementType = "TRANSFERENCIA"
	MovementAdjustment MovementType = "AJUSTE"
)

// IsValid reports whether t is a known movement type.
func (t MovementType) IsValid() bool {
	switch t {
	case MovementEntry, MovementExit, MovementTransfer, MovementAdjustment:
		return true
	}
	return false
}

// MovementLine records how much of one batch a movement touched.
type MovementLine struct {
	BatchID     string         `json:"batchId"`
	Quantity    types.Quantity `json:"quantity"`
	CostPerUnit types.Money    `json:"costPerUnit"`
	TotalCost   types.Money    `json:"totalCost"`
}

// Movement is an immutable audit record of a single inventory change.
// Movements are never updated; they are the ground truth for reconciliation.
//
// Direction at a location is carried by the location fields: ToLocation
// receives the quantity, FromLocation gives it up. Quantity is never negative.
type Movement struct {
	ID           id.ID          `db:"id" json:"id"`
	Type         MovementType   `db:"type" json:"type"`
	ProductID    id.ID          `db:"product_id" json:"productId"`
	FromLocation *id.ID         `db:"from_location" json:"fromLocation,omitempty"`
	ToLocation   *id.ID         `db:"to_location" json:"toLocation,omitempty"`
	Quantity     types.Quantity `db:"quantity" json:"quantity"`
	Unit         string         `db:"unit" json:"unit"`
	BatchID      *string        `db:"batch_id" json:"batchId,omitempty"`
	Lines        []MovementLine `db:"lines" json:"lines,omitempty"`
	Cost         types.Money    `db:"cost" json:"cost"`
	PerformedBy  string         `db:"performed_by" json:"performedBy"`
	Reason       string         `db:"reason" json:"reason"`
	Notes        string         `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
}

// SignedQuantityAt returns the movement quantity as seen from one location:
// positive when stock arrived there, negative when it left, zero otherwise.
func (m *Movement) SignedQuantityAt(locationID id.ID) types.Quantity {
	signed := types.Quantity{}
	if m.ToLocation != nil && *m.ToLocation == locationID {
		signed = signed.Add(m.Quantity)
	}
	if m.FromLocation != nil && *m.FromLocation == locationID {
		signed = signed.Sub(m.Quantity)
	}
	return signed
}

// Touches reports whether the movement involves locationID on either side.
func (m *Movement) Touches(locationID id.ID) bool {
	return (m.FromLocation != nil && *m.FromLocation == locationID) ||
		(m.ToLocation != nil && *m.ToLocation == locationID)
}
