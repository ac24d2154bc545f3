// Package inventory is the ledger orchestrator: stock adjustment, transfer,
// reservation and consumption per (product, location), each one atomic
// across the inventory record, the movement log and alert generation.
package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/costing"
)

// Reservation sets aside available quantity for a purpose.
type Reservation struct {
	ID          id.ID          `db:"id" json:"id"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	ReservedFor string         `db:"reserved_for" json:"reservedFor"`
	ExpiresAt   *time.Time     `db:"expires_at" json:"expiresAt,omitempty"`
	CreatedBy   string         `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}

// Totals is derived from batches and reservations; never trusted on its own.
type Totals struct {
	Available  types.Quantity `json:"available"`
	Reserved   types.Quantity `json:"reserved"`
	Quarantine types.Quantity `json:"quarantine"`
	Unit       string         `json:"unit"`
}

// OnHand is everything physically present at the location.
func (t Totals) OnHand() types.Quantity {
	return t.Available.Add(t.Reserved).Add(t.Quarantine)
}

// Inventory is the stock of one product at one location.
// Methods never mutate the receiver; they return an updated copy.
type Inventory struct {
	ID             id.ID          `json:"id"`
	ProductID      id.ID          `json:"productId"`
	LocationID     id.ID          `json:"locationId"`
	Batches        []entity.Batch `json:"batches"`
	Reservations   []Reservation  `json:"reservations"`
	Totals         Totals         `json:"totals"`
	Version        int            `json:"version"`
	LastMovementAt *time.Time     `json:"lastMovementAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// New returns an empty inventory; it is persisted on first entry.
func New(productID, locationID id.ID, unit string, now time.Time) Inventory {
	return Inventory{
		ID:           id.New(),
		ProductID:    productID,
		LocationID:   locationID,
		Batches:      []entity.Batch{},
		Reservations: []Reservation{},
		Totals:       Totals{Unit: unit},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Clone deep-copies the slices so the copy can be changed freely.
func (inv Inventory) Clone() Inventory {
	out := inv
	out.Batches = make([]entity.Batch, len(inv.Batches))
	for i, b := range inv.Batches {
		if b.ExpiryDate != nil {
			e := *b.ExpiryDate
			b.ExpiryDate = &e
		}
		out.Batches[i] = b
	}
	out.Reservations = make([]Reservation, len(inv.Reservations))
	for i, r := range inv.Reservations {
		if r.ExpiresAt != nil {
			e := *r.ExpiresAt
			r.ExpiresAt = &e
		}
		out.Reservations[i] = r
	}
	if inv.LastMovementAt != nil {
		t := *inv.LastMovementAt
		out.LastMovementAt = &t
	}
	return out
}

// ComputeTotals derives the totals from batches and reservations:
// Available is the available batch quantity not set aside by reservations.
func ComputeTotals(batches []entity.Batch, reservations []Reservation, unit string) Totals {
	var avail, quarantine, reserved decimal.Decimal
	for _, b := range batches {
		switch b.Status {
		case entity.BatchAvailable:
			avail = avail.Add(b.Quantity)
		case entity.BatchQuarantine:
			quarantine = quarantine.Add(b.Quantity)
		}
	}
	for _, r := range reservations {
		reserved = reserved.Add(r.Quantity)
	}
	return Totals{
		Available:  avail.Sub(reserved),
		Reserved:   reserved,
		Quarantine: quarantine,
		Unit:       unit,
	}
}

// Recompute returns a copy with totals derived from the current batches.
func (inv Inventory) Recompute() Inventory {
	out := inv.Clone()
	out.Totals = ComputeTotals(out.Batches, out.Reservations, inv.Totals.Unit)
	return out
}

// HasBatch reports whether a batch with batchID is held.
func (inv Inventory) HasBatch(batchID string) bool {
	for _, b := range inv.Batches {
		if b.BatchID == batchID {
			return true
		}
	}
	return false
}

// AddBatch appends a newly received batch.
func (inv Inventory) AddBatch(b entity.Batch) (Inventory, error) {
	if !b.Quantity.IsPositive() {
		return inv, apperror.NewValidation("batch quantity must be positive").WithDetail("batch_id", b.BatchID)
	}
	if inv.HasBatch(b.BatchID) {
		return inv, apperror.NewConflict("batch already exists at this location").WithDetail("batch_id", b.BatchID)
	}
	if b.Status == "" {
		b.Status = entity.BatchAvailable
	}

	out := inv.Clone()
	out.Batches = append(out.Batches, b)
	return out.Recompute(), nil
}

// Receive appends batches moved in from elsewhere. A held available batch
// of the same lot absorbs the incoming quantity. A held batch that shares
// the ID but differs in cost, dates or status is a different lot, and the
// move is rejected.
func (inv Inventory) Receive(batches []entity.Batch) (Inventory, error) {
	out := inv.Clone()
	for _, in := range batches {
		if !in.Quantity.IsPositive() {
			return inv, apperror.NewValidation("batch quantity must be positive").WithDetail("batch_id", in.BatchID)
		}
		idx := -1
		for i := range out.Batches {
			if out.Batches[i].BatchID == in.BatchID {
				idx = i
				break
			}
		}
		if idx < 0 {
			out.Batches = append(out.Batches, in)
			continue
		}
		held := out.Batches[idx]
		if !held.SameLot(in) || held.Status != in.Status {
			return inv, apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"destination holds a different lot under the same batch id").
				WithDetail("batch_id", in.BatchID).
				WithDetail("held_cost", held.CostPerUnit.String()).
				WithDetail("incoming_cost", in.CostPerUnit.String())
		}
		out.Batches[idx].Quantity = held.Quantity.Add(in.Quantity)
	}
	return out.Recompute(), nil
}

var fifo = costing.NewCalculator()

// Withdraw consumes qty from the available batches, oldest first.
// It fails with INSUFFICIENT_STOCK when qty exceeds Totals.Available, so
// reserved quantity is never consumed by a plain withdrawal.
func (inv Inventory) Withdraw(qty types.Quantity) (Inventory, costing.Consumption, error) {
	if !qty.IsPositive() {
		return inv, costing.Consumption{}, apperror.NewValidation("quantity must be positive")
	}

	cur := inv.Recompute()
	if cur.Totals.Available.LessThan(qty) {
		return inv, costing.Consumption{}, insufficient(inv.ProductID, qty, cur.Totals.Available)
	}

	cons, err := fifo.Calculate(cur.Batches, qty, costing.FIFO)
	if err != nil {
		return inv, costing.Consumption{}, err
	}
	if !cons.Satisfied() {
		return inv, costing.Consumption{}, insufficient(inv.ProductID, qty, cons.Consumed)
	}

	out := cur.Clone()
	out.Batches = costing.ApplyLines(out.Batches, cons.Lines)
	return out.Recompute(), cons, nil
}

// Reserve sets aside r.Quantity of the available stock.
func (inv Inventory) Reserve(r Reservation) (Inventory, error) {
	if !r.Quantity.IsPositive() {
		return inv, apperror.NewValidation("reservation quantity must be positive")
	}

	cur := inv.Recompute()
	if cur.Totals.Available.LessThan(r.Quantity) {
		return inv, insufficient(inv.ProductID, r.Quantity, cur.Totals.Available)
	}

	out := cur.Clone()
	out.Reservations = append(out.Reservations, r)
	return out.Recompute(), nil
}

// Reservation returns the reservation with reservationID.
func (inv Inventory) Reservation(reservationID id.ID) (Reservation, bool) {
	for _, r := range inv.Reservations {
		if r.ID == reservationID {
			return r, true
		}
	}
	return Reservation{}, false
}

// Release returns qty of a reservation to available stock; a zero qty
// releases all of it. The updated reservation is returned with the
// quantity still held (zero once fully released).
func (inv Inventory) Release(reservationID id.ID, qty types.Quantity) (Inventory, Reservation, error) {
	r, ok := inv.Reservation(reservationID)
	if !ok {
		return inv, Reservation{}, apperror.NewNotFound("reservation", reservationID)
	}
	if qty.IsNegative() {
		return inv, Reservation{}, apperror.NewValidation("release quantity must not be negative")
	}
	if qty.IsZero() {
		qty = r.Quantity
	}
	if qty.GreaterThan(r.Quantity) {
		return inv, Reservation{}, apperror.NewValidation("release quantity exceeds reservation").
			WithDetail("reserved", r.Quantity.String()).
			WithDetail("requested", qty.String())
	}

	out := inv.Clone()
	kept := out.Reservations[:0]
	for _, x := range out.Reservations {
		if x.ID == reservationID {
			x.Quantity = x.Quantity.Sub(qty)
			r = x
			if x.Quantity.IsZero() {
				continue
			}
		}
		kept = append(kept, x)
	}
	out.Reservations = kept
	return out.Recompute(), r, nil
}

func insufficient(productID id.ID, requested, available types.Quantity) error {
	shortfall := requested.Sub(available)
	return apperror.NewInsufficientStock(productID.String(), requested.String(), available.String(), shortfall.String())
}
