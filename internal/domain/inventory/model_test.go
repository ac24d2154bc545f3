package inventory

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
)

var t0 = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func q(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func stocked(t *testing.T) Inventory {
	t.Helper()
	inv := New(id.New(), id.New(), "kg", t0)

	var err error
	inv, err = inv.AddBatch(entity.Batch{BatchID: "B1", Quantity: q(5), CostPerUnit: q(10), ReceivedDate: t0.AddDate(0, 0, -2)})
	require.NoError(t, err)
	inv, err = inv.AddBatch(entity.Batch{BatchID: "B2", Quantity: q(5), CostPerUnit: q(12), ReceivedDate: t0.AddDate(0, 0, -1)})
	require.NoError(t, err)
	return inv
}

func TestAddBatch(t *testing.T) {
	inv := stocked(t)
	assert.True(t, inv.Totals.Available.Equal(q(10)))
	assert.Equal(t, entity.BatchAvailable, inv.Batches[0].Status)

	_, err := inv.AddBatch(entity.Batch{BatchID: "B1", Quantity: q(1)})
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))

	_, err = inv.AddBatch(entity.Batch{BatchID: "B3", Quantity: q(0)})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestWithdraw_OldestFirst(t *testing.T) {
	inv := stocked(t)

	next, cons, err := inv.Withdraw(q(7))
	require.NoError(t, err)
	assert.True(t, cons.TotalCost.Equal(q(74)))
	require.Len(t, next.Batches, 1)
	assert.Equal(t, "B2", next.Batches[0].BatchID)
	assert.True(t, next.Totals.Available.Equal(q(3)))

	// receiver untouched
	assert.True(t, inv.Totals.Available.Equal(q(10)))
	assert.Len(t, inv.Batches, 2)
}

func TestWithdraw_Insufficient(t *testing.T) {
	inv := stocked(t)

	_, _, err := inv.Withdraw(q(11))
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, "11", appErr.Details["requested"])
	assert.Equal(t, "10", appErr.Details["available"])
	assert.Equal(t, "1", appErr.Details["shortfall"])
}

func TestWithdraw_SkipsQuarantine(t *testing.T) {
	inv := stocked(t)
	inv, err := inv.AddBatch(entity.Batch{BatchID: "Q1", Quantity: q(4), CostPerUnit: q(1), ReceivedDate: t0.AddDate(0, 0, -5), Status: entity.BatchQuarantine})
	require.NoError(t, err)
	assert.True(t, inv.Totals.Quarantine.Equal(q(4)))
	assert.True(t, inv.Totals.OnHand().Equal(q(14)))

	_, _, err = inv.Withdraw(q(12))
	assert.True(t, apperror.IsInsufficientStock(err))

	_, cons, err := inv.Withdraw(q(5))
	require.NoError(t, err)
	require.Len(t, cons.Lines, 1)
	assert.Equal(t, "B1", cons.Lines[0].BatchID)
}

func TestReserveAndRelease(t *testing.T) {
	inv := stocked(t)
	r := Reservation{ID: id.New(), Quantity: q(4), ReservedFor: "order-1", CreatedAt: t0}

	inv, err := inv.Reserve(r)
	require.NoError(t, err)
	assert.True(t, inv.Totals.Available.Equal(q(6)))
	assert.True(t, inv.Totals.Reserved.Equal(q(4)))
	assert.True(t, inv.Totals.OnHand().Equal(q(10)))

	_, _, err = inv.Withdraw(q(7))
	assert.True(t, apperror.IsInsufficientStock(err), "reserved stock must not be withdrawn")

	_, err = inv.Reserve(Reservation{ID: id.New(), Quantity: q(7)})
	assert.True(t, apperror.IsInsufficientStock(err))

	partial, left, err := inv.Release(r.ID, q(1))
	require.NoError(t, err)
	assert.True(t, left.Quantity.Equal(q(3)))
	assert.True(t, partial.Totals.Available.Equal(q(7)))

	_, _, err = partial.Release(r.ID, q(5))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	full, left, err := partial.Release(r.ID, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, left.Quantity.IsZero())
	assert.Empty(t, full.Reservations)
	assert.True(t, full.Totals.Available.Equal(q(10)))

	_, _, err = full.Release(r.ID, decimal.Zero)
	assert.True(t, apperror.IsNotFound(err))
}

func TestReceive_MergesSameLot(t *testing.T) {
	inv := stocked(t)
	expiry := t0.AddDate(0, 1, 0)
	held := inv.Batches[0]

	out, err := inv.Receive([]entity.Batch{
		held.WithQuantity(q(2)),
		{BatchID: "T9", Quantity: q(3), CostPerUnit: q(8), ReceivedDate: t0, ExpiryDate: &expiry, Status: entity.BatchAvailable},
	})
	require.NoError(t, err)

	require.Len(t, out.Batches, 3)
	assert.True(t, out.Batches[0].Quantity.Equal(q(7)))
	assert.True(t, out.Batches[0].CostPerUnit.Equal(q(10)))
	assert.True(t, out.Totals.Available.Equal(q(15)))
}

func TestReceive_RejectsDifferentLot(t *testing.T) {
	inv := stocked(t)
	held := inv.Batches[0]
	expiry := t0.AddDate(0, 1, 0)

	priced := held.WithQuantity(q(2))
	priced.CostPerUnit = q(99)
	later := held.WithQuantity(q(2))
	later.ReceivedDate = t0
	expiring := held.WithQuantity(q(2))
	expiring.ExpiryDate = &expiry
	quarantined := held.WithQuantity(q(2))
	quarantined.Status = entity.BatchQuarantine

	for name, in := range map[string]entity.Batch{
		"cost":     priced,
		"received": later,
		"expiry":   expiring,
		"status":   quarantined,
	} {
		t.Run(name, func(t *testing.T) {
			out, err := inv.Receive([]entity.Batch{in})
			assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))
			assert.True(t, out.Totals.Available.Equal(q(10)))
			assert.True(t, out.Batches[0].Quantity.Equal(q(5)))
		})
	}
}

func TestClone_IsDeep(t *testing.T) {
	expiry := t0.AddDate(0, 0, 3)
	inv := New(id.New(), id.New(), "kg", t0)
	inv, err := inv.AddBatch(entity.Batch{BatchID: "B1", Quantity: q(1), ExpiryDate: &expiry, ReceivedDate: t0})
	require.NoError(t, err)

	c := inv.Clone()
	c.Batches[0].Quantity = q(50)
	*c.Batches[0].ExpiryDate = t0

	assert.True(t, inv.Batches[0].Quantity.Equal(q(1)))
	assert.True(t, inv.Batches[0].ExpiryDate.Equal(expiry))
}
