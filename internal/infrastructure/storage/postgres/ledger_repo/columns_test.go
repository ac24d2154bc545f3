package ledger_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/inventory"
	"stockledger/internal/infrastructure/storage/postgres"
)

func TestColumns(t *testing.T) {
	assert.Equal(t, []string{
		"id", "product_id", "location_id", "unit", "available", "reserved", "quarantine",
		"version", "last_movement_at", "created_at", "updated_at",
	}, inventoryColumns)
	assert.Equal(t, "inventory_id", batchColumns[0])
	assert.Contains(t, batchColumns, "position")
	assert.Contains(t, batchColumns, "expiry_date")
	assert.Contains(t, reservationColumns, "reserved_for")
	assert.Contains(t, movementColumns, "lines")
	assert.NotContains(t, alertColumns, "priority_rank")
}

func TestSortColumnsCoverEveryField(t *testing.T) {
	for _, f := range []inventory.SortField{
		inventory.SortUpdatedAt, inventory.SortCreatedAt, inventory.SortAvailable,
		inventory.SortReserved, inventory.SortQuarantine,
	} {
		require.True(t, f.IsValid())
		assert.NotEmpty(t, sortColumns[f], f)
	}
}

func TestRowValuesFollowColumnOrder(t *testing.T) {
	invID := id.New()
	received := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	row := batchRow{
		InventoryID: invID,
		Position:    3,
		Batch: entity.Batch{
			BatchID:      "B-1",
			Quantity:     types.NewQuantity(4),
			CostPerUnit:  types.MustMoney("1.5"),
			ReceivedDate: received,
			Status:       entity.BatchQuarantine,
		},
	}

	vals := postgres.RowValues(row, batchColumns)
	require.Len(t, vals, len(batchColumns))
	for i, col := range batchColumns {
		switch col {
		case "inventory_id":
			assert.Equal(t, invID, vals[i])
		case "position":
			assert.Equal(t, 3, vals[i])
		case "batch_id":
			assert.Equal(t, "B-1", vals[i])
		case "received_date":
			assert.Equal(t, received, vals[i])
		case "status":
			assert.Equal(t, entity.BatchQuarantine, vals[i])
		}
	}
}

func TestToInventoryRowCopiesTotals(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	inv := inventory.New(id.New(), id.New(), "kg", now)
	inv, err := inv.AddBatch(entity.Batch{
		BatchID:      "B-1",
		Quantity:     types.NewQuantity(10),
		CostPerUnit:  types.MustMoney("2"),
		ReceivedDate: now,
		Status:       entity.BatchAvailable,
	})
	require.NoError(t, err)

	row := toInventoryRow(&inv)
	assert.Equal(t, "kg", row.Unit)
	assert.True(t, row.Available.Equal(types.NewQuantity(10)))
	assert.True(t, row.Reserved.IsZero())
	assert.Equal(t, inv.ProductID, row.ProductID)
}
