package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

type lotRow struct {
	InventoryID id.ID `db:"inventory_id"`
	Position    int   `db:"position"`
	Ignored     string
	Skipped     string `db:"-"`
	hidden      string `db:"hidden"`
	entity.Batch
}

type relabelledRow struct {
	entity.Batch
	Status string `db:"status"`
}

func sampleLot() lotRow {
	expiry := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	return lotRow{
		InventoryID: id.New(),
		Position:    2,
		Ignored:     "x",
		hidden:      "y",
		Batch: entity.Batch{
			BatchID:      "L-7",
			Quantity:     types.NewQuantity(12.5),
			CostPerUnit:  types.MustMoney("3.25"),
			ReceivedDate: expiry.AddDate(0, -1, 0),
			ExpiryDate:   &expiry,
			Status:       entity.BatchAvailable,
		},
	}
}

func TestColumns_FlattensEmbeddedBatch(t *testing.T) {
	assert.Equal(t, []string{
		"inventory_id", "position",
		"batch_id", "quantity", "cost_per_unit", "received_date", "expiry_date", "status",
	}, Columns[lotRow]())

	// Callers may not corrupt the cached layout.
	cols := Columns[lotRow]()
	cols[0] = "mutated"
	assert.Equal(t, "inventory_id", Columns[*lotRow]()[0])
}

func TestColumns_OuterFieldShadowsPromoted(t *testing.T) {
	cols := Columns[relabelledRow]()
	assert.Equal(t, []string{"batch_id", "quantity", "cost_per_unit", "received_date", "expiry_date", "status"}, cols)

	m := RowMap(relabelledRow{Status: "outer", Batch: entity.Batch{Status: entity.BatchQuarantine}})
	assert.Equal(t, "outer", m["status"])
}

func TestRowMap(t *testing.T) {
	row := sampleLot()
	m := RowMap(&row)

	assert.Len(t, m, 8)
	assert.Equal(t, row.InventoryID, m["inventory_id"])
	assert.Equal(t, 2, m["position"])
	assert.Equal(t, "L-7", m["batch_id"])
	assert.True(t, types.NewQuantity(12.5).Equal(m["quantity"].(types.Quantity)))
	assert.Equal(t, row.ExpiryDate, m["expiry_date"])
	assert.Equal(t, entity.BatchAvailable, m["status"])
	assert.NotContains(t, m, "Ignored")
	assert.NotContains(t, m, "hidden")

	assert.Nil(t, RowMap(42))
	assert.Nil(t, RowMap((*lotRow)(nil)))
}

func TestRowValues_FollowsRequestedOrder(t *testing.T) {
	row := sampleLot()

	vals := RowValues(row, []string{"status", "batch_id", "position", "unknown"})
	assert.Equal(t, []any{entity.BatchAvailable, "L-7", 2, nil}, vals)

	assert.Equal(t, []any{nil}, RowValues(42, []string{"status"}))
}
