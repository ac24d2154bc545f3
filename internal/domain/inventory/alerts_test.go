package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalogs/product"
)

func alertProduct(minimum, reorder float64) *product.Product {
	p := product.New("FLR-01", "Flour", "kg")
	p.StockLevels = product.StockLevels{Minimum: q(minimum), ReorderPoint: q(reorder)}
	return p
}

func withStock(t *testing.T, qty float64, expiry *time.Time) Inventory {
	t.Helper()
	inv := New(id.New(), id.New(), "kg", t0)
	if qty == 0 {
		return inv
	}
	inv, err := inv.AddBatch(entity.Batch{BatchID: "B1", Quantity: q(qty), ReceivedDate: t0, ExpiryDate: expiry})
	require.NoError(t, err)
	return inv
}

func byType(alerts []entity.Alert, typ entity.AlertType) []entity.Alert {
	var out []entity.Alert
	for _, a := range alerts {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

func TestEvaluate_StockLevels(t *testing.T) {
	policy := DefaultAlertPolicy()

	tests := []struct {
		name     string
		qty      float64
		low      entity.Priority
		reorder  bool
		noAlerts bool
	}{
		{name: "above reorder point", qty: 20, noAlerts: true},
		{name: "at reorder point", qty: 15, reorder: true},
		{name: "below minimum", qty: 8, low: entity.PriorityHigh, reorder: true},
		{name: "at minimum", qty: 10, low: entity.PriorityHigh, reorder: true},
		{name: "empty", qty: 0, low: entity.PriorityCritical, reorder: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := policy.Evaluate(alertProduct(10, 15), withStock(t, tt.qty, nil), t0)
			if tt.noAlerts {
				assert.Empty(t, alerts)
				return
			}

			low := byType(alerts, entity.AlertLowStock)
			if tt.low == "" {
				assert.Empty(t, low)
			} else {
				require.Len(t, low, 1)
				assert.Equal(t, tt.low, low[0].Priority)
				assert.True(t, low[0].Threshold.Equal(q(10)))
				assert.True(t, low[0].CurrentValue.Equal(q(tt.qty)))
				assert.True(t, low[0].IsActive)
			}

			reorder := byType(alerts, entity.AlertReorderPoint)
			if tt.reorder {
				require.Len(t, reorder, 1)
				assert.Equal(t, entity.PriorityMedium, reorder[0].Priority)
			}
		})
	}
}

func TestEvaluate_Expiry(t *testing.T) {
	policy := DefaultAlertPolicy()
	prod := alertProduct(0, 0)

	tests := []struct {
		name     string
		expiry   time.Time
		typ      entity.AlertType
		priority entity.Priority
	}{
		{name: "expired", expiry: t0.Add(-time.Hour), typ: entity.AlertExpiredProduct, priority: entity.PriorityCritical},
		{name: "expires now", expiry: t0, typ: entity.AlertExpiredProduct, priority: entity.PriorityCritical},
		{name: "urgent", expiry: t0.AddDate(0, 0, 2), typ: entity.AlertExpiryWarning, priority: entity.PriorityHigh},
		{name: "within window", expiry: t0.AddDate(0, 0, 5), typ: entity.AlertExpiryWarning, priority: entity.PriorityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expiry := tt.expiry
			alerts := policy.Evaluate(prod, withStock(t, 3, &expiry), t0)

			require.Len(t, alerts, 1)
			a := alerts[0]
			assert.Equal(t, tt.typ, a.Type)
			assert.Equal(t, tt.priority, a.Priority)
			require.NotNil(t, a.BatchID)
			assert.Equal(t, "B1", *a.BatchID)
			assert.True(t, a.CurrentValue.Equal(q(3)))
		})
	}

	t.Run("outside window", func(t *testing.T) {
		expiry := t0.AddDate(0, 0, 30)
		assert.Empty(t, policy.Evaluate(prod, withStock(t, 3, &expiry), t0))
	})
}
