package costing

import (
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/types"
)

// SalesData is external sales information for the analysed period.
type SalesData struct {
	Revenue         types.Money `json:"revenue" yaml:"revenue"`
	CostOfGoodsSold types.Money `json:"costOfGoodsSold" yaml:"costOfGoodsSold"`
	PeriodDays      int         `json:"periodDays" yaml:"periodDays"`
}

// Metrics are read-only inventory analytics.
type Metrics struct {
	InventoryValue   types.Money `json:"inventoryValue"`
	TurnoverRatio    float64     `json:"turnoverRatio"`
	DaysInInventory  float64     `json:"daysInInventory"`
	GrossMarginPct   float64     `json:"grossMarginPct"`
	AverageAgeDays   float64     `json:"averageAgeDays"`
	ExpiredValue     types.Money `json:"expiredValue"`
	ObsolescenceRisk RiskLevel   `json:"obsolescenceRisk"`
}

const (
	staleAgeDays  = 30.0
	obsoleteAge   = 90.0
	expiredShare  = 0.10
	defaultPeriod = 365
)

// Metrics derives turnover, days in inventory, gross margin and
// obsolescence risk. Turnover uses the current value as the average inventory.
func (c *Calculator) Metrics(batches []entity.Batch, sales SalesData, now time.Time) Metrics {
	val := c.InventoryValue(batches, now)
	out := Metrics{InventoryValue: val.TotalValue, ObsolescenceRisk: RiskLow}

	period := sales.PeriodDays
	if period <= 0 {
		period = defaultPeriod
	}

	invValue := val.TotalValue.InexactFloat64()
	cogs := sales.CostOfGoodsSold.InexactFloat64()
	if invValue > 0 {
		out.TurnoverRatio = round4(cogs / invValue)
	}
	if out.TurnoverRatio > 0 {
		out.DaysInInventory = round4(float64(period) / out.TurnoverRatio)
	}
	if rev := sales.Revenue.InexactFloat64(); rev > 0 {
		out.GrossMarginPct = round4((rev - cogs) / rev * 100)
	}

	var weighted float64
	for _, b := range Available(batches) {
		v := b.Value().InexactFloat64()
		weighted += v * float64(b.AgeDays(now))
		if b.IsExpired(now) {
			out.ExpiredValue = out.ExpiredValue.Add(b.Value())
		}
	}
	if invValue > 0 {
		out.AverageAgeDays = round4(weighted / invValue)
	}

	switch {
	case out.AverageAgeDays > obsoleteAge:
		out.ObsolescenceRisk = RiskHigh
	case out.AverageAgeDays > staleAgeDays:
		out.ObsolescenceRisk = RiskMedium
	}
	if invValue > 0 && out.ExpiredValue.InexactFloat64()/invValue > expiredShare {
		out.ObsolescenceRisk = RiskHigh
	}
	return out
}
