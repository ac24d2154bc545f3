package costing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/entity"
)

func TestOptimize(t *testing.T) {
	c := NewCalculator()
	rising := twoBatches()

	tests := []struct {
		name      string
		batches   []entity.Batch
		annual    float64
		objective Objective
		want      Method
		risk      RiskLevel
		trend     PriceTrend
	}{
		{"rising prices minimise cost", rising, 100, MinimizeCost, FIFO, RiskLow, TrendRising},
		{"default objective", rising, 100, "", FIFO, RiskLow, TrendRising},
		{"rising prices for tax", rising, 100, TaxOptimization, LIFO, RiskLow, TrendRising},
		{"slow cash flow", rising, 100, CashFlow, Average, RiskLow, TrendRising},
		{"fast cash flow", rising, 200, CashFlow, FIFO, RiskLow, TrendRising},
		{"slow rotation bumps risk", rising, 20, MinimizeCost, FIFO, RiskMedium, TrendRising},
		{
			"falling prices minimise cost",
			[]entity.Batch{batch("A", 5, 12, day1), batch("B", 5, 10, day1.AddDate(0, 0, 1))},
			100, MinimizeCost, LIFO, RiskLow, TrendFalling,
		},
		{
			"stable prices",
			[]entity.Batch{batch("A", 5, 10, day1), batch("B", 5, 10.1, day1.AddDate(0, 0, 1))},
			100, MinimizeCost, Average, RiskLow, TrendStable,
		},
		{
			"volatile prices",
			[]entity.Batch{batch("A", 5, 5, day1), batch("B", 5, 15, day1.AddDate(0, 0, 1))},
			100, MinimizeCost, FIFO, RiskHigh, TrendRising,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := c.Optimize(tt.batches, dec(tt.annual), tt.objective)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Method)
			assert.Equal(t, tt.risk, rec.Risk)
			assert.Equal(t, tt.trend, rec.Trend)
			assert.NotEmpty(t, rec.Reasoning)
		})
	}

	rec, err := c.Optimize(twoBatches(), dec(100), MinimizeCost)
	require.NoError(t, err)
	assert.InDelta(t, 0.0909, rec.Volatility, 1e-4)
	assert.InDelta(t, 10, rec.Rotation, 1e-9)

	_, err = c.Optimize(twoBatches(), dec(100), Objective("growth"))
	assert.Error(t, err)

	rec, err = c.Optimize(nil, dec(100), MinimizeCost)
	require.NoError(t, err)
	assert.Equal(t, FIFO, rec.Method)
}

func TestProject(t *testing.T) {
	c := NewCalculator()
	month := 30 * 24 * time.Hour
	history := []PricePoint{
		{Date: day1.Add(2 * month), Cost: dec(12)},
		{Date: day1, Cost: dec(10)},
		{Date: day1.Add(month), Cost: dec(11)},
	}

	f := c.Project(history, 2)
	assert.InDelta(t, 1, f.Slope, 1e-9)
	assert.InDelta(t, 10, f.Intercept, 1e-9)
	assert.Equal(t, month, f.Step)
	require.Len(t, f.Projections, 2)

	assert.True(t, f.Projections[0].Cost.Equal(dec(13)), "got %s", f.Projections[0].Cost)
	assert.True(t, f.Projections[1].Cost.Equal(dec(14)))
	assert.Equal(t, day1.Add(3*month), f.Projections[0].Date)
	assert.InDelta(t, 0.95, f.Projections[0].Confidence, 1e-9)
	assert.InDelta(t, 0.855, f.Projections[1].Confidence, 1e-9)
	assert.Less(t, f.Projections[1].Confidence, f.Projections[0].Confidence)

	assert.Empty(t, c.Project(history[:1], 3).Projections)
	assert.Empty(t, c.Project(nil, 3).Projections)
}

func TestMetrics(t *testing.T) {
	c := NewCalculator()
	now := day1.AddDate(0, 0, 10)

	m := c.Metrics(twoBatches(), SalesData{Revenue: dec(800), CostOfGoodsSold: dec(550), PeriodDays: 365}, now)
	assert.True(t, m.InventoryValue.Equal(dec(110)))
	assert.InDelta(t, 5, m.TurnoverRatio, 1e-9)
	assert.InDelta(t, 73, m.DaysInInventory, 1e-9)
	assert.InDelta(t, 31.25, m.GrossMarginPct, 1e-9)
	assert.InDelta(t, 9.4545, m.AverageAgeDays, 1e-4)
	assert.Equal(t, RiskLow, m.ObsolescenceRisk)

	old := []entity.Batch{batch("OLD", 10, 5, day1.AddDate(0, 0, -120))}
	m = c.Metrics(old, SalesData{}, day1)
	assert.Equal(t, RiskHigh, m.ObsolescenceRisk)
	assert.Zero(t, m.TurnoverRatio)

	expiry := day1.AddDate(0, 0, -1)
	expired := batch("EXP", 10, 5, day1.AddDate(0, 0, -5))
	expired.ExpiryDate = &expiry
	m = c.Metrics([]entity.Batch{expired}, SalesData{}, day1)
	assert.True(t, m.ExpiredValue.Equal(dec(50)))
	assert.Equal(t, RiskHigh, m.ObsolescenceRisk)
}
