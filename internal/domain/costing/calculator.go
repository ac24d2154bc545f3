package costing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/types"
)

// Line is the part of one batch a consumption used.
type Line struct {
	BatchID     string         `json:"batchId"`
	Quantity    types.Quantity `json:"quantity"`
	CostPerUnit types.Money    `json:"costPerUnit"`
	TotalCost   types.Money    `json:"totalCost"`
}

// Consumption is the cost of consuming a quantity under one method.
// When batches run out, Remaining holds the unmet quantity; deciding
// whether that is an error is up to the caller. AVERAGE tracks no layers:
// it costs the whole request at the weighted unit cost, so Consumed equals
// Requested even when Remaining is positive.
type Consumption struct {
	Method    Method         `json:"method"`
	Requested types.Quantity `json:"requested"`
	Consumed  types.Quantity `json:"consumed"`
	TotalCost types.Money    `json:"totalCost"`
	UnitCost  types.Money    `json:"unitCost"`
	Lines     []Line         `json:"lines,omitempty"`
	Remaining types.Quantity `json:"remaining"`
}

// Satisfied reports whether the whole request was covered.
func (c Consumption) Satisfied() bool {
	return c.Remaining.IsZero()
}

// Calculator is stateless and safe for concurrent use.
type Calculator struct{}

// NewCalculator creates a cost calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Available returns the batches that can be consumed, in input order.
func Available(batches []entity.Batch) []entity.Batch {
	out := make([]entity.Batch, 0, len(batches))
	for _, b := range batches {
		if b.IsAvailable() {
			out = append(out, b)
		}
	}
	return out
}

// SortForMethod returns a copy of batches in consumption order.
// Equal receive dates keep their input order.
func SortForMethod(batches []entity.Batch, m Method) []entity.Batch {
	out := append([]entity.Batch(nil), batches...)
	switch m {
	case FIFO:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ReceivedDate.Before(out[j].ReceivedDate) })
	case LIFO:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ReceivedDate.After(out[j].ReceivedDate) })
	}
	return out
}

// Calculate computes the cost of consuming qty from the available batches.
func (c *Calculator) Calculate(batches []entity.Batch, qty types.Quantity, m Method) (Consumption, error) {
	if !m.IsValid() {
		return Consumption{}, apperror.NewValidation("unknown costing method").WithDetail("method", string(m))
	}
	if qty.IsNegative() {
		return Consumption{}, apperror.NewValidation("quantity must not be negative").WithDetail("quantity", qty.String())
	}

	avail := Available(batches)
	if !m.UsesLayers() {
		return averageCost(avail, qty), nil
	}
	return layerCost(SortForMethod(avail, m), qty, m), nil
}

func layerCost(sorted []entity.Batch, qty types.Quantity, m Method) Consumption {
	res := Consumption{Method: m, Requested: qty}
	remaining := qty

	for _, b := range sorted {
		if !remaining.IsPositive() {
			break
		}
		take := types.MinQuantity(b.Quantity, remaining)
		cost := take.Mul(b.CostPerUnit)

		res.Lines = append(res.Lines, Line{
			BatchID:     b.BatchID,
			Quantity:    take,
			CostPerUnit: b.CostPerUnit,
			TotalCost:   cost,
		})
		res.Consumed = res.Consumed.Add(take)
		res.TotalCost = res.TotalCost.Add(cost)
		remaining = remaining.Sub(take)
	}

	res.Remaining = remaining
	if res.Consumed.IsPositive() {
		res.UnitCost = types.RoundMoney(res.TotalCost.Div(res.Consumed))
	}
	return res
}

func averageCost(avail []entity.Batch, qty types.Quantity) Consumption {
	res := Consumption{Method: Average, Requested: qty}

	var totalQty, totalValue decimal.Decimal
	for _, b := range avail {
		totalQty = totalQty.Add(b.Quantity)
		totalValue = totalValue.Add(b.Value())
	}
	if !totalQty.IsPositive() {
		res.Remaining = qty
		return res
	}

	res.UnitCost = totalValue.Div(totalQty)
	res.Consumed = qty
	res.TotalCost = types.RoundMoney(res.UnitCost.Mul(qty))
	res.UnitCost = types.RoundMoney(res.UnitCost)
	res.Remaining = qty.Sub(types.MinQuantity(qty, totalQty))
	return res
}

// ApplyLines returns batches with the consumed quantities deducted.
// Batches reaching zero are removed; the order of the rest is preserved.
func ApplyLines(batches []entity.Batch, lines []Line) []entity.Batch {
	taken := make(map[string]decimal.Decimal, len(lines))
	for _, l := range lines {
		taken[l.BatchID] = taken[l.BatchID].Add(l.Quantity)
	}

	out := make([]entity.Batch, 0, len(batches))
	for _, b := range batches {
		if t, ok := taken[b.BatchID]; ok && b.Status == entity.BatchAvailable {
			used := types.MinQuantity(t, b.Quantity)
			b.Quantity = b.Quantity.Sub(used)
			taken[b.BatchID] = t.Sub(used)
		}
		if b.Quantity.IsZero() {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Comparison runs every method for the same consumption.
type Comparison struct {
	Requested   types.Quantity `json:"requested"`
	Results     []Consumption  `json:"results"`
	Recommended Method         `json:"recommended"`
	Savings     types.Money    `json:"savings"`
}

// Compare recommends the cheapest method. Ties prefer FIFO, then LIFO.
func (c *Calculator) Compare(batches []entity.Batch, qty types.Quantity) (Comparison, error) {
	out := Comparison{Requested: qty}

	var minCost, maxCost types.Money
	for i, m := range Methods {
		res, err := c.Calculate(batches, qty, m)
		if err != nil {
			return Comparison{}, err
		}
		out.Results = append(out.Results, res)

		if i == 0 || res.TotalCost.LessThan(minCost) {
			minCost = res.TotalCost
			out.Recommended = m
		}
		if i == 0 || res.TotalCost.GreaterThan(maxCost) {
			maxCost = res.TotalCost
		}
	}

	out.Savings = maxCost.Sub(minCost)
	return out, nil
}

// BatchValue is the valuation of one batch.
type BatchValue struct {
	BatchID      string         `json:"batchId"`
	Quantity     types.Quantity `json:"quantity"`
	CostPerUnit  types.Money    `json:"costPerUnit"`
	Value        types.Money    `json:"value"`
	ReceivedDate time.Time      `json:"receivedDate"`
	ExpiryDate   *time.Time     `json:"expiryDate,omitempty"`
	AgeDays      int            `json:"ageDays"`
}

// Valuation sums the value of the available batches.
type Valuation struct {
	TotalQuantity types.Quantity `json:"totalQuantity"`
	TotalValue    types.Money    `json:"totalValue"`
	AverageCost   types.Money    `json:"averageCost"`
	Batches       []BatchValue   `json:"batches"`
}

// InventoryValue values the available batches and reports their age.
func (c *Calculator) InventoryValue(batches []entity.Batch, now time.Time) Valuation {
	out := Valuation{Batches: []BatchValue{}}

	for _, b := range Available(batches) {
		v := b.Value()
		out.Batches = append(out.Batches, BatchValue{
			BatchID:      b.BatchID,
			Quantity:     b.Quantity,
			CostPerUnit:  b.CostPerUnit,
			Value:        v,
			ReceivedDate: b.ReceivedDate,
			ExpiryDate:   b.ExpiryDate,
			AgeDays:      b.AgeDays(now),
		})
		out.TotalQuantity = out.TotalQuantity.Add(b.Quantity)
		out.TotalValue = out.TotalValue.Add(v)
	}

	if out.TotalQuantity.IsPositive() {
		out.AverageCost = types.RoundMoney(out.TotalValue.Div(out.TotalQuantity))
	}
	return out
}
