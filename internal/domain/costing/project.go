package costing

import (
	"math"
	"sort"
	"time"

	"stockledger/internal/core/types"
)

// PricePoint is a historical unit cost.
type PricePoint struct {
	Date time.Time   `json:"date" yaml:"date"`
	Cost types.Money `json:"cost" yaml:"cost"`
}

// Projection is one extrapolated period.
type Projection struct {
	Period     int         `json:"period"`
	Date       time.Time   `json:"date"`
	Cost       types.Money `json:"cost"`
	Confidence float64     `json:"confidence"`
}

// Forecast is a linear trend fitted over history.
type Forecast struct {
	Slope       float64       `json:"slope"`
	Intercept   float64       `json:"intercept"`
	Step        time.Duration `json:"step"`
	Projections []Projection  `json:"projections"`
}

const (
	initialConfidence = 0.95
	confidenceDecay   = 0.9
	defaultStep       = 30 * 24 * time.Hour
)

// Project fits an ordinary least-squares line over history (x is the
// point index in date order) and extrapolates periods steps ahead. The
// step is the mean interval between points. Fewer than two points yield
// an empty forecast.
func (c *Calculator) Project(history []PricePoint, periods int) Forecast {
	out := Forecast{Projections: []Projection{}}
	if len(history) < 2 || periods <= 0 {
		return out
	}

	pts := append([]PricePoint(nil), history...)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })

	n := float64(len(pts))
	var sx, sy, sxy, sxx float64
	for i, p := range pts {
		x, y := float64(i), p.Cost.InexactFloat64()
		sx += x
		sy += y
		sxy += x * y
		sxx += x * x
	}
	den := n*sxx - sx*sx
	if den != 0 {
		out.Slope = (n*sxy - sx*sy) / den
	}
	out.Intercept = (sy - out.Slope*sx) / n

	out.Step = pts[len(pts)-1].Date.Sub(pts[0].Date) / time.Duration(len(pts)-1)
	if out.Step <= 0 {
		out.Step = defaultStep
	}

	last := pts[len(pts)-1].Date
	for k := 1; k <= periods; k++ {
		x := n - 1 + float64(k)
		cost := math.Max(0, out.Intercept+out.Slope*x)
		out.Projections = append(out.Projections, Projection{
			Period:     k,
			Date:       last.Add(out.Step * time.Duration(k)),
			Cost:       types.RoundMoney(types.NewMoney(cost)),
			Confidence: round4(initialConfidence * math.Pow(confidenceDecay, float64(k-1))),
		})
	}
	return out
}
