package units

import (
	"fmt"
	"math"
	"sort"

	"stockledger/internal/core/apperror"
)

// Candidate is one scored display option.
type Candidate struct {
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
	Score float64 `json:"score"`
}

// Suggestion is the best display unit for a value plus the ranked alternatives.
type Suggestion struct {
	Candidate
	Candidates []Candidate `json:"candidates"`
}

// Suggest picks the unit that shows value most readably: a magnitude in
// [1, 1000) scores best and common units get a small bonus.
func (c *Converter) Suggest(value float64, unit string, opts Options) (Suggestion, error) {
	from := Normalize(unit)
	if from == "" {
		return Suggestion{}, apperror.NewConversion("unit code is required")
	}
	opts.AllowNegative = true

	dim := dimensionIn(from, opts.Definition)
	if dim == DimensionUnknown && opts.Definition == nil {
		return Suggestion{}, apperror.NewConversion(fmt.Sprintf("unknown unit %q", unit)).
			WithDetail("unit", unit)
	}

	seen := map[string]bool{}
	var ranked []Candidate
	consider := func(code string) {
		if seen[code] {
			return
		}
		seen[code] = true
		if dimensionIn(code, opts.Definition) != dim {
			return
		}
		res, err := c.Convert(value, from, code, opts)
		if err != nil {
			return
		}
		score := magnitudeScore(res.Value)
		if common[code] {
			score += 2
		}
		ranked = append(ranked, Candidate{Unit: code, Value: res.Value, Score: round6(score)})
	}

	consider(from)
	for _, code := range opts.Definition.Codes() {
		consider(code)
	}
	for _, code := range StandardUnits() {
		consider(code)
	}

	if len(ranked) == 0 {
		return Suggestion{}, conversionError("value cannot be displayed", value, unit, unit)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Unit < ranked[j].Unit
	})

	return Suggestion{Candidate: ranked[0], Candidates: ranked}, nil
}

func magnitudeScore(v float64) float64 {
	a := math.Abs(v)
	switch {
	case a == 0:
		return 0
	case a >= 1 && a < 1000:
		return 10
	case a < 1:
		return 10 + 3*math.Log10(a)
	default:
		return 10 - 3*(math.Log10(a)-3)
	}
}

// ValidationReport lists problems of a unit graph.
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate checks a product unit graph for missing base, duplicate codes,
// alternatives that point back to the base and unusable factors.
func Validate(def Definition) ValidationReport {
	rep := ValidationReport{Errors: []string{}, Warnings: []string{}}

	base := Normalize(def.Base)
	if base == "" {
		rep.Errors = append(rep.Errors, "base unit is required")
	}

	seen := map[string]bool{}
	for i, a := range def.Alternatives {
		code := Normalize(a.Code)
		switch {
		case code == "":
			rep.Errors = append(rep.Errors, fmt.Sprintf("alternative #%d has no code", i+1))
			continue
		case code == base:
			rep.Errors = append(rep.Errors, fmt.Sprintf("alternative %q is the base unit (circular)", a.Code))
		case seen[code]:
			rep.Errors = append(rep.Errors, fmt.Sprintf("duplicate unit code %q", a.Code))
		}
		seen[code] = true

		if !isUsableFactor(a.ConversionFactor) {
			rep.Errors = append(rep.Errors, fmt.Sprintf("unit %q has invalid conversion factor %v", a.Code, a.ConversionFactor))
			continue
		}
		if a.ConversionFactor == 1 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("unit %q has factor 1 and duplicates the base unit", a.Code))
		}
		if std, ok := tableFactor(code, base); ok && math.Abs(std-a.ConversionFactor) > 1e-6*std {
			rep.Warnings = append(rep.Warnings,
				fmt.Sprintf("unit %q factor %v differs from standard factor %v", a.Code, a.ConversionFactor, round6(std)))
		}
	}

	rep.Valid = len(rep.Errors) == 0
	return rep
}
