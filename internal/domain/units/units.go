// Package units converts quantities between units of measure.
//
// Factors come from, in order: identity, a product's own unit graph,
// the standard volume/weight/count tables, and finally a two-hop search
// through a fixed set of intermediate units.
package units

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Dimension groups units that can be converted into each other.
type Dimension string

const (
	DimensionVolume  Dimension = "volume"
	DimensionWeight  Dimension = "weight"
	DimensionCount   Dimension = "count"
	DimensionUnknown Dimension = "unknown"
)

// Alternative is a non-base unit of a product.
// One Alternative equals ConversionFactor base units.
type Alternative struct {
	Code             string  `json:"code" yaml:"code"`
	Name             string  `json:"name,omitempty" yaml:"name,omitempty"`
	ConversionFactor float64 `json:"conversionFactor" yaml:"conversionFactor"`
}

// Definition is a product unit graph: one base unit plus alternatives.
type Definition struct {
	Base         string        `json:"base" yaml:"base"`
	Alternatives []Alternative `json:"alternatives,omitempty" yaml:"alternatives,omitempty"`
}

// Codes returns the normalised base code followed by every alternative code.
func (d *Definition) Codes() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.Alternatives)+1)
	if b := Normalize(d.Base); b != "" {
		out = append(out, b)
	}
	for _, a := range d.Alternatives {
		if c := Normalize(a.Code); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// factorToBase returns how many base units one `code` is worth.
func (d *Definition) factorToBase(code string) (float64, bool) {
	if d == nil {
		return 0, false
	}
	if code == Normalize(d.Base) {
		return 1, true
	}
	for _, a := range d.Alternatives {
		if Normalize(a.Code) == code && isUsableFactor(a.ConversionFactor) {
			return a.ConversionFactor, true
		}
	}
	return 0, false
}

func isUsableFactor(f float64) bool {
	return f > 0 && !math.IsNaN(f) && !math.IsInf(f, 0)
}

// GenericUnit is the count unit every piece-like alias maps to.
const GenericUnit = "unit"

var aliases = map[string]string{
	"lt": "l", "ltr": "l", "liter": "l", "litre": "l", "liters": "l", "litres": "l", "litro": "l", "litros": "l",
	"mls": "ml", "milliliter": "ml", "millilitre": "ml", "mililitro": "ml",
	"gr": "g", "grs": "g", "gram": "g", "grams": "g", "gramo": "g", "gramos": "g",
	"kgs": "kg", "kilo": "kg", "kilos": "kg", "kilogram": "kg", "kilogramo": "kg",
	"lbs": "lb", "pound": "lb", "pounds": "lb", "libra": "lb",
	"ounce": "oz", "ounces": "oz", "onza": "oz",
	"fl oz": "floz", "fl.oz": "floz",
	"gallon": "gal", "galon": "gal",
	"cups": "cup", "taza": "cup",
	"tablespoon": "tbsp", "cucharada": "tbsp",
	"teaspoon": "tsp", "cucharadita": "tsp",
	"u": "unit", "un": "unit", "ud": "unit", "und": "unit", "uds": "unit", "units": "unit",
	"unidad": "unit", "unidades": "unit", "pc": "unit", "pcs": "unit", "piece": "unit", "pieces": "unit", "ea": "unit",
	"dz": "dozen", "docena": "dozen",
}

// Normalize canonicalises a unit code: NFC, trimmed, case folded and alias mapped.
func Normalize(code string) string {
	c := strings.TrimSpace(norm.NFC.String(code))
	if c == "" {
		return ""
	}
	c = cases.Fold().String(c)
	if a, ok := aliases[c]; ok {
		return a
	}
	return c
}

type tableEntry struct {
	to     string
	factor float64
}

// standard maps from-unit → to-unit factors. Only the forward direction is
// stored; the converter tries the inverse itself.
var standard = map[string][]tableEntry{
	// volume
	"l":    {{"ml", 1000}},
	"cl":   {{"ml", 10}},
	"dl":   {{"ml", 100}},
	"m3":   {{"l", 1000}},
	"gal":  {{"l", 3.78541}},
	"cup":  {{"ml", 236.588}},
	"tbsp": {{"ml", 14.7868}},
	"tsp":  {{"ml", 4.92892}},
	"floz": {{"ml", 29.5735}},
	// weight
	"t":  {{"kg", 1000}},
	"kg": {{"g", 1000}},
	"g":  {{"mg", 1000}},
	"lb": {{"g", 453.592}},
	"oz": {{"g", 28.3495}},
	// count
	"dozen": {{"unit", 12}},
}

var dimensions = map[string]Dimension{
	"ml": DimensionVolume, "l": DimensionVolume, "cl": DimensionVolume, "dl": DimensionVolume,
	"m3": DimensionVolume, "gal": DimensionVolume, "cup": DimensionVolume, "tbsp": DimensionVolume,
	"tsp": DimensionVolume, "floz": DimensionVolume,
	"mg": DimensionWeight, "g": DimensionWeight, "kg": DimensionWeight, "t": DimensionWeight,
	"lb": DimensionWeight, "oz": DimensionWeight,
	"unit": DimensionCount, "dozen": DimensionCount,
}

// intermediates are tried, in order, by the two-hop search.
var intermediates = []string{"ml", "l", "g", "kg", GenericUnit}

// common units get a bonus when suggesting a display unit.
var common = map[string]bool{"ml": true, "l": true, "g": true, "kg": true, GenericUnit: true}

// DimensionOf reports the dimension of a standard unit code.
func DimensionOf(code string) Dimension {
	if d, ok := dimensions[Normalize(code)]; ok {
		return d
	}
	return DimensionUnknown
}

// dimensionIn resolves the dimension of code, letting product alternatives
// inherit the dimension of their base unit.
func dimensionIn(code string, def *Definition) Dimension {
	if d, ok := dimensions[code]; ok {
		return d
	}
	if def != nil {
		if _, ok := def.factorToBase(code); ok {
			if d, ok := dimensions[Normalize(def.Base)]; ok {
				return d
			}
		}
	}
	return DimensionUnknown
}

// StandardUnits lists the codes known to the standard tables.
func StandardUnits() []string {
	out := make([]string, 0, len(dimensions))
	for c := range dimensions {
		out = append(out, c)
	}
	return out
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
