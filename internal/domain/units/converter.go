package units

import (
	"fmt"
	"math"

	"stockledger/internal/core/apperror"
)

// Options tune a single conversion.
type Options struct {
	// Definition is the product unit graph consulted before the standard tables.
	Definition *Definition

	// Scope is the cache scope for Definition, normally the product ID.
	// A Definition without Scope is resolved but never cached.
	Scope string

	// AllowNegative permits signed adjustment deltas.
	AllowNegative bool
}

// Result is a successful conversion.
type Result struct {
	Value  float64 `json:"value"`
	Factor float64 `json:"factor"`
	From   string  `json:"from"`
	To     string  `json:"to"`
}

// Converter resolves conversion factors and applies them.
// It is safe for concurrent use.
type Converter struct {
	cache *FactorCache
}

// NewConverter creates a converter backed by cache (a fresh cache when nil).
func NewConverter(cache *FactorCache) *Converter {
	if cache == nil {
		cache = NewFactorCache()
	}
	return &Converter{cache: cache}
}

// Cache exposes the factor cache for invalidation and stats.
func (c *Converter) Cache() *FactorCache {
	return c.cache
}

// Convert converts value from one unit to another, rounding to 6 decimals.
func (c *Converter) Convert(value float64, from, to string, opts Options) (Result, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Result{}, conversionError("value must be a finite number", value, from, to)
	}
	if value < 0 && !opts.AllowNegative {
		return Result{}, conversionError("negative values are not allowed", value, from, to)
	}

	factor, err := c.Factor(from, to, opts)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Value:  round6(value * factor),
		Factor: factor,
		From:   Normalize(from),
		To:     Normalize(to),
	}, nil
}

// Factor returns the multiplier f such that value_to = value_from × f.
func (c *Converter) Factor(from, to string, opts Options) (float64, error) {
	f, t := Normalize(from), Normalize(to)
	if f == "" || t == "" {
		return 0, apperror.NewConversion("unit code is required").
			WithDetail("from", from).
			WithDetail("to", to)
	}
	if f == t {
		return 1, nil
	}

	scope, cacheable := cacheScope(opts)
	if cacheable {
		if v, ok := c.cache.Get(scope, f, t); ok {
			return v, nil
		}
	}

	factor, ok := resolve(f, t, opts.Definition)
	if !ok {
		return 0, apperror.NewNoConversionPath(from, to)
	}

	if cacheable {
		c.cache.Put(scope, f, t, factor)
	}
	return factor, nil
}

// Item is one input of ConvertBatch.
type Item struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// ItemResult is the outcome of converting one Item.
type ItemResult struct {
	Index  int     `json:"index"`
	Input  Item    `json:"input"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
	Error  string  `json:"error,omitempty"`
}

// ConvertBatch converts every item to target. A failing item never aborts the others.
func (c *Converter) ConvertBatch(items []Item, target string, opts Options) []ItemResult {
	out := make([]ItemResult, len(items))
	for i, it := range items {
		out[i] = ItemResult{Index: i, Input: it}
		res, err := c.Convert(it.Value, it.Unit, target, opts)
		if err != nil {
			out[i].Err = err
			out[i].Error = err.Error()
			continue
		}
		out[i].Result = &res
	}
	return out
}

func cacheScope(opts Options) (string, bool) {
	if opts.Definition == nil {
		return GlobalScope, true
	}
	if opts.Scope == "" {
		return "", false
	}
	return opts.Scope, true
}

func conversionError(msg string, value float64, from, to string) error {
	return apperror.NewConversion(msg).
		WithDetail("value", fmt.Sprint(value)).
		WithDetail("from", from).
		WithDetail("to", to)
}

// resolve finds a factor between two normalised, distinct codes.
func resolve(from, to string, def *Definition) (float64, bool) {
	if f, ok := direct(from, to, def); ok {
		return f, true
	}

	for _, mid := range intermediates {
		if mid == from || mid == to {
			continue
		}
		f1, ok := direct(from, mid, def)
		if !ok {
			continue
		}
		f2, ok := direct(mid, to, def)
		if !ok {
			continue
		}
		return f1 * f2, true
	}
	return 0, false
}

func direct(from, to string, def *Definition) (float64, bool) {
	if from == to {
		return 1, true
	}
	if f, ok := productFactor(from, to, def); ok {
		return f, true
	}
	return tableFactor(from, to)
}

// productFactor composes through the base: from → base → to.
func productFactor(from, to string, def *Definition) (float64, bool) {
	fromBase, ok := def.factorToBase(from)
	if !ok {
		return 0, false
	}
	toBase, ok := def.factorToBase(to)
	if !ok {
		return 0, false
	}
	return fromBase / toBase, true
}

func tableFactor(from, to string) (float64, bool) {
	for _, e := range standard[from] {
		if e.to == to {
			return e.factor, true
		}
	}
	for _, e := range standard[to] {
		if e.to == from {
			return 1 / e.factor, true
		}
	}
	return 0, false
}
