package units

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
)

func flourUnits() *Definition {
	return &Definition{
		Base: "kg",
		Alternatives: []Alternative{
			{Code: "bag", Name: "Bag 25kg", ConversionFactor: 25},
			{Code: "box", Name: "Box 12kg", ConversionFactor: 12},
		},
	}
}

func TestConvert_StandardTables(t *testing.T) {
	c := NewConverter(nil)

	tests := []struct {
		name  string
		value float64
		from  string
		to    string
		want  float64
	}{
		{"identity", 3.5, "kg", "kg", 3.5},
		{"forward", 2, "l", "ml", 2000},
		{"inverse", 2500, "g", "kg", 2.5},
		{"two hop volume", 1, "gal", "ml", 3785.41},
		{"two hop weight", 1, "lb", "kg", 0.453592},
		{"count", 2, "dozen", "unit", 24},
		{"aliases", 1, "Lt", "ML", 1000},
		{"spanish alias", 3, "Kilos", "gramos", 3000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Convert(tt.value, tt.from, tt.to, Options{})
			require.NoError(t, err)
			assert.InDelta(t, tt.want, res.Value, 1e-9)
		})
	}
}

func TestConvert_ProductGraph(t *testing.T) {
	c := NewConverter(nil)
	opts := Options{Definition: flourUnits(), Scope: "flour"}

	res, err := c.Convert(2, "bag", "kg", opts)
	require.NoError(t, err)
	assert.Equal(t, 50.0, res.Value)
	assert.Equal(t, 25.0, res.Factor)

	res, err = c.Convert(60, "kg", "box", opts)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Value)

	res, err = c.Convert(2, "bag", "box", opts)
	require.NoError(t, err)
	assert.Equal(t, 4.166667, res.Value)

	// bag → kg from the product, kg → g from the tables
	res, err = c.Convert(1, "bag", "g", opts)
	require.NoError(t, err)
	assert.InDelta(t, 25000, res.Value, 1e-9)
}

func TestConvert_InputErrors(t *testing.T) {
	c := NewConverter(nil)

	_, err := c.Convert(math.NaN(), "kg", "g", Options{})
	assert.True(t, apperror.HasCode(err, apperror.CodeConversion))

	_, err = c.Convert(math.Inf(1), "kg", "g", Options{})
	assert.True(t, apperror.HasCode(err, apperror.CodeConversion))

	_, err = c.Convert(-1, "kg", "g", Options{})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConversion, appErr.Code)
	assert.Equal(t, "-1", appErr.Details["value"])
	assert.Equal(t, "kg", appErr.Details["from"])

	res, err := c.Convert(-1, "kg", "g", Options{AllowNegative: true})
	require.NoError(t, err)
	assert.Equal(t, -1000.0, res.Value)

	_, err = c.Convert(1, "", "g", Options{})
	assert.True(t, apperror.HasCode(err, apperror.CodeConversion))

	_, err = c.Convert(1, "kg", "ml", Options{})
	assert.True(t, apperror.HasCode(err, apperror.CodeNoConversionPath))

	_, err = c.Convert(1, "parsec", "kg", Options{})
	assert.True(t, apperror.HasCode(err, apperror.CodeNoConversionPath))
}

func TestConvert_RoundTripWithinProductGraph(t *testing.T) {
	c := NewConverter(nil)
	def := flourUnits()
	opts := Options{Definition: def, Scope: "flour"}
	codes := append(def.Codes(), "g")

	for _, a := range codes {
		for _, b := range codes {
			for _, v := range []float64{1, 2.5, 10, 37.25} {
				there, err := c.Convert(v, a, b, opts)
				require.NoError(t, err)
				back, err := c.Convert(there.Value, b, a, opts)
				require.NoError(t, err)

				// the intermediate result is rounded to 6 decimals once
				tolerance := 5e-7*(1+back.Factor) + 1e-9
				assert.InDelta(t, v, back.Value, tolerance, "%v %s → %s → %s", v, a, b, a)
			}
		}
	}
}

func TestFactorCache_ScopesAndInvalidation(t *testing.T) {
	c := NewConverter(nil)
	def := flourUnits()
	opts := Options{Definition: def, Scope: "flour"}

	_, err := c.Convert(1, "bag", "kg", opts)
	require.NoError(t, err)
	_, err = c.Convert(1, "bag", "kg", opts)
	require.NoError(t, err)

	stats := c.Cache().Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)

	// stale until the scope is invalidated
	def.Alternatives[0].ConversionFactor = 20
	res, _ := c.Convert(1, "bag", "kg", opts)
	assert.Equal(t, 25.0, res.Value)

	c.Cache().Invalidate("flour")
	res, _ = c.Convert(1, "bag", "kg", opts)
	assert.Equal(t, 20.0, res.Value)

	// a graph without scope is never cached
	before := c.Cache().Stats().Entries
	_, err = c.Convert(1, "box", "kg", Options{Definition: def})
	require.NoError(t, err)
	assert.Equal(t, before, c.Cache().Stats().Entries)

	c.Cache().Clear()
	assert.Zero(t, c.Cache().Stats().Entries)
}

func TestFactorCache_ConcurrentUse(t *testing.T) {
	c := NewConverter(nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%8 == 0 {
				c.Cache().Invalidate(GlobalScope)
			}
			res, err := c.Convert(1, "gal", "ml", Options{})
			assert.NoError(t, err)
			assert.InDelta(t, 3785.41, res.Value, 1e-9)
		}(i)
	}
	wg.Wait()
}

func TestConvertBatch_FailuresDoNotAbort(t *testing.T) {
	c := NewConverter(nil)

	out := c.ConvertBatch([]Item{
		{Value: 1, Unit: "l"},
		{Value: 2, Unit: "kg"},
		{Value: 500, Unit: "ml"},
	}, "ml", Options{})

	require.Len(t, out, 3)
	assert.Equal(t, 1000.0, out[0].Result.Value)
	assert.Nil(t, out[1].Result)
	assert.True(t, apperror.HasCode(out[1].Err, apperror.CodeNoConversionPath))
	assert.NotEmpty(t, out[1].Error)
	assert.Equal(t, 500.0, out[2].Result.Value)
}

func TestDimensionOf(t *testing.T) {
	assert.Equal(t, DimensionVolume, DimensionOf("Litros"))
	assert.Equal(t, DimensionWeight, DimensionOf("lb"))
	assert.Equal(t, DimensionCount, DimensionOf("pcs"))
	assert.Equal(t, DimensionUnknown, DimensionOf("bag"))
}
