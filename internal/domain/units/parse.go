package units

import (
	"regexp"
	"strconv"
	"strings"

	"stockledger/internal/core/apperror"
)

var quantityPattern = regexp.MustCompile(`^([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)\s*(\S.*)$`)

// Parse splits a "value unit" string such as "2.5 kg" or "500ml".
// A decimal comma is accepted when no dot is present.
func Parse(s string) (float64, string, error) {
	in := strings.TrimSpace(s)
	if !strings.Contains(in, ".") {
		in = strings.Replace(in, ",", ".", 1)
	}

	m := quantityPattern.FindStringSubmatch(in)
	if m == nil {
		return 0, "", apperror.NewConversion("expected \"<value> <unit>\"").WithDetail("input", s)
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", apperror.NewConversion("invalid number").WithDetail("input", s).WithCause(err)
	}
	return v, Normalize(m[2]), nil
}

// Format renders value and unit so that Parse reads them back.
func Format(value float64, unit string) string {
	return strconv.FormatFloat(round6(value), 'f', -1, 64) + " " + Normalize(unit)
}
