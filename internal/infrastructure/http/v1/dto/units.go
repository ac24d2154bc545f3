package dto

import (
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/units"
)

// ConvertRequest is the body of POST /units/convert.
// Either Value/From or Input ("2.5 kg") is given; Items converts many at once.
type ConvertRequest struct {
	Value     *float64     `json:"value"`
	From      string       `json:"from"`
	Input     string       `json:"input"`
	To        string       `json:"to" binding:"required"`
	ProductID string       `json:"productId"`
	Items     []units.Item `json:"items"`
}

// Source resolves the single value to convert.
func (r *ConvertRequest) Source() (float64, string, error) {
	if s := strings.TrimSpace(r.Input); s != "" {
		return units.Parse(s)
	}
	if r.Value == nil || strings.TrimSpace(r.From) == "" {
		return 0, "", apperror.NewValidation("value and from, or input, are required")
	}
	return *r.Value, r.From, nil
}

// ConvertBatchResponse lists per-item outcomes of a batch conversion.
type ConvertBatchResponse struct {
	Target  string             `json:"target"`
	Results []units.ItemResult `json:"results"`
	Failed  int                `json:"failed"`
}

// SuggestRequest is the body of POST /units/suggest.
type SuggestRequest struct {
	Value     *float64 `json:"value"`
	Unit      string   `json:"unit"`
	Input     string   `json:"input"`
	ProductID string   `json:"productId"`
}

// Source resolves the value to present.
func (r *SuggestRequest) Source() (float64, string, error) {
	if s := strings.TrimSpace(r.Input); s != "" {
		return units.Parse(s)
	}
	if r.Value == nil || strings.TrimSpace(r.Unit) == "" {
		return 0, "", apperror.NewValidation("value and unit, or input, are required")
	}
	return *r.Value, r.Unit, nil
}

// ValidateUnitsRequest is the body of POST /units/validate.
type ValidateUnitsRequest struct {
	Units units.Definition `json:"units"`
}
