// Package product provides the Product catalog: identity, unit graph,
// stock thresholds and default cost of every stocked item.
package product

import (
	"context"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/units"
)

// StockLevels are the alert thresholds of a product, in base units.
type StockLevels struct {
	// Minimum is the safety level; at or below it LOW_STOCK is raised.
	Minimum types.Quantity `json:"minimum"`

	// ReorderPoint triggers replenishment; never below Minimum.
	ReorderPoint types.Quantity `json:"reorderPoint"`
}

// Product is a stocked item. Inventory records reference it by ID.
type Product struct {
	ID          id.ID            `json:"id"`
	SKU         string           `json:"sku"`
	Name        string           `json:"name"`
	Barcode     string           `json:"barcode,omitempty"`
	Category    string           `json:"category,omitempty"`
	Units       units.Definition `json:"units"`
	StockLevels StockLevels      `json:"stockLevels"`

	// CostPrice is used for entries that arrive without an explicit cost.
	CostPrice types.Money `json:"costPrice"`

	IsActive  bool      `json:"isActive"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New creates an active product with a fresh ID.
func New(sku, name, baseUnit string) *Product {
	now := time.Now().UTC()
	return &Product{
		ID:        id.New(),
		SKU:       strings.TrimSpace(sku),
		Name:      strings.TrimSpace(name),
		Units:     units.Definition{Base: baseUnit},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// BaseUnit returns the normalised base unit code.
func (p *Product) BaseUnit() string {
	return units.Normalize(p.Units.Base)
}

// ConversionOptions returns converter options scoped to this product.
func (p *Product) ConversionOptions() units.Options {
	return units.Options{Definition: &p.Units, Scope: p.ID.String()}
}

// Matches reports whether search hits name, SKU or barcode (case-insensitive).
func (p *Product) Matches(search string) bool {
	q := strings.ToLower(strings.TrimSpace(search))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.SKU), q) ||
		strings.Contains(strings.ToLower(p.Barcode), q)
}

// Validate checks required fields, thresholds and the unit graph.
func (p *Product) Validate(_ context.Context) error {
	if p.SKU == "" {
		return apperror.NewValidation("sku is required").WithDetail("field", "sku")
	}
	if p.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}

	if rep := units.Validate(p.Units); !rep.Valid {
		return apperror.NewValidation("invalid unit definition").
			WithDetail("field", "units").
			WithDetail("errors", rep.Errors)
	}

	if p.StockLevels.Minimum.IsNegative() || p.StockLevels.ReorderPoint.IsNegative() {
		return apperror.NewValidation("stock levels must not be negative").WithDetail("field", "stockLevels")
	}
	if p.StockLevels.ReorderPoint.LessThan(p.StockLevels.Minimum) {
		return apperror.NewValidation("reorder point must not be below minimum").
			WithDetail("field", "stockLevels.reorderPoint")
	}

	if p.CostPrice.IsNegative() {
		return apperror.NewValidation("cost price must not be negative").WithDetail("field", "costPrice")
	}
	return nil
}
