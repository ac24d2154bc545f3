package dto

import (
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/units"
)

// CreateProductRequest is the request body for creating a product.
type CreateProductRequest struct {
	SKU         string               `json:"sku" binding:"required"`
	Name        string               `json:"name" binding:"required"`
	Barcode     string               `json:"barcode"`
	Category    string               `json:"category"`
	Units       units.Definition     `json:"units"`
	StockLevels *product.StockLevels `json:"stockLevels"`
	CostPrice   types.Money          `json:"costPrice"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateProductRequest) ToEntity() *product.Product {
	p := product.New(r.SKU, r.Name, r.Units.Base)
	p.Barcode = r.Barcode
	p.Category = r.Category
	p.Units = r.Units
	if r.StockLevels != nil {
		p.StockLevels = *r.StockLevels
	}
	p.CostPrice = r.CostPrice
	return p
}

// UpdateProductRequest is the request body for updating a product.
// Omitted fields are left unchanged.
type UpdateProductRequest struct {
	Name        *string              `json:"name"`
	Barcode     *string              `json:"barcode"`
	Category    *string              `json:"category"`
	Units       *units.Definition    `json:"units"`
	StockLevels *product.StockLevels `json:"stockLevels"`
	CostPrice   *types.Money         `json:"costPrice"`
	IsActive    *bool                `json:"isActive"`
}

// ToInput converts DTO to the service update input.
func (r *UpdateProductRequest) ToInput() product.UpdateInput {
	return product.UpdateInput{
		Name:        r.Name,
		Barcode:     r.Barcode,
		Category:    r.Category,
		Units:       r.Units,
		StockLevels: r.StockLevels,
		CostPrice:   r.CostPrice,
		IsActive:    r.IsActive,
	}
}

// ProductListQuery holds the GET /products query string.
type ProductListQuery struct {
	Search   string `form:"search"`
	Category string `form:"category"`
	PaginationRequest
}

// ToFilter converts the query string to a repository filter.
func (q *ProductListQuery) ToFilter() product.ListFilter {
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}
	return product.ListFilter{
		Search:   q.Search,
		Category: q.Category,
		Limit:    limit,
		Offset:   q.Offset(),
	}
}
