package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/units"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// UnitsHandler exposes the unit converter.
type UnitsHandler struct {
	*BaseHandler
	converter *units.Converter
	products  *product.Service
}

// NewUnitsHandler creates a new units handler.
func NewUnitsHandler(base *BaseHandler, converter *units.Converter, products *product.Service) *UnitsHandler {
	return &UnitsHandler{BaseHandler: base, converter: converter, products: products}
}

// options resolves the product unit graph when a product is named.
func (h *UnitsHandler) options(ctx context.Context, rawProductID string) (units.Options, error) {
	productID, err := dto.ParseOptionalID("productId", rawProductID)
	if err != nil || productID == nil {
		return units.Options{}, err
	}
	p, err := h.products.Get(ctx, *productID)
	if err != nil {
		return units.Options{}, err
	}
	return p.ConversionOptions(), nil
}

// Convert handles POST /units/convert
func (h *UnitsHandler) Convert(c *gin.Context) {
	var req dto.ConvertRequest
	if !h.BindJSON(c, &req) {
		return
	}
	opts, err := h.options(c.Request.Context(), req.ProductID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if len(req.Items) > 0 {
		results := h.converter.ConvertBatch(req.Items, req.To, opts)
		resp := dto.ConvertBatchResponse{Target: units.Normalize(req.To), Results: results}
		for _, r := range results {
			if r.Error != "" {
				resp.Failed++
			}
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	value, from, err := req.Source()
	if err != nil {
		h.Error(c, err)
		return
	}
	res, err := h.converter.Convert(value, from, req.To, opts)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Suggest handles POST /units/suggest
func (h *UnitsHandler) Suggest(c *gin.Context) {
	var req dto.SuggestRequest
	if !h.BindJSON(c, &req) {
		return
	}
	opts, err := h.options(c.Request.Context(), req.ProductID)
	if err != nil {
		h.Error(c, err)
		return
	}
	value, unit, err := req.Source()
	if err != nil {
		h.Error(c, err)
		return
	}

	s, err := h.converter.Suggest(value, unit, opts)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Validate handles POST /units/validate
func (h *UnitsHandler) Validate(c *gin.Context) {
	var req dto.ValidateUnitsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, units.Validate(req.Units))
}
