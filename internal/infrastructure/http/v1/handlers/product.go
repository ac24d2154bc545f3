package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// ProductHandler handles HTTP requests for the product catalog.
type ProductHandler struct {
	*BaseHandler
	service *product.Service
}

// NewProductHandler creates a new product handler.
func NewProductHandler(base *BaseHandler, service *product.Service) *ProductHandler {
	return &ProductHandler{BaseHandler: base, service: service}
}

// List handles GET /products
func (h *ProductHandler) List(c *gin.Context) {
	var req dto.ProductListQuery
	if !h.BindQuery(c, &req) {
		return
	}
	filter := req.ToFilter()

	items, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	if items == nil {
		items = []*product.Product{}
	}
	c.JSON(http.StatusOK, dto.ListResponse[*product.Product]{
		Items:  items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Create handles POST /products
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// Get handles GET /products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	productID, err := dto.ParseID("id", c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	p, err := h.service.Get(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Update handles PUT /products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	productID, err := dto.ParseID("id", c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	var req dto.UpdateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.Update(c.Request.Context(), productID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}
