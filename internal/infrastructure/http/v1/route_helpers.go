package v1

import (
	"github.com/gin-gonic/gin"
)

// CatalogRouteHandler defines the interface for catalog handlers.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
}

// RegisterProductRoutes registers standard CRUD routes for a catalog.
// Catalog entries are deactivated through Update, never deleted, because
// movements keep referencing them.
//
// Usage:
//
//	handler := handlers.NewProductHandler(base, productService)
//	RegisterProductRoutes(v1.Group("/products"), handler)
func RegisterProductRoutes(group *gin.RouterGroup, handler CatalogRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
}
