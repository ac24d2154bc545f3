// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/idempotency"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/costing"
	"stockledger/internal/domain/inventory"
	"stockledger/internal/domain/units"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/http/v1/middleware"
	"stockledger/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Inventory is the ledger service
	Inventory *inventory.Service

	// Products manages the product catalog
	Products *product.Service

	// Converter and Calculator back the stateless helper endpoints
	Converter  *units.Converter
	Calculator *costing.Calculator

	// Idempotency enables X-Idempotency-Key handling for mutations when set
	Idempotency idempotency.Store

	// Health configures the probe endpoints
	Health handlers.HealthConfig

	// Debug keeps gin in debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Converter == nil {
		cfg.Converter = units.NewConverter(nil)
	}
	if cfg.Calculator == nil {
		cfg.Calculator = costing.NewCalculator()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Health)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.UserContext())
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}
	{
		base := handlers.NewBaseHandler()

		registerProductRoutes(v1, base, cfg)
		registerLedgerRoutes(v1, base, cfg)
		registerToolRoutes(v1, base, cfg)
	}

	return router
}

// registerProductRoutes registers the product catalog.
func registerProductRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Products == nil {
		return
	}
	RegisterProductRoutes(rg.Group("/products"), handlers.NewProductHandler(base, cfg.Products))
}

// registerLedgerRoutes registers inventory, movement and alert endpoints.
func registerLedgerRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Inventory == nil {
		return
	}
	h := handlers.NewInventoryHandler(base, cfg.Inventory)

	inv := rg.Group("/inventory")
	{
		inv.GET("", h.List)
		inv.GET("/summary", h.Summary)
		inv.GET("/valuation", h.Valuation)
		inv.GET("/:productId/:locationId/cost-analysis", h.CostAnalysis)
		inv.GET("/:productId/:locationId/reconcile", h.Reconcile)

		inv.POST("/adjust", h.Adjust)
		inv.POST("/transfer", h.Transfer)
		inv.POST("/reserve", h.Reserve)
		inv.POST("/release", h.Release)
		inv.POST("/consume", h.Consume)
	}

	movements := rg.Group("/movements")
	{
		movements.GET("", h.Movements)
		movements.GET("/export", h.ExportMovements)
	}

	alerts := rg.Group("/alerts")
	{
		alerts.GET("", h.Alerts)
		alerts.POST("/:id/resolve", h.ResolveAlert)
	}
}

// registerToolRoutes registers the stateless unit and costing helpers.
func registerToolRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	unitsHandler := handlers.NewUnitsHandler(base, cfg.Converter, cfg.Products)
	u := rg.Group("/units")
	{
		u.POST("/convert", unitsHandler.Convert)
		u.POST("/suggest", unitsHandler.Suggest)
		u.POST("/validate", unitsHandler.Validate)
	}

	costingHandler := handlers.NewCostingHandler(base, cfg.Calculator)
	cost := rg.Group("/costing")
	{
		cost.POST("/compare", costingHandler.Compare)
		cost.POST("/optimize", costingHandler.Optimize)
		cost.POST("/project", costingHandler.Project)
		cost.POST("/metrics", costingHandler.Metrics)
	}
}
