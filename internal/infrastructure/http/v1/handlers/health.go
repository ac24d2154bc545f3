// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/units"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/notify"
)

// Pinger is satisfied by both storage backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthConfig wires the probes. Optional sources are skipped when nil.
type HealthConfig struct {
	App     string
	Version string
	Store   string
	DB      Pinger

	PoolStats     func() postgres.PoolStats
	NotifierStats func() notify.Stats
	UnitCache     func() units.CacheStats
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	cfg     HealthConfig
	started time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(cfg HealthConfig) *HealthHandler {
	return &HealthHandler{cfg: cfg, started: time.Now()}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.cfg.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.cfg.DB.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "error",
				"checks": map[string]string{
					"database": "unhealthy: " + err.Error(),
				},
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			"database": "healthy",
		},
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	body := gin.H{
		"app":            h.cfg.App,
		"version":        h.cfg.Version,
		"store":          h.cfg.Store,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}
	if h.cfg.PoolStats != nil {
		body["database"] = h.cfg.PoolStats()
	}
	if h.cfg.NotifierStats != nil {
		body["notifier"] = h.cfg.NotifierStats()
	}
	if h.cfg.UnitCache != nil {
		body["unit_cache"] = h.cfg.UnitCache()
	}

	c.JSON(http.StatusOK, body)
}
