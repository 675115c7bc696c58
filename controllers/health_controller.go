package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CandleCounter reports how many candle documents are persisted.
type CandleCounter interface {
	Count(ctx context.Context) (int64, error)
}

// HealthController reports liveness and store reachability.
type HealthController struct {
	store CandleCounter
}

// NewHealthController creates a new health controller
func NewHealthController(store CandleCounter) *HealthController {
	return &HealthController{store: store}
}

// CheckHealth returns ok with the candle count, or degraded when the store
// is unreachable.
// GET /health
func (hc *HealthController) CheckHealth(c *gin.Context) {
	count, err := hc.store.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "candles": count})
}
