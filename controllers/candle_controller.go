package controllers

import (
	"net/http"
	"strconv"

	"btc_tracker_backend/services"

	"github.com/gin-gonic/gin"
)

// CandleController serves read access to the persisted candle series.
type CandleController struct {
	store services.CandleStore
}

// NewCandleController creates a new candle controller
func NewCandleController(store services.CandleStore) *CandleController {
	return &CandleController{store: store}
}

// GetRecentCandles returns the most recent candle documents ascending by
// timestamp.
// GET /api/v1/candles/recent?limit=24
func (cc *CandleController) GetRecentCandles(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "24"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > services.SeedBatch {
		limit = services.SeedBatch
	}

	docs, err := cc.store.LoadRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch candles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": docs, "count": len(docs)})
}
