package routes

import (
	"btc_tracker_backend/controllers"
	"btc_tracker_backend/services"

	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, updates *services.UpdateService, store services.CandleStore, counter controllers.CandleCounter) {
	updateController := controllers.NewUpdateController(updates)
	candleController := controllers.NewCandleController(store)
	healthController := controllers.NewHealthController(counter)

	// The update trigger stays at the root path; the external scheduler has
	// always called GET / to run a cycle.
	router.GET("/", updateController.RunUpdate)
	router.GET("/health", healthController.CheckHealth)

	api := router.Group("/api/v1")
	{
		candles := api.Group("/candles")
		{
			candles.GET("/recent", candleController.GetRecentCandles)
		}
	}
}
