package controllers

import (
	"errors"
	"net/http"

	"btc_tracker_backend/services"
	"btc_tracker_backend/services/datafetcher"

	"github.com/gin-gonic/gin"
)

// UpdateController exposes the single "run one update cycle" trigger.
type UpdateController struct {
	updates *services.UpdateService
}

// NewUpdateController creates a new update controller
func NewUpdateController(updates *services.UpdateService) *UpdateController {
	return &UpdateController{updates: updates}
}

// RunUpdate runs one incremental update cycle and reports the summary.
// GET /
func (uc *UpdateController) RunUpdate(c *gin.Context) {
	summary, err := uc.updates.RunUpdate(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, services.ErrInsufficientHistory):
			status = http.StatusPreconditionFailed
		case errors.Is(err, datafetcher.ErrFeedUnavailable):
			status = http.StatusBadGateway
		}

		payload := gin.H{"status": "error", "message": err.Error()}
		if summary != nil {
			// Partial batch: rows already written stay written.
			payload["written"] = summary.Written
			payload["skipped"] = summary.Skipped
		}
		c.JSON(status, payload)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "result": summary})
}
