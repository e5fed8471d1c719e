package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// GetStats returns dispatch statistics for a trailing window (default 24h).
func (h *Handlers) GetStats(c *gin.Context) {
	windowHours, _ := strconv.Atoi(c.DefaultQuery("window_hours", "24"))
	if windowHours < 1 {
		windowHours = 24
	}

	since := time.Now().Add(-time.Duration(windowHours) * time.Hour)
	stats, err := h.repo.Stats(since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to compute statistics",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"window_hours": windowHours,
		"stats":        stats,
	})
}
