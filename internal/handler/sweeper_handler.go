package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RunCleanup triggers a retention sweep immediately
func (h *Handlers) RunCleanup(c *gin.Context) {
	result, err := h.sweeper.RunOnce()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "sweeper_error",
			Message: "Retention sweep failed",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Retention sweep completed successfully",
		"result":  result,
	})
}

// StartSweeper starts the retention sweep schedule
func (h *Handlers) StartSweeper(c *gin.Context) {
	if err := h.sweeper.Start(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "sweeper_error",
			Message: "Failed to start sweeper",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Sweeper started successfully",
		"status":  "running",
	})
}

// StopSweeper stops the retention sweep schedule
func (h *Handlers) StopSweeper(c *gin.Context) {
	if err := h.sweeper.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "sweeper_error",
			Message: "Failed to stop sweeper",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Sweeper stopped successfully",
		"status":  "stopped",
	})
}

// GetSweeperStatus returns the current sweeper status
func (h *Handlers) GetSweeperStatus(c *gin.Context) {
	status := "stopped"
	if h.sweeper.IsRunning() {
		status = "running"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"next_run": h.sweeper.GetNextRun(),
		"last_run": h.sweeper.GetLastRun(),
	})
}
