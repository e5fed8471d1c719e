package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"casemail-go/internal/dispatch"
)

// Send dispatches one email request through the reliability layer. The
// response body is always an EmailResult; duplicates and transport failures
// are outcomes, not HTTP errors.
func (h *Handlers) Send(c *gin.Context) {
	var req dispatch.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
			Code:    http.StatusBadRequest,
		})
		return
	}

	result := h.dispatcher.Send(c.Request.Context(), &req)

	statusCode := http.StatusOK
	if !result.Success && !result.IsDuplicate {
		statusCode = http.StatusBadGateway
	}
	c.JSON(statusCode, result)
}

// GetSend returns the idempotency record and attempt history for a key.
func (h *Handlers) GetSend(c *gin.Context) {
	key := c.Param("key")

	record, err := h.repo.GetRecord(key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch idempotency record",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "No send recorded for this key",
			Code:    http.StatusNotFound,
		})
		return
	}

	attempts, err := h.repo.GetAttempts(key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch attempts",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"record":   record,
		"attempts": attempts,
	})
}
