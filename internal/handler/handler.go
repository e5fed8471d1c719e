package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"casemail-go/internal/dispatch"
	"casemail-go/internal/repository"
	"casemail-go/internal/sweeper"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db         *gorm.DB
	repo       *repository.Repository
	dispatcher *dispatch.Dispatcher
	sweeper    *sweeper.Sweeper
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *gorm.DB, repo *repository.Repository, dispatcher *dispatch.Dispatcher, sweeper *sweeper.Sweeper) *Handlers {
	return &Handlers{
		db:         db,
		repo:       repo,
		dispatcher: dispatcher,
		sweeper:    sweeper,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/send", h.Send)
		api.GET("/sends/:key", h.GetSend)

		api.GET("/stats", h.GetStats)
		api.GET("/dedup-logs", h.GetDedupLogs)

		api.POST("/cleanup/run", h.RunCleanup)
		api.POST("/sweeper/start", h.StartSweeper)
		api.POST("/sweeper/stop", h.StopSweeper)
		api.GET("/sweeper/status", h.GetSweeperStatus)
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Details:   make(map[string]string),
	}

	if err := h.db.Raw("SELECT 1").Error; err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	if h.sweeper.IsRunning() {
		response.Details["sweeper"] = "running"
		response.Details["next_sweep"] = h.sweeper.GetNextRun().Format(time.RFC3339)
		response.Details["last_sweep"] = h.sweeper.GetLastRun().Format(time.RFC3339)
	} else {
		response.Details["sweeper"] = "stopped"
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
