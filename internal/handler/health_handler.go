package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker is a dependency the service needs to be ready
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checkers map[string]HealthChecker
	timeout  time.Duration
}

// NewHealthHandler creates a new HealthHandler. Nil checkers are skipped.
func NewHealthHandler(checkers map[string]HealthChecker) *HealthHandler {
	live := make(map[string]HealthChecker, len(checkers))
	for name, checker := range checkers {
		if checker != nil {
			live[name] = checker
		}
	}
	return &HealthHandler{
		checkers: live,
		timeout:  5 * time.Second,
	}
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadyResponse represents readiness check response
type ReadyResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// Health returns a simple health check (liveness probe)
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready returns a readiness check (readiness probe)
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	components := make(map[string]string, len(h.checkers))
	allHealthy := true
	for name, checker := range h.checkers {
		if err := checker.HealthCheck(ctx); err != nil {
			components[name] = "unhealthy: " + err.Error()
			allHealthy = false
			continue
		}
		components[name] = "healthy"
	}

	resp := ReadyResponse{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}

	if allHealthy {
		resp.Status = "ready"
		c.JSON(http.StatusOK, resp)
	} else {
		resp.Status = "not ready"
		c.JSON(http.StatusServiceUnavailable, resp)
	}
}
