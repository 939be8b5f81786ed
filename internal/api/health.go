// Package api provides the ops HTTP endpoints of spacestore: liveness,
// readiness and Prometheus metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Checker reports on the storage backend.
type Checker interface {
	HealthCheck(ctx context.Context) error
	SchemaCheck(ctx context.Context) error
}

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	checker       Checker
	log           *logrus.Logger
	backend       string
	version       string
	schemaVersion int
	startTime     time.Time
}

// NewHealthHandler creates a HealthHandler. checker may be nil.
func NewHealthHandler(checker Checker, log *logrus.Logger, backend, version string, schemaVersion int) *HealthHandler {
	return &HealthHandler{
		checker:       checker,
		log:           log,
		backend:       backend,
		version:       version,
		schemaVersion: schemaVersion,
		startTime:     time.Now(),
	}
}

// readinessResponse is the JSON payload returned by the readiness endpoint.
type readinessResponse struct {
	Status        string            `json:"status"`
	SchemaVersion int               `json:"schema_version"`
	Checks        map[string]string `json:"checks"`
}

// healthResponse is the JSON payload returned by the health/liveness endpoint.
type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Backend       string  `json:"backend"`
	Storage       string  `json:"storage"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Liveness handles GET /api/health. The storage probe is informational and
// never fails the request.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		Backend:       h.backend,
		Storage:       "connected",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	if h.checker == nil {
		resp.Storage = "not_configured"
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.checker.HealthCheck(ctx); err != nil {
			resp.Storage = "disconnected"
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness handles GET /api/ready. It fails until storage is reachable and
// every migration is applied.
func (h *HealthHandler) Readiness(c *gin.Context) {
	checks := map[string]string{
		"storage": "ok",
		"schema":  "ok",
	}
	status := "ready"
	statusCode := http.StatusOK

	notReady := func(check string, err error) {
		h.log.WithError(err).WithField("check", check).Error("readiness check failed")
		checks[check] = "error"
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	switch {
	case h.checker == nil:
		checks["storage"] = "not_configured"
		checks["schema"] = "unknown"
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	default:
		if err := h.checker.HealthCheck(ctx); err != nil {
			notReady("storage", err)
			checks["schema"] = "unknown"
		} else if err := h.checker.SchemaCheck(ctx); err != nil {
			notReady("schema", err)
		}
	}

	c.JSON(statusCode, readinessResponse{
		Status:        status,
		SchemaVersion: h.schemaVersion,
		Checks:        checks,
	})
}
