package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/spacestore/internal/httputil"
	"github.com/persistorai/spacestore/internal/middleware"
)

const metricsPath = "/metrics"

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log           *logrus.Logger
	Checker       Checker
	Backend       string
	Version       string
	SchemaVersion int
}

// NewRouter creates the gin engine of the ops server.
func NewRouter(deps *RouterDeps) http.Handler {
	r := gin.New()
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID())
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.Prometheus(metricsPath))

	r.GET(metricsPath, gin.WrapH(promhttp.Handler()))

	health := NewHealthHandler(deps.Checker, deps.Log, deps.Backend, deps.Version, deps.SchemaVersion)
	ops := r.Group("/api")
	ops.GET("/health", health.Liveness)
	ops.GET("/ready", health.Readiness)

	r.NoRoute(func(c *gin.Context) {
		httputil.RespondError(c, http.StatusNotFound, httputil.CodeNotFound, "no such endpoint")
	})

	return r
}
