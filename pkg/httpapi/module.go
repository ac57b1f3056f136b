package httpapi

import (
	"storefront-bot/pkg/health"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Invoke(RegisterHealthRoutes),
)

// RegisterHealthRoutes mounts the unauthenticated operational endpoints.
func RegisterHealthRoutes(engine *gin.Engine, h health.HealthService) {
	engine.GET("/healthz", h.Liveness)
	engine.GET("/readyz", h.Readiness)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
