package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/qp-cloud/edge-auth-gateway/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func NewRouter(handler *Handler, cfg *config.Config) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	if cfg.Observability.TraceEnabled {
		router.Use(otelgin.Middleware(serviceName))
	}
	router.Use(loggingMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	router.Any("/edge/auth/*path", handler.Filter)
	router.POST("/auth/token", handler.IssueToken)

	return router
}
