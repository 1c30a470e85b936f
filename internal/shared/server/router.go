package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cardscan-backend/internal/results"
	"cardscan-backend/internal/services/health"
	"cardscan-backend/internal/shared/config"
	"cardscan-backend/internal/shared/metrics"
	"cardscan-backend/internal/shared/server/middleware"
	"cardscan-backend/internal/shared/server/respond"
	"cardscan-backend/internal/uploads"
)

// RouterDeps carries the handlers mounted under /api/v1.
type RouterDeps struct {
	Config         config.Config
	Health         *health.Service
	UploadHandler  *uploads.Handler
	ResultsHandler *results.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Session(),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		respond.JSON(c, http.StatusOK, deps.Health.Status())
	})
	if deps.UploadHandler != nil {
		deps.UploadHandler.RegisterRoutes(api)
	}
	if deps.ResultsHandler != nil {
		deps.ResultsHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
