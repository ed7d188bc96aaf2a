package routes

import (
	"github.com/gin-gonic/gin"

	"saga-orchestrator/internal/api/handlers"
	"saga-orchestrator/internal/api/middleware"
	"saga-orchestrator/internal/config"
)

// RegisterRoutes registers every route with the container dependencies,
// grounded on the teacher's internal/api/routes/routes.go.
func RegisterRoutes(router *gin.Engine, cfg *config.Config, container handlers.HandlerDependencies) {
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.PrometheusMiddleware())

	router.POST("/transfers", handlers.MakeCreateTransferHandler(container))
	router.GET("/transfers/:id", handlers.MakeGetSagaStatusHandler(container))
	router.GET("/sagas/:id", handlers.MakeGetSagaStatusHandler(container))

	router.GET("/metrics", handlers.PrometheusMetrics)
}
