package http

import (
	"github.com/gin-gonic/gin"

	"github.com/macrolens/nutriresolve/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		nutrition := v1.Group("/nutrition")
		{
			nutrition.POST("/resolve", handler.Resolve)
			nutrition.GET("/barcode/:code", handler.ResolveBarcode)
			nutrition.GET("/search", handler.SearchByName)
		}

		cache := v1.Group("/cache")
		{
			cache.DELETE("", handler.ClearCache)
			cache.DELETE("/entry", handler.InvalidateEntry)
		}

		v1.GET("/stats", handler.Stats)
	}

	return router
}
