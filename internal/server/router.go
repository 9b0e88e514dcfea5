package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/partsflow/descgen-backend/internal/handlers"
)

type RouterConfig struct {
	AllowOrigins []string
	RunHandler   *handlers.RunHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/start", cfg.RunHandler.Start)
		api.POST("/stop", cfg.RunHandler.Stop)
		api.GET("/status", cfg.RunHandler.Status)
		api.POST("/preview", cfg.RunHandler.Preview)
		api.GET("/logs", cfg.RunHandler.Logs)
	}

	return router
}
