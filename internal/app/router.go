package app

import (
	"earninja_backend/internal/config"
	"earninja_backend/internal/middleware"
	"earninja_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. public routes
	a.registerPublicRoutes(router, c)

	// 2. routes that need a logged-in user
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerUserRoutes(authGroup, c)
		a.registerIntervalRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}
}

func (a *App) registerUserRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/profile", c.auth.GetProfile)
	group.DELETE("/profile", c.auth.DeleteProfile)
}

func (a *App) registerIntervalRoutes(group *gin.RouterGroup, c *controllers) {
	intervals := group.Group("/intervals")
	{
		intervals.GET("/choices", c.exercise.GetChoices)

		intervals.GET("/question", c.exercise.GetQuestion)
		intervals.POST("/questions", c.exercise.NewQuestion)
		intervals.POST("/answers", c.exercise.SubmitAnswer)

		intervals.GET("/settings", c.exercise.GetSettings)
		intervals.PUT("/settings", c.exercise.UpdateSettings)
		intervals.POST("/settings/default", c.exercise.ResetSettings)

		intervals.GET("/score", c.exercise.GetScore)
		intervals.POST("/score/reset", c.exercise.ResetScore)
	}
}
