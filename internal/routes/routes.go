package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"sehatlog-server/internal/config"
	"sehatlog-server/internal/handlers"
	"sehatlog-server/internal/middleware"
	"sehatlog-server/internal/pkg/logger"
	"sehatlog-server/internal/services"
	"sehatlog-server/internal/storage"
)

// Deps carries the adapter implementations the handlers need.
type Deps struct {
	Store    storage.ObjectStore
	Analyzer *services.AnalysisService
	Log      *logger.Logger
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, deps Deps) {
	authHandler := handlers.NewAuthHandler(db, cfg, deps.Log)
	userHandler := handlers.NewUserHandler(db, deps.Log)
	filesHandler := handlers.NewFilesHandler(db, cfg, deps.Store, deps.Analyzer, deps.Log)
	insightsHandler := handlers.NewInsightsHandler(db, deps.Log)
	vitalsHandler := handlers.NewVitalsHandler(db, deps.Log)

	limiter := middleware.NewRateLimiter(cfg.RateLimit)

	// Public routes (no authentication required)
	public := router.Group("/api")
	{
		authRoutes := public.Group("/auth")
		authRoutes.Use(limiter.Middleware())
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}
	}

	// Authenticated routes
	private := router.Group("/api")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		private.POST("/auth/logout", authHandler.Logout)

		userRoutes := private.Group("/user")
		{
			userRoutes.GET("/profile", userHandler.GetProfile)
			userRoutes.PUT("/profile", userHandler.UpdateProfile)
			userRoutes.DELETE("/profile", userHandler.DeleteProfile)
			userRoutes.GET("/dashboard", userHandler.GetDashboard)
		}

		fileRoutes := private.Group("/files")
		{
			fileRoutes.POST("/upload", limiter.Middleware(), filesHandler.Upload)
			fileRoutes.GET("", filesHandler.ListReports)
			fileRoutes.GET("/:id", filesHandler.GetReport)
			fileRoutes.GET("/:id/download/:fileId", filesHandler.GetDownloadURL)
			fileRoutes.DELETE("/:id", filesHandler.DeleteReport)
		}

		insightRoutes := private.Group("/insights")
		{
			insightRoutes.GET("", insightsHandler.ListInsights)
			insightRoutes.GET("/:id", insightsHandler.GetInsight)
			insightRoutes.PATCH("/:id/read", insightsHandler.MarkRead)
			insightRoutes.POST("/:id/feedback", insightsHandler.SubmitFeedback)
		}

		vitalRoutes := private.Group("/vitals")
		{
			vitalRoutes.POST("", vitalsHandler.CreateVital)
			vitalRoutes.GET("", vitalsHandler.GetVitals)
			vitalRoutes.GET("/latest", vitalsHandler.GetLatestVitals)
			vitalRoutes.GET("/stats", vitalsHandler.GetVitalStats)
			vitalRoutes.PUT("/:id", vitalsHandler.UpdateVital)
			vitalRoutes.PATCH("/:id/deactivate", vitalsHandler.DeactivateVital)
			vitalRoutes.DELETE("/:id", vitalsHandler.DeleteVital)
		}
	}

	// Health check endpoint with database liveness.
	router.GET("/health", func(c *gin.Context) {
		dbStatus := "up"
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			dbStatus = "down"
		}
		c.JSON(200, gin.H{"status": "up", "database": dbStatus})
	})
}
