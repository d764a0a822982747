package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marrowai-server/internal/config"
	"marrowai-server/internal/handlers"
	"marrowai-server/internal/middleware"
)

// Handlers bundles every endpoint group mounted by SetupRoutes.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Symptoms  *handlers.SymptomHandler
	Chat      *handlers.ChatHandler
	Doctors   *handlers.DoctorHandler
	Reports   *handlers.ReportHandler
	Entries   *handlers.HealthEntryHandler
	Dashboard *handlers.DashboardHandler
	Health    *handlers.HealthHandler
}

// SetupRoutes configures the application routes. jwtSecret verifies access
// tokens on the authenticated group.
func SetupRoutes(router *gin.Engine, h Handlers, jwtSecret string) {
	router.GET("/health", h.Health.Check)

	// Public routes (no authentication required)
	public := router.Group("/api")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", h.Auth.Register)
			authRoutes.POST("/login", h.Auth.Login)
			authRoutes.POST("/refresh", h.Auth.RefreshToken)
			authRoutes.POST("/logout", h.Auth.Logout)
		}

		public.GET("/symptoms", h.Symptoms.Catalogue)
		public.POST("/symptoms", h.Symptoms.Assess)
		public.POST("/chat", h.Chat.Chat)
		public.GET("/doctors", h.Doctors.Search)
		public.GET("/doctors/:id", h.Doctors.Get)
		public.POST("/analyze-pdf", h.Reports.AnalyzeText)
	}

	// Authenticated routes
	private := router.Group("/api")
	private.Use(middleware.AuthMiddleware(jwtSecret))
	{
		private.GET("/auth/profile", h.Auth.GetProfile)

		private.POST("/parse-pdf", h.Reports.ParsePDF)
		reportRoutes := private.Group("/reports")
		{
			reportRoutes.GET("", h.Reports.ListReports)
			reportRoutes.GET("/:id", h.Reports.GetReport)
			reportRoutes.DELETE("/:id", h.Reports.DeleteReport)
			reportRoutes.POST("/:id/analyze", h.Reports.Reanalyze)
		}

		entryRoutes := private.Group("/health-entries")
		{
			entryRoutes.POST("", h.Entries.CreateEntry)
			entryRoutes.GET("", h.Entries.ListEntries)
		}

		dashboardRoutes := private.Group("/dashboard")
		{
			dashboardRoutes.GET("", h.Dashboard.Stats)
			dashboardRoutes.GET("/export", h.Dashboard.Export)
		}
	}
}

// NewRouter builds the engine with the shared middleware stack and all routes.
func NewRouter(cfg *config.Config, logger *zap.Logger, h Handlers) *gin.Engine {
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(logger), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	SetupRoutes(router, h, cfg.JWTSecret)
	return router
}
