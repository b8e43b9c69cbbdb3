package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quizforge/quizforge-backend/internal/config"
	"github.com/quizforge/quizforge-backend/internal/handler"
	"github.com/quizforge/quizforge-backend/internal/middleware"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/response"
	"github.com/quizforge/quizforge-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Quiz    *handler.QuizHandler
	Session *handler.SessionHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	authLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request IDs on every response.
	router.Use(response.RequestIDMiddleware())

	startedAt := time.Now().UTC()
	router.GET("/healthz", func(c *gin.Context) {
		response.OK(c, http.StatusOK, &model.HealthResponse{
			Status:    "ok",
			StartedAt: startedAt,
		})
	})

	// Auth routes are public but rate limited.
	auth := router.Group("/v1/auth")
	if authLimiter != nil {
		auth.Use(authLimiter.Middleware())
	}
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
	}

	quiz := router.Group("/v1/quiz")
	quiz.Use(middleware.RequireAuth(authService))
	{
		// Authoring routes are admin-only.
		admin := quiz.Group("")
		admin.Use(middleware.RequireAdmin())
		{
			admin.POST("/create", handlers.Quiz.Create)
			admin.POST("/update", handlers.Quiz.Update)
			admin.DELETE("/delete/:quiz_id", handlers.Quiz.Delete)
			admin.GET("/list/:page/:page_size", handlers.Quiz.List)
		}

		quiz.GET("/:quiz_id", handlers.Quiz.Detail)
		quiz.POST("/:quiz_id/start", handlers.Session.Start)
		quiz.GET("/session/:session_id", handlers.Session.Get)
		quiz.POST("/session/answer", handlers.Session.SaveAnswer)
		quiz.POST("/session/submit", handlers.Session.Submit)
	}

	return router
}
