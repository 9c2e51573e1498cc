package api

import (
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/api/handler"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/api/middleware"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/config"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/events"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/logger"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/repository"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/service"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/storage"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	cfg *config.Config,
	jobService *service.JobService,
	tokens *repository.TokenRepository,
	bus *events.Bus,
	store storage.ObjectStore,
	log *logger.Logger,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.Server.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	jobHandler := handler.NewJobHandler(jobService)
	gatewayHandler := handler.NewGatewayHandler(tokens, bus, cfg.Server.CORS)

	// Health check
	r.GET("/health", healthHandler.Health)

	// Real-time job updates (token authenticated before upgrade)
	r.GET("/ws/jobs", gatewayHandler.Serve)

	// Local blob serving, only when the filesystem store is active
	if local, ok := store.(*storage.LocalStore); ok {
		mediaHandler := handler.NewMediaHandler(local, cfg.Storage.URLExpiry > 0)
		r.GET("/media/*filepath", mediaHandler.Serve)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Auth(tokens))
	{
		// Jobs
		v1.POST("/jobs", jobHandler.Submit)
		v1.GET("/jobs", jobHandler.List)
		v1.GET("/jobs/:id", jobHandler.Get)
		v1.DELETE("/jobs/:id", jobHandler.Delete)
		v1.PATCH("/jobs/:id/favorite", jobHandler.SetFavorite)
	}

	return r
}
