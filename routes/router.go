package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/gormazar/gormazar-api/config"
	"github.com/gormazar/gormazar-api/controllers"
	"github.com/gormazar/gormazar-api/middleware"
	"github.com/gormazar/gormazar-api/services"
	"github.com/gormazar/gormazar-api/utils"
)

// SetupRouter wires routes, middlewares, and controllers. rc may be nil, which
// disables the per-IP registration cap.
func SetupRouter(cfg config.AppConfig, tracker *services.Tracker, rc *redis.Client) *gin.Engine {
	switch strings.ToLower(cfg.Gin.Mode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rolling file
	gl, err := utils.NewRollingFileLogger(cfg.Gin.LogPath, cfg.Log.Level, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays, cfg.Log.Compress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, true))
	} else {
		r.Use(gin.Recovery())
	}
	r.Use(middleware.RequestMetrics())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", utils.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", utils.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.App.AllowedOrigins) == 1 && cfg.App.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.App.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	guard := utils.NewRegistrationGuard(rc, cfg.App.RegisterMaxPerIPPerDay)
	trackerController := controllers.NewTrackerController(tracker, guard)
	statsController := controllers.NewStatsController(tracker)
	limiter := middleware.NewRateLimiter(cfg.App.RateLimitPerMinute)

	r.GET("/", trackerController.Welcome)
	r.GET("/health", func(ctx *gin.Context) {
		utils.JSON(ctx, http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	writes := r.Group("")
	writes.Use(limiter.Middleware(), middleware.RecordActivity(tracker))
	writes.POST("/registerUser/:userId", trackerController.RegisterUser)
	writes.POST("/increment/:markerId", trackerController.Increment)
	writes.POST("/endSession/:userId", trackerController.EndSession)
	writes.POST("/updateTime/:userId", trackerController.UpdateTime)

	r.GET("/stats", statsController.GetStats)
	r.GET("/stats/daily", statsController.GetDaily)
	r.GET("/markers", statsController.ListMarkers)
	r.GET("/users/:userId", trackerController.GetUser)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
