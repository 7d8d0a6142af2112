package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/giffer-go/api/handlers"
	"github.com/yourusername/giffer-go/api/middleware"
	"github.com/yourusername/giffer-go/internal/app"
	"github.com/yourusername/giffer-go/internal/infrastructure"
)

// SetupRouter sets up the HTTP router
func SetupRouter(
	jobMgr *app.JobManager,
	prober *infrastructure.Prober,
	logsDir string,
	log *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(jobMgr)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		jobHandler := handlers.NewJobHandler(jobMgr, log)
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.SubmitJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/stats", jobHandler.GetStats)
			jobs.GET("/:id", jobHandler.GetJob)
			jobs.POST("/:id/cancel", jobHandler.CancelJob)
			jobs.POST("/:id/retry", jobHandler.RetryJob)
			jobs.DELETE("/:id", jobHandler.DeleteJob)
		}

		probeHandler := handlers.NewProbeHandler(prober, log)
		v1.GET("/probe", probeHandler.Probe)

		logHandler := handlers.NewLogHandler(logsDir)
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
