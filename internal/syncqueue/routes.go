package syncqueue

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/syncqueue/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the gin engine serving the queue API and /metrics.
func NewRouter(h SyncJobHandlerInterface, gatherer prometheus.Gatherer, requestTimeout time.Duration) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.TimeoutMiddleware(requestTimeout), middleware.ErrorHandler())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	jobs := r.Group("/sync-jobs")
	{
		jobs.POST("", h.Enqueue)
		jobs.GET("", h.Status)
		jobs.POST("/claim", h.Claim)
		jobs.GET("/ready", h.ReadyForRetry)
		jobs.GET("/:id", h.Get)
		jobs.POST("/:id/complete", h.Complete)
		jobs.POST("/:id/fail", h.Fail)
	}

	maintenance := r.Group("/maintenance")
	{
		maintenance.POST("/reap", h.Reap)
		maintenance.POST("/cleanup", h.Cleanup)
	}

	return r
}
