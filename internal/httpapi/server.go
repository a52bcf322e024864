// Package httpapi is the thin gin router over the Run Execution Engine: the
// Control API shapes of spec §6.1/6.2/6.4, wired to the Store, Scheduler,
// Event Bus, Cancellation Registry and Adapter client.
package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/modelforge/modelforge/internal/adapter"
	"github.com/modelforge/modelforge/internal/cancel"
	"github.com/modelforge/modelforge/internal/eventbus"
	"github.com/modelforge/modelforge/internal/scheduler"
	"github.com/modelforge/modelforge/internal/store"
)

// Server wires the engine packages into gin handlers.
type Server struct {
	store     *store.Store
	scheduler *scheduler.Scheduler
	bus       *eventbus.Bus
	registry  *cancel.Registry
	adapter   *adapter.Client
	logger    *logrus.Logger
}

// New builds a Server over its collaborators.
func New(s *store.Store, sch *scheduler.Scheduler, bus *eventbus.Bus, registry *cancel.Registry, a *adapter.Client, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{store: s, scheduler: sch, bus: bus, registry: registry, adapter: a, logger: logger}
}

// Router builds the gin engine with every Control API route mounted, mirroring
// the teacher's CORS-middleware-plus-route-group construction.
func (srv *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(srv.requestLogger())
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	api := r.Group("/api/v1")
	{
		runs := api.Group("/runs")
		{
			runs.POST("", srv.handleCreateRun)
			runs.GET("", srv.handleListRuns)
			runs.POST("/:id/execute", srv.handleExecuteRun)
			runs.POST("/:id/cancel", srv.handleCancelRun)
			runs.POST("/:id/models/:model_id/cancel", srv.handleCancelModel)
			runs.GET("/:id/results", srv.handleGetRunResults)
			runs.GET("/:id/stream", srv.handleSubscribe)
		}

		api.POST("/results/:id/review", srv.handleReviewResult)
		api.POST("/providers/:id/test", srv.handleTestProvider)
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	return r
}

func (srv *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		srv.logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		}).Debug("httpapi: request handled")
	}
}
