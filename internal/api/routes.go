package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ajitpratap0/paramsearch/internal/metrics"
)

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.handleHealth)
		v1.GET("/status", s.handleStatus)

		searches := v1.Group("/searches")
		{
			searches.GET("", s.handleListSearches)
			searches.GET("/:id", s.handleGetSearch)
			searches.GET("/:id/strategies", s.handleGetSearchStrategies)
			searches.POST("/:id/stop", s.handleStopSearch)
		}

		runs := v1.Group("/runs")
		{
			runs.GET("", s.handleListRuns)
			runs.GET("/:id", s.handleGetRun)
			runs.GET("/:id/strategies", s.handleGetRunStrategies)
		}

		v1.GET("/ws", s.handleWebSocket)
	}

	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
	s.router.GET("/", s.handleRoot)
}
