package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"go-align/internal/auth"
	"go-align/internal/config"
)

func SetupRouter(cfg *config.Config, rdb *redis.Client, engine AlignmentEngine) *gin.Engine {
	r := gin.Default()
	r.Use(requestMetrics())
	subpath := cfg.Server.Subpath // e.g. "/goals-api"; empty serves from the root

	if subpath != "" {
		// Redirect /subpath/ to /subpath/health
		r.GET(subpath+"/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, subpath+"/health")
		})
	}

	group := r.Group(subpath)
	{
		group.GET("/health", healthHandler)
		group.GET("/config", configHandler(cfg))
		group.GET("/metrics", gin.WrapH(promhttp.Handler()))

		member := auth.AuthMiddleware(cfg, rdb, false)
		admin := auth.AuthMiddleware(cfg, rdb, true)

		// --- Goals ---
		group.GET("/goals/:id/metrics", member, GoalMetricsHandler(engine))
		group.GET("/goals/:id/progress", member, ProgressHistoryHandler(engine))
		group.POST("/goals/:id/progress", member, RecordProgressHandler(engine))
		group.POST("/goals/:id/propagate", member, PropagateHandler(engine))

		// --- Organisations ---
		group.GET("/orgs/:orgId/summary", member, SummaryHandler(engine))
		group.POST("/orgs/:orgId/recompute", admin, RecomputeHandler(engine))

		// --- Sessions ---
		group.GET("/sessions/active", admin, ActiveSessionsHandler(rdb))
	}
	return r
}
