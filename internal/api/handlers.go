package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"go-align/internal/auth"
	"go-align/internal/config"
	"go-align/internal/goal"
	"go-align/internal/service"
)

// AlignmentEngine is the service surface the handlers call.
type AlignmentEngine interface {
	EvaluateGoal(ctx context.Context, goalID string, asOf time.Time) (goal.Metrics, error)
	History(ctx context.Context, goalID string) ([]goal.ProgressEntry, error)
	RecordProgress(ctx context.Context, goalID string, u goal.ProgressUpdate, at time.Time) (service.ProgressResult, error)
	Propagate(ctx context.Context, rootID string, asOf time.Time) (*goal.Node, error)
	Summary(ctx context.Context, orgID string, level goal.Level, asOf time.Time) (goal.Summary, error)
	RecomputeOrg(ctx context.Context, orgID string, asOf time.Time) (service.RecomputeReport, error)
}

// GET /health
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// GET /config
func configHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only return non-sensitive config fields
		c.JSON(http.StatusOK, gin.H{
			"server": gin.H{
				"host":    cfg.Server.Host,
				"port":    cfg.Server.Port,
				"subpath": cfg.Server.Subpath,
			},
			"engine": cfg.Engine,
			"worker": cfg.Worker,
		})
	}
}

// GET /goals/:id/metrics
func GoalMetricsHandler(engine AlignmentEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		asOf, err := parseAsOf(c)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		m, err := engine.EvaluateGoal(c.Request.Context(), c.Param("id"), asOf)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// GET /goals/:id/progress
func ProgressHistoryHandler(engine AlignmentEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := engine.History(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

type RecordProgressRequest struct {
	NewValue    *float64 `json:"new_value"`
	Confidence  int      `json:"confidence"`
	Comment     string   `json:"comment"`
	EvidenceURL string   `json:"evidence_url"`
}

// POST /goals/:id/progress
func RecordProgressHandler(engine AlignmentEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(auth.ContextUserID)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "Unauthorized"}})
			return
		}
		var req RecordProgressRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.NewValue == nil {
			badRequest(c, "Invalid request: new_value and confidence are required")
			return
		}

		res, err := engine.RecordProgress(c.Request.Context(), c.Param("id"), goal.ProgressUpdate{
			NewValue:    *req.NewValue,
			Confidence:  req.Confidence,
			Comment:     req.Comment,
			EvidenceURL: req.EvidenceURL,
			AuthorID:    userID,
		}, time.Now().UTC())
		if err != nil {
			status, body := errorBody(err)
			if res.Entry.ID != "" {
				// Entry was appended; only the roll-up failed.
				c.JSON(status, gin.H{"error": body, "entry": res.Entry})
				return
			}
			c.JSON(status, gin.H{"error": body})
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

// POST /goals/:id/propagate
func PropagateHandler(engine AlignmentEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		asOf, err := parseAsOf(c)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		tree, err := engine.Propagate(c.Request.Context(), c.Param("id"), asOf)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, tree)
	}
}

// GET /orgs/:orgId/summary
func SummaryHandler(engine AlignmentEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		asOf, err := parseAsOf(c)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		summary, err := engine.Summary(c.Request.Context(), c.Param("orgId"), goal.Level(c.Query("level")), asOf)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// POST /orgs/:orgId/recompute
func RecomputeHandler(engine AlignmentEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		asOf, err := parseAsOf(c)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		report, err := engine.RecomputeOrg(c.Request.Context(), c.Param("orgId"), asOf)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// ActiveSessionsHandler returns the number of users with live sessions.
func ActiveSessionsHandler(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := auth.ActiveSessionCount(c.Request.Context(), rdb)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Failed to count sessions"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"active": count})
	}
}
