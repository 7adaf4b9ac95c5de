package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-align/internal/goal"
	"go-align/internal/store"
)

var errBadAsOf = errors.New("asOf must be RFC3339 or YYYY-MM-DD")

// statusFor maps engine and store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, goal.ErrUnknownGoal):
		return http.StatusNotFound
	case errors.Is(err, goal.ErrCyclicHierarchy):
		return http.StatusConflict
	case errors.Is(err, goal.ErrInvalidRange),
		errors.Is(err, goal.ErrOutOfBoundsScore),
		errors.Is(err, goal.ErrMissingTarget),
		errors.Is(err, goal.ErrInvalidValue):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func errorBody(err error) (int, gin.H) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[API] internal error: %v", err)
		return status, gin.H{"message": "Internal error"}
	}
	body := gin.H{"message": err.Error()}
	if id, ok := goal.OffendingGoal(err); ok {
		body["goal_id"] = id
	}
	return status, body
}

func writeError(c *gin.Context, err error) {
	status, body := errorBody(err)
	c.JSON(status, gin.H{"error": body})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": msg}})
}

// parseAsOf reads the asOf query parameter, defaulting to now in UTC.
func parseAsOf(c *gin.Context) (time.Time, error) {
	raw := c.Query("asOf")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, errBadAsOf
}
