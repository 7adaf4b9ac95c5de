package service

import (
	"log"
	"time"

	"go-align/internal/goal"
)

// EngineLogger provides structured logging for the alignment engine.
// It wraps the standard log package to provide consistent, parseable output.
type EngineLogger struct{}

// NewEngineLogger creates a new logger instance.
func NewEngineLogger() *EngineLogger {
	return &EngineLogger{}
}

func (l *EngineLogger) log(level, category, format string, args ...interface{}) {
	prefix := "[AlignmentService][" + level + "][" + category + "] "
	log.Printf(prefix+format, args...)
}

// LogStatusTransition logs a change in goal status.
func (l *EngineLogger) LogStatusTransition(goalID string, from, to goal.Status, reason string) {
	l.log("INFO", "STATUS", "Goal %s transitioned: %s -> %s | Reason: %s", goalID, from, to, reason)
}

// LogProgressRecorded logs an appended progress entry.
func (l *EngineLogger) LogProgressRecorded(e goal.ProgressEntry) {
	l.log("INFO", "PROGRESS", "Goal %s value %.2f -> %.2f | Confidence: %d | Author: %s", e.GoalID, e.PreviousValue, e.NewValue, e.Confidence, e.AuthorID)
}

// LogPropagation logs a completed hierarchy roll-up.
func (l *EngineLogger) LogPropagation(rootID string, goals int, progress float64, duration time.Duration) {
	l.log("DEBUG", "PROPAGATE", "Root %s propagated | Goals: %d | Progress: %.0f | Duration: %s", rootID, goals, progress, duration)
}

// LogCycleDetected logs a hierarchy that was skipped because it loops.
func (l *EngineLogger) LogCycleDetected(orgID, rootID string, err error) {
	l.log("WARN", "HIERARCHY", "Org %s hierarchy at %s skipped: %v", orgID, rootID, err)
}

// LogRecompute logs the outcome of an organisation recompute.
func (l *EngineLogger) LogRecompute(r RecomputeReport, duration time.Duration) {
	l.log("INFO", "RECOMPUTE", "Org %s recomputed | Goals: %d | Hierarchies: %d | Failed: %d | Transitions: %d | Stagnant: %d | Duration: %s",
		r.OrganizationID, r.GoalsUpdated, r.Hierarchies, len(r.Failed), r.Transitions, len(r.Stagnant), duration)
}

// LogError logs errors with operational context.
func (l *EngineLogger) LogError(operation string, err error, context map[string]interface{}) {
	l.log("ERROR", "SYSTEM", "Operation '%s' failed | Error: %v | Context: %v", operation, err, context)
}
