// internal/goal/metrics.go
package goal

import (
	"math"
	"time"
)

const (
	// Risk thresholds, in percentage points behind the time-expected progress.
	mediumRiskGap = 10.0
	highRiskGap   = 20.0

	minConfidence = 1
	maxConfidence = 10

	day = 24 * time.Hour
)

// Metrics is the per-goal view returned by EvaluateGoal.
type Metrics struct {
	GoalID        string          `json:"goal_id"`
	Progress      float64         `json:"progress"`
	Confidence    ConfidenceLevel `json:"confidence"`
	RiskLevel     RiskLevel       `json:"risk_level"`
	DaysRemaining float64         `json:"days_remaining"`
}

// ComputeProgress returns the goal's completion percentage in [0,100].
// Without a positive target the caller-supplied Progress is used as-is.
func ComputeProgress(g Goal) float64 {
	if !g.HasTarget() {
		return clampPercent(g.Progress)
	}
	if g.CurrentValue == nil {
		return 0
	}
	return clampPercent(*g.CurrentValue / *g.TargetValue * 100)
}

// ClassifyConfidence buckets a 1-10 score: <=3 red, 4-7 yellow, >=8 green.
func ClassifyConfidence(score int) (ConfidenceLevel, error) {
	if score < minConfidence || score > maxConfidence {
		return "", newError("classify confidence", "", ErrOutOfBoundsScore)
	}
	switch {
	case score <= 3:
		return ConfidenceRed, nil
	case score <= 7:
		return ConfidenceYellow, nil
	default:
		return ConfidenceGreen, nil
	}
}

// DetectRisk compares actual progress with the progress expected at asOf.
// Goals that have not started or are past their end date are low risk.
func DetectRisk(g Goal, asOf time.Time) (RiskLevel, error) {
	if !g.EndDate.After(g.StartDate) {
		return "", newError("detect risk", g.ID, ErrInvalidRange)
	}

	totalDays := fractionalDays(g.EndDate.Sub(g.StartDate))
	elapsedDays := fractionalDays(asOf.Sub(g.StartDate))
	if elapsedDays < 0 || elapsedDays > totalDays {
		return RiskLow, nil
	}

	expected := elapsedDays / totalDays * 100
	actual := ComputeProgress(g)

	switch {
	case actual < expected-highRiskGap:
		return RiskHigh, nil
	case actual < expected-mediumRiskGap:
		return RiskMedium, nil
	default:
		return RiskLow, nil
	}
}

// DaysRemaining is the fractional number of days from asOf to the end date.
// It is negative for overdue goals.
func DaysRemaining(g Goal, asOf time.Time) float64 {
	return fractionalDays(g.EndDate.Sub(asOf))
}

// EvaluateGoal computes every single-goal metric at asOf.
func EvaluateGoal(g Goal, asOf time.Time) (Metrics, error) {
	confidence, err := ClassifyConfidence(g.ConfidenceScore)
	if err != nil {
		return Metrics{}, newError("evaluate goal", g.ID, ErrOutOfBoundsScore)
	}
	risk, err := DetectRisk(g, asOf)
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{
		GoalID:        g.ID,
		Progress:      ComputeProgress(g),
		Confidence:    confidence,
		RiskLevel:     risk,
		DaysRemaining: DaysRemaining(g, asOf),
	}, nil
}

// IsAtRisk reports whether a risk level should surface in at-risk listings.
func (r RiskLevel) IsAtRisk() bool {
	switch r {
	case RiskHigh, RiskMedium:
		return true
	case RiskLow:
		return false
	}
	return false
}

func fractionalDays(d time.Duration) float64 {
	return float64(d) / float64(day)
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// roundHalfUp rounds to the nearest integer, halves away from zero.
// Inputs here are never negative.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
