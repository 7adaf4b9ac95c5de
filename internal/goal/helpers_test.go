package goal

import "time"

var epoch = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

func days(n float64) time.Duration {
	return time.Duration(n * float64(day))
}

// newGoal builds an active goal spanning 100 days from epoch.
func newGoal(id string, level Level) Goal {
	return Goal{
		ID:              id,
		OrganizationID:  "org-1",
		Title:           "Goal " + id,
		Type:            TypeObjective,
		Level:           level,
		ConfidenceScore: 5,
		StartDate:       epoch,
		EndDate:         epoch.Add(days(100)),
		Status:          StatusActive,
		OwnerID:         "owner-" + id,
	}
}

// withValue gives g a target of 100 and the given current value.
func withValue(g Goal, current float64) Goal {
	g.TargetValue = Float(100)
	g.CurrentValue = Float(current)
	return g
}

func withParent(g Goal, parentID string) Goal {
	g.ParentGoalID = String(parentID)
	return g
}
