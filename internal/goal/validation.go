package goal

import "fmt"

// ValidateGoal runs the invariant checks for a single goal snapshot.
// parent may be nil; when given, the child must not be coarser than it.
func ValidateGoal(g Goal, parent *Goal) error {
	// 1. Enumerations
	if err := validateEnums(g); err != nil {
		return newError("validate", g.ID, err)
	}

	// 2. Date range
	if !g.EndDate.After(g.StartDate) {
		return newError("validate", g.ID, ErrInvalidRange)
	}

	// 3. Confidence score
	if _, err := ClassifyConfidence(g.ConfidenceScore); err != nil {
		return newError("validate", g.ID, ErrOutOfBoundsScore)
	}

	// 4. Level ordering against the parent
	if parent != nil {
		if err := validateLevelOrder(g, *parent); err != nil {
			return newError("validate", g.ID, err)
		}
	}
	return nil
}

// ValidateProgressEntry checks a progress update before it is appended.
func ValidateProgressEntry(e ProgressEntry) error {
	if e.GoalID == "" {
		return newError("validate progress", "", fmt.Errorf("missing goal id: %w", ErrUnknownGoal))
	}
	if _, err := ClassifyConfidence(e.Confidence); err != nil {
		return newError("validate progress", e.GoalID, ErrOutOfBoundsScore)
	}
	return nil
}

func validateEnums(g Goal) error {
	if _, err := ParseGoalType(string(g.Type)); err != nil {
		return err
	}
	if _, err := ParseLevel(string(g.Level)); err != nil {
		return err
	}
	if _, err := ParseStatus(string(g.Status)); err != nil {
		return err
	}
	return nil
}

func validateLevelOrder(child, parent Goal) error {
	childRank, err := child.Level.Rank()
	if err != nil {
		return err
	}
	parentRank, err := parent.Level.Rank()
	if err != nil {
		return err
	}
	if childRank < parentRank {
		return fmt.Errorf("%s goal cannot cascade from %s goal %s: %w", child.Level, parent.Level, parent.ID, ErrInvalidValue)
	}
	return nil
}
