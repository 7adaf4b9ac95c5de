package goal

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange means a goal's end date is not after its start date.
	ErrInvalidRange = errors.New("end date must be after start date")
	// ErrCyclicHierarchy means traversal reached a goal already on the current path.
	ErrCyclicHierarchy = errors.New("cyclic goal hierarchy")
	// ErrMissingTarget means a node has no children and nothing to measure.
	ErrMissingTarget = errors.New("goal has no children, target or value")
	// ErrOutOfBoundsScore means a confidence score outside 1-10.
	ErrOutOfBoundsScore = errors.New("confidence score out of bounds")
	// ErrUnknownGoal means an edge or lookup referenced a goal absent from the snapshot.
	ErrUnknownGoal = errors.New("unknown goal")
	// ErrInvalidValue means an enum string outside its closed set.
	ErrInvalidValue = errors.New("invalid value")
)

// GoalError ties a failure to the operation and goal that caused it.
type GoalError struct {
	Op     string
	GoalID string
	Err    error
}

func (e *GoalError) Error() string {
	if e.GoalID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: goal %s: %v", e.Op, e.GoalID, e.Err)
}

func (e *GoalError) Unwrap() error {
	return e.Err
}

func newError(op, goalID string, err error) error {
	return &GoalError{Op: op, GoalID: goalID, Err: err}
}

// OffendingGoal extracts the goal id carried by err, if any.
func OffendingGoal(err error) (string, bool) {
	var ge *GoalError
	if errors.As(err, &ge) && ge.GoalID != "" {
		return ge.GoalID, true
	}
	return "", false
}
