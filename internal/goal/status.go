package goal

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// TransitionListener is a callback triggered on status changes
type TransitionListener func(goalID string, from, to Status, at time.Time)

// StatusMachine handles valid status transitions for goals
type StatusMachine struct {
	mu        sync.RWMutex
	listeners []TransitionListener
}

// NewStatusMachine creates a new status machine
func NewStatusMachine() *StatusMachine {
	return &StatusMachine{
		listeners: make([]TransitionListener, 0),
	}
}

// validTransitions defines the map of allowed status changes
// Key: From -> Value: Set of allowed To statuses
var validTransitions = map[Status]map[Status]bool{
	StatusDraft: {
		StatusActive:   true,
		StatusArchived: true,
	},
	StatusActive: {
		StatusCompleted: true,
		StatusAtRisk:    true,
		StatusArchived:  true,
	},
	StatusAtRisk: {
		StatusActive:    true,
		StatusCompleted: true,
		StatusArchived:  true,
	},
	StatusCompleted: {
		StatusArchived: true,
	},
	StatusArchived: {
		StatusActive: true, // Revival
	},
}

// CanTransition checks if a transition is valid
func (sm *StatusMachine) CanTransition(from, to Status) bool {
	if allowed, exists := validTransitions[from]; exists {
		return allowed[to]
	}
	return false
}

// Transition moves the goal to the target status and notifies listeners.
func (sm *StatusMachine) Transition(g *Goal, to Status, at time.Time) error {
	if _, err := ParseStatus(string(to)); err != nil {
		return newError("transition", g.ID, err)
	}
	from := g.Status
	if !sm.CanTransition(from, to) {
		return newError("transition", g.ID, fmt.Errorf("invalid status transition from %s to %s: %w", from, to, ErrInvalidValue))
	}
	g.Status = to

	sm.mu.RLock()
	listeners := append([]TransitionListener(nil), sm.listeners...)
	sm.mu.RUnlock()
	for _, listener := range listeners {
		listener(g.ID, from, to, at)
	}
	return nil
}

// ValidTransitions returns all possible next statuses, sorted
func (sm *StatusMachine) ValidTransitions(current Status) []Status {
	states := make([]Status, 0)
	for s := range validTransitions[current] {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
	return states
}

// AddListener registers a callback for status changes
func (sm *StatusMachine) AddListener(listener TransitionListener) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, listener)
}

// RiskStatus returns the status a risk classification implies for an
// active or at-risk goal, and whether it differs from the current one.
// Other statuses are never changed by risk.
func RiskStatus(current Status, risk RiskLevel) (Status, bool) {
	switch current {
	case StatusActive:
		if risk == RiskHigh {
			return StatusAtRisk, true
		}
	case StatusAtRisk:
		if risk == RiskLow {
			return StatusActive, true
		}
	case StatusDraft, StatusCompleted, StatusArchived:
	}
	return current, false
}
