package goal

import (
	"fmt"
	"time"
)

// GoalType distinguishes objectives from the key results that measure them
type GoalType string

const (
	TypeObjective GoalType = "objective"
	TypeKeyResult GoalType = "key_result"
)

// Level is the position of a goal in the organisational cascade
type Level string

const (
	LevelCompany    Level = "company"
	LevelDepartment Level = "department"
	LevelTeam       Level = "team"
	LevelPersonal   Level = "personal"
)

// Status defines the lifecycle state of a goal
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAtRisk    Status = "at_risk"
	StatusArchived  Status = "archived"
)

// ConfidenceLevel buckets a 1-10 confidence score
type ConfidenceLevel string

const (
	ConfidenceRed    ConfidenceLevel = "red"
	ConfidenceYellow ConfidenceLevel = "yellow"
	ConfidenceGreen  ConfidenceLevel = "green"
)

// RiskLevel compares actual progress against time-expected progress
type RiskLevel string

const (
	RiskLow    RiskLevel = "low_risk"
	RiskMedium RiskLevel = "medium_risk"
	RiskHigh   RiskLevel = "high_risk"
)

// RelationshipType defines how two goals are linked
type RelationshipType string

const (
	RelationshipCascade    RelationshipType = "cascade"
	RelationshipDependency RelationshipType = "dependency"
	RelationshipRelated    RelationshipType = "related"
)

// Goal is an in-memory snapshot of a tracked objective or key result.
// Progress and RiskLevel are derived values; callers persist them.
type Goal struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`

	Type  GoalType `json:"type"`
	Level Level    `json:"level"`

	TargetValue     *float64 `json:"target_value,omitempty"`
	Unit            string   `json:"unit,omitempty"`
	CurrentValue    *float64 `json:"current_value,omitempty"`
	ConfidenceScore int      `json:"confidence_score"` // 1-10

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	Status  Status `json:"status"`
	OwnerID string `json:"owner_id"`

	ParentGoalID *string  `json:"parent_goal_id,omitempty"`
	ChildGoalIDs []string `json:"child_goal_ids,omitempty"`

	Progress  float64   `json:"progress"` // 0-100
	RiskLevel RiskLevel `json:"risk_level,omitempty"`
}

// HasTarget reports whether the goal carries a usable numeric target.
func (g Goal) HasTarget() bool {
	return g.TargetValue != nil && *g.TargetValue > 0
}

// ProgressEntry is one immutable record in a goal's progress history.
type ProgressEntry struct {
	ID            string    `json:"id"`
	GoalID        string    `json:"goal_id"`
	PreviousValue float64   `json:"previous_value"`
	NewValue      float64   `json:"new_value"`
	Confidence    int       `json:"confidence"`
	Comment       string    `json:"comment,omitempty"`
	EvidenceURL   string    `json:"evidence_url,omitempty"`
	AuthorID      string    `json:"author_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// Relationship is a directed edge between two goals.
// Only cascade edges take part in progress aggregation.
type Relationship struct {
	ParentID string           `json:"parent_id"`
	ChildID  string           `json:"child_id"`
	Type     RelationshipType `json:"type"`
	Weight   float64          `json:"weight"`
}

// DefaultRelationshipWeight is used when an edge carries no explicit weight.
const DefaultRelationshipWeight = 1.0

// ParseGoalType validates a raw goal type string.
func ParseGoalType(s string) (GoalType, error) {
	switch GoalType(s) {
	case TypeObjective, TypeKeyResult:
		return GoalType(s), nil
	}
	return "", fmt.Errorf("goal type %q: %w", s, ErrInvalidValue)
}

// ParseLevel validates a raw level string.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelCompany, LevelDepartment, LevelTeam, LevelPersonal:
		return Level(s), nil
	}
	return "", fmt.Errorf("level %q: %w", s, ErrInvalidValue)
}

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDraft, StatusActive, StatusCompleted, StatusAtRisk, StatusArchived:
		return Status(s), nil
	}
	return "", fmt.Errorf("status %q: %w", s, ErrInvalidValue)
}

// ParseRelationshipType validates a raw relationship type string.
func ParseRelationshipType(s string) (RelationshipType, error) {
	switch RelationshipType(s) {
	case RelationshipCascade, RelationshipDependency, RelationshipRelated:
		return RelationshipType(s), nil
	}
	return "", fmt.Errorf("relationship type %q: %w", s, ErrInvalidValue)
}

// Rank orders levels from most senior (0) to most granular (3).
func (l Level) Rank() (int, error) {
	switch l {
	case LevelCompany:
		return 0, nil
	case LevelDepartment:
		return 1, nil
	case LevelTeam:
		return 2, nil
	case LevelPersonal:
		return 3, nil
	}
	return 0, fmt.Errorf("level %q: %w", l, ErrInvalidValue)
}

// Levels lists every level in seniority order.
func Levels() []Level {
	return []Level{LevelCompany, LevelDepartment, LevelTeam, LevelPersonal}
}

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusDraft, StatusActive, StatusCompleted, StatusAtRisk, StatusArchived}
}

// Float returns a pointer to v, for building goals with targets and values.
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to s, for building goals with parents.
func String(s string) *string {
	return &s
}
