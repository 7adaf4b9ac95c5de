package store

import (
	"time"

	"gorm.io/datatypes"
)

// GoalRecord is the persisted form of a goal.
type GoalRecord struct {
	ID             string `gorm:"primaryKey;size:36" json:"id"`
	OrganizationID string `gorm:"size:64;not null;index" json:"organization_id"`
	Title          string `gorm:"size:255;not null" json:"title"`
	Description    string `gorm:"type:text" json:"description"`

	Type  string `gorm:"size:16;not null" json:"type"`
	Level string `gorm:"size:16;not null;index" json:"level"`

	TargetValue     *float64 `json:"target_value"`
	Unit            string   `gorm:"size:32" json:"unit"`
	CurrentValue    *float64 `json:"current_value"`
	ConfidenceScore int      `gorm:"not null;default:5" json:"confidence_score"`

	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null" json:"end_date"`

	Status  string `gorm:"size:16;not null;index" json:"status"`
	OwnerID string `gorm:"size:64;index" json:"owner_id"`

	ParentGoalID *string                     `gorm:"size:36;index" json:"parent_goal_id"`
	ChildGoalIDs datatypes.JSONSlice[string] `json:"child_goal_ids"`

	// Computed by the engine; never trusted as source of truth.
	Progress          float64    `gorm:"not null;default:0" json:"progress"`
	RiskLevel         string     `gorm:"size:16" json:"risk_level"`
	MetricsComputedAt *time.Time `json:"metrics_computed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (GoalRecord) TableName() string {
	return "goals"
}

// ProgressRecord is one append-only entry of a goal's progress history.
type ProgressRecord struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	GoalID         string    `gorm:"size:36;not null;index" json:"goal_id"`
	OrganizationID string    `gorm:"size:64;not null;index" json:"organization_id"`
	PreviousValue  float64   `json:"previous_value"`
	NewValue       float64   `json:"new_value"`
	Confidence     int       `gorm:"not null" json:"confidence"`
	Comment        string    `gorm:"type:text" json:"comment"`
	EvidenceURL    string    `gorm:"size:2048" json:"evidence_url"`
	AuthorID       string    `gorm:"size:64;not null" json:"author_id"`
	Timestamp      time.Time `gorm:"not null;index" json:"timestamp"`
}

// TableName specifies the table name for GORM
func (ProgressRecord) TableName() string {
	return "goal_progress"
}

// RelationshipRecord is a directed edge between two goals.
type RelationshipRecord struct {
	ParentID       string    `gorm:"primaryKey;size:36" json:"parent_id"`
	ChildID        string    `gorm:"primaryKey;size:36" json:"child_id"`
	Type           string    `gorm:"primaryKey;size:16" json:"type"`
	OrganizationID string    `gorm:"size:64;not null;index" json:"organization_id"`
	Weight         float64   `gorm:"not null;default:1" json:"weight"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (RelationshipRecord) TableName() string {
	return "goal_relationships"
}
