package store

import (
	"fmt"

	"gorm.io/datatypes"

	"go-align/internal/goal"
)

// ToGoal decodes a record, rejecting enum values outside their closed sets.
func (r GoalRecord) ToGoal() (goal.Goal, error) {
	typ, err := goal.ParseGoalType(r.Type)
	if err != nil {
		return goal.Goal{}, fmt.Errorf("goal %s: %w", r.ID, err)
	}
	level, err := goal.ParseLevel(r.Level)
	if err != nil {
		return goal.Goal{}, fmt.Errorf("goal %s: %w", r.ID, err)
	}
	status, err := goal.ParseStatus(r.Status)
	if err != nil {
		return goal.Goal{}, fmt.Errorf("goal %s: %w", r.ID, err)
	}
	return goal.Goal{
		ID:              r.ID,
		OrganizationID:  r.OrganizationID,
		Title:           r.Title,
		Description:     r.Description,
		Type:            typ,
		Level:           level,
		TargetValue:     r.TargetValue,
		Unit:            r.Unit,
		CurrentValue:    r.CurrentValue,
		ConfidenceScore: r.ConfidenceScore,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		Status:          status,
		OwnerID:         r.OwnerID,
		ParentGoalID:    r.ParentGoalID,
		ChildGoalIDs:    []string(r.ChildGoalIDs),
		Progress:        r.Progress,
		RiskLevel:       goal.RiskLevel(r.RiskLevel),
	}, nil
}

// FromGoal encodes a goal snapshot for persistence.
func FromGoal(g goal.Goal) GoalRecord {
	return GoalRecord{
		ID:              g.ID,
		OrganizationID:  g.OrganizationID,
		Title:           g.Title,
		Description:     g.Description,
		Type:            string(g.Type),
		Level:           string(g.Level),
		TargetValue:     g.TargetValue,
		Unit:            g.Unit,
		CurrentValue:    g.CurrentValue,
		ConfidenceScore: g.ConfidenceScore,
		StartDate:       g.StartDate,
		EndDate:         g.EndDate,
		Status:          string(g.Status),
		OwnerID:         g.OwnerID,
		ParentGoalID:    g.ParentGoalID,
		ChildGoalIDs:    datatypes.NewJSONSlice(g.ChildGoalIDs),
		Progress:        g.Progress,
		RiskLevel:       string(g.RiskLevel),
	}
}

func (r ProgressRecord) toEntry() goal.ProgressEntry {
	return goal.ProgressEntry{
		ID:            r.ID,
		GoalID:        r.GoalID,
		PreviousValue: r.PreviousValue,
		NewValue:      r.NewValue,
		Confidence:    r.Confidence,
		Comment:       r.Comment,
		EvidenceURL:   r.EvidenceURL,
		AuthorID:      r.AuthorID,
		Timestamp:     r.Timestamp,
	}
}

func (r RelationshipRecord) toRelationship() (goal.Relationship, error) {
	typ, err := goal.ParseRelationshipType(r.Type)
	if err != nil {
		return goal.Relationship{}, fmt.Errorf("relationship %s->%s: %w", r.ParentID, r.ChildID, err)
	}
	return goal.Relationship{
		ParentID: r.ParentID,
		ChildID:  r.ChildID,
		Type:     typ,
		Weight:   r.Weight,
	}, nil
}
