// internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"go-align/internal/goal"
)

// ErrNotFound is returned when a goal does not exist.
var ErrNotFound = errors.New("not found")

// GoalStore handles persistence for goals, their relationships and their
// append-only progress history.
type GoalStore struct {
	db *gorm.DB
}

// New creates a new goal store over an open connection
func New(db *gorm.DB) *GoalStore {
	return &GoalStore{db: db}
}

// Migrate creates or updates the goal engine tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&GoalRecord{}, &ProgressRecord{}, &RelationshipRecord{}); err != nil {
		return fmt.Errorf("failed to migrate goal tables: %w", err)
	}
	return nil
}

// CreateGoal inserts a goal, assigning an id when it has none.
func (s *GoalStore) CreateGoal(ctx context.Context, g goal.Goal) (goal.Goal, error) {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	rec := FromGoal(g)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return goal.Goal{}, fmt.Errorf("failed to create goal: %w", err)
	}
	return g, nil
}

// GetGoal loads one goal by id.
func (s *GoalStore) GetGoal(ctx context.Context, id string) (goal.Goal, error) {
	var rec GoalRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return goal.Goal{}, fmt.Errorf("goal %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return goal.Goal{}, fmt.Errorf("failed to load goal %s: %w", id, err)
	}
	return rec.ToGoal()
}

// ListGoals returns every goal of an organisation ordered by id.
func (s *GoalStore) ListGoals(ctx context.Context, orgID string) ([]goal.Goal, error) {
	var recs []GoalRecord
	if err := s.db.WithContext(ctx).Where("organization_id = ?", orgID).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	goals := make([]goal.Goal, 0, len(recs))
	for _, r := range recs {
		g, err := r.ToGoal()
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, nil
}

// ListOrganizations returns the distinct organisation ids that own goals.
func (s *GoalStore) ListOrganizations(ctx context.Context) ([]string, error) {
	var orgs []string
	err := s.db.WithContext(ctx).Model(&GoalRecord{}).Distinct("organization_id").Order("organization_id").Pluck("organization_id", &orgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, nil
}

// CreateRelationship stores an edge. A zero weight is stored as the default.
func (s *GoalStore) CreateRelationship(ctx context.Context, orgID string, r goal.Relationship) error {
	if _, err := goal.ParseRelationshipType(string(r.Type)); err != nil {
		return err
	}
	if r.Weight <= 0 {
		r.Weight = goal.DefaultRelationshipWeight
	}
	rec := RelationshipRecord{
		ParentID:       r.ParentID,
		ChildID:        r.ChildID,
		Type:           string(r.Type),
		OrganizationID: orgID,
		Weight:         r.Weight,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to create relationship: %w", err)
	}
	return nil
}

// ListRelationships returns every edge of an organisation.
func (s *GoalStore) ListRelationships(ctx context.Context, orgID string) ([]goal.Relationship, error) {
	var recs []RelationshipRecord
	err := s.db.WithContext(ctx).Where("organization_id = ?", orgID).Order("parent_id, child_id, type").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	rels := make([]goal.Relationship, 0, len(recs))
	for _, r := range recs {
		rel, err := r.toRelationship()
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

// RecordProgress appends a history entry and moves the goal's current
// value and confidence in one transaction. History is never rewritten.
func (s *GoalStore) RecordProgress(ctx context.Context, g goal.Goal, e goal.ProgressEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	rec := ProgressRecord{
		ID:             e.ID,
		GoalID:         e.GoalID,
		OrganizationID: g.OrganizationID,
		PreviousValue:  e.PreviousValue,
		NewValue:       e.NewValue,
		Confidence:     e.Confidence,
		Comment:        e.Comment,
		EvidenceURL:    e.EvidenceURL,
		AuthorID:       e.AuthorID,
		Timestamp:      e.Timestamp,
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to append progress: %w", err)
		}
		res := tx.Model(&GoalRecord{}).Where("id = ?", g.ID).Updates(map[string]interface{}{
			"current_value":    g.CurrentValue,
			"confidence_score": g.ConfidenceScore,
		})
		if res.Error != nil {
			return fmt.Errorf("failed to update goal value: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("goal %s: %w", g.ID, ErrNotFound)
		}
		return nil
	})
}

// ListProgress returns a goal's history, oldest first.
func (s *GoalStore) ListProgress(ctx context.Context, goalID string) ([]goal.ProgressEntry, error) {
	var recs []ProgressRecord
	err := s.db.WithContext(ctx).Where("goal_id = ?", goalID).Order("timestamp, id").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	return toEntries(recs), nil
}

// ListOrgProgress returns an organisation's history from since onward.
func (s *GoalStore) ListOrgProgress(ctx context.Context, orgID string, since time.Time) ([]goal.ProgressEntry, error) {
	var recs []ProgressRecord
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND timestamp >= ?", orgID, since).
		Order("timestamp, id").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	return toEntries(recs), nil
}

// SaveMetrics writes the engine's computed values back for each goal.
func (s *GoalStore) SaveMetrics(ctx context.Context, goals []goal.Goal, computedAt time.Time) error {
	if len(goals) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, g := range goals {
			err := tx.Model(&GoalRecord{}).Where("id = ?", g.ID).Updates(map[string]interface{}{
				"progress":            g.Progress,
				"risk_level":          string(g.RiskLevel),
				"status":              string(g.Status),
				"child_goal_ids":      datatypes.NewJSONSlice(g.ChildGoalIDs),
				"metrics_computed_at": computedAt,
			}).Error
			if err != nil {
				return fmt.Errorf("failed to save metrics for goal %s: %w", g.ID, err)
			}
		}
		return nil
	})
}

func toEntries(recs []ProgressRecord) []goal.ProgressEntry {
	out := make([]goal.ProgressEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toEntry())
	}
	return out
}
