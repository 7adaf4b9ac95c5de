package goal

import (
	"errors"
	"testing"
)

func TestApplyProgress(t *testing.T) {
	p := NewProgressMonitor()
	g := withValue(newGoal("g", LevelTeam), 20)
	at := epoch.Add(days(10))

	updated, entry, err := p.ApplyProgress(g, ProgressUpdate{NewValue: 45, Confidence: 8, AuthorID: "u1", Comment: "shipped beta"}, "e1", at)
	if err != nil {
		t.Fatalf("ApplyProgress failed: %v", err)
	}
	if *updated.CurrentValue != 45 || updated.ConfidenceScore != 8 || updated.Progress != 45 {
		t.Errorf("goal not updated: %+v", updated)
	}
	if *g.CurrentValue != 20 {
		t.Errorf("input goal was mutated")
	}
	if entry.ID != "e1" || entry.PreviousValue != 20 || entry.NewValue != 45 || !entry.Timestamp.Equal(at) {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestApplyProgress_FirstValue(t *testing.T) {
	p := NewProgressMonitor()
	g := newGoal("g", LevelTeam)
	g.TargetValue = Float(10)
	_, entry, err := p.ApplyProgress(g, ProgressUpdate{NewValue: 3, Confidence: 5}, "e1", epoch)
	if err != nil {
		t.Fatalf("ApplyProgress failed: %v", err)
	}
	if entry.PreviousValue != 0 {
		t.Errorf("expected previous value 0, got %v", entry.PreviousValue)
	}
}

func TestApplyProgress_RejectsBadConfidence(t *testing.T) {
	p := NewProgressMonitor()
	g := withValue(newGoal("g", LevelTeam), 20)
	updated, _, err := p.ApplyProgress(g, ProgressUpdate{NewValue: 45, Confidence: 0}, "e1", epoch)
	if !errors.Is(err, ErrOutOfBoundsScore) {
		t.Fatalf("expected ErrOutOfBoundsScore, got %v", err)
	}
	if *updated.CurrentValue != 20 {
		t.Errorf("goal changed despite rejected update")
	}
}

func TestDetectStagnation(t *testing.T) {
	p := NewProgressMonitor()
	g := newGoal("g", LevelTeam)
	history := []ProgressEntry{{ID: "e", GoalID: "g", Timestamp: epoch.Add(days(10))}}

	if p.DetectStagnation(g, history, epoch.Add(days(20))) {
		t.Errorf("10 days since last update should not be stagnant")
	}
	if !p.DetectStagnation(g, history, epoch.Add(days(30))) {
		t.Errorf("20 days since last update should be stagnant")
	}
	if !p.DetectStagnation(g, nil, epoch.Add(days(15))) {
		t.Errorf("15 days since start without updates should be stagnant")
	}

	g.Status = StatusCompleted
	if p.DetectStagnation(g, nil, epoch.Add(days(90))) {
		t.Errorf("completed goals are never stagnant")
	}
}
