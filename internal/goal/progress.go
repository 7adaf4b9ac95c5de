package goal

import "time"

// ProgressUpdate is a caller's request to move a goal's current value.
type ProgressUpdate struct {
	NewValue    float64
	Confidence  int
	Comment     string
	EvidenceURL string
	AuthorID    string
}

// ProgressMonitor tracks goal advancement and detects stagnation.
type ProgressMonitor struct {
	StagnationWindow time.Duration // Max time without an update before flagging
}

// NewProgressMonitor creates a new monitor with default settings.
func NewProgressMonitor() *ProgressMonitor {
	return &ProgressMonitor{
		StagnationWindow: 14 * day, // Default: two weeks
	}
}

// ApplyProgress returns the goal with the update applied and the history
// entry recording it. entryID and at are supplied by the caller.
func (p *ProgressMonitor) ApplyProgress(g Goal, u ProgressUpdate, entryID string, at time.Time) (Goal, ProgressEntry, error) {
	var previous float64
	if g.CurrentValue != nil {
		previous = *g.CurrentValue
	}
	entry := ProgressEntry{
		ID:            entryID,
		GoalID:        g.ID,
		PreviousValue: previous,
		NewValue:      u.NewValue,
		Confidence:    u.Confidence,
		Comment:       u.Comment,
		EvidenceURL:   u.EvidenceURL,
		AuthorID:      u.AuthorID,
		Timestamp:     at,
	}
	if err := ValidateProgressEntry(entry); err != nil {
		return g, ProgressEntry{}, err
	}

	g.CurrentValue = Float(u.NewValue)
	g.ConfidenceScore = u.Confidence
	g.Progress = ComputeProgress(g)
	return g, entry, nil
}

// DetectStagnation reports whether an active goal has gone longer than the
// stagnation window without a progress entry. history may hold entries for
// other goals; they are ignored.
func (p *ProgressMonitor) DetectStagnation(g Goal, history []ProgressEntry, asOf time.Time) bool {
	if g.Status != StatusActive && g.Status != StatusAtRisk {
		return false
	}
	last := g.StartDate
	for _, e := range history {
		if e.GoalID == g.ID && e.Timestamp.After(last) && !e.Timestamp.After(asOf) {
			last = e.Timestamp
		}
	}
	return asOf.Sub(last) > p.StagnationWindow
}
