package goal

import (
	"sort"
	"time"
)

// SummaryOptions bounds the recent-activity part of a summary.
type SummaryOptions struct {
	RecentWindow time.Duration
	RecentLimit  int
}

// DefaultSummaryOptions returns a one-week window capped at 10 entries.
func DefaultSummaryOptions() SummaryOptions {
	return SummaryOptions{
		RecentWindow: 7 * day,
		RecentLimit:  10,
	}
}

// AtRiskGoal is one entry of the at-risk listing.
type AtRiskGoal struct {
	GoalID        string    `json:"goal_id"`
	Title         string    `json:"title"`
	Level         Level     `json:"level"`
	OwnerID       string    `json:"owner_id"`
	RiskLevel     RiskLevel `json:"risk_level"`
	Progress      float64   `json:"progress"`
	DaysRemaining float64   `json:"days_remaining"`
}

// StatusCount is the number of goals in one status.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

// Summary is an organisation or level rollup over a goal collection.
type Summary struct {
	Level            Level           `json:"level,omitempty"`
	TotalGoals       int             `json:"total_goals"`
	CompletionRate   float64         `json:"completion_rate"`
	AtRiskGoals      []AtRiskGoal    `json:"at_risk_goals"`
	RecentUpdates    []ProgressEntry `json:"recent_updates"`
	AlignmentScore   float64         `json:"alignment_score"`
	ProgressVelocity float64         `json:"progress_velocity"`
	StatusCounts     []StatusCount   `json:"status_counts"`
	Skipped          []string        `json:"skipped,omitempty"`
}

// Summarize rolls up a goal collection at asOf. history supplies the
// progress entries used for recent updates and velocity; it may be nil.
// Goals whose date range is invalid cannot be risk-classified and are
// listed in Skipped instead.
func Summarize(goals []Goal, history []ProgressEntry, asOf time.Time, opts SummaryOptions) Summary {
	s := Summary{
		TotalGoals:    len(goals),
		AtRiskGoals:   []AtRiskGoal{},
		RecentUpdates: []ProgressEntry{},
		StatusCounts:  countStatuses(goals),
	}
	if len(goals) == 0 {
		return s
	}

	present := make(map[string]Goal, len(goals))
	for _, g := range goals {
		present[g.ID] = g
	}

	completed := 0
	nonRoot, aligned := 0, 0
	for _, g := range goals {
		if g.Status == StatusCompleted {
			completed++
		}
		if g.Level != LevelCompany {
			nonRoot++
			if g.ParentGoalID != nil {
				if _, ok := present[*g.ParentGoalID]; ok {
					aligned++
				}
			}
		}

		risk, err := DetectRisk(g, asOf)
		if err != nil {
			s.Skipped = append(s.Skipped, g.ID)
			continue
		}
		if risk.IsAtRisk() {
			s.AtRiskGoals = append(s.AtRiskGoals, AtRiskGoal{
				GoalID:        g.ID,
				Title:         g.Title,
				Level:         g.Level,
				OwnerID:       g.OwnerID,
				RiskLevel:     risk,
				Progress:      ComputeProgress(g),
				DaysRemaining: DaysRemaining(g, asOf),
			})
		}
	}

	s.CompletionRate = float64(completed) / float64(len(goals))
	if nonRoot > 0 {
		s.AlignmentScore = float64(aligned) / float64(nonRoot)
	}

	sort.Slice(s.AtRiskGoals, func(i, j int) bool {
		a, b := s.AtRiskGoals[i], s.AtRiskGoals[j]
		if a.DaysRemaining != b.DaysRemaining {
			return a.DaysRemaining < b.DaysRemaining
		}
		return a.GoalID < b.GoalID
	})
	sort.Strings(s.Skipped)

	recent := recentEntries(history, present, asOf, opts.RecentWindow)
	s.ProgressVelocity = velocity(recent, present, opts.RecentWindow)
	if opts.RecentLimit > 0 && len(recent) > opts.RecentLimit {
		recent = recent[:opts.RecentLimit]
	}
	s.RecentUpdates = append(s.RecentUpdates, recent...)
	return s
}

// SummarizeByLevel returns one summary per level in seniority order.
// Alignment is measured against the whole collection, so a team goal
// cascading from a department goal still counts as aligned.
func SummarizeByLevel(goals []Goal, history []ProgressEntry, asOf time.Time, opts SummaryOptions) []Summary {
	byLevel := make(map[Level][]Goal)
	for _, g := range goals {
		byLevel[g.Level] = append(byLevel[g.Level], g)
	}
	present := make(map[string]bool, len(goals))
	for _, g := range goals {
		present[g.ID] = true
	}

	out := make([]Summary, 0, len(Levels()))
	for _, lvl := range Levels() {
		members := byLevel[lvl]
		memberIDs := make(map[string]bool, len(members))
		for _, g := range members {
			memberIDs[g.ID] = true
		}
		var levelHistory []ProgressEntry
		for _, e := range history {
			if memberIDs[e.GoalID] {
				levelHistory = append(levelHistory, e)
			}
		}

		s := Summarize(members, levelHistory, asOf, opts)
		s.Level = lvl
		if lvl != LevelCompany {
			aligned := 0
			for _, g := range members {
				if g.ParentGoalID != nil && present[*g.ParentGoalID] {
					aligned++
				}
			}
			s.AlignmentScore = 0
			if len(members) > 0 {
				s.AlignmentScore = float64(aligned) / float64(len(members))
			}
		}
		out = append(out, s)
	}
	return out
}

func countStatuses(goals []Goal) []StatusCount {
	counts := make(map[Status]int)
	for _, g := range goals {
		counts[g.Status]++
	}
	out := make([]StatusCount, 0, len(Statuses()))
	for _, st := range Statuses() {
		out = append(out, StatusCount{Status: st, Count: counts[st]})
	}
	return out
}

// recentEntries keeps entries for known goals inside (asOf-window, asOf],
// newest first with ties broken by entry id.
func recentEntries(history []ProgressEntry, present map[string]Goal, asOf time.Time, window time.Duration) []ProgressEntry {
	if window <= 0 {
		return nil
	}
	from := asOf.Add(-window)
	var out []ProgressEntry
	for _, e := range history {
		if _, ok := present[e.GoalID]; !ok {
			continue
		}
		if e.Timestamp.After(from) && !e.Timestamp.After(asOf) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// velocity is percentage points gained per day over the window, averaged
// across goals with a positive target that were updated in the window.
func velocity(recent []ProgressEntry, present map[string]Goal, window time.Duration) float64 {
	if len(recent) == 0 || window <= 0 {
		return 0
	}
	gained := make(map[string]float64)
	for _, e := range recent {
		g := present[e.GoalID]
		if !g.HasTarget() {
			continue
		}
		gained[e.GoalID] += (e.NewValue - e.PreviousValue) / *g.TargetValue * 100
	}
	if len(gained) == 0 {
		return 0
	}

	ids := make([]string, 0, len(gained))
	for id := range gained {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var total float64
	for _, id := range ids {
		total += gained[id]
	}
	return total / float64(len(ids)) / fractionalDays(window)
}
