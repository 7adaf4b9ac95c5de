package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"go-align/internal/goal"
	"go-align/internal/textutil"
)

// GoalStore is the persistence the service needs. store.GoalStore implements it.
type GoalStore interface {
	GetGoal(ctx context.Context, id string) (goal.Goal, error)
	ListGoals(ctx context.Context, orgID string) ([]goal.Goal, error)
	ListOrganizations(ctx context.Context) ([]string, error)
	ListRelationships(ctx context.Context, orgID string) ([]goal.Relationship, error)
	RecordProgress(ctx context.Context, g goal.Goal, e goal.ProgressEntry) error
	ListProgress(ctx context.Context, goalID string) ([]goal.ProgressEntry, error)
	ListOrgProgress(ctx context.Context, orgID string, since time.Time) ([]goal.ProgressEntry, error)
	SaveMetrics(ctx context.Context, goals []goal.Goal, computedAt time.Time) error
}

// SummaryCache holds computed summaries. cache.SummaryCache implements it.
type SummaryCache interface {
	Get(ctx context.Context, orgID string, level goal.Level, asOf time.Time) (goal.Summary, bool, error)
	Set(ctx context.Context, orgID string, level goal.Level, asOf time.Time, s goal.Summary) error
	Invalidate(ctx context.Context, orgID string) (int, error)
}

// Options configures an AlignmentService.
type Options struct {
	Propagate        goal.PropagateOptions
	Summary          goal.SummaryOptions
	StagnationWindow time.Duration
}

// AlignmentService loads goal snapshots, runs the engine over them and
// writes the computed values back.
type AlignmentService struct {
	store   GoalStore
	cache   SummaryCache // nil disables caching
	opts    Options
	monitor *goal.ProgressMonitor
	status  *goal.StatusMachine
	logger  *EngineLogger
	newID   func() string
}

// NewAlignmentService wires the service. cache may be nil.
func NewAlignmentService(store GoalStore, cache SummaryCache, opts Options) *AlignmentService {
	monitor := goal.NewProgressMonitor()
	if opts.StagnationWindow > 0 {
		monitor.StagnationWindow = opts.StagnationWindow
	}
	s := &AlignmentService{
		store:   store,
		cache:   cache,
		opts:    opts,
		monitor: monitor,
		status:  goal.NewStatusMachine(),
		logger:  NewEngineLogger(),
		newID:   func() string { return uuid.New().String() },
	}
	s.status.AddListener(func(goalID string, from, to goal.Status, at time.Time) {
		statusTransitionsTotal.WithLabelValues(string(to)).Inc()
		s.logger.LogStatusTransition(goalID, from, to, "risk reclassified at "+at.Format(time.RFC3339))
	})
	return s
}

// ProgressResult is the outcome of RecordProgress.
type ProgressResult struct {
	Entry goal.ProgressEntry `json:"entry"`
	Tree  *goal.Node         `json:"tree"`
}

// RecomputeReport summarises an organisation-wide recompute.
type RecomputeReport struct {
	OrganizationID string            `json:"organization_id"`
	Hierarchies    int               `json:"hierarchies"`
	GoalsUpdated   int               `json:"goals_updated"`
	Transitions    int               `json:"transitions"`
	Failed         []FailedHierarchy `json:"failed"`
	Stagnant       []string          `json:"stagnant"`
	Trees          []*goal.Node      `json:"-"`
}

// FailedHierarchy is a hierarchy that could not be propagated.
type FailedHierarchy struct {
	RootID string `json:"root_id"`
	Error  string `json:"error"`
}

// EvaluateGoal returns the metrics of one goal at asOf. Progress of a parent
// goal is rolled up from its subtree first.
func (s *AlignmentService) EvaluateGoal(ctx context.Context, goalID string, asOf time.Time) (goal.Metrics, error) {
	g, err := s.store.GetGoal(ctx, goalID)
	if err != nil {
		return goal.Metrics{}, err
	}
	h, err := s.snapshot(ctx, g.OrganizationID)
	if err != nil {
		return goal.Metrics{}, err
	}
	tree, err := goal.Propagate(h, goalID, s.opts.Propagate)
	if err != nil {
		return goal.Metrics{}, err
	}
	children := make([]goal.Goal, len(tree.Children))
	for i, c := range tree.Children {
		children[i] = c.Goal
	}
	if _, err := goal.ResolveProgress(tree.Goal, children); err != nil {
		return goal.Metrics{}, err
	}
	return goal.EvaluateGoal(rollupView(tree), asOf)
}

// Propagate rolls up the hierarchy rooted at rootID, classifies risk for
// every goal in it and persists the result.
func (s *AlignmentService) Propagate(ctx context.Context, rootID string, asOf time.Time) (*goal.Node, error) {
	g, err := s.store.GetGoal(ctx, rootID)
	if err != nil {
		return nil, err
	}
	h, err := s.snapshot(ctx, g.OrganizationID)
	if err != nil {
		return nil, err
	}
	tree, err := s.propagateAndSave(ctx, h, rootID, asOf, "manual")
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, g.OrganizationID)
	return tree, nil
}

// RecordProgress appends a progress entry for goalID and re-propagates the
// hierarchy containing it from its root. The entry is kept even when the
// re-propagation fails; the error is still returned.
func (s *AlignmentService) RecordProgress(ctx context.Context, goalID string, u goal.ProgressUpdate, at time.Time) (ProgressResult, error) {
	g, err := s.store.GetGoal(ctx, goalID)
	if err != nil {
		return ProgressResult{}, err
	}
	u.Comment = textutil.SanitizeComment(u.Comment)

	updated, entry, err := s.monitor.ApplyProgress(g, u, s.newID(), at)
	if err != nil {
		return ProgressResult{}, err
	}
	if err := s.store.RecordProgress(ctx, updated, entry); err != nil {
		return ProgressResult{}, err
	}
	progressEntriesTotal.Inc()
	s.logger.LogProgressRecorded(entry)
	defer s.invalidate(ctx, g.OrganizationID)

	result := ProgressResult{Entry: entry}
	h, err := s.snapshot(ctx, g.OrganizationID)
	if err != nil {
		return result, err
	}
	rootID, err := h.RootOf(goalID)
	if err != nil {
		return result, err
	}
	tree, err := s.propagateAndSave(ctx, h, rootID, at, "progress")
	if err != nil {
		return result, err
	}
	result.Tree = tree
	return result, nil
}

// History returns a goal's append-only progress log, oldest first.
func (s *AlignmentService) History(ctx context.Context, goalID string) ([]goal.ProgressEntry, error) {
	if _, err := s.store.GetGoal(ctx, goalID); err != nil {
		return nil, err
	}
	return s.store.ListProgress(ctx, goalID)
}

// Summary returns the analytics summary for an organisation, or for one
// level of it when level is set. asOf is evaluated to the second, which is
// also the cache granularity.
func (s *AlignmentService) Summary(ctx context.Context, orgID string, level goal.Level, asOf time.Time) (goal.Summary, error) {
	asOf = asOf.UTC().Truncate(time.Second)
	if level != "" {
		if _, err := goal.ParseLevel(string(level)); err != nil {
			return goal.Summary{}, err
		}
	}
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, orgID, level, asOf)
		switch {
		case err != nil:
			summaryCacheTotal.WithLabelValues("error").Inc()
			s.logger.LogError("summary cache get", err, map[string]interface{}{"org": orgID})
		case ok:
			summaryCacheTotal.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			summaryCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	goals, err := s.store.ListGoals(ctx, orgID)
	if err != nil {
		return goal.Summary{}, err
	}
	history, err := s.store.ListOrgProgress(ctx, orgID, asOf.Add(-s.opts.Summary.RecentWindow))
	if err != nil {
		return goal.Summary{}, err
	}

	goals = withRollups(goals)
	var summary goal.Summary
	if level == "" {
		summary = goal.Summarize(goals, history, asOf, s.opts.Summary)
	} else {
		for _, ls := range goal.SummarizeByLevel(goals, history, asOf, s.opts.Summary) {
			if ls.Level == level {
				summary = ls
				break
			}
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, orgID, level, asOf, summary); err != nil {
			s.logger.LogError("summary cache set", err, map[string]interface{}{"org": orgID})
		}
	}
	return summary, nil
}

// RecomputeOrg propagates every hierarchy of an organisation, applies
// risk-driven status changes and persists the result. A hierarchy that
// fails is reported and does not stop the others.
func (s *AlignmentService) RecomputeOrg(ctx context.Context, orgID string, asOf time.Time) (RecomputeReport, error) {
	started := time.Now()
	report := RecomputeReport{OrganizationID: orgID, Failed: []FailedHierarchy{}, Stagnant: []string{}}

	goals, err := s.store.ListGoals(ctx, orgID)
	if err != nil {
		return report, err
	}
	rels, err := s.store.ListRelationships(ctx, orgID)
	if err != nil {
		return report, err
	}
	h, err := goal.NewHierarchy(goals, rels)
	if err != nil {
		return report, err
	}

	var updated []goal.Goal
	for _, res := range goal.PropagateAll(h, s.opts.Propagate) {
		report.Hierarchies++
		if res.Err == nil {
			var transitions int
			transitions, res.Err = s.annotate(res.Tree, nil, asOf)
			report.Transitions += transitions
		}
		if res.Err != nil {
			propagationTotal.WithLabelValues("recompute", "failed").Inc()
			if errors.Is(res.Err, goal.ErrCyclicHierarchy) {
				s.logger.LogCycleDetected(orgID, res.RootID, res.Err)
			} else {
				s.logger.LogError("recompute hierarchy", res.Err, map[string]interface{}{"org": orgID, "root": res.RootID})
			}
			report.Failed = append(report.Failed, FailedHierarchy{RootID: res.RootID, Error: res.Err.Error()})
			continue
		}
		propagationTotal.WithLabelValues("recompute", "ok").Inc()
		report.Trees = append(report.Trees, res.Tree)
		updated = append(updated, res.Tree.Flatten()...)
	}

	if err := s.store.SaveMetrics(ctx, updated, asOf); err != nil {
		return report, err
	}
	report.GoalsUpdated = len(updated)

	history, err := s.store.ListOrgProgress(ctx, orgID, asOf.Add(-s.monitor.StagnationWindow))
	if err != nil {
		return report, err
	}
	for _, g := range goals {
		if s.monitor.DetectStagnation(g, history, asOf) {
			report.Stagnant = append(report.Stagnant, g.ID)
		}
	}

	s.invalidate(ctx, orgID)
	duration := time.Since(started)
	propagationDuration.WithLabelValues("recompute").Observe(duration.Seconds())
	s.logger.LogRecompute(report, duration)
	return report, nil
}

// Organizations lists every organisation that owns goals.
func (s *AlignmentService) Organizations(ctx context.Context) ([]string, error) {
	return s.store.ListOrganizations(ctx)
}

func (s *AlignmentService) snapshot(ctx context.Context, orgID string) (*goal.Hierarchy, error) {
	goals, err := s.store.ListGoals(ctx, orgID)
	if err != nil {
		return nil, err
	}
	rels, err := s.store.ListRelationships(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return goal.NewHierarchy(goals, rels)
}

func (s *AlignmentService) propagateAndSave(ctx context.Context, h *goal.Hierarchy, rootID string, asOf time.Time, trigger string) (*goal.Node, error) {
	started := time.Now()
	tree, err := s.propagateTree(ctx, h, rootID, asOf)
	if err != nil {
		propagationTotal.WithLabelValues(trigger, "failed").Inc()
		return nil, fmt.Errorf("propagate %s: %w", rootID, err)
	}
	duration := time.Since(started)
	propagationTotal.WithLabelValues(trigger, "ok").Inc()
	propagationDuration.WithLabelValues(trigger).Observe(duration.Seconds())
	s.logger.LogPropagation(rootID, len(tree.Flatten()), tree.Goal.Progress, duration)
	return tree, nil
}

func (s *AlignmentService) propagateTree(ctx context.Context, h *goal.Hierarchy, rootID string, asOf time.Time) (*goal.Node, error) {
	tree, err := goal.Propagate(h, rootID, s.opts.Propagate)
	if err != nil {
		return nil, err
	}
	if _, err := s.annotate(tree, nil, asOf); err != nil {
		return nil, err
	}
	if err := s.store.SaveMetrics(ctx, tree.Flatten(), asOf); err != nil {
		return nil, err
	}
	return tree, nil
}

// annotate validates each node against its parent, then classifies risk and
// applies the status change it implies. Children are handled first.
func (s *AlignmentService) annotate(n *goal.Node, parent *goal.Goal, asOf time.Time) (int, error) {
	if err := goal.ValidateGoal(n.Goal, parent); err != nil {
		return 0, err
	}
	if n.Shared {
		// classified where it is expanded
		return 0, nil
	}
	transitions := 0
	for _, child := range n.Children {
		t, err := s.annotate(child, &n.Goal, asOf)
		if err != nil {
			return 0, err
		}
		transitions += t
	}

	risk, err := goal.DetectRisk(rollupView(n), asOf)
	if err != nil {
		return 0, err
	}
	n.Goal.RiskLevel = risk
	if next, changed := goal.RiskStatus(n.Goal.Status, risk); changed {
		if err := s.status.Transition(&n.Goal, next, asOf); err != nil {
			return 0, err
		}
		transitions++
	}
	return transitions, nil
}

// rollupView returns the node's goal so that the calculator reads the
// rolled-up progress of a parent rather than its own current value.
func rollupView(n *goal.Node) goal.Goal {
	g := n.Goal
	if len(n.Children) > 0 || len(g.ChildGoalIDs) > 0 {
		g.TargetValue = nil
	}
	return g
}

// withRollups applies the same rule to stored goals, using the child list
// persisted by the last propagation.
func withRollups(goals []goal.Goal) []goal.Goal {
	out := make([]goal.Goal, len(goals))
	for i, g := range goals {
		if len(g.ChildGoalIDs) > 0 {
			g.TargetValue = nil
		}
		out[i] = g
	}
	return out
}

func (s *AlignmentService) invalidate(ctx context.Context, orgID string) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Invalidate(ctx, orgID); err != nil {
		s.logger.LogError("summary cache invalidate", err, map[string]interface{}{"org": orgID})
	}
}
