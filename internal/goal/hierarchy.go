package goal

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

type cascadeEdge struct {
	childID string
	weight  float64
}

// Hierarchy is an immutable index over a goal snapshot and its cascade edges.
type Hierarchy struct {
	goals    map[string]Goal
	ids      []string
	children map[string][]cascadeEdge
	parents  map[string]int
}

// NewHierarchy indexes goals and their cascade relationships. Children come
// from cascade edges and from each goal's ParentGoalID; dependency and related
// edges are ignored. Edges whose parent is outside the snapshot are dropped.
func NewHierarchy(goals []Goal, rels []Relationship) (*Hierarchy, error) {
	h := &Hierarchy{
		goals:    make(map[string]Goal, len(goals)),
		ids:      make([]string, 0, len(goals)),
		children: make(map[string][]cascadeEdge),
		parents:  make(map[string]int),
	}
	for _, g := range goals {
		if _, dup := h.goals[g.ID]; dup {
			return nil, newError("build hierarchy", g.ID, fmt.Errorf("duplicate goal: %w", ErrInvalidValue))
		}
		h.goals[g.ID] = g
		h.ids = append(h.ids, g.ID)
	}
	sort.Strings(h.ids)

	// parent -> child -> weight
	edges := make(map[string]map[string]float64)
	addEdge := func(parentID, childID string, weight float64) {
		if _, ok := h.goals[parentID]; !ok {
			return
		}
		if weight <= 0 {
			weight = DefaultRelationshipWeight
		}
		if edges[parentID] == nil {
			edges[parentID] = make(map[string]float64)
		}
		edges[parentID][childID] = weight
	}

	for _, r := range rels {
		switch r.Type {
		case RelationshipCascade:
			addEdge(r.ParentID, r.ChildID, r.Weight)
		case RelationshipDependency, RelationshipRelated:
			// informational only
		default:
			return nil, newError("build hierarchy", r.ChildID, fmt.Errorf("relationship type %q: %w", r.Type, ErrInvalidValue))
		}
	}
	for _, id := range h.ids {
		g := h.goals[id]
		if g.ParentGoalID == nil || *g.ParentGoalID == "" {
			continue
		}
		if existing, ok := edges[*g.ParentGoalID]; ok {
			if _, linked := existing[id]; linked {
				continue
			}
		}
		addEdge(*g.ParentGoalID, id, DefaultRelationshipWeight)
	}

	for parentID, kids := range edges {
		list := make([]cascadeEdge, 0, len(kids))
		for childID, w := range kids {
			list = append(list, cascadeEdge{childID: childID, weight: w})
			if _, ok := h.goals[childID]; ok {
				h.parents[childID]++
			}
		}
		sort.Slice(list, func(i, j int) bool { return list[i].childID < list[j].childID })
		h.children[parentID] = list
	}
	return h, nil
}

// Goal returns the snapshot entry for id.
func (h *Hierarchy) Goal(id string) (Goal, bool) {
	g, ok := h.goals[id]
	return g, ok
}

// ChildIDs returns the cascade children of id, ordered by id.
func (h *Hierarchy) ChildIDs(id string) []string {
	edges := h.children[id]
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.childID
	}
	return out
}

// Roots returns goals with no cascade parent inside the snapshot, ordered by id.
func (h *Hierarchy) Roots() []string {
	var roots []string
	for _, id := range h.ids {
		if h.parents[id] == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// RootOf walks parent links from id until it reaches a root.
func (h *Hierarchy) RootOf(id string) (string, error) {
	if _, ok := h.goals[id]; !ok {
		return "", newError("find root", id, ErrUnknownGoal)
	}
	seen := map[string]bool{}
	current := id
	for {
		if seen[current] {
			return "", newError("find root", current, ErrCyclicHierarchy)
		}
		seen[current] = true
		parent, ok := h.firstParent(current)
		if !ok {
			return current, nil
		}
		current = parent
	}
}

func (h *Hierarchy) firstParent(id string) (string, bool) {
	if h.parents[id] == 0 {
		return "", false
	}
	// Prefer the declared parent, then the smallest-id cascade parent.
	if g := h.goals[id]; g.ParentGoalID != nil {
		if _, ok := h.goals[*g.ParentGoalID]; ok {
			return *g.ParentGoalID, true
		}
	}
	for _, pid := range h.ids {
		for _, e := range h.children[pid] {
			if e.childID == id {
				return pid, true
			}
		}
	}
	return "", false
}

// Node is one goal in a propagated tree, with Progress refreshed.
// A goal with several parents is expanded under the first one reached in
// child-id order; later occurrences are Shared and carry no Children.
type Node struct {
	Goal     Goal    `json:"goal"`
	Weight   float64 `json:"weight"`
	Shared   bool    `json:"shared,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Flatten returns the tree's goals in post-order, each id once.
func (n *Node) Flatten() []Goal {
	var out []Goal
	seen := map[string]bool{}
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, c := range cur.Children {
			walk(c)
		}
		if !seen[cur.Goal.ID] {
			seen[cur.Goal.ID] = true
			out = append(out, cur.Goal)
		}
	}
	walk(n)
	return out
}

// PropagateOptions tunes Propagate.
type PropagateOptions struct {
	Mode AggregationMode
	// ParallelDepth forks sibling subtrees concurrently while depth < ParallelDepth.
	// Zero keeps traversal sequential.
	ParallelDepth int
}

// ancestry is the immutable path from the root to the node being visited.
// Each branch extends its own copy so concurrent siblings never share state.
type ancestry struct {
	id     string
	parent *ancestry
}

func (a *ancestry) contains(id string) bool {
	for cur := a; cur != nil; cur = cur.parent {
		if cur.id == id {
			return true
		}
	}
	return false
}

// finalised holds the goals whose subtree is fully aggregated during one
// Propagate call. Each goal is aggregated once however many parents it has.
type finalised struct {
	mu    sync.Mutex
	goals map[string]Goal
}

func (f *finalised) get(id string) (Goal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[id]
	return g, ok
}

func (f *finalised) put(g Goal) {
	f.mu.Lock()
	f.goals[g.ID] = g
	f.mu.Unlock()
}

// Propagate refreshes progress bottom-up for the tree rooted at rootID.
// Leaves use ComputeProgress; each parent aggregates its finalised children.
// The snapshot is not modified. A goal reached twice on one path yields
// ErrCyclicHierarchy.
func Propagate(h *Hierarchy, rootID string, opts PropagateOptions) (*Node, error) {
	mode, err := ParseAggregationMode(string(opts.Mode))
	if err != nil {
		return nil, newError("propagate", rootID, err)
	}
	opts.Mode = mode
	done := &finalised{goals: make(map[string]Goal)}
	if _, err := h.aggregate(rootID, nil, 0, opts, done); err != nil {
		return nil, err
	}
	return h.build(rootID, DefaultRelationshipWeight, done.goals, map[string]bool{}), nil
}

func (h *Hierarchy) aggregate(id string, path *ancestry, depth int, opts PropagateOptions, done *finalised) (Goal, error) {
	g, ok := h.goals[id]
	if !ok {
		return Goal{}, newError("propagate", id, ErrUnknownGoal)
	}
	if path.contains(id) {
		return Goal{}, newError("propagate", id, ErrCyclicHierarchy)
	}
	if f, ok := done.get(id); ok {
		return f, nil
	}

	edges := h.children[id]
	g.ChildGoalIDs = h.ChildIDs(id)
	if len(edges) == 0 {
		g.Progress = ComputeProgress(g)
		done.put(g)
		return g, nil
	}

	here := &ancestry{id: id, parent: path}
	kids := make([]Goal, len(edges))
	errs := make([]error, len(edges))

	if depth < opts.ParallelDepth && len(edges) > 1 {
		var eg errgroup.Group
		for i, e := range edges {
			i, e := i, e
			eg.Go(func() error {
				kids[i], errs[i] = h.aggregate(e.childID, here, depth+1, opts, done)
				return nil
			})
		}
		_ = eg.Wait()
	} else {
		for i, e := range edges {
			kids[i], errs[i] = h.aggregate(e.childID, here, depth+1, opts, done)
			if errs[i] != nil {
				break
			}
		}
	}
	// Lowest-index failure wins so parallel and sequential runs agree.
	for _, err := range errs {
		if err != nil {
			return Goal{}, err
		}
	}

	switch opts.Mode {
	case AggregateByWeight:
		weighted := make([]WeightedChild, len(kids))
		for i, k := range kids {
			weighted[i] = WeightedChild{Goal: k, Weight: edges[i].weight}
		}
		g.Progress = float64(AggregateWeighted(g, weighted))
	case AggregateUniform:
		g.Progress = float64(AggregateParentProgress(g, kids))
	}
	done.put(g)
	return g, nil
}

// build lays the aggregated goals out as a tree. It runs after aggregate
// succeeded, so every goal below id is present and acyclic.
func (h *Hierarchy) build(id string, weight float64, goals map[string]Goal, expanded map[string]bool) *Node {
	n := &Node{Goal: goals[id], Weight: weight}
	if expanded[id] {
		n.Shared = true
		return n
	}
	expanded[id] = true
	for _, e := range h.children[id] {
		n.Children = append(n.Children, h.build(e.childID, e.weight, goals, expanded))
	}
	return n
}

// RootResult is the outcome of propagating one hierarchy in a snapshot.
type RootResult struct {
	RootID string
	Tree   *Node
	Err    error
}

// PropagateAll propagates every hierarchy in the snapshot. A failing
// hierarchy is reported in its own result and does not affect the others.
// Goals unreachable from any root sit on or below a cycle and are reported
// as ErrCyclicHierarchy results.
func PropagateAll(h *Hierarchy, opts PropagateOptions) []RootResult {
	roots := h.Roots()
	results := make([]RootResult, len(roots))

	var eg errgroup.Group
	for i, rootID := range roots {
		i, rootID := i, rootID
		run := func() error {
			tree, err := Propagate(h, rootID, opts)
			results[i] = RootResult{RootID: rootID, Tree: tree, Err: err}
			return nil
		}
		if opts.ParallelDepth > 0 {
			eg.Go(run)
		} else {
			_ = run()
		}
	}
	_ = eg.Wait()

	covered := map[string]bool{}
	for _, rootID := range roots {
		h.markReachable(rootID, covered)
	}
	for _, id := range h.ids {
		if covered[id] {
			continue
		}
		start := h.cycleMember(id)
		h.markReachable(start, covered)
		results = append(results, RootResult{
			RootID: start,
			Err:    newError("propagate", start, ErrCyclicHierarchy),
		})
	}
	return results
}

func (h *Hierarchy) markReachable(id string, seen map[string]bool) {
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		for _, e := range h.children[cur] {
			if _, ok := h.goals[e.childID]; ok {
				stack = append(stack, e.childID)
			}
		}
	}
}

// cycleMember follows parent links from an unreachable goal until a goal
// repeats; that goal lies on a cycle.
func (h *Hierarchy) cycleMember(id string) string {
	seen := map[string]bool{}
	current := id
	for !seen[current] {
		seen[current] = true
		parent, ok := h.firstParent(current)
		if !ok {
			return current
		}
		current = parent
	}
	return current
}
