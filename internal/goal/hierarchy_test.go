package goal

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// threeLevelTree returns R -> {M1, M2}, M1 -> {L1a, L1b}, M2 -> {L2a, L2b}.
// Expected: M1 = 75, M2 = 10, R = round(42.5) = 43.
func threeLevelTree() []Goal {
	return []Goal{
		newGoal("R", LevelCompany),
		withParent(newGoal("M1", LevelDepartment), "R"),
		withParent(newGoal("M2", LevelDepartment), "R"),
		withParent(withValue(newGoal("L1a", LevelTeam), 100), "M1"),
		withParent(withValue(newGoal("L1b", LevelTeam), 50), "M1"),
		withParent(withValue(newGoal("L2a", LevelTeam), 20), "M2"),
		withParent(withValue(newGoal("L2b", LevelTeam), 0), "M2"),
	}
}

func mustHierarchy(t *testing.T, goals []Goal, rels []Relationship) *Hierarchy {
	t.Helper()
	h, err := NewHierarchy(goals, rels)
	if err != nil {
		t.Fatalf("NewHierarchy failed: %v", err)
	}
	return h
}

func progressByID(n *Node) map[string]float64 {
	out := map[string]float64{}
	for _, g := range n.Flatten() {
		out[g.ID] = g.Progress
	}
	return out
}

func TestPropagate_ThreeLevelTree(t *testing.T) {
	h := mustHierarchy(t, threeLevelTree(), nil)
	tree, err := Propagate(h, "R", PropagateOptions{})
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	want := map[string]float64{
		"R": 43, "M1": 75, "M2": 10,
		"L1a": 100, "L1b": 50, "L2a": 20, "L2b": 0,
	}
	if diff := cmp.Diff(want, progressByID(tree)); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"M1", "M2"}, tree.Goal.ChildGoalIDs); diff != "" {
		t.Errorf("child ids mismatch (-want +got):\n%s", diff)
	}
}

func TestPropagate_FlattenIsPostOrder(t *testing.T) {
	h := mustHierarchy(t, threeLevelTree(), nil)
	tree, err := Propagate(h, "R", PropagateOptions{})
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	pos := map[string]int{}
	for i, g := range tree.Flatten() {
		pos[g.ID] = i
	}
	for _, pair := range [][2]string{{"L1a", "M1"}, {"L1b", "M1"}, {"L2a", "M2"}, {"M1", "R"}, {"M2", "R"}} {
		if pos[pair[0]] >= pos[pair[1]] {
			t.Errorf("%s must precede %s in post-order", pair[0], pair[1])
		}
	}
}

func TestPropagate_OrderIndependent(t *testing.T) {
	goals := threeLevelTree()
	sequential, err := Propagate(mustHierarchy(t, goals, nil), "R", PropagateOptions{})
	if err != nil {
		t.Fatalf("sequential propagate failed: %v", err)
	}

	reversed := make([]Goal, len(goals))
	for i, g := range goals {
		reversed[len(goals)-1-i] = g
	}
	permuted, err := Propagate(mustHierarchy(t, reversed, nil), "R", PropagateOptions{})
	if err != nil {
		t.Fatalf("permuted propagate failed: %v", err)
	}
	parallel, err := Propagate(mustHierarchy(t, goals, nil), "R", PropagateOptions{ParallelDepth: 4})
	if err != nil {
		t.Fatalf("parallel propagate failed: %v", err)
	}

	if diff := cmp.Diff(sequential, permuted); diff != "" {
		t.Errorf("input order changed the tree (-seq +perm):\n%s", diff)
	}
	if diff := cmp.Diff(sequential, parallel); diff != "" {
		t.Errorf("parallel traversal changed the tree (-seq +par):\n%s", diff)
	}
}

func TestPropagate_Idempotent(t *testing.T) {
	first, err := Propagate(mustHierarchy(t, threeLevelTree(), nil), "R", PropagateOptions{})
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	second, err := Propagate(mustHierarchy(t, first.Flatten(), nil), "R", PropagateOptions{})
	if err != nil {
		t.Fatalf("second Propagate failed: %v", err)
	}
	if diff := cmp.Diff(progressByID(first), progressByID(second)); diff != "" {
		t.Errorf("re-propagation changed values (-first +second):\n%s", diff)
	}
}

func TestPropagate_DoesNotMutateSnapshot(t *testing.T) {
	goals := threeLevelTree()
	h := mustHierarchy(t, goals, nil)
	if _, err := Propagate(h, "R", PropagateOptions{}); err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	for _, g := range goals {
		if g.Progress != 0 {
			t.Errorf("input goal %s was mutated: progress %v", g.ID, g.Progress)
		}
	}
	if g, _ := h.Goal("R"); g.Progress != 0 {
		t.Errorf("hierarchy snapshot was mutated: progress %v", g.Progress)
	}
}

func TestPropagate_Cycle(t *testing.T) {
	goals := []Goal{newGoal("A", LevelTeam), newGoal("B", LevelTeam)}
	rels := []Relationship{
		{ParentID: "A", ChildID: "B", Type: RelationshipCascade},
		{ParentID: "B", ChildID: "A", Type: RelationshipCascade},
	}
	h := mustHierarchy(t, goals, rels)
	_, err := Propagate(h, "A", PropagateOptions{})
	if !errors.Is(err, ErrCyclicHierarchy) {
		t.Fatalf("expected ErrCyclicHierarchy, got %v", err)
	}
	if id, ok := OffendingGoal(err); !ok || id != "A" {
		t.Errorf("expected offending goal A, got %q", id)
	}

	// The parallel path must terminate the same way.
	if _, err := Propagate(h, "A", PropagateOptions{ParallelDepth: 3}); !errors.Is(err, ErrCyclicHierarchy) {
		t.Errorf("parallel: expected ErrCyclicHierarchy, got %v", err)
	}
}

func TestPropagate_SelfLoop(t *testing.T) {
	g := withParent(newGoal("A", LevelTeam), "A")
	h := mustHierarchy(t, []Goal{g}, nil)
	if _, err := Propagate(h, "A", PropagateOptions{}); !errors.Is(err, ErrCyclicHierarchy) {
		t.Errorf("expected ErrCyclicHierarchy, got %v", err)
	}
}

func TestPropagate_UnknownChild(t *testing.T) {
	rels := []Relationship{{ParentID: "R", ChildID: "ghost", Type: RelationshipCascade}}
	h := mustHierarchy(t, []Goal{newGoal("R", LevelCompany)}, rels)
	_, err := Propagate(h, "R", PropagateOptions{})
	if !errors.Is(err, ErrUnknownGoal) {
		t.Fatalf("expected ErrUnknownGoal, got %v", err)
	}
	if id, _ := OffendingGoal(err); id != "ghost" {
		t.Errorf("expected offending goal ghost, got %q", id)
	}
}

func TestPropagate_IgnoresInformationalEdges(t *testing.T) {
	goals := []Goal{
		newGoal("R", LevelCompany),
		withParent(withValue(newGoal("A", LevelTeam), 80), "R"),
		withValue(newGoal("B", LevelTeam), 0),
	}
	rels := []Relationship{
		{ParentID: "R", ChildID: "B", Type: RelationshipDependency, Weight: 5},
		{ParentID: "R", ChildID: "B", Type: RelationshipRelated},
	}
	tree, err := Propagate(mustHierarchy(t, goals, rels), "R", PropagateOptions{})
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	if tree.Goal.Progress != 80 {
		t.Errorf("expected only cascade child to count (80), got %v", tree.Goal.Progress)
	}
}

func TestPropagate_WeightedMode(t *testing.T) {
	rels := []Relationship{{ParentID: "R", ChildID: "M1", Type: RelationshipCascade, Weight: 3}}
	h := mustHierarchy(t, threeLevelTree(), rels)

	uniform, err := Propagate(h, "R", PropagateOptions{Mode: AggregateUniform})
	if err != nil {
		t.Fatalf("uniform propagate failed: %v", err)
	}
	if uniform.Goal.Progress != 43 {
		t.Errorf("uniform mode must ignore weights: expected 43, got %v", uniform.Goal.Progress)
	}

	weighted, err := Propagate(h, "R", PropagateOptions{Mode: AggregateByWeight})
	if err != nil {
		t.Fatalf("weighted propagate failed: %v", err)
	}
	// (75*3 + 10*1) / 4 = 58.75
	if weighted.Goal.Progress != 59 {
		t.Errorf("expected 59, got %v", weighted.Goal.Progress)
	}

	if _, err := Propagate(h, "R", PropagateOptions{Mode: "median"}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for unknown mode, got %v", err)
	}
}

func TestPropagateAll_IsolatesFailures(t *testing.T) {
	goals := append(threeLevelTree(), newGoal("A", LevelTeam), newGoal("B", LevelTeam))
	rels := []Relationship{
		{ParentID: "A", ChildID: "B", Type: RelationshipCascade},
		{ParentID: "B", ChildID: "A", Type: RelationshipCascade},
	}
	h := mustHierarchy(t, goals, rels)

	for _, depth := range []int{0, 2} {
		results := PropagateAll(h, PropagateOptions{ParallelDepth: depth})
		if len(results) != 2 {
			t.Fatalf("depth %d: expected 2 results, got %d", depth, len(results))
		}
		if results[0].RootID != "R" || results[0].Err != nil || results[0].Tree.Goal.Progress != 43 {
			t.Errorf("depth %d: healthy hierarchy affected: %+v", depth, results[0])
		}
		if !errors.Is(results[1].Err, ErrCyclicHierarchy) {
			t.Errorf("depth %d: expected cycle error, got %v", depth, results[1].Err)
		}
	}
}

func TestHierarchy_RootsAndRootOf(t *testing.T) {
	h := mustHierarchy(t, threeLevelTree(), nil)
	if diff := cmp.Diff([]string{"R"}, h.Roots()); diff != "" {
		t.Errorf("roots mismatch (-want +got):\n%s", diff)
	}
	root, err := h.RootOf("L2b")
	if err != nil || root != "R" {
		t.Errorf("expected root R, got %q (err %v)", root, err)
	}
	if _, err := h.RootOf("nope"); !errors.Is(err, ErrUnknownGoal) {
		t.Errorf("expected ErrUnknownGoal, got %v", err)
	}
}

func TestNewHierarchy_RejectsDuplicatesAndBadEdges(t *testing.T) {
	if _, err := NewHierarchy([]Goal{newGoal("A", LevelTeam), newGoal("A", LevelTeam)}, nil); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for duplicate ids, got %v", err)
	}
	rels := []Relationship{{ParentID: "A", ChildID: "A", Type: "blocks"}}
	if _, err := NewHierarchy([]Goal{newGoal("A", LevelTeam)}, rels); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for unknown edge type, got %v", err)
	}
}

// layeredGraph links every goal to both goals of the layer above, so the
// number of root-to-leaf paths doubles with each layer.
func layeredGraph(layers int) ([]Goal, []Relationship) {
	goals := []Goal{newGoal("R", LevelCompany)}
	var rels []Relationship
	above := []string{"R"}
	for i := 1; i <= layers; i++ {
		var current []string
		for _, suffix := range []string{"a", "b"} {
			g := newGoal(fmt.Sprintf("L%02d%s", i, suffix), LevelTeam)
			if i == layers {
				v := 0.0
				if suffix == "a" {
					v = 100
				}
				g = withValue(g, v)
			}
			goals = append(goals, g)
			current = append(current, g.ID)
			for _, parentID := range above {
				rels = append(rels, Relationship{ParentID: parentID, ChildID: g.ID, Type: RelationshipCascade})
			}
		}
		above = current
	}
	return goals, rels
}

func TestPropagate_SharedChildrenAggregatedOnce(t *testing.T) {
	goals, rels := layeredGraph(30)
	h := mustHierarchy(t, goals, rels)

	tree, err := Propagate(h, "R", PropagateOptions{})
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	flat := tree.Flatten()
	if len(flat) != len(goals) {
		t.Fatalf("expected %d goals, got %d", len(goals), len(flat))
	}
	for _, g := range flat {
		if g.ID == "L30a" || g.ID == "L30b" {
			continue
		}
		if g.Progress != 50 {
			t.Errorf("%s: expected progress 50, got %v", g.ID, g.Progress)
		}
	}

	shared := 0
	var walk func(*Node)
	walk = func(n *Node) {
		if n.Shared {
			shared++
			if len(n.Children) != 0 {
				t.Errorf("%s: shared node should not repeat its subtree", n.Goal.ID)
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(tree)
	// Every goal below the first layer has two parents; one occurrence is expanded.
	if shared != 58 {
		t.Errorf("expected 58 shared occurrences, got %d", shared)
	}

	parallel, err := Propagate(h, "R", PropagateOptions{ParallelDepth: 4})
	if err != nil {
		t.Fatalf("parallel Propagate failed: %v", err)
	}
	if diff := cmp.Diff(tree, parallel); diff != "" {
		t.Errorf("parallel tree differs (-seq +par):\n%s", diff)
	}
}

func TestPropagate_SharedChildKeepsEdgeWeight(t *testing.T) {
	goals := []Goal{
		newGoal("R", LevelCompany),
		withParent(newGoal("A", LevelDepartment), "R"),
		withParent(newGoal("B", LevelDepartment), "R"),
		withValue(newGoal("X", LevelTeam), 40),
	}
	rels := []Relationship{
		{ParentID: "A", ChildID: "X", Type: RelationshipCascade, Weight: 1},
		{ParentID: "B", ChildID: "X", Type: RelationshipCascade, Weight: 3},
	}
	h := mustHierarchy(t, goals, rels)
	tree, err := Propagate(h, "R", PropagateOptions{Mode: AggregateByWeight})
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	a, b := tree.Children[0], tree.Children[1]
	if a.Children[0].Shared || !b.Children[0].Shared {
		t.Fatalf("X should be expanded under A and shared under B")
	}
	if b.Children[0].Weight != 3 {
		t.Errorf("shared occurrence should keep its edge weight, got %v", b.Children[0].Weight)
	}
	if diff := cmp.Diff(map[string]float64{"R": 40, "A": 40, "B": 40, "X": 40}, progressByID(tree)); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
}

func TestPropagate_CycleBelowSharedChild(t *testing.T) {
	goals := []Goal{
		newGoal("R", LevelCompany),
		withParent(newGoal("A", LevelDepartment), "R"),
		withParent(newGoal("B", LevelDepartment), "R"),
		newGoal("X", LevelTeam),
		newGoal("Y", LevelTeam),
	}
	rels := []Relationship{
		{ParentID: "A", ChildID: "X", Type: RelationshipCascade},
		{ParentID: "B", ChildID: "X", Type: RelationshipCascade},
		{ParentID: "X", ChildID: "Y", Type: RelationshipCascade},
		{ParentID: "Y", ChildID: "X", Type: RelationshipCascade},
	}
	h := mustHierarchy(t, goals, rels)
	if _, err := Propagate(h, "R", PropagateOptions{}); !errors.Is(err, ErrCyclicHierarchy) {
		t.Errorf("expected ErrCyclicHierarchy, got %v", err)
	}
}
