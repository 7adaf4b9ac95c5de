package goal

import "fmt"

// AggregationMode selects how child progress rolls up into a parent.
type AggregationMode string

const (
	// AggregateUniform gives every cascade child weight 1/N.
	AggregateUniform AggregationMode = "uniform"
	// AggregateByWeight scales each child by its relationship weight,
	// normalised by the sum of weights.
	AggregateByWeight AggregationMode = "weighted"
)

// ParseAggregationMode validates a configured aggregation mode.
// The empty string selects uniform weighting.
func ParseAggregationMode(s string) (AggregationMode, error) {
	switch AggregationMode(s) {
	case "":
		return AggregateUniform, nil
	case AggregateUniform, AggregateByWeight:
		return AggregationMode(s), nil
	}
	return "", fmt.Errorf("aggregation mode %q: %w", s, ErrInvalidValue)
}

// WeightedChild pairs a child goal with the weight of its cascade edge.
type WeightedChild struct {
	Goal   Goal
	Weight float64
}

// AggregateParentProgress averages the children's Progress with equal
// weight and rounds half up. Children must already be aggregated.
func AggregateParentProgress(parent Goal, children []Goal) int {
	if len(children) == 0 {
		return 0
	}
	var sum float64
	for _, c := range children {
		sum += clampPercent(c.Progress)
	}
	return clampRounded(sum / float64(len(children)))
}

// AggregateWeighted computes round(Σ w·p / Σ w). Non-positive weights count as 1,
// so equal weights give the same result as AggregateParentProgress.
func AggregateWeighted(parent Goal, children []WeightedChild) int {
	if len(children) == 0 {
		return 0
	}
	var sum, total float64
	for _, c := range children {
		w := c.Weight
		if w <= 0 {
			w = DefaultRelationshipWeight
		}
		sum += clampPercent(c.Goal.Progress) * w
		total += w
	}
	return clampRounded(sum / total)
}

// ResolveProgress computes progress for a single node given its immediate
// children, which must already carry their own progress. A childless goal
// with no target, no current value and no recorded progress has nothing to
// measure and yields ErrMissingTarget.
func ResolveProgress(g Goal, children []Goal) (float64, error) {
	if len(children) > 0 {
		return float64(AggregateParentProgress(g, children)), nil
	}
	if !g.HasTarget() && g.CurrentValue == nil && g.Progress == 0 {
		return 0, newError("resolve progress", g.ID, ErrMissingTarget)
	}
	return ComputeProgress(g), nil
}

func clampRounded(v float64) int {
	r := roundHalfUp(clampPercent(v))
	if r > 100 {
		return 100
	}
	return r
}
