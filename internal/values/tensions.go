package values

import (
	"fmt"

	"github.com/scrypster/attune/pkg/types"
)

// IdentifyTensions examines every pair of relevant values and reports
// detected conflicts. Each pair yields at most one tension; when several
// conditions hold, interpretation wins over priority, which wins over
// application. Pairs are examined in the (already deterministic) order
// of the scored slice, so the result is stable for a given context.
func (e *Engine) IdentifyTensions(relevant []types.ScoredValue) []types.ValueTension {
	var tensions []types.ValueTension
	for i := 0; i < len(relevant); i++ {
		for j := i + 1; j < len(relevant); j++ {
			if t, ok := e.pairTension(relevant[i], relevant[j]); ok {
				tensions = append(tensions, t)
			}
		}
	}
	return tensions
}

func (e *Engine) pairTension(a, b types.ScoredValue) (types.ValueTension, bool) {
	// Interpretation: the values respond to the same context signal but
	// prescribe different behavior there.
	if shared := sharedTags(a, b); len(shared) > 0 {
		if behaviorsDiffer(a.Value, b.Value, shared) {
			return types.ValueTension{
				ValueIDA:        a.Value.ID,
				ValueIDB:        b.Value.ID,
				Type:            types.TensionInterpretation,
				ContextElements: shared,
				Description: fmt.Sprintf("%s and %s prescribe different behavior for the same context",
					a.Value.ID, b.Value.ID),
			}, true
		}
	}

	// Priority: applicability is near-equal but static importance is not,
	// so context and hierarchy disagree about which matters more here.
	appGap := a.Applicability - b.Applicability
	if appGap < 0 {
		appGap = -appGap
	}
	impGap := a.Value.Importance - b.Value.Importance
	if impGap < 0 {
		impGap = -impGap
	}
	if appGap <= e.cfg.NearEqualBand && impGap > e.cfg.ImportanceGap {
		return types.ValueTension{
			ValueIDA: a.Value.ID,
			ValueIDB: b.Value.ID,
			Type:     types.TensionPriority,
			Description: fmt.Sprintf("%s and %s are equally applicable but differ in importance",
				a.Value.ID, b.Value.ID),
		}, true
	}

	// Application: both values demand attention at once.
	if a.Applicability >= e.cfg.ApplicationTensionFloor && b.Applicability >= e.cfg.ApplicationTensionFloor {
		return types.ValueTension{
			ValueIDA:        a.Value.ID,
			ValueIDB:        b.Value.ID,
			Type:            types.TensionApplication,
			ContextElements: sharedTags(a, b),
			Description: fmt.Sprintf("%s and %s are both strongly applicable",
				a.Value.ID, b.Value.ID),
		}, true
	}

	return types.ValueTension{}, false
}

// sharedTags returns the matched context tags both scored values have in
// common, in a's tag order.
func sharedTags(a, b types.ScoredValue) []string {
	if len(a.MatchedTags) == 0 || len(b.MatchedTags) == 0 {
		return nil
	}
	inB := make(map[string]struct{}, len(b.MatchedTags))
	for _, tag := range b.MatchedTags {
		inB[tag] = struct{}{}
	}
	var shared []string
	for _, tag := range a.MatchedTags {
		if _, ok := inB[tag]; ok {
			shared = append(shared, tag)
		}
	}
	return shared
}

// behaviorsDiffer reports whether the two values prescribe different
// expected behavior for any of the shared tags.
func behaviorsDiffer(a, b types.CoreValue, shared []string) bool {
	for _, tag := range shared {
		var behaviorA, behaviorB string
		for _, m := range a.Manifestations {
			if m.ContextTag == tag {
				behaviorA = m.ExpectedBehavior
			}
		}
		for _, m := range b.Manifestations {
			if m.ContextTag == tag {
				behaviorB = m.ExpectedBehavior
			}
		}
		if behaviorA != "" && behaviorB != "" && behaviorA != behaviorB {
			return true
		}
	}
	return false
}
