package values

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/scrypster/attune/pkg/types"
)

// ResolveConflict picks the winning value for a detected tension. The
// decision ladder is:
//
//  1. a registered custom priority whose context pattern matches,
//  2. the clearly more applicable value (gap above the configured
//     threshold),
//  3. the statically more important value,
//
// with value-ID order as the final tiebreak. The result is symmetric:
// swapping the tension's A and B never changes the winner.
func (e *Engine) ResolveConflict(tension types.ValueTension, ctx *types.ConversationContext) (string, error) {
	a := e.valueByID(tension.ValueIDA)
	b := e.valueByID(tension.ValueIDB)
	if a == nil || b == nil {
		return "", fmt.Errorf("resolve conflict: unknown value in tension %s vs %s", tension.ValueIDA, tension.ValueIDB)
	}

	for _, o := range e.overrides[pairKey(a.ID, b.ID)] {
		if contextMatches(o.contextPattern, ctx) {
			return o.winnerID, nil
		}
	}

	scored := e.RelevantValues(ctx)
	appA, appB := applicabilityOf(scored, a.ID), applicabilityOf(scored, b.ID)
	gap := appA - appB
	if gap < 0 {
		gap = -gap
	}
	if gap > e.cfg.ApplicabilityGap {
		if appA > appB {
			return a.ID, nil
		}
		return b.ID, nil
	}

	if a.Importance != b.Importance {
		if a.Importance > b.Importance {
			return a.ID, nil
		}
		return b.ID, nil
	}

	if a.ID < b.ID {
		return a.ID, nil
	}
	return b.ID, nil
}

// SetCustomPriority registers a per-conversation priority override for a
// value pair. The winner must be one of the pair; contextPattern may be
// empty to apply in every context. Later registrations for the same pair
// take precedence over earlier ones.
func (e *Engine) SetCustomPriority(valueIDA, valueIDB, contextPattern, winnerID string) error {
	if e.valueByID(valueIDA) == nil {
		return fmt.Errorf("set custom priority: unknown value %q", valueIDA)
	}
	if e.valueByID(valueIDB) == nil {
		return fmt.Errorf("set custom priority: unknown value %q", valueIDB)
	}
	if winnerID != valueIDA && winnerID != valueIDB {
		return fmt.Errorf("set custom priority: winner %q is not part of the pair", winnerID)
	}

	key := pairKey(valueIDA, valueIDB)
	e.overrides[key] = append([]priorityOverride{{
		contextPattern: contextPattern,
		winnerID:       winnerID,
	}}, e.overrides[key]...)

	e.logger.Info("custom value priority registered",
		zap.String("conversation_id", e.conversationID),
		zap.String("pair", key),
		zap.String("winner", winnerID))
	return nil
}

// Constraints runs the full arbitration pipeline for a context: score
// relevance, detect tensions, resolve them, and assemble the flat
// constraint set the response styler consumes.
func (e *Engine) Constraints(ctx *types.ConversationContext) (*types.ValueConstraints, error) {
	relevant := e.RelevantValues(ctx)
	if len(relevant) == 0 {
		return &types.ValueConstraints{}, nil
	}

	leader := relevant[0].Value.ID
	for _, tension := range e.IdentifyTensions(relevant) {
		winner, err := e.ResolveConflict(tension, ctx)
		if err != nil {
			return nil, err
		}
		if tension.ValueIDA == leader || tension.ValueIDB == leader {
			leader = winner
		}
	}

	constraints := &types.ValueConstraints{PriorityValueID: leader}
	signals := contextSignals(ctx)
	seen := make(map[string]struct{})

	for _, sv := range relevant {
		switch sv.Value.ID {
		case ValueUserAgency:
			constraints.PreserveUserAgency = true
		case ValueTruthfulness:
			constraints.PrioritizeAccuracy = true
			if ctx.HasQuestion() {
				constraints.AcknowledgeUncertainty = true
			}
		case ValueUserWellbeing:
			if signals[tagEmotionalSupport] > 0 {
				constraints.OfferEmotionalSupport = true
			}
		case ValuePrivacy:
			constraints.RespectPrivacy = true
		case ValueGrowth:
			constraints.EncourageGrowth = true
		}

		for _, m := range sv.Value.Manifestations {
			if signals[m.ContextTag] <= 0 {
				continue
			}
			if _, dup := seen[m.ExpectedBehavior]; dup {
				continue
			}
			seen[m.ExpectedBehavior] = struct{}{}
			constraints.ExpectedBehaviors = append(constraints.ExpectedBehaviors, m.ExpectedBehavior)
		}
	}

	return constraints, nil
}

// Capacity identifies the value engine for reflection-insight routing.
func (e *Engine) Capacity() types.Capacity {
	return types.CapacityValueEngine
}

// Evolve applies a reflection insight. ActionLowerRelevanceBar eases the
// relevance threshold; ActionPreferValue carries its target as a
// "prefer_value:<id>" suffix and nudges that value's importance up.
func (e *Engine) Evolve(insight types.ReflectionInsight) error {
	action := insight.SuggestedAction
	switch {
	case action == types.ActionLowerRelevanceBar:
		if e.cfg.RelevanceThreshold > 0.1 {
			e.cfg.RelevanceThreshold -= 0.05
			e.logger.Info("value engine evolved",
				zap.String("conversation_id", e.conversationID),
				zap.Float64("relevance_threshold", e.cfg.RelevanceThreshold))
		}
	case strings.HasPrefix(action, types.ActionPreferValue+":"):
		id := strings.TrimPrefix(action, types.ActionPreferValue+":")
		v := e.valueByID(id)
		if v == nil {
			return fmt.Errorf("evolve: unknown value %q", id)
		}
		if v.Importance < 0.95 {
			v.Importance += 0.05
			if v.Importance > 0.95 {
				v.Importance = 0.95
			}
			e.logger.Info("value engine evolved",
				zap.String("conversation_id", e.conversationID),
				zap.String("value", id),
				zap.Float64("importance", v.Importance))
		}
	default:
		// Insights are advisory; unhandled actions are ignored.
	}
	return nil
}

func applicabilityOf(scored []types.ScoredValue, valueID string) float64 {
	for _, sv := range scored {
		if sv.Value.ID == valueID {
			return sv.Applicability
		}
	}
	return 0
}
