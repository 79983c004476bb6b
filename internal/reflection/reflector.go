// Package reflection implements the self-tuning loop: it mines the
// bounded interaction-outcome log for recurring signals and turns them
// into insights that are routed to the engine components able to act on
// them.
package reflection

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scrypster/attune/internal/clock"
	"github.com/scrypster/attune/internal/config"
	"github.com/scrypster/attune/pkg/types"
)

// Insight confidence formula: min(0.5 + 0.1*evidence, 0.95).
const (
	insightConfidenceBase = 0.5
	insightConfidenceStep = 0.1
	insightConfidenceCap  = 0.95
)

// Tunable is a component that can evolve in response to reflection
// insights. Components declare their capacity; the router dispatches
// each insight to the tunables whose capacity matches its target.
type Tunable interface {
	Capacity() types.Capacity
	Evolve(types.ReflectionInsight) error
}

// Reflector mines interaction outcomes into insights. It is stateless
// between calls; the caller owns the outcome window.
type Reflector struct {
	cfg    config.ReflectionConfig
	clk    clock.Clock
	logger *zap.Logger
}

// NewReflector returns a reflector with the given mining thresholds.
func NewReflector(cfg config.ReflectionConfig, clk clock.Clock, logger *zap.Logger) *Reflector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reflector{cfg: cfg, clk: clk, logger: logger}
}

// Reflect mines one conversation's outcome window and returns the
// derived insights. Only the most recent WindowSize outcomes are
// considered. The result is deterministic for a given window.
func (r *Reflector) Reflect(outcomes []types.InteractionOutcome) []types.ReflectionInsight {
	if len(outcomes) > r.cfg.WindowSize {
		outcomes = outcomes[len(outcomes)-r.cfg.WindowSize:]
	}

	var insights []types.ReflectionInsight
	insights = append(insights, r.mineFrequentIntentions(outcomes)...)
	insights = append(insights, r.mineRecurringErrors(outcomes)...)
	insights = append(insights, r.mineFeedback(outcomes)...)
	insights = append(insights, r.mineSuccessSequences(outcomes)...)
	insights = append(insights, r.mineAggregates(outcomes)...)
	return insights
}

// mineFrequentIntentions promotes intention types the user keeps coming
// back to. Question-heavy conversations widen the attention focus; other
// recurring intentions extend the intent-aging windows instead.
func (r *Reflector) mineFrequentIntentions(outcomes []types.InteractionOutcome) []types.ReflectionInsight {
	counts := make(map[types.IntentionType]int)
	for _, o := range outcomes {
		if o.Kind == types.OutcomeUserMessage && o.IntentionType != "" && o.IntentionType != types.IntentUnknown {
			counts[o.IntentionType]++
		}
	}

	intentTypes := make([]types.IntentionType, 0, len(counts))
	for t := range counts {
		intentTypes = append(intentTypes, t)
	}
	sort.Slice(intentTypes, func(i, j int) bool { return intentTypes[i] < intentTypes[j] })

	var insights []types.ReflectionInsight
	for _, t := range intentTypes {
		count := counts[t]
		if count <= r.cfg.FrequentIntentionMin {
			continue
		}
		insight := r.newInsight(types.InsightPattern,
			fmt.Sprintf("intention %s recurred %d times in the window", t, count), count)
		if t.IsQuestion() {
			insight.TargetCapacity = types.CapacityWorkingMemory
			insight.SuggestedAction = types.ActionRaiseAttentionSize
		} else {
			insight.TargetCapacity = types.CapacityIntentDetector
			insight.SuggestedAction = types.ActionExtendIntentTTL
		}
		insights = append(insights, insight)
	}
	return insights
}

// mineRecurringErrors flags error kinds that repeat. Repeated processing
// errors usually mean context dropped out from under the user, so the
// insight softens entity decay.
func (r *Reflector) mineRecurringErrors(outcomes []types.InteractionOutcome) []types.ReflectionInsight {
	counts := make(map[string]int)
	for _, o := range outcomes {
		if o.Kind == types.OutcomeError && o.ErrorKind != "" {
			counts[o.ErrorKind]++
		}
	}

	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	var insights []types.ReflectionInsight
	for _, kind := range kinds {
		count := counts[kind]
		if count < r.cfg.RecurringErrorMin {
			continue
		}
		insight := r.newInsight(types.InsightWarning,
			fmt.Sprintf("error %q recurred %d times in the window", kind, count), count)
		insight.TargetCapacity = types.CapacityWorkingMemory
		insight.SuggestedAction = types.ActionSoftenEntityDecay
		insights = append(insights, insight)
	}
	return insights
}

// mineFeedback turns clustered negative feedback into a value-engine
// nudge toward user wellbeing.
func (r *Reflector) mineFeedback(outcomes []types.InteractionOutcome) []types.ReflectionInsight {
	negative := 0
	for _, o := range outcomes {
		if o.Kind == types.OutcomeFeedbackNegative {
			negative++
		}
	}
	if negative < r.cfg.NegativeFeedbackMin {
		return nil
	}

	insight := r.newInsight(types.InsightWarning,
		fmt.Sprintf("%d negative feedback events in the window", negative), negative)
	insight.TargetCapacity = types.CapacityValueEngine
	insight.SuggestedAction = types.ActionPreferValue + ":user_wellbeing"
	return []types.ReflectionInsight{insight}
}

// mineSuccessSequences looks for responses immediately followed by
// positive feedback: whatever the conversation is doing works, so the
// pattern tracker should promote sequences sooner.
func (r *Reflector) mineSuccessSequences(outcomes []types.InteractionOutcome) []types.ReflectionInsight {
	successes := 0
	for i := 1; i < len(outcomes); i++ {
		if outcomes[i-1].Kind == types.OutcomeSystemResponse && outcomes[i].Kind == types.OutcomeFeedbackPositive {
			successes++
		}
	}
	if successes < 2 {
		return nil
	}

	insight := r.newInsight(types.InsightDiscovery,
		fmt.Sprintf("%d response/positive-feedback sequences in the window", successes), successes)
	insight.TargetCapacity = types.CapacityPatternTracker
	insight.SuggestedAction = types.ActionLowerSequenceBar
	return []types.ReflectionInsight{insight}
}

// mineAggregates inspects window-level averages: sustained low feedback
// sentiment eases the value relevance bar so more values reach
// arbitration; sustained high response latency widens the attention
// focus so callers rebuild less context per turn.
func (r *Reflector) mineAggregates(outcomes []types.InteractionOutcome) []types.ReflectionInsight {
	var insights []types.ReflectionInsight

	sentimentSum, sentimentN := 0.0, 0
	var latencySum, latencyN int64
	for _, o := range outcomes {
		switch o.Kind {
		case types.OutcomeFeedbackPositive, types.OutcomeFeedbackNegative:
			sentimentSum += o.Sentiment
			sentimentN++
		case types.OutcomeSystemResponse:
			latencySum += o.LatencyMS
			latencyN++
		}
	}

	if sentimentN > 0 {
		if avg := sentimentSum / float64(sentimentN); avg < r.cfg.LowSentiment {
			insight := r.newInsight(types.InsightImprovement,
				fmt.Sprintf("average feedback sentiment %.2f below threshold", avg), sentimentN)
			insight.TargetCapacity = types.CapacityValueEngine
			insight.SuggestedAction = types.ActionLowerRelevanceBar
			insights = append(insights, insight)
		}
	}

	if latencyN > 0 {
		if avg := latencySum / int64(latencyN); avg > r.cfg.HighLatencyMS {
			insight := r.newInsight(types.InsightImprovement,
				fmt.Sprintf("average response latency %dms above threshold", avg), int(latencyN))
			insight.TargetCapacity = types.CapacityWorkingMemory
			insight.SuggestedAction = types.ActionRaiseAttentionSize
			insights = append(insights, insight)
		}
	}

	return insights
}

func (r *Reflector) newInsight(insightType types.InsightType, description string, evidence int) types.ReflectionInsight {
	conf := insightConfidenceBase + insightConfidenceStep*float64(evidence)
	if conf > insightConfidenceCap {
		conf = insightConfidenceCap
	}
	return types.ReflectionInsight{
		ID:          uuid.New().String(),
		Type:        insightType,
		Description: description,
		Confidence:  conf,
		CreatedAt:   r.clk.Now(),
	}
}

// Apply routes insights to the matching tunables, in order. Evolve
// errors are logged and do not stop the remaining insights; the first
// error is returned.
func Apply(insights []types.ReflectionInsight, tunables []Tunable, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var firstErr error
	for _, insight := range insights {
		for _, tunable := range tunables {
			if tunable.Capacity() != insight.TargetCapacity {
				continue
			}
			if err := tunable.Evolve(insight); err != nil {
				logger.Warn("insight application failed",
					zap.String("insight_id", insight.ID),
					zap.String("capacity", string(insight.TargetCapacity)),
					zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	return firstErr
}
