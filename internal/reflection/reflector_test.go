package reflection_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrypster/attune/internal/clock"
	"github.com/scrypster/attune/internal/config"
	"github.com/scrypster/attune/internal/reflection"
	"github.com/scrypster/attune/pkg/types"
)

func newReflector() *reflection.Reflector {
	clk := clock.NewManual(time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC))
	return reflection.NewReflector(config.Default().Reflection, clk, zap.NewNop())
}

func userOutcome(intentType types.IntentionType) types.InteractionOutcome {
	return types.InteractionOutcome{
		ConversationID: "conv-1",
		Kind:           types.OutcomeUserMessage,
		IntentionType:  intentType,
	}
}

func findInsight(insights []types.ReflectionInsight, action string) *types.ReflectionInsight {
	for i := range insights {
		if insights[i].SuggestedAction == action {
			return &insights[i]
		}
	}
	return nil
}

func TestEmptyWindowYieldsNoInsights(t *testing.T) {
	r := newReflector()
	assert.Empty(t, r.Reflect(nil))
}

func TestFrequentQuestionsWidenAttention(t *testing.T) {
	r := newReflector()

	var outcomes []types.InteractionOutcome
	for i := 0; i < 4; i++ {
		outcomes = append(outcomes, userOutcome(types.IntentQuestionFactual))
	}

	insights := r.Reflect(outcomes)
	insight := findInsight(insights, types.ActionRaiseAttentionSize)
	require.NotNil(t, insight, "expected attention-size insight for recurring questions")
	assert.Equal(t, types.CapacityWorkingMemory, insight.TargetCapacity)
	assert.Equal(t, types.InsightPattern, insight.Type)
	assert.InDelta(t, 0.9, insight.Confidence, 0.001)
}

func TestFrequentNonQuestionExtendsIntentTTL(t *testing.T) {
	r := newReflector()

	var outcomes []types.InteractionOutcome
	for i := 0; i < 4; i++ {
		outcomes = append(outcomes, userOutcome(types.IntentRequestAction))
	}

	insight := findInsight(r.Reflect(outcomes), types.ActionExtendIntentTTL)
	require.NotNil(t, insight)
	assert.Equal(t, types.CapacityIntentDetector, insight.TargetCapacity)
}

func TestUnknownIntentionsNeverMined(t *testing.T) {
	r := newReflector()

	var outcomes []types.InteractionOutcome
	for i := 0; i < 10; i++ {
		outcomes = append(outcomes, userOutcome(types.IntentUnknown))
	}
	assert.Empty(t, r.Reflect(outcomes))
}

func TestRecurringErrorsSoftenDecay(t *testing.T) {
	r := newReflector()

	outcomes := []types.InteractionOutcome{
		{Kind: types.OutcomeError, ErrorKind: "empty_message"},
		{Kind: types.OutcomeError, ErrorKind: "empty_message"},
		{Kind: types.OutcomeError, ErrorKind: "oversized_message"},
	}

	insights := r.Reflect(outcomes)
	insight := findInsight(insights, types.ActionSoftenEntityDecay)
	require.NotNil(t, insight)
	assert.Equal(t, types.InsightWarning, insight.Type)
	assert.Contains(t, insight.Description, "empty_message")

	// The single oversized_message error stays below the threshold.
	for _, in := range insights {
		assert.NotContains(t, in.Description, "oversized_message")
	}
}

func TestNegativeFeedbackPrefersWellbeing(t *testing.T) {
	r := newReflector()

	outcomes := []types.InteractionOutcome{
		{Kind: types.OutcomeFeedbackNegative, Sentiment: -0.8},
		{Kind: types.OutcomeFeedbackNegative, Sentiment: -0.6},
	}

	insights := r.Reflect(outcomes)
	insight := findInsight(insights, types.ActionPreferValue+":user_wellbeing")
	require.NotNil(t, insight)
	assert.Equal(t, types.CapacityValueEngine, insight.TargetCapacity)

	// Average sentiment -0.7 also trips the low-sentiment aggregate.
	assert.NotNil(t, findInsight(insights, types.ActionLowerRelevanceBar))
}

func TestSuccessSequencesLowerSequenceBar(t *testing.T) {
	r := newReflector()

	outcomes := []types.InteractionOutcome{
		{Kind: types.OutcomeSystemResponse, LatencyMS: 100},
		{Kind: types.OutcomeFeedbackPositive, Sentiment: 0.8},
		{Kind: types.OutcomeUserMessage, IntentionType: types.IntentGratitude},
		{Kind: types.OutcomeSystemResponse, LatencyMS: 120},
		{Kind: types.OutcomeFeedbackPositive, Sentiment: 0.9},
	}

	insight := findInsight(r.Reflect(outcomes), types.ActionLowerSequenceBar)
	require.NotNil(t, insight)
	assert.Equal(t, types.CapacityPatternTracker, insight.TargetCapacity)
	assert.Equal(t, types.InsightDiscovery, insight.Type)
}

func TestHighLatencyAggregate(t *testing.T) {
	r := newReflector()

	outcomes := []types.InteractionOutcome{
		{Kind: types.OutcomeSystemResponse, LatencyMS: 3000},
		{Kind: types.OutcomeSystemResponse, LatencyMS: 4000},
	}

	insight := findInsight(r.Reflect(outcomes), types.ActionRaiseAttentionSize)
	require.NotNil(t, insight)
	assert.Equal(t, types.InsightImprovement, insight.Type)
	assert.Equal(t, types.CapacityWorkingMemory, insight.TargetCapacity)
}

func TestWindowBoundRespected(t *testing.T) {
	cfg := config.Default().Reflection
	cfg.WindowSize = 5
	clk := clock.NewManual(time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC))
	r := reflection.NewReflector(cfg, clk, zap.NewNop())

	// Four request-action outcomes followed by five fillers: the window
	// keeps only the fillers, so nothing clears the frequency threshold.
	var outcomes []types.InteractionOutcome
	for i := 0; i < 4; i++ {
		outcomes = append(outcomes, userOutcome(types.IntentRequestAction))
	}
	for i := 0; i < 5; i++ {
		outcomes = append(outcomes, userOutcome(types.IntentGreeting))
	}

	assert.Nil(t, findInsight(r.Reflect(outcomes), types.ActionExtendIntentTTL))
}

// recordingTunable records the insights routed to it.
type recordingTunable struct {
	capacity types.Capacity
	applied  []types.ReflectionInsight
	err      error
}

func (r *recordingTunable) Capacity() types.Capacity { return r.capacity }

func (r *recordingTunable) Evolve(in types.ReflectionInsight) error {
	r.applied = append(r.applied, in)
	return r.err
}

func TestApplyRoutesByCapacity(t *testing.T) {
	memoryTunable := &recordingTunable{capacity: types.CapacityWorkingMemory}
	valuesTunable := &recordingTunable{capacity: types.CapacityValueEngine}

	insights := []types.ReflectionInsight{
		{ID: "a", TargetCapacity: types.CapacityWorkingMemory, SuggestedAction: types.ActionRaiseAttentionSize},
		{ID: "b", TargetCapacity: types.CapacityValueEngine, SuggestedAction: types.ActionLowerRelevanceBar},
		{ID: "c", TargetCapacity: types.CapacityPatternTracker, SuggestedAction: types.ActionLowerSequenceBar},
	}

	err := reflection.Apply(insights, []reflection.Tunable{memoryTunable, valuesTunable}, zap.NewNop())
	require.NoError(t, err)

	require.Len(t, memoryTunable.applied, 1)
	assert.Equal(t, "a", memoryTunable.applied[0].ID)
	require.Len(t, valuesTunable.applied, 1)
	assert.Equal(t, "b", valuesTunable.applied[0].ID)
}

func TestApplyContinuesPastErrors(t *testing.T) {
	failing := &recordingTunable{capacity: types.CapacityWorkingMemory, err: assert.AnError}
	healthy := &recordingTunable{capacity: types.CapacityValueEngine}

	insights := []types.ReflectionInsight{
		{ID: "a", TargetCapacity: types.CapacityWorkingMemory},
		{ID: "b", TargetCapacity: types.CapacityValueEngine},
	}

	err := reflection.Apply(insights, []reflection.Tunable{failing, healthy}, zap.NewNop())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Len(t, healthy.applied, 1, "later insights still applied after an error")
}
