package values_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrypster/attune/internal/config"
	"github.com/scrypster/attune/internal/values"
	"github.com/scrypster/attune/pkg/types"
)

func newEngine() *values.Engine {
	return values.NewEngine("conv-1", nil, config.Default().Values, zap.NewNop())
}

func questionContext() *types.ConversationContext {
	return &types.ConversationContext{
		ConversationID: "conv-1",
		RecentIntentions: []types.Intention{
			{ID: "i1", Type: types.IntentQuestionFactual, Confidence: 0.8},
		},
		Engagement: 0.5,
	}
}

func distressedContext() *types.ConversationContext {
	return &types.ConversationContext{
		ConversationID: "conv-1",
		Sentiment:      -0.6,
		Engagement:     0.5,
	}
}

func scoredByID(scored []types.ScoredValue, id string) *types.ScoredValue {
	for i := range scored {
		if scored[i].Value.ID == id {
			return &scored[i]
		}
	}
	return nil
}

func TestNegativeSentimentSurfacesWellbeing(t *testing.T) {
	e := newEngine()

	relevant := e.RelevantValues(distressedContext())
	require.NotEmpty(t, relevant)

	assert.Equal(t, values.ValueUserWellbeing, relevant[0].Value.ID,
		"user_wellbeing should rank first under strong negative sentiment")
	assert.Contains(t, relevant[0].MatchedTags, "emotional_support")

	for i := 1; i < len(relevant); i++ {
		assert.LessOrEqual(t, relevant[i].Applicability, relevant[i-1].Applicability,
			"relevant values must be sorted by applicability descending")
	}
}

func TestQuestionContextSurfacesTruthfulness(t *testing.T) {
	e := newEngine()

	relevant := e.RelevantValues(questionContext())
	require.NotEmpty(t, relevant)
	assert.Equal(t, values.ValueTruthfulness, relevant[0].Value.ID)

	sv := scoredByID(relevant, values.ValueTruthfulness)
	require.NotNil(t, sv)
	assert.Contains(t, sv.MatchedTags, "question")
	assert.InDelta(t, 0.91, sv.Applicability, 0.001)
}

func TestApplicabilityWithinRange(t *testing.T) {
	e := newEngine()
	contexts := []*types.ConversationContext{
		questionContext(),
		distressedContext(),
		{ConversationID: "conv-1"},
		{
			ConversationID: "conv-1",
			Sentiment:      0.6,
			Engagement:     0.9,
			Entities: []types.Entity{
				{Type: types.EntityTypePerson, NormalizedValue: "alice"},
				{Type: types.EntityTypeTopic, NormalizedValue: "go"},
			},
		},
	}

	threshold := config.Default().Values.RelevanceThreshold
	for _, ctx := range contexts {
		for _, sv := range e.RelevantValues(ctx) {
			assert.GreaterOrEqual(t, sv.Applicability, 0.0)
			assert.LessOrEqual(t, sv.Applicability, 1.0)
			assert.Greater(t, sv.Applicability, threshold)
		}
	}
}

func TestInterpretationTensionOnSharedTag(t *testing.T) {
	e := newEngine()
	ctx := questionContext()

	relevant := e.RelevantValues(ctx)
	tensions := e.IdentifyTensions(relevant)
	require.NotEmpty(t, tensions)

	var found *types.ValueTension
	for i := range tensions {
		pair := map[string]bool{tensions[i].ValueIDA: true, tensions[i].ValueIDB: true}
		if pair[values.ValueTruthfulness] && pair[values.ValueHelpfulness] {
			found = &tensions[i]
			break
		}
	}
	require.NotNil(t, found, "expected a tension between truthfulness and helpfulness")
	assert.Equal(t, types.TensionInterpretation, found.Type)
	assert.Contains(t, found.ContextElements, "question")
}

func TestResolveConflictIsSymmetric(t *testing.T) {
	e := newEngine()
	ctx := questionContext()

	forward := types.ValueTension{
		ValueIDA: values.ValueTruthfulness,
		ValueIDB: values.ValueHelpfulness,
		Type:     types.TensionInterpretation,
	}
	backward := types.ValueTension{
		ValueIDA: values.ValueHelpfulness,
		ValueIDB: values.ValueTruthfulness,
		Type:     types.TensionInterpretation,
	}

	winnerAB, err := e.ResolveConflict(forward, ctx)
	require.NoError(t, err)
	winnerBA, err := e.ResolveConflict(backward, ctx)
	require.NoError(t, err)

	assert.Equal(t, winnerAB, winnerBA, "conflict resolution must not depend on argument order")
	assert.Equal(t, values.ValueTruthfulness, winnerAB,
		"truthfulness wins on importance when applicability is near-equal")
}

func TestCustomPriorityOverridesResolution(t *testing.T) {
	e := newEngine()
	ctx := questionContext()

	err := e.SetCustomPriority(values.ValueTruthfulness, values.ValueHelpfulness, "", values.ValueHelpfulness)
	require.NoError(t, err)

	winner, err := e.ResolveConflict(types.ValueTension{
		ValueIDA: values.ValueHelpfulness,
		ValueIDB: values.ValueTruthfulness,
		Type:     types.TensionPriority,
	}, ctx)
	require.NoError(t, err)
	assert.Equal(t, values.ValueHelpfulness, winner)
}

func TestSetCustomPriorityValidation(t *testing.T) {
	e := newEngine()

	assert.Error(t, e.SetCustomPriority("nonexistent", values.ValueGrowth, "", values.ValueGrowth))
	assert.Error(t, e.SetCustomPriority(values.ValueGrowth, values.ValuePrivacy, "", values.ValueTruthfulness),
		"winner outside the pair must be rejected")
}

func TestConstraintsAssembly(t *testing.T) {
	e := newEngine()

	c, err := e.Constraints(distressedContext())
	require.NoError(t, err)
	assert.Equal(t, values.ValueUserWellbeing, c.PriorityValueID)
	assert.True(t, c.OfferEmotionalSupport)
	assert.True(t, c.PrioritizeAccuracy, "truthfulness clears relevance even without a question")
	assert.NotEmpty(t, c.ExpectedBehaviors)

	c, err = e.Constraints(questionContext())
	require.NoError(t, err)
	assert.Equal(t, values.ValueTruthfulness, c.PriorityValueID)
	assert.True(t, c.AcknowledgeUncertainty)
	assert.False(t, c.OfferEmotionalSupport)
}

func TestConstraintsEmptyContext(t *testing.T) {
	e := newEngine()

	c, err := e.Constraints(&types.ConversationContext{ConversationID: "conv-1"})
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestEvolvePreferValue(t *testing.T) {
	e := newEngine()
	require.Equal(t, types.CapacityValueEngine, e.Capacity())

	before := 0.0
	for _, v := range e.Values() {
		if v.ID == values.ValueGrowth {
			before = v.Importance
		}
	}

	err := e.Evolve(types.ReflectionInsight{
		TargetCapacity:  types.CapacityValueEngine,
		Type:            types.InsightImprovement,
		SuggestedAction: types.ActionPreferValue + ":" + values.ValueGrowth,
	})
	require.NoError(t, err)

	for _, v := range e.Values() {
		if v.ID == values.ValueGrowth {
			assert.Greater(t, v.Importance, before)
		}
	}

	assert.Error(t, e.Evolve(types.ReflectionInsight{
		SuggestedAction: types.ActionPreferValue + ":nonexistent",
	}))
	assert.NoError(t, e.Evolve(types.ReflectionInsight{SuggestedAction: "unrelated"}))
}
