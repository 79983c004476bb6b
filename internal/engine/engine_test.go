package engine_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrypster/attune/internal/clock"
	"github.com/scrypster/attune/internal/config"
	"github.com/scrypster/attune/internal/engine"
	"github.com/scrypster/attune/internal/notify"
	"github.com/scrypster/attune/pkg/types"
)

// capturePublisher collects published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *capturePublisher) Publish(event notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) byType(eventType string) []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []notify.Event
	for _, ev := range p.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func newEngine(t *testing.T, publisher notify.Publisher) *engine.Engine {
	t.Helper()
	cfg := config.Default()
	clk := clock.NewManual(time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC))
	e, err := engine.NewEngine(cfg, nil, publisher, clk, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, e.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(ctx)
	})
	return e
}

func TestLifecycle(t *testing.T) {
	cfg := config.Default()
	e, err := engine.NewEngine(cfg, nil, nil, nil, zap.NewNop())
	require.NoError(t, err)

	_, err = e.ProcessMessage(context.Background(), "conv-1", "hello")
	assert.Error(t, err, "operations before Start must fail")

	require.NoError(t, e.Start())
	assert.Error(t, e.Start(), "double start must fail")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Shutdown(ctx))
	assert.Error(t, e.Shutdown(ctx), "double shutdown must fail")
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.SalienceDecayFactor = 2.0

	_, err := engine.NewEngine(cfg, nil, nil, nil, zap.NewNop())
	require.Error(t, err, "configuration errors are fatal at construction")
}

func TestProcessMessagePipeline(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()

	msg, err := e.ProcessMessage(ctx, "conv-1", "Hello! What's the weather in New York tomorrow?")
	require.NoError(t, err)

	require.NotNil(t, msg.PrimaryIntention)
	assert.Equal(t, types.IntentQuestionFactual, msg.PrimaryIntention.Type,
		"the question outranks the greeting for primary election")

	var foundLocation bool
	for _, ent := range msg.Entities {
		if ent.Type == types.EntityTypeLocation && ent.NormalizedValue == "new york" {
			foundLocation = true
		}
	}
	assert.True(t, foundLocation, "expected New York recognized as location, got %+v", msg.Entities)

	snapshot, err := e.CreateResponseContext("conv-1")
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.MessageCount)
	assert.NotEmpty(t, snapshot.Entities)
}

func TestMalformedInputDegrades(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()

	msg, err := e.ProcessMessage(ctx, "conv-1", "   ")
	require.NoError(t, err, "malformed content must degrade, not error")
	assert.Empty(t, msg.Entities)
	require.NotEmpty(t, msg.Intentions)
	assert.Equal(t, types.IntentUnknown, msg.Intentions[0].Type)

	_, err = e.ProcessMessage(ctx, "", "hello")
	assert.Error(t, err, "a missing conversation id is a usage error, not message content")
}

func TestConversationIsolation(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()

	_, err := e.ProcessMessage(ctx, "conv-a", "I'm planning a trip to Tokyo")
	require.NoError(t, err)
	_, err = e.ProcessMessage(ctx, "conv-b", "Tell me about Paris")
	require.NoError(t, err)

	ctxA, err := e.CreateResponseContext("conv-a")
	require.NoError(t, err)
	ctxB, err := e.CreateResponseContext("conv-b")
	require.NoError(t, err)

	for _, ent := range ctxA.Entities {
		assert.NotEqual(t, "paris", ent.NormalizedValue, "conv-b state leaked into conv-a")
	}
	for _, ent := range ctxB.Entities {
		assert.NotEqual(t, "tokyo", ent.NormalizedValue, "conv-a state leaked into conv-b")
	}
}

func TestConcurrentConversations(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 80)
	for i := 0; i < 8; i++ {
		conversationID := fmt.Sprintf("conv-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if _, err := e.ProcessMessage(ctx, conversationID, fmt.Sprintf("Can you help me with task %d?", j)); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent processing failed: %v", err)
	}

	for i := 0; i < 8; i++ {
		snapshot, err := e.CreateResponseContext(fmt.Sprintf("conv-%d", i))
		require.NoError(t, err)
		assert.Equal(t, 10, snapshot.MessageCount)
	}
}

func TestSystemMessageCarriesInformIntent(t *testing.T) {
	e := newEngine(t, nil)

	msg, err := e.ProcessSystemMessage(context.Background(), "conv-1", "The forecast for New York is sunny.")
	require.NoError(t, err)
	assert.Equal(t, types.SenderSystem, msg.Sender)
	require.NotNil(t, msg.PrimaryIntention)
	assert.Equal(t, types.IntentInform, msg.PrimaryIntention.Type)
	assert.InDelta(t, 0.9, msg.PrimaryIntention.Confidence, 0.001)

	snapshot, err := e.CreateResponseContext("conv-1")
	require.NoError(t, err)
	assert.NotEmpty(t, snapshot.Entities, "system-message entities stay in shared memory")
}

func TestProcessContextArbitration(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := e.ProcessMessage(ctx, "conv-1", "this is terrible and wrong, I am frustrated")
		require.NoError(t, err)
	}

	result, err := e.ProcessContext("conv-1")
	require.NoError(t, err)
	require.NotNil(t, result.Constraints)

	assert.Less(t, result.Context.Sentiment, -0.5)
	assert.True(t, result.Constraints.OfferEmotionalSupport)
	assert.Equal(t, "user_wellbeing", result.Constraints.PriorityValueID)
	assert.NotEmpty(t, result.RelevantValues)
}

func TestRepeatedRequestsSurfaceFrequencyPattern(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := e.ProcessMessage(ctx, "conv-1", "Can you help me?")
		require.NoError(t, err)
	}

	result, err := e.ProcessContext("conv-1")
	require.NoError(t, err)

	var found *types.InteractionPattern
	for i := range result.RelevantPatterns {
		p := result.RelevantPatterns[i]
		if p.Type == types.PatternFrequency && len(p.Elements) == 1 && p.Elements[0] == string(types.IntentRequestAction) {
			found = &result.RelevantPatterns[i]
		}
	}
	require.NotNil(t, found, "expected a frequency pattern for the repeated request")
	assert.Equal(t, 3, found.Occurrences)
}

func TestReflectGeneratesAndQueuesInsights(t *testing.T) {
	pub := &capturePublisher{}
	e := newEngine(t, pub)
	ctx := context.Background()

	_, err := e.ProcessMessage(ctx, "conv-1", "hello")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, e.RecordOutcome("conv-1", types.InteractionOutcome{
			Kind:      types.OutcomeFeedbackNegative,
			Sentiment: -0.8,
		}))
	}

	require.NoError(t, e.Reflect(ctx))

	events := pub.byType(notify.EventInsightGenerated)
	require.NotEmpty(t, events, "reflection over clustered negative feedback must yield insights")

	// The queued insights are applied at the start of the next turn.
	_, err = e.ProcessMessage(ctx, "conv-1", "still not great")
	require.NoError(t, err)
}

func TestCustomPriorityThroughEngine(t *testing.T) {
	e := newEngine(t, nil)

	require.NoError(t, e.SetCustomPriority("conv-1", "truthfulness", "helpfulness", "", "helpfulness"))
	assert.Error(t, e.SetCustomPriority("conv-1", "truthfulness", "helpfulness", "", "privacy"))
}

func TestResetClearsConversation(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()

	_, err := e.ProcessMessage(ctx, "conv-1", "I love talking about Tokyo")
	require.NoError(t, err)
	require.NoError(t, e.Reset("conv-1"))

	snapshot, err := e.CreateResponseContext("conv-1")
	require.NoError(t, err)
	assert.Zero(t, snapshot.MessageCount)
	assert.Empty(t, snapshot.Entities)
}

func TestFocusOnTopic(t *testing.T) {
	e := newEngine(t, nil)

	require.NoError(t, e.FocusOnTopic("conv-1", "Machine Learning"))
	snapshot, err := e.CreateResponseContext("conv-1")
	require.NoError(t, err)
	assert.Contains(t, snapshot.ActiveTopics, "machine learning")
}

// TestArbitrationUsesElectedPrimary: greeting and factual question tie
// on confidence in the scenario message; the context handed to pattern
// matching and value scoring must carry the same primary the message
// pipeline elected.
func TestArbitrationUsesElectedPrimary(t *testing.T) {
	e := newEngine(t, nil)

	msg, err := e.ProcessMessage(context.Background(), "conv-1", "Hello! What's the weather in New York tomorrow?")
	require.NoError(t, err)
	require.NotNil(t, msg.PrimaryIntention)
	require.Equal(t, types.IntentQuestionFactual, msg.PrimaryIntention.Type)

	result, err := e.ProcessContext("conv-1")
	require.NoError(t, err)
	primary := result.Context.PrimaryIntention()
	require.NotNil(t, primary)
	assert.Equal(t, msg.PrimaryIntention.Type, primary.Type)
}

// TestOversizedMessageTruncatedAtRuneBoundary: truncation backs off to
// the previous rune start so stored content stays valid UTF-8.
func TestOversizedMessageTruncatedAtRuneBoundary(t *testing.T) {
	e := newEngine(t, nil)

	text := strings.Repeat("a", 8191) + "é" + strings.Repeat("b", 16)
	msg, err := e.ProcessMessage(context.Background(), "conv-1", text)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(msg.Content), 8192)
	assert.True(t, utf8.ValidString(msg.Content))
	assert.Equal(t, strings.Repeat("a", 8191), msg.Content)
}
