// Package patterns mines recurring interaction patterns from a bounded
// rolling history of conversation turns. Three independent miners run on
// every insert: sequential (intention chains), temporal (hour-of-day
// habits), and frequency (repeated intentions and entity mentions).
//
// Patterns are keyed by a stable signature and updated in place: the
// first observation past a miner's threshold creates the pattern record,
// later observations increment occurrences and recompute confidence.
// Patterns are never discarded automatically — only an explicit reset
// clears them.
package patterns

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scrypster/attune/internal/clock"
	"github.com/scrypster/attune/internal/config"
	"github.com/scrypster/attune/pkg/types"
)

// Sequence confidence formula: min(0.5 + 0.1*count, 0.9). Shared by all
// three miners.
const (
	patternConfidenceBase = 0.5
	patternConfidenceStep = 0.1
	patternConfidenceCap  = 0.9
)

// event is one tracked turn in the rolling history.
type event struct {
	sender        types.Sender
	intentionType types.IntentionType
	entityKeys    []string
	at            time.Time
}

// Tracker mines interaction patterns for a single conversation.
//
// Tracker is not safe for concurrent use; each conversation session owns
// exactly one and serializes access (single-writer model).
type Tracker struct {
	cfg    config.PatternConfig
	clk    clock.Clock
	logger *zap.Logger

	conversationID string

	history  []event
	patterns map[string]*types.InteractionPattern // keyed by signature

	// Frequency miner counters, maintained incrementally.
	userMessages    int
	intentionCounts map[types.IntentionType]int
	entityCounts    map[string]int
	hourCounts      [24]int
}

// NewTracker returns a pattern tracker for one conversation.
func NewTracker(conversationID string, cfg config.PatternConfig, clk clock.Clock, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		cfg:             cfg,
		clk:             clk,
		logger:          logger,
		conversationID:  conversationID,
		patterns:        make(map[string]*types.InteractionPattern),
		intentionCounts: make(map[types.IntentionType]int),
		entityCounts:    make(map[string]int),
	}
}

// Track observes one processed message and runs all three miners.
func (t *Tracker) Track(msg *types.EnhancedMessage) {
	now := t.clk.Now()

	ev := event{
		sender: msg.Sender,
		at:     now,
	}
	if msg.PrimaryIntention != nil {
		ev.intentionType = msg.PrimaryIntention.Type
	}
	for i := range msg.Entities {
		ev.entityKeys = append(ev.entityKeys, msg.Entities[i].Key())
	}

	t.history = append(t.history, ev)
	if len(t.history) > t.cfg.HistorySize {
		t.history = t.history[len(t.history)-t.cfg.HistorySize:]
	}

	if msg.Sender == types.SenderUser {
		t.userMessages++
		if ev.intentionType != "" {
			t.intentionCounts[ev.intentionType]++
		}
		for _, key := range ev.entityKeys {
			t.entityCounts[key]++
		}
		t.hourCounts[now.Hour()]++
	}

	t.mineSequential(now)
	t.mineTemporal(now)
	t.mineFrequency(now)
}

// Patterns returns all mined patterns, most confident first.
func (t *Tracker) Patterns() []types.InteractionPattern {
	result := make([]types.InteractionPattern, 0, len(t.patterns))
	for _, p := range t.patterns {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Confidence != result[j].Confidence {
			return result[i].Confidence > result[j].Confidence
		}
		return result[i].Signature < result[j].Signature
	})
	return result
}

// RelevantPatterns filters mined patterns against the current primary
// intention and recently mentioned entities: a sequential pattern is
// relevant when its first step matches the intention; a frequency
// pattern when its intention matches or its entity was recently
// mentioned. When nothing matches, only very-high-confidence patterns
// are returned.
func (t *Tracker) RelevantPatterns(intention *types.Intention, entities []types.Entity) []types.InteractionPattern {
	entityKeys := make(map[string]struct{}, len(entities))
	for i := range entities {
		entityKeys[entities[i].Key()] = struct{}{}
	}

	var relevant []types.InteractionPattern
	for _, p := range t.patterns {
		if t.isRelevant(p, intention, entityKeys) {
			relevant = append(relevant, *p)
		}
	}

	if len(relevant) == 0 {
		for _, p := range t.patterns {
			if p.Confidence > t.cfg.RelevanceConfidenceFloor {
				relevant = append(relevant, *p)
			}
		}
	}

	sort.Slice(relevant, func(i, j int) bool {
		if relevant[i].Confidence != relevant[j].Confidence {
			return relevant[i].Confidence > relevant[j].Confidence
		}
		return relevant[i].Signature < relevant[j].Signature
	})
	return relevant
}

// Reset clears all history and mined patterns.
func (t *Tracker) Reset() {
	t.history = nil
	t.patterns = make(map[string]*types.InteractionPattern)
	t.userMessages = 0
	t.intentionCounts = make(map[types.IntentionType]int)
	t.entityCounts = make(map[string]int)
	t.hourCounts = [24]int{}
}

// Capacity identifies the tracker for reflection-insight routing.
func (t *Tracker) Capacity() types.Capacity {
	return types.CapacityPatternTracker
}

// Evolve applies a reflection insight to the miner thresholds.
func (t *Tracker) Evolve(insight types.ReflectionInsight) error {
	switch insight.SuggestedAction {
	case types.ActionLowerSequenceBar:
		if t.cfg.SequenceMinOccurrences > 2 {
			t.cfg.SequenceMinOccurrences--
			t.logger.Info("pattern tracker evolved",
				zap.String("conversation_id", t.conversationID),
				zap.Int("sequence_min_occurrences", t.cfg.SequenceMinOccurrences))
		}
	default:
		// Insights are advisory; unhandled actions are ignored.
	}
	return nil
}

func (t *Tracker) isRelevant(p *types.InteractionPattern, intention *types.Intention, entityKeys map[string]struct{}) bool {
	switch p.Type {
	case types.PatternSequential:
		return intention != nil && len(p.Elements) > 0 && p.Elements[0] == string(intention.Type)
	case types.PatternFrequency:
		if intention != nil && len(p.Elements) == 1 && p.Elements[0] == string(intention.Type) {
			return true
		}
		if key, ok := p.Metadata["entity_key"]; ok {
			_, mentioned := entityKeys[key]
			return mentioned
		}
	}
	return false
}

// mineSequential builds 2- and 3-step intention-type sequences over the
// user-message subsequence of the history.
func (t *Tracker) mineSequential(now time.Time) {
	var intents []types.IntentionType
	for _, ev := range t.history {
		if ev.sender == types.SenderUser && ev.intentionType != "" {
			intents = append(intents, ev.intentionType)
		}
	}

	for _, width := range []int{2, 3} {
		counts := make(map[string][]string)
		for i := 0; i+width <= len(intents); i++ {
			steps := make([]string, width)
			for j := 0; j < width; j++ {
				steps[j] = string(intents[i+j])
			}
			counts[strings.Join(steps, " -> ")] = steps
		}

		for sig, steps := range counts {
			count := countSubsequence(intents, steps)
			if count < t.cfg.SequenceMinOccurrences {
				continue
			}
			t.upsert(types.PatternSequential, "seq:"+sig, now, count, steps, nil,
				fmt.Sprintf("user tends to follow %s", sig))
		}
	}
}

// mineTemporal buckets user messages by hour of day.
func (t *Tracker) mineTemporal(now time.Time) {
	for hour := 0; hour < 24; hour++ {
		count := t.hourCounts[hour]
		if count < t.cfg.TemporalMinMessages {
			continue
		}
		sig := fmt.Sprintf("hour:%02d", hour)
		t.upsert(types.PatternTemporal, sig, now, count, nil,
			map[string]string{"hour": fmt.Sprintf("%d", hour)},
			fmt.Sprintf("user is active around %02d:00", hour))
	}
}

// mineFrequency promotes intentions and entities that recur often
// enough. An intention must cross the occurrence threshold AND the share
// of all user messages; an entity only the mention threshold.
func (t *Tracker) mineFrequency(now time.Time) {
	for intentType, count := range t.intentionCounts {
		if count < t.cfg.FrequencyMinIntentions {
			continue
		}
		share := float64(count) / float64(t.userMessages)
		if share < t.cfg.FrequencyMinShare {
			continue
		}
		sig := "freq:intent:" + string(intentType)
		t.upsert(types.PatternFrequency, sig, now, count, []string{string(intentType)}, nil,
			fmt.Sprintf("user frequently expresses %s (%.0f%% of messages)", intentType, share*100))
	}

	for key, count := range t.entityCounts {
		if count < t.cfg.FrequencyMinEntityMentions {
			continue
		}
		sig := "freq:entity:" + key
		t.upsert(types.PatternFrequency, sig, now, count, nil,
			map[string]string{"entity_key": key},
			fmt.Sprintf("user repeatedly mentions %s", key))
	}
}

// upsert creates the pattern on first sight or updates it in place:
// occurrences take the miner's current count, LastObservedAt refreshes,
// confidence is recomputed. One signature maps to exactly one record.
func (t *Tracker) upsert(patternType types.PatternType, signature string, now time.Time, count int, elements []string, metadata map[string]string, description string) {
	if existing, ok := t.patterns[signature]; ok {
		if count > existing.Occurrences {
			existing.Occurrences = count
			existing.LastObservedAt = now
		}
		// Occurrences is a high-water mark: when the bounded history
		// rolls, a miner's recount can drop below it, and confidence
		// must stay derived from the stored occurrences.
		existing.Confidence = patternConfidence(existing.Occurrences)
		return
	}

	t.patterns[signature] = &types.InteractionPattern{
		ID:              uuid.New().String(),
		Type:            patternType,
		Signature:       signature,
		Description:     description,
		Confidence:      patternConfidence(count),
		Occurrences:     count,
		FirstObservedAt: now,
		LastObservedAt:  now,
		Elements:        elements,
		Metadata:        metadata,
	}
}

// patternConfidence maps an occurrence count onto the shared confidence
// formula.
func patternConfidence(count int) float64 {
	conf := patternConfidenceBase + patternConfidenceStep*float64(count)
	if conf > patternConfidenceCap {
		conf = patternConfidenceCap
	}
	return conf
}

// countSubsequence counts (overlapping) occurrences of steps inside the
// intention sequence.
func countSubsequence(intents []types.IntentionType, steps []string) int {
	count := 0
	for i := 0; i+len(steps) <= len(intents); i++ {
		match := true
		for j := range steps {
			if string(intents[i+j]) != steps[j] {
				match = false
				break
			}
		}
		if match {
			count++
		}
	}
	return count
}
