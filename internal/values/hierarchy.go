// Package values implements the value hierarchy and applicability
// engine: a static set of core values scored against each conversation
// context, tension detection between simultaneously applicable values,
// and deterministic conflict resolution with per-conversation priority
// overrides.
package values

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/scrypster/attune/internal/config"
	"github.com/scrypster/attune/pkg/types"
)

// Engine scores and arbitrates core values for a single conversation.
//
// Engine is not safe for concurrent use; each conversation session owns
// exactly one and serializes access (single-writer model).
type Engine struct {
	cfg    config.ValueConfig
	logger *zap.Logger

	conversationID string

	// values is the engine's own copy; importance may drift through
	// Evolve without touching the shared defaults.
	values []types.CoreValue

	// overrides maps a normalized pair key (see pairKey) to the custom
	// priority rules registered for that pair.
	overrides map[string][]priorityOverride
}

type priorityOverride struct {
	contextPattern string // empty matches every context
	winnerID       string
}

// NewEngine returns a value engine seeded with the given hierarchy. A
// nil or empty hierarchy falls back to DefaultValues.
func NewEngine(conversationID string, hierarchy []types.CoreValue, cfg config.ValueConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(hierarchy) == 0 {
		hierarchy = DefaultValues()
	}
	owned := make([]types.CoreValue, len(hierarchy))
	copy(owned, hierarchy)
	return &Engine{
		cfg:            cfg,
		logger:         logger,
		conversationID: conversationID,
		values:         owned,
		overrides:      make(map[string][]priorityOverride),
	}
}

// Values returns the engine's current hierarchy.
func (e *Engine) Values() []types.CoreValue {
	out := make([]types.CoreValue, len(e.values))
	copy(out, e.values)
	return out
}

// RelevantValues scores every core value against the context and returns
// those whose applicability clears the relevance threshold, sorted by
// applicability descending (ties broken by value ID for determinism).
//
// Applicability blends three components: the value's static importance,
// the strongest manifestation match against the context signals, and the
// enhancement opportunity the context offers the value.
func (e *Engine) RelevantValues(ctx *types.ConversationContext) []types.ScoredValue {
	signals := contextSignals(ctx)

	var relevant []types.ScoredValue
	for i := range e.values {
		v := e.values[i]
		match, tags := bestManifestationMatch(v, signals)
		enh := enhancementOpportunity(v.ID, ctx)

		applicability := e.cfg.ImportanceWeight*v.Importance +
			e.cfg.ManifestationWeight*match +
			e.cfg.EnhancementWeight*enh

		if applicability <= e.cfg.RelevanceThreshold {
			continue
		}
		relevant = append(relevant, types.ScoredValue{
			Value:         v,
			Applicability: applicability,
			MatchedTags:   tags,
		})
	}

	sort.Slice(relevant, func(i, j int) bool {
		if relevant[i].Applicability != relevant[j].Applicability {
			return relevant[i].Applicability > relevant[j].Applicability
		}
		return relevant[i].Value.ID < relevant[j].Value.ID
	})
	return relevant
}

// contextSignals derives the manifestation match strengths from the
// conversation context. Tags absent from the map have strength zero.
func contextSignals(ctx *types.ConversationContext) map[string]float64 {
	signals := make(map[string]float64)

	if ctx.HasQuestion() {
		signals[tagQuestion] = 1.0
	}

	if primary := ctx.PrimaryIntention(); primary != nil {
		switch {
		case primary.Type == types.IntentQuestionFactual:
			signals[tagFactualClaim] = 0.9
		case primary.Type.IsActionable():
			signals[tagRequest] = 1.0
		case primary.Type == types.IntentQuestionOpinion:
			signals[tagDecisionPoint] = 0.8
		}
	}

	switch {
	case ctx.Sentiment <= -0.5:
		signals[tagEmotionalSupport] = 0.9
	case ctx.Sentiment <= -0.2:
		signals[tagEmotionalSupport] = 0.5
	case ctx.Sentiment >= 0.5:
		signals[tagPositiveMood] = 0.7
	}

	for i := range ctx.Entities {
		switch ctx.Entities[i].Type {
		case types.EntityTypePerson, types.EntityTypePreference:
			if signals[tagPersonalInfo] < 0.8 {
				signals[tagPersonalInfo] = 0.8
			}
		case types.EntityTypeTopic, types.EntityTypeConcept:
			if signals[tagLearning] < 0.6 {
				signals[tagLearning] = 0.6
			}
		}
	}

	return signals
}

// bestManifestationMatch returns the strongest signal match across the
// value's manifestations plus the tags that contributed a non-zero
// match, in manifestation order.
func bestManifestationMatch(v types.CoreValue, signals map[string]float64) (float64, []string) {
	best := 0.0
	var tags []string
	for _, m := range v.Manifestations {
		strength := signals[m.ContextTag]
		if strength <= 0 {
			continue
		}
		tags = append(tags, m.ContextTag)
		if strength > best {
			best = strength
		}
	}
	return best, tags
}

// enhancementOpportunity estimates how much acting on the value could
// improve this particular interaction, in [0,1].
func enhancementOpportunity(valueID string, ctx *types.ConversationContext) float64 {
	switch valueID {
	case ValueUserWellbeing:
		if ctx.Sentiment < 0 {
			return 0.9
		}
	case ValueTruthfulness, ValueHelpfulness:
		if ctx.HasQuestion() {
			return 0.8
		}
	case ValueGrowth:
		if ctx.Engagement >= 0.7 {
			return 0.8
		}
	case ValuePrivacy:
		for i := range ctx.Entities {
			if ctx.Entities[i].Type == types.EntityTypePerson {
				return 0.7
			}
		}
	}
	return 0.5
}

// pairKey normalizes an unordered value-ID pair to a stable map key, so
// overrides and resolution are symmetric in argument order.
func pairKey(valueIDA, valueIDB string) string {
	if valueIDB < valueIDA {
		valueIDA, valueIDB = valueIDB, valueIDA
	}
	return valueIDA + "|" + valueIDB
}

// contextMatches reports whether an override's context pattern applies
// to the current context. An empty pattern matches everything; otherwise
// the pattern must appear in an active topic or equal the primary
// intention type.
func contextMatches(pattern string, ctx *types.ConversationContext) bool {
	if pattern == "" {
		return true
	}
	pattern = strings.ToLower(pattern)
	for _, topic := range ctx.ActiveTopics {
		if strings.Contains(topic, pattern) {
			return true
		}
	}
	if primary := ctx.PrimaryIntention(); primary != nil && string(primary.Type) == pattern {
		return true
	}
	return false
}

func (e *Engine) valueByID(id string) *types.CoreValue {
	for i := range e.values {
		if e.values[i].ID == id {
			return &e.values[i]
		}
	}
	return nil
}
