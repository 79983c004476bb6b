package extract

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/attune/internal/clock"
	"github.com/scrypster/attune/internal/config"
	"github.com/scrypster/attune/pkg/types"
)

// Keyword-pass confidence formula: min(keywordBase + keywordStep*matches,
// keywordCap). A single keyword hit scores 0.5, each further hit adds
// 0.2 up to the cap.
const (
	keywordBase = 0.3
	keywordStep = 0.2
	keywordCap  = 0.85
)

// maxRelatedEntities bounds the entity links a long-lived intention
// accumulates across re-detections; only the most recent links are kept.
const maxRelatedEntities = 20

// intentRule is the detection table entry for one intention type.
type intentRule struct {
	intentType types.IntentionType
	patterns   []*regexp.Regexp
	keywords   []string
}

var intentRules = []intentRule{
	{
		intentType: types.IntentGreeting,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*(?:hi|hello|hey|howdy|greetings|good (?:morning|afternoon|evening))\b`),
		},
		keywords: []string{"hi", "hello", "hey", "greetings"},
	},
	{
		intentType: types.IntentQuestionFactual,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:what|when|where|who|how (?:much|many|long|far|old))\b[^?]*\?`),
		},
		keywords: []string{"what", "when", "where", "who"},
	},
	{
		intentType: types.IntentQuestionOpinion,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:what do you think|do you believe|in your opinion|how do you feel about|would you say)\b`),
		},
		keywords: []string{"think", "opinion", "believe"},
	},
	{
		intentType: types.IntentQuestionClarification,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:what do you mean|can you clarify|could you explain|i don'?t understand|i'?m confused)\b`),
		},
		keywords: []string{"clarify", "explain", "confused"},
	},
	{
		intentType: types.IntentRequestAction,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:can|could|would|will) you\b`),
			regexp.MustCompile(`(?i)^\s*please\b`),
			regexp.MustCompile(`(?i)\bhelp me\b`),
		},
		keywords: []string{"please", "help", "assist"},
	},
	{
		intentType: types.IntentCommand,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*(?:show|list|create|delete|remove|open|close|find|search|start|stop|make|give|tell|set|add)\b`),
		},
		keywords: []string{"show", "list", "create", "delete", "find"},
	},
	{
		intentType: types.IntentGratitude,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:thank(?:s| you)|much appreciated|i appreciate (?:it|that))\b`),
		},
		keywords: []string{"thanks", "thank", "appreciated"},
	},
	{
		intentType: types.IntentFarewell,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:bye|goodbye|farewell|see you(?: later| soon)?|good night|talk (?:to you )?later)\b`),
		},
		keywords: []string{"bye", "goodbye", "farewell"},
	},
	{
		intentType: types.IntentAgreement,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*(?:yes|yeah|yep|sure|exactly|absolutely|agreed|ok(?:ay)?|sounds good)\b`),
		},
		keywords: []string{"agree", "exactly", "absolutely"},
	},
	{
		intentType: types.IntentDisagreement,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*(?:no|nope|not really|i disagree|i don'?t think so)\b`),
		},
		keywords: []string{"disagree", "incorrect"},
	},
	{
		intentType: types.IntentFeedbackPositive,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:great (?:job|answer|work)|well done|that (?:helped|was helpful)|works (?:great|perfectly)|perfect)\b`),
		},
		keywords: []string{"helpful", "perfect", "excellent"},
	},
	{
		intentType: types.IntentFeedbackNegative,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:that(?:'s| is) (?:wrong|not right|not helpful|not what i)|didn'?t help|bad answer|doesn'?t work)\b`),
		},
		keywords: []string{"wrong", "unhelpful", "useless"},
	},
	{
		intentType: types.IntentTopicSwitch,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:by the way|anyway|on another (?:note|topic)|changing the subject|speaking of|moving on)\b`),
		},
		keywords: []string{"anyway", "btw"},
	},
	{
		intentType: types.IntentExpressPositive,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bi(?:'m| am) (?:happy|glad|excited|thrilled|delighted)\b`),
			regexp.MustCompile(`(?i)\bi love\b`),
		},
		keywords: []string{"happy", "glad", "excited", "wonderful"},
	},
	{
		intentType: types.IntentExpressNegative,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bi(?:'m| am) (?:sad|upset|frustrated|angry|worried|anxious|stressed|disappointed)\b`),
			regexp.MustCompile(`(?i)\bi hate\b`),
		},
		keywords: []string{"sad", "frustrated", "angry", "worried", "upset"},
	},
}

// Detector detects intentions in user messages and maintains the
// per-conversation active-intention state. Unlike the entity recognizer
// it is stateful: re-detections refresh existing intentions, and
// intentions age out over time.
//
// Detector is not safe for concurrent use; each conversation session
// owns exactly one and serializes access (single-writer model).
type Detector struct {
	cfg config.IntentConfig
	clk clock.Clock

	active map[types.IntentionType]*types.Intention
}

// NewDetector returns a detector for one conversation.
func NewDetector(cfg config.IntentConfig, clk clock.Clock) *Detector {
	return &Detector{
		cfg:    cfg,
		clk:    clk,
		active: make(map[types.IntentionType]*types.Intention),
	}
}

// Detect analyzes text and returns the detected intentions sorted
// descending by confidence. The result is never empty: when nothing
// matches, a single unknown intention is emitted at the configured
// fallback confidence.
//
// Detected intentions are merged into the active-intention state:
// re-detections keep the maximum confidence and refresh LastDetected.
// Entities recognized in the same message are linked via
// RelatedEntityIDs.
func (d *Detector) Detect(text string, entities []types.Entity) []types.Intention {
	now := d.clk.Now()
	d.age(now)

	scores := make(map[types.IntentionType]float64)

	if strings.TrimSpace(text) != "" {
		for _, rule := range intentRules {
			// Regex first pass.
			conf := 0.0
			for _, re := range rule.patterns {
				if re.MatchString(text) {
					conf = regexConfidence
					break
				}
			}

			// Keyword-presence second pass, scored by match count.
			if matches := countKeywords(text, rule.keywords); matches > 0 {
				kwConf := keywordBase + keywordStep*float64(matches)
				if kwConf > keywordCap {
					kwConf = keywordCap
				}
				if kwConf > conf {
					conf = kwConf
				}
			}

			if conf > 0 {
				scores[rule.intentType] = conf
			}
		}

		// A trailing question mark with no question type detected yields
		// a medium-confidence factual question.
		if strings.HasSuffix(strings.TrimSpace(text), "?") && !hasQuestionType(scores) {
			scores[types.IntentQuestionFactual] = d.cfg.QuestionFallbackConfidence
		}
	}

	// Explicit fallback: downstream code never sees an empty result.
	if len(scores) == 0 {
		scores[types.IntentUnknown] = d.cfg.UnknownConfidence
	}

	entityIDs := make([]string, 0, len(entities))
	for _, e := range entities {
		entityIDs = append(entityIDs, e.ID)
	}

	result := make([]types.Intention, 0, len(scores))
	for intentType, conf := range scores {
		result = append(result, *d.merge(intentType, conf, entityIDs, now))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Confidence != result[j].Confidence {
			return result[i].Confidence > result[j].Confidence
		}
		return result[i].Type < result[j].Type
	})
	return result
}

// Primary elects the primary intention from a Detect result. Highest
// confidence wins, except action and question intentions take a
// preferential override when their own confidence reaches the configured
// threshold: a confident request dominates small talk.
//
// Returns nil only for an empty slice (Detect never produces one).
func (d *Detector) Primary(intentions []types.Intention) *types.Intention {
	if len(intentions) == 0 {
		return nil
	}

	var best, bestDominant *types.Intention
	for i := range intentions {
		in := &intentions[i]
		if best == nil || in.Confidence > best.Confidence {
			best = in
		}
		if (in.Type.IsActionable() || in.Type.IsQuestion()) && in.Confidence >= d.cfg.OverrideThreshold {
			if bestDominant == nil || in.Confidence > bestDominant.Confidence {
				bestDominant = in
			}
		}
	}
	if bestDominant != nil {
		return bestDominant
	}
	return best
}

// Active returns the current active intentions after applying aging,
// sorted descending by confidence.
func (d *Detector) Active() []types.Intention {
	d.age(d.clk.Now())

	result := make([]types.Intention, 0, len(d.active))
	for _, in := range d.active {
		result = append(result, *in)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Confidence != result[j].Confidence {
			return result[i].Confidence > result[j].Confidence
		}
		return result[i].Type < result[j].Type
	})
	return result
}

// Complete marks an active intention as completed.
func (d *Detector) Complete(intentType types.IntentionType) {
	if in, ok := d.active[intentType]; ok {
		in.Status = types.IntentionCompleted
	}
}

// Reset clears all per-conversation intention state.
func (d *Detector) Reset() {
	d.active = make(map[types.IntentionType]*types.Intention)
}

// Capacity identifies the detector for reflection-insight routing.
func (d *Detector) Capacity() types.Capacity {
	return types.CapacityIntentDetector
}

// Evolve applies a reflection insight to the aging windows.
func (d *Detector) Evolve(insight types.ReflectionInsight) error {
	switch insight.SuggestedAction {
	case types.ActionExtendIntentTTL:
		if d.cfg.PurgeAfterMinutes < 30 {
			d.cfg.StaleAfterMinutes += 2
			d.cfg.PurgeAfterMinutes += 2
		}
	default:
		// Insights are advisory; unhandled actions are ignored.
	}
	return nil
}

// merge folds a detection into the active state and returns the tracked
// intention. Confidence never decreases on re-detection.
func (d *Detector) merge(intentType types.IntentionType, conf float64, entityIDs []string, now time.Time) *types.Intention {
	if existing, ok := d.active[intentType]; ok {
		if conf > existing.Confidence {
			existing.Confidence = conf
		}
		existing.LastDetected = now
		existing.Status = types.IntentionActive
		if len(entityIDs) > 0 {
			existing.RelatedEntityIDs = appendEntityIDs(existing.RelatedEntityIDs, entityIDs)
		}
		return existing
	}

	in := &types.Intention{
		ID:               uuid.New().String(),
		Type:             intentType,
		Confidence:       conf,
		RelatedEntityIDs: entityIDs,
		Status:           types.IntentionActive,
		FirstDetected:    now,
		LastDetected:     now,
	}
	d.active[intentType] = in
	return in
}

// appendEntityIDs merges incoming entity links into an intention's
// existing ones, skipping duplicates and keeping only the most recent
// maxRelatedEntities.
func appendEntityIDs(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}
	for _, id := range incoming {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		existing = append(existing, id)
	}
	if n := len(existing); n > maxRelatedEntities {
		existing = existing[n-maxRelatedEntities:]
	}
	return existing
}

// age applies time-based decay to the active-intention state: intentions
// unobserved beyond the purge window are removed; intentions inside the
// stale band decay multiplicatively on each access.
func (d *Detector) age(now time.Time) {
	stale := time.Duration(d.cfg.StaleAfterMinutes) * time.Minute
	purge := time.Duration(d.cfg.PurgeAfterMinutes) * time.Minute

	for intentType, in := range d.active {
		idle := now.Sub(in.LastDetected)
		switch {
		case idle > purge:
			delete(d.active, intentType)
		case idle > stale:
			in.Confidence *= d.cfg.StaleDecayFactor
		}
	}
}

// countKeywords counts how many of the rule's keywords occur in text as
// whole words.
func countKeywords(text string, keywords []string) int {
	words := tokenize(text)
	count := 0
	for _, kw := range keywords {
		if _, ok := words[kw]; ok {
			count++
		}
	}
	return count
}

// tokenize lowercases text and splits it into a word set, trimming
// punctuation.
func tokenize(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(text)) {
		w := strings.Trim(f, ".,!?;:'\"()")
		if w != "" {
			words[w] = struct{}{}
		}
	}
	return words
}

// hasQuestionType reports whether any detected type is a question variant.
func hasQuestionType(scores map[types.IntentionType]float64) bool {
	for t := range scores {
		if t.IsQuestion() {
			return true
		}
	}
	return false
}
