package types

import "time"

// ReflectionInsight is a derived observation from historical interaction
// logs, used to retune engine parameters. Each insight carries a target
// capacity routing it to the component that should evolve in response.
type ReflectionInsight struct {
	ID             string      `json:"id"`
	TargetCapacity Capacity    `json:"target_capacity"`
	Type           InsightType `json:"type"`
	Description    string      `json:"description"`
	Confidence     float64     `json:"confidence"` // in [0,1]

	// SuggestedAction names the parameter nudge the target component
	// should apply (e.g. "raise_attention_size", "soften_decay").
	SuggestedAction string `json:"suggested_action"`

	CreatedAt time.Time `json:"created_at"`
}

// Suggested action constants understood by the Tunable components.
const (
	ActionRaiseAttentionSize = "raise_attention_size"
	ActionSoftenEntityDecay  = "soften_entity_decay"
	ActionLowerRelevanceBar  = "lower_relevance_threshold"
	ActionPreferValue        = "prefer_value"
	ActionLowerSequenceBar   = "lower_sequence_threshold"
	ActionExtendIntentTTL    = "extend_intent_ttl"
)

// OutcomeKind classifies a logged interaction outcome event.
type OutcomeKind string

// Outcome kind constants
const (
	OutcomeUserMessage      OutcomeKind = "user_message"
	OutcomeSystemResponse   OutcomeKind = "system_response"
	OutcomeFeedbackPositive OutcomeKind = "feedback_positive"
	OutcomeFeedbackNegative OutcomeKind = "feedback_negative"
	OutcomeError            OutcomeKind = "error"
)

// InteractionOutcome is one entry in the bounded interaction log the
// reflection loop mines. User messages are logged by the engine itself;
// responses, feedback, and errors are reported by the caller through
// RecordOutcome.
type InteractionOutcome struct {
	ConversationID string      `json:"conversation_id"`
	Kind           OutcomeKind `json:"kind"`
	Timestamp      time.Time   `json:"timestamp"`

	// IntentionType is set for user-message outcomes.
	IntentionType IntentionType `json:"intention_type,omitempty"`

	// Sentiment is set for feedback outcomes, in [-1,1].
	Sentiment float64 `json:"sentiment,omitempty"`

	// LatencyMS is set for system-response outcomes.
	LatencyMS int64 `json:"latency_ms,omitempty"`

	// ErrorKind is set for error outcomes.
	ErrorKind string `json:"error_kind,omitempty"`
}
