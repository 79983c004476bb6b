// Package types defines the core data structures for the Attune
// conversational context engine. These types represent messages, entities,
// intentions, interaction patterns, core values, and reflection insights
// shared by every engine component.
package types

// Sender identifies the author of a message.
type Sender string

// Message sender constants
const (
	// SenderUser indicates a message authored by the user
	SenderUser Sender = "user"

	// SenderSystem indicates a message authored by the system
	SenderSystem Sender = "system"
)

// Entity type constants - the fixed battery of recognizable entity kinds
const (
	EntityTypePerson       = "person"
	EntityTypeLocation     = "location"
	EntityTypeOrganization = "organization"
	EntityTypeDateTime     = "date-time"
	EntityTypeDuration     = "duration"
	EntityTypeProduct      = "product"
	EntityTypeEvent        = "event"
	EntityTypeTopic        = "topic"
	EntityTypeTask         = "task"
	EntityTypePreference   = "preference"

	// EntityTypeConcept is the generic fallback for capitalized phrases
	// not covered by any typed matcher.
	EntityTypeConcept = "concept"
)

// ValidEntityTypes is a slice of all valid entity types for validation
var ValidEntityTypes = []string{
	EntityTypePerson,
	EntityTypeLocation,
	EntityTypeOrganization,
	EntityTypeDateTime,
	EntityTypeDuration,
	EntityTypeProduct,
	EntityTypeEvent,
	EntityTypeTopic,
	EntityTypeTask,
	EntityTypePreference,
	EntityTypeConcept,
}

// IsValidEntityType checks if the given entity type is valid
func IsValidEntityType(entityType string) bool {
	for _, validType := range ValidEntityTypes {
		if validType == entityType {
			return true
		}
	}
	return false
}

// IntentionType classifies the communicative purpose of a user message.
// The enumeration is closed: detection always resolves to one of these,
// falling back to IntentUnknown when nothing matches.
type IntentionType string

// Intention type constants
const (
	IntentGreeting              IntentionType = "greeting"
	IntentQuestionFactual       IntentionType = "question-factual"
	IntentQuestionOpinion       IntentionType = "question-opinion"
	IntentQuestionClarification IntentionType = "question-clarification"
	IntentRequestAction         IntentionType = "request-action"
	IntentCommand               IntentionType = "command"
	IntentGratitude             IntentionType = "gratitude"
	IntentFarewell              IntentionType = "farewell"
	IntentAgreement             IntentionType = "agreement"
	IntentDisagreement          IntentionType = "disagreement"
	IntentFeedbackPositive      IntentionType = "feedback-positive"
	IntentFeedbackNegative      IntentionType = "feedback-negative"
	IntentTopicSwitch           IntentionType = "topic-switch"
	IntentExpressPositive       IntentionType = "express-positive"
	IntentExpressNegative       IntentionType = "express-negative"

	// IntentInform is the fixed intention assigned to system-authored
	// messages; it is never detected from user text.
	IntentInform IntentionType = "inform"

	// IntentUnknown is the explicit fallback category. Detection always
	// produces at least one intention, so downstream code never sees an
	// empty result.
	IntentUnknown IntentionType = "unknown"
)

// ValidIntentionTypes is a slice of all valid intention types for validation
var ValidIntentionTypes = []IntentionType{
	IntentGreeting,
	IntentQuestionFactual,
	IntentQuestionOpinion,
	IntentQuestionClarification,
	IntentRequestAction,
	IntentCommand,
	IntentGratitude,
	IntentFarewell,
	IntentAgreement,
	IntentDisagreement,
	IntentFeedbackPositive,
	IntentFeedbackNegative,
	IntentTopicSwitch,
	IntentExpressPositive,
	IntentExpressNegative,
	IntentInform,
	IntentUnknown,
}

// IsValidIntentionType checks if the given intention type is valid
func IsValidIntentionType(t IntentionType) bool {
	for _, validType := range ValidIntentionTypes {
		if validType == t {
			return true
		}
	}
	return false
}

// IsQuestion reports whether the intention type is one of the question
// variants.
func (t IntentionType) IsQuestion() bool {
	switch t {
	case IntentQuestionFactual, IntentQuestionOpinion, IntentQuestionClarification:
		return true
	}
	return false
}

// IsActionable reports whether the intention type asks the system to do
// something. Actionable intentions (and questions) dominate small-talk
// during primary-intention election.
func (t IntentionType) IsActionable() bool {
	return t == IntentRequestAction || t == IntentCommand
}

// IntentionStatus represents the lifecycle state of a tracked intention.
type IntentionStatus string

// Intention status constants
const (
	// IntentionActive indicates the intention is still being pursued
	IntentionActive IntentionStatus = "active"

	// IntentionCompleted indicates the intention has been addressed
	IntentionCompleted IntentionStatus = "completed"
)

// PatternType classifies a mined interaction pattern.
type PatternType string

// Pattern type constants
const (
	// PatternSequential captures recurring 2- and 3-step intention sequences
	PatternSequential PatternType = "sequential"

	// PatternTemporal captures time-of-day usage regularities
	PatternTemporal PatternType = "temporal"

	// PatternFrequency captures recurring intentions and entity mentions
	PatternFrequency PatternType = "frequency"
)

// TensionType classifies a detected conflict between two core values.
type TensionType string

// Tension type constants
const (
	// TensionPriority: applicability is near-equal but static importance differs
	TensionPriority TensionType = "priority"

	// TensionInterpretation: the values share a manifestation context but
	// prescribe different behavior
	TensionInterpretation TensionType = "interpretation"

	// TensionApplication: both values are strongly applicable at once
	TensionApplication TensionType = "application"
)

// InsightType classifies a reflection insight.
type InsightType string

// Insight type constants
const (
	InsightPattern     InsightType = "pattern"
	InsightImprovement InsightType = "improvement"
	InsightWarning     InsightType = "warning"
	InsightDiscovery   InsightType = "discovery"
)

// Capacity identifies a tunable engine component that reflection insights
// are routed to. Components implement the reflection.Tunable interface and
// declare their capacity; dispatch is by this enumeration, never by string
// matching on free-form labels.
type Capacity string

// Capacity constants
const (
	CapacityWorkingMemory  Capacity = "working-memory"
	CapacityValueEngine    Capacity = "value-engine"
	CapacityPatternTracker Capacity = "pattern-tracker"
	CapacityIntentDetector Capacity = "intent-detector"
)
