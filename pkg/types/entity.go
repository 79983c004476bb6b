package types

import (
	"fmt"
	"strings"
	"time"
)

// Entity represents a named real-world thing mentioned in conversation
// text: a person, place, date, product, topic, and so on.
//
// Entities are unique by (Type, NormalizedValue) within a conversation.
// Re-mentions mutate the existing entity: confidence keeps the maximum of
// old and new, MentionCount increments, and salience is refreshed.
type Entity struct {
	// Core identification fields
	ID              string  `json:"id"`               // Unique identifier
	Type            string  `json:"type"`             // Entity type (see EntityType constants)
	RawValue        string  `json:"raw_value"`        // Text exactly as it appeared
	NormalizedValue string  `json:"normalized_value"` // Canonical form (lowercased, trimmed)
	Confidence      float64 `json:"confidence"`       // Detection confidence in [0,1]

	// Span within the source message. Satisfies 0 <= Start < End <= len(text).
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`

	// Attributes holds genuinely open-ended extras (e.g. the gazetteer
	// list an entity matched). Values are strings, not any-bags.
	Attributes map[string]string `json:"attributes,omitempty"`

	// Tracking fields maintained by working memory
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	MentionCount int       `json:"mention_count"`
	Salience     float64   `json:"salience"` // Decaying relevance score in [0,1]
}

// Key returns the identity key of the entity within a conversation.
func (e *Entity) Key() string {
	return EntityKey(e.Type, e.NormalizedValue)
}

// EntityKey builds the (type, normalizedValue) identity key.
func EntityKey(entityType, normalizedValue string) string {
	return fmt.Sprintf("%s:%s", entityType, normalizedValue)
}

// NormalizeEntityValue converts a raw mention to its canonical form.
func NormalizeEntityValue(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// IsTopical reports whether the entity contributes to the active-topics
// list (topic and concept entities do; concrete things like dates don't).
func (e *Entity) IsTopical() bool {
	return e.Type == EntityTypeTopic || e.Type == EntityTypeConcept
}
