package types

import "time"

// Message is a single conversational utterance.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sender         Sender    `json:"sender"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// EnhancedMessage is a message annotated with structured understanding:
// the entities and intentions extracted from its text, and the elected
// primary intention. This is the engine's primary inbound result shape.
type EnhancedMessage struct {
	Message

	// Entities recognized in the message text, ordered by start offset.
	Entities []Entity `json:"entities"`

	// Intentions detected for the message, sorted descending by
	// confidence. Never empty: detection falls back to IntentUnknown.
	Intentions []Intention `json:"intentions"`

	// PrimaryIntention is the elected primary. Always set when
	// Intentions is non-empty.
	PrimaryIntention *Intention `json:"primary_intention,omitempty"`
}
