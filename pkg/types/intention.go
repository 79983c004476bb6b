package types

import "time"

// Intention represents the communicative purpose behind a user message.
// Multiple intentions may be detected per message; one is elected primary.
//
// Intentions are tracked per conversation and age out: confidence decays
// once an intention goes unobserved for a stale window, and it is purged
// entirely after the expiry window.
type Intention struct {
	ID         string        `json:"id"`
	Type       IntentionType `json:"type"`
	Confidence float64       `json:"confidence"` // Detection confidence in [0,1]

	// RelatedEntityIDs links the intention to entities recognized in the
	// same message (e.g. a question about a location).
	RelatedEntityIDs []string `json:"related_entity_ids,omitempty"`

	Status IntentionStatus `json:"status"`

	FirstDetected time.Time `json:"first_detected"`
	LastDetected  time.Time `json:"last_detected"`
}
