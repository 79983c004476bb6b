package types

import "time"

// InteractionPattern is a recurring regularity mined from conversation
// history: a sequential intention chain, a time-of-day habit, or a
// frequently repeated intention/entity.
//
// Patterns are keyed by a stable Signature. The first observation past
// the miner's threshold creates the pattern; subsequent observations
// increment Occurrences, refresh LastObservedAt, and recompute
// Confidence. Patterns are never silently deleted — only an explicit
// reset clears them.
type InteractionPattern struct {
	ID   string      `json:"id"`
	Type PatternType `json:"type"`

	// Signature is the stable identity of the pattern: the joined
	// sequence string, the hour bucket, the intention type, or the
	// entity key, depending on Type.
	Signature string `json:"signature"`

	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"` // in [0,1]
	Occurrences int     `json:"occurrences"`

	FirstObservedAt time.Time `json:"first_observed_at"`
	LastObservedAt  time.Time `json:"last_observed_at"`

	// Elements are the pattern's constituent parts: the intention types
	// of a sequence, or the single intention/entity of a frequency
	// pattern.
	Elements []string `json:"elements,omitempty"`

	// Metadata holds miner-specific extras (e.g. the hour bucket of a
	// temporal pattern) as typed strings.
	Metadata map[string]string `json:"metadata,omitempty"`
}
