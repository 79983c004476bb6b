package types

import "time"

// RecordKind classifies a persisted engine record.
type RecordKind string

// Record kind constants
const (
	RecordEntity    RecordKind = "entity"
	RecordIntention RecordKind = "intention"
	RecordPattern   RecordKind = "pattern"
	RecordInsight   RecordKind = "insight"
	RecordOutcome   RecordKind = "outcome"
)

// Record is the persistence-boundary shape the engine reads and writes
// through a RecordStore. Payload is the JSON encoding of the
// corresponding pkg/types value; no engine invariant depends on the
// store's implementation.
type Record struct {
	Kind           RecordKind `json:"kind"`
	ConversationID string     `json:"conversation_id"`

	// Key is unique per (Kind, ConversationID): the entity key, the
	// intention/pattern/insight ID, or a timestamp-based key for
	// outcomes. Saves upsert on (Kind, ConversationID, Key).
	Key string `json:"key"`

	Payload   []byte    `json:"payload"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordFilter selects records in RecordStore.Query. Zero-value fields
// are ignored.
type RecordFilter struct {
	Kind           RecordKind `json:"kind,omitempty"`
	ConversationID string     `json:"conversation_id,omitempty"`
	KeyPrefix      string     `json:"key_prefix,omitempty"`

	// Limit caps the number of returned records; 0 means no limit.
	Limit int `json:"limit,omitempty"`
}
