package types

// FocusEntry is a single ranked item in the attention focus. Priority is
// normalized to [0,1] by rank position: the top item gets 1.0 and each
// subsequent item a proportionally lower value.
type FocusEntry struct {
	EntityKey string  `json:"entity_key"`
	Priority  float64 `json:"priority"`
}

// AttentionFocus is the computed "what the conversation is about right
// now": the top entities ranked by a recency×frequency score, the
// current intentions, and the current topics.
type AttentionFocus struct {
	Entities   []FocusEntry `json:"entities"`
	Intentions []Intention  `json:"intentions"`
	Topics     []string     `json:"topics"`
}

// ConversationContext is a snapshot of a conversation's working memory,
// assembled per turn and consumed by the pattern tracker and the value
// engine. All slices are copies; mutating a snapshot never affects the
// underlying memory state.
type ConversationContext struct {
	ConversationID string `json:"conversation_id"`

	// ActiveTopics is the bounded ordered topic list, most-recent-last.
	ActiveTopics []string `json:"active_topics"`

	// Entities is the current entity table, sorted descending by salience.
	Entities []Entity `json:"entities"`

	// RecentIntentions is bounded (5), most recent first.
	RecentIntentions []Intention `json:"recent_intentions"`

	// Primary is the elected primary intention of the most recent
	// message. It can differ from RecentIntentions[0]: the election
	// lets confident action and question intentions dominate small
	// talk regardless of sort order.
	Primary *Intention `json:"primary_intention,omitempty"`

	// RecentMessages is the bounded message ring, oldest first.
	RecentMessages []Message `json:"recent_messages"`

	// Conversation counters
	MessageCount int     `json:"message_count"`
	Sentiment    float64 `json:"sentiment"`  // Rolling sentiment in [-1,1]
	Engagement   float64 `json:"engagement"` // Engagement level in [0,1]

	Focus AttentionFocus `json:"focus"`
}

// PrimaryIntention returns the elected primary intention of the most
// recent message, falling back to the most recent intention when no
// election has been recorded, or nil when the conversation has none
// yet.
func (c *ConversationContext) PrimaryIntention() *Intention {
	if c.Primary != nil {
		return c.Primary
	}
	if len(c.RecentIntentions) == 0 {
		return nil
	}
	return &c.RecentIntentions[0]
}

// HasQuestion reports whether any recent intention is a question variant.
func (c *ConversationContext) HasQuestion() bool {
	for _, in := range c.RecentIntentions {
		if in.Type.IsQuestion() {
			return true
		}
	}
	return false
}
