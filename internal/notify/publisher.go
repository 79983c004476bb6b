// Package notify broadcasts engine events (processed messages, detected
// patterns, reflection insights) to external observers over WebSocket.
// Broadcasting is best-effort: a slow or absent observer never blocks a
// conversation turn.
package notify

// Event is one broadcast engine event.
type Event struct {
	// Type is one of the Event* constants.
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`

	// Payload is the event body: an EnhancedMessage, an
	// InteractionPattern, a ReflectionInsight, or a ValueConstraints.
	Payload interface{} `json:"payload,omitempty"`
}

// Event type constants
const (
	EventMessageProcessed  = "message_processed"
	EventPatternDetected   = "pattern_detected"
	EventInsightGenerated  = "insight_generated"
	EventContextArbitrated = "context_arbitrated"
)

// Publisher is the engine's outward notification boundary.
type Publisher interface {
	Publish(event Event)
	Close() error
}

// NopPublisher discards every event. It is the default when
// broadcasting is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

func (NopPublisher) Close() error { return nil }
