package types

// Manifestation describes how a core value shows up in a concrete
// conversational context: when the tagged context signal is present, the
// value prescribes the expected behavior.
type Manifestation struct {
	// ContextTag names the semantic context signal this manifestation
	// responds to (e.g. "question", "emotional_support",
	// "sensitive_topic"). Match strength per tag is computed by the
	// value engine from the current conversation context.
	ContextTag string `json:"context_tag"`

	// ExpectedBehavior is the behavior the value prescribes in that
	// context (consumed by the external response styler).
	ExpectedBehavior string `json:"expected_behavior"`
}

// CoreValue is a static behavioral guideline with contextual
// manifestations. The base value set is immutable configuration;
// applicability and priority are computed per-context and never stored
// on the value itself. Per-conversation priority overrides are layered
// on top by the value engine.
type CoreValue struct {
	ID             string          `json:"id"`
	Description    string          `json:"description"`
	Importance     float64         `json:"importance"` // Static importance in [0,1]
	Manifestations []Manifestation `json:"manifestations"`
}

// ScoredValue pairs a core value with its computed applicability for a
// specific conversation context.
type ScoredValue struct {
	Value         CoreValue `json:"value"`
	Applicability float64   `json:"applicability"` // in [0,1]

	// MatchedTags lists the manifestation context tags that contributed
	// a non-zero match, for explainability.
	MatchedTags []string `json:"matched_tags,omitempty"`
}

// ValueTension is a detected conflict between two simultaneously
// relevant core values. Tensions are derived per arbitration call and
// not persisted.
type ValueTension struct {
	ValueIDA string      `json:"value_id_a"`
	ValueIDB string      `json:"value_id_b"`
	Type     TensionType `json:"type"`

	// ContextElements lists the context tags that made both values
	// applicable at once.
	ContextElements []string `json:"context_elements,omitempty"`

	Description string `json:"description,omitempty"`
}

// ValueConstraints is the flat set of named flags the (external)
// response styler must honor. It is the value engine's arbitration
// output.
type ValueConstraints struct {
	// PriorityValueID identifies the value that won arbitration.
	PriorityValueID string `json:"priority_value_id"`

	PreserveUserAgency     bool `json:"preserve_user_agency"`
	AcknowledgeUncertainty bool `json:"acknowledge_uncertainty"`
	PrioritizeAccuracy     bool `json:"prioritize_accuracy"`
	OfferEmotionalSupport  bool `json:"offer_emotional_support"`
	RespectPrivacy         bool `json:"respect_privacy"`
	EncourageGrowth        bool `json:"encourage_growth"`

	// ExpectedBehaviors collects the prescribed behaviors of every
	// relevant value's matched manifestations.
	ExpectedBehaviors []string `json:"expected_behaviors,omitempty"`
}
