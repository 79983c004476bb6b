package memory

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/attune/internal/clock"
	"github.com/scrypster/attune/internal/config"
	"github.com/scrypster/attune/internal/extract"
	"github.com/scrypster/attune/pkg/types"
)

// Memory is the working memory of a single conversation. It aggregates
// the bounded recent-message ring, the entity table, recent intentions,
// active topics, and the rolling conversation counters, and computes the
// attention focus from recent activity.
//
// Invariant: no bounded collection ever exceeds its configured cap.
// Eviction is FIFO for messages/topics/intentions and least-salient-first
// for entities.
//
// Memory is not safe for concurrent use; each conversation session owns
// exactly one and serializes access (single-writer model).
type Memory struct {
	cfg    config.MemoryConfig
	clk    clock.Clock
	logger *zap.Logger

	conversationID string

	messages   []types.Message
	intentions []types.Intention // most recent first
	topics     []string          // most recent last
	entities   map[string]*types.Entity
	primary    *types.Intention // elected primary of the latest message

	messageCount int
	sentiment    float64 // rolling, in [-1,1]
	engagement   float64 // in [0,1]

	focus       types.AttentionFocus
	lastCleanup time.Time
}

// New creates a working memory for one conversation.
func New(conversationID string, cfg config.MemoryConfig, clk clock.Clock, logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		cfg:            cfg,
		clk:            clk,
		logger:         logger,
		conversationID: conversationID,
		entities:       make(map[string]*types.Entity),
		engagement:     0.5,
		lastCleanup:    clk.Now(),
	}
}

// AddMessage folds an enhanced message into working memory: it pushes
// the message onto the bounded ring, merges entities with max-confidence
// semantics, prepends intentions, refreshes topics and counters, and
// recomputes the attention focus.
func (m *Memory) AddMessage(msg *types.EnhancedMessage) {
	now := m.clk.Now()
	m.cleanup(now)

	// Recent-message ring, FIFO eviction.
	m.messages = append(m.messages, msg.Message)
	if len(m.messages) > m.cfg.MaxRecentMessages {
		m.messages = m.messages[len(m.messages)-m.cfg.MaxRecentMessages:]
	}
	m.messageCount++

	for i := range msg.Entities {
		m.mergeEntity(&msg.Entities[i], now)
	}

	// Recent intentions: dedupe by type, prepend, bound.
	for i := len(msg.Intentions) - 1; i >= 0; i-- {
		m.prependIntention(msg.Intentions[i])
	}

	// The elected primary is carried verbatim: it can differ from the
	// highest-confidence intention, and arbitration must see the same
	// election the message pipeline made.
	if msg.PrimaryIntention != nil {
		p := *msg.PrimaryIntention
		m.primary = &p
	}

	// Topic entities feed the active-topics list.
	for i := range msg.Entities {
		if msg.Entities[i].IsTopical() {
			m.refreshTopic(msg.Entities[i].NormalizedValue)
		}
	}

	if msg.Sender == types.SenderUser {
		m.updateSentiment(msg.Content)
		m.updateEngagement(msg)
	}

	m.focus = m.computeFocus()
}

// FocusOnEntity explicitly directs attention at an entity: it is merged
// into the table (if absent) and its salience is boosted to the maximum.
func (m *Memory) FocusOnEntity(entity *types.Entity) {
	now := m.clk.Now()
	m.cleanup(now)

	e := m.mergeEntity(entity, now)
	e.Salience = 1.0
	m.focus = m.computeFocus()
}

// FocusOnTopic explicitly pushes a topic to the front of attention.
func (m *Memory) FocusOnTopic(topic string) {
	m.refreshTopic(types.NormalizeEntityValue(topic))
	m.focus = m.computeFocus()
}

// Context returns a snapshot of the current working-memory state. The
// cleanup pass runs first, so salience decay and TTL expiry are always
// reflected in the snapshot.
func (m *Memory) Context() types.ConversationContext {
	m.cleanup(m.clk.Now())
	m.focus = m.computeFocus()

	entities := make([]types.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		entities = append(entities, *e)
	}
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Salience != entities[j].Salience {
			return entities[i].Salience > entities[j].Salience
		}
		return entities[i].NormalizedValue < entities[j].NormalizedValue
	})

	var primary *types.Intention
	if m.primary != nil {
		p := *m.primary
		primary = &p
	}

	return types.ConversationContext{
		ConversationID:   m.conversationID,
		ActiveTopics:     append([]string(nil), m.topics...),
		Entities:         entities,
		RecentIntentions: append([]types.Intention(nil), m.intentions...),
		Primary:          primary,
		RecentMessages:   append([]types.Message(nil), m.messages...),
		MessageCount:     m.messageCount,
		Sentiment:        m.sentiment,
		Engagement:       m.engagement,
		Focus:            m.focus,
	}
}

// Entity returns the tracked entity for key, or nil.
func (m *Memory) Entity(key string) *types.Entity {
	return m.entities[key]
}

// Reset clears all working-memory state for the conversation.
func (m *Memory) Reset() {
	m.messages = nil
	m.intentions = nil
	m.topics = nil
	m.entities = make(map[string]*types.Entity)
	m.primary = nil
	m.messageCount = 0
	m.sentiment = 0
	m.engagement = 0.5
	m.focus = types.AttentionFocus{}
	m.lastCleanup = m.clk.Now()
}

// Capacity identifies working memory for reflection-insight routing.
func (m *Memory) Capacity() types.Capacity {
	return types.CapacityWorkingMemory
}

// Evolve applies a reflection insight by nudging the tunable parameters
// this component owns. Unknown suggested actions are ignored: insights
// are advisory, not commands.
func (m *Memory) Evolve(insight types.ReflectionInsight) error {
	switch insight.SuggestedAction {
	case types.ActionRaiseAttentionSize:
		if m.cfg.AttentionSize < 10 {
			m.cfg.AttentionSize++
		}
	case types.ActionSoftenEntityDecay:
		if m.cfg.SalienceDecayFactor < 0.99 {
			m.cfg.SalienceDecayFactor += 0.01
		}
	default:
		m.logger.Debug("ignoring insight with unhandled action",
			zap.String("conversation_id", m.conversationID),
			zap.String("action", insight.SuggestedAction))
		return nil
	}

	m.logger.Info("working memory evolved",
		zap.String("conversation_id", m.conversationID),
		zap.String("action", insight.SuggestedAction),
		zap.String("insight", insight.Description))
	return nil
}

// mergeEntity folds an incoming entity into the table using
// max-confidence / attribute-merge semantics and returns the tracked
// entry. Re-mentions increment MentionCount by exactly one and never
// decrease confidence.
func (m *Memory) mergeEntity(incoming *types.Entity, now time.Time) *types.Entity {
	key := incoming.Key()

	if existing, ok := m.entities[key]; ok {
		if incoming.Confidence > existing.Confidence {
			existing.Confidence = incoming.Confidence
		}
		for k, v := range incoming.Attributes {
			if existing.Attributes == nil {
				existing.Attributes = make(map[string]string)
			}
			existing.Attributes[k] = v
		}
		existing.MentionCount++
		existing.LastSeen = now
		existing.Salience = mentionSalience(existing.MentionCount)
		return existing
	}

	e := *incoming
	e.FirstSeen = now
	e.LastSeen = now
	e.MentionCount = 1
	e.Salience = mentionSalience(1)
	m.entities[key] = &e

	m.enforceEntityCap()
	return m.entities[key]
}

// enforceEntityCap evicts least-salient entities (tie: oldest LastSeen)
// until the table respects the configured cap.
func (m *Memory) enforceEntityCap() {
	for len(m.entities) > m.cfg.MaxEntities {
		var victim string
		for key, e := range m.entities {
			if victim == "" {
				victim = key
				continue
			}
			v := m.entities[victim]
			if e.Salience < v.Salience ||
				(e.Salience == v.Salience && e.LastSeen.Before(v.LastSeen)) {
				victim = key
			}
		}
		m.logger.Debug("evicting entity over cap",
			zap.String("conversation_id", m.conversationID),
			zap.String("entity", victim))
		delete(m.entities, victim)
	}
}

// prependIntention pushes an intention to the front of the bounded
// recent-intentions list, replacing any older entry of the same type.
func (m *Memory) prependIntention(in types.Intention) {
	filtered := m.intentions[:0]
	for _, existing := range m.intentions {
		if existing.Type != in.Type {
			filtered = append(filtered, existing)
		}
	}
	m.intentions = append([]types.Intention{in}, filtered...)
	if len(m.intentions) > m.cfg.MaxRecentIntentions {
		m.intentions = m.intentions[:m.cfg.MaxRecentIntentions]
	}
}

// refreshTopic appends a topic (most-recent-last), moving it to the end
// if already present, and enforces the cap FIFO.
func (m *Memory) refreshTopic(topic string) {
	filtered := m.topics[:0]
	for _, t := range m.topics {
		if t != topic {
			filtered = append(filtered, t)
		}
	}
	m.topics = append(filtered, topic)
	if len(m.topics) > m.cfg.MaxActiveTopics {
		m.topics = m.topics[len(m.topics)-m.cfg.MaxActiveTopics:]
	}
}

// updateSentiment folds the message's lexicon score into the rolling
// conversation sentiment (exponential smoothing, stays in [-1,1]).
func (m *Memory) updateSentiment(content string) {
	score := extract.Sentiment(content)
	m.sentiment = 0.7*m.sentiment + 0.3*score
}

// updateEngagement applies the bounded additive engagement heuristic:
// longer messages, questions, and commands raise it; one-word replies
// lower it. Always clamped to [0,1].
func (m *Memory) updateEngagement(msg *types.EnhancedMessage) {
	delta := 0.0
	switch n := len(msg.Content); {
	case n > 160:
		delta += 0.15
	case n > 80:
		delta += 0.1
	case n < 10:
		delta -= 0.05
	}
	for _, in := range msg.Intentions {
		if in.Type.IsQuestion() {
			delta += 0.1
			break
		}
	}
	for _, in := range msg.Intentions {
		if in.Type.IsActionable() {
			delta += 0.1
			break
		}
	}

	m.engagement += delta
	if m.engagement > 1 {
		m.engagement = 1
	}
	if m.engagement < 0 {
		m.engagement = 0
	}
}

// cleanup runs the decay pass: salience decays multiplicatively for the
// elapsed time, entities below the salience floor or beyond the TTL are
// removed.
func (m *Memory) cleanup(now time.Time) {
	elapsed := now.Sub(m.lastCleanup)
	if elapsed <= 0 {
		return
	}
	m.lastCleanup = now

	ttl := time.Duration(m.cfg.EntityTTLMinutes) * time.Minute
	for key, e := range m.entities {
		e.Salience = decayedSalience(e.Salience, m.cfg.SalienceDecayFactor, elapsed)

		switch {
		case now.Sub(e.LastSeen) > ttl:
			delete(m.entities, key)
		case e.Salience < m.cfg.SalienceFloor:
			delete(m.entities, key)
		}
	}
}

// computeFocus ranks entities by salience and assigns normalized
// priorities by rank position: the top entry gets 1.0, the kth of n gets
// (n-k+1)/n.
func (m *Memory) computeFocus() types.AttentionFocus {
	type ranked struct {
		key      string
		salience float64
		lastSeen time.Time
	}

	entries := make([]ranked, 0, len(m.entities))
	for key, e := range m.entities {
		entries = append(entries, ranked{key: key, salience: e.Salience, lastSeen: e.LastSeen})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].salience != entries[j].salience {
			return entries[i].salience > entries[j].salience
		}
		if !entries[i].lastSeen.Equal(entries[j].lastSeen) {
			return entries[i].lastSeen.After(entries[j].lastSeen)
		}
		return entries[i].key < entries[j].key
	})

	n := m.cfg.AttentionSize
	if len(entries) < n {
		n = len(entries)
	}

	focus := types.AttentionFocus{
		Intentions: append([]types.Intention(nil), m.intentions...),
		Topics:     append([]string(nil), m.topics...),
	}
	for i := 0; i < n; i++ {
		focus.Entities = append(focus.Entities, types.FocusEntry{
			EntityKey: entries[i].key,
			Priority:  float64(n-i) / float64(n),
		})
	}
	return focus
}

// String implements fmt.Stringer for debug logging.
func (m *Memory) String() string {
	return fmt.Sprintf("memory{conversation=%s entities=%d topics=%d messages=%d}",
		m.conversationID, len(m.entities), len(m.topics), m.messageCount)
}
