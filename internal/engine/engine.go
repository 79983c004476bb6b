// Package engine orchestrates the conversational context pipeline: it
// owns the per-conversation sessions, routes messages through entity and
// intention extraction into working memory and the pattern tracker,
// arbitrates value constraints per response, and runs the periodic
// reflection loop that retunes the components.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scrypster/attune/internal/clock"
	"github.com/scrypster/attune/internal/config"
	"github.com/scrypster/attune/internal/extract"
	"github.com/scrypster/attune/internal/notify"
	"github.com/scrypster/attune/internal/reflection"
	"github.com/scrypster/attune/internal/storage"
	"github.com/scrypster/attune/pkg/types"
)

// maxMessageBytes caps inbound message size; longer messages are
// truncated rather than rejected.
const maxMessageBytes = 8192

// systemInformConfidence is the fixed confidence of the inform intention
// assigned to system-authored messages.
const systemInformConfidence = 0.9

// Arbitration is the output of ProcessContext: the context snapshot plus
// everything the value engine and pattern tracker derived from it.
type Arbitration struct {
	Context          *types.ConversationContext `json:"context"`
	RelevantValues   []types.ScoredValue        `json:"relevant_values"`
	Tensions         []types.ValueTension       `json:"tensions"`
	Constraints      *types.ValueConstraints    `json:"constraints"`
	RelevantPatterns []types.InteractionPattern `json:"relevant_patterns"`
}

// Engine is the top-level orchestrator. It is safe for concurrent use:
// operations on different conversations run in parallel, operations on
// the same conversation are serialized by the session lock.
type Engine struct {
	cfg        *config.Config
	clk        clock.Clock
	logger     *zap.Logger
	recognizer *extract.Recognizer
	reflector  *reflection.Reflector

	sessions *lru.Cache[string, *session]
	// sessionMu guards the get-or-create on the session cache.
	sessionMu sync.Mutex

	recorder  *storage.Recorder
	publisher notify.Publisher

	mu           sync.RWMutex
	started      bool
	shuttingDown bool

	reflectStop chan struct{}
	reflectDone chan struct{}
}

// NewEngine creates an engine. store and publisher may be nil, which
// disables persistence and broadcasting respectively; clk and logger
// default to the system clock and a no-op logger.
func NewEngine(cfg *config.Config, store storage.RecordStore, publisher notify.Publisher, clk clock.Clock, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}

	e := &Engine{
		cfg:        cfg,
		clk:        clk,
		logger:     logger,
		recognizer: extract.NewRecognizer(),
		reflector:  reflection.NewReflector(cfg.Reflection, clk, logger),
		publisher:  publisher,
	}

	sessions, err := lru.NewWithEvict(cfg.Engine.MaxSessions, func(conversationID string, _ *session) {
		logger.Info("session evicted", zap.String("conversation_id", conversationID))
	})
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	e.sessions = sessions

	if store != nil {
		e.recorder = storage.NewRecorder(store, cfg.Storage.QueueSize, logger)
	}

	return e, nil
}

// Start begins the periodic reflection loop. It is an error to start an
// engine twice.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("engine already started")
	}
	e.started = true
	e.reflectStop = make(chan struct{})
	e.reflectDone = make(chan struct{})

	go e.reflectLoop()

	e.logger.Info("engine started",
		zap.Int("max_sessions", e.cfg.Engine.MaxSessions),
		zap.Int("reflection_interval_minutes", e.cfg.Reflection.IntervalMinutes))
	return nil
}

// Shutdown stops the reflection loop, flushes the recorder, and closes
// the publisher. It is safe to call once after Start.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.started || e.shuttingDown {
		e.mu.Unlock()
		return fmt.Errorf("engine not running")
	}
	e.shuttingDown = true
	e.mu.Unlock()

	close(e.reflectStop)
	select {
	case <-e.reflectDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	var firstErr error
	if e.recorder != nil {
		if err := e.recorder.Close(); err != nil {
			firstErr = err
		}
	}
	if err := e.publisher.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	e.logger.Info("engine stopped")
	return firstErr
}

// ProcessMessage runs the full inbound pipeline for a user message:
// entity recognition, intention detection, working-memory update,
// pattern tracking, and best-effort persistence and broadcast. Malformed
// input (empty or oversized text) degrades to a minimal result; it never
// returns an error for message content.
func (e *Engine) ProcessMessage(ctx context.Context, conversationID, text string) (*types.EnhancedMessage, error) {
	if err := e.checkRunning(); err != nil {
		return nil, err
	}
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cut, truncated := truncate(text); truncated {
		text = cut
		e.logger.Warn("message truncated",
			zap.String("conversation_id", conversationID),
			zap.Int("max_bytes", maxMessageBytes))
	}

	s := e.session(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applyPendingInsights(e.logger)

	now := e.clk.Now()
	msg := &types.EnhancedMessage{
		Message: types.Message{
			ID:             uuid.New().String(),
			ConversationID: conversationID,
			Sender:         types.SenderUser,
			Content:        text,
			Timestamp:      now,
		},
	}

	if strings.TrimSpace(text) == "" {
		s.logOutcome(types.InteractionOutcome{
			ConversationID: conversationID,
			Kind:           types.OutcomeError,
			Timestamp:      now,
			ErrorKind:      "empty_message",
		})
	} else {
		msg.Entities = e.recognizer.Recognize(text)
	}

	msg.Intentions = s.detector.Detect(text, msg.Entities)
	msg.PrimaryIntention = s.detector.Primary(msg.Intentions)

	s.memory.AddMessage(msg)
	before := len(s.tracker.Patterns())
	s.tracker.Track(msg)
	mined := s.tracker.Patterns()

	if msg.PrimaryIntention != nil {
		s.logOutcome(types.InteractionOutcome{
			ConversationID: conversationID,
			Kind:           types.OutcomeUserMessage,
			Timestamp:      now,
			IntentionType:  msg.PrimaryIntention.Type,
		})
	}

	e.persistTurn(s, msg, mined)

	e.publisher.Publish(notify.Event{
		Type:           notify.EventMessageProcessed,
		ConversationID: conversationID,
		Payload:        msg,
	})
	if len(mined) > before {
		e.publisher.Publish(notify.Event{
			Type:           notify.EventPatternDetected,
			ConversationID: conversationID,
			Payload:        mined[0],
		})
	}

	return msg, nil
}

// ProcessSystemMessage records a system-authored message: entities are
// recognized so the shared referents stay in memory, but no intention
// detection runs; system messages carry a fixed inform intention.
func (e *Engine) ProcessSystemMessage(ctx context.Context, conversationID, text string) (*types.EnhancedMessage, error) {
	if err := e.checkRunning(); err != nil {
		return nil, err
	}
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, _ = truncate(text)

	s := e.session(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := e.clk.Now()
	inform := types.Intention{
		ID:            uuid.New().String(),
		Type:          types.IntentInform,
		Confidence:    systemInformConfidence,
		Status:        types.IntentionActive,
		FirstDetected: now,
		LastDetected:  now,
	}
	msg := &types.EnhancedMessage{
		Message: types.Message{
			ID:             uuid.New().String(),
			ConversationID: conversationID,
			Sender:         types.SenderSystem,
			Content:        text,
			Timestamp:      now,
		},
		Entities:         e.recognizer.Recognize(text),
		Intentions:       []types.Intention{inform},
		PrimaryIntention: &inform,
	}

	s.memory.AddMessage(msg)
	s.tracker.Track(msg)
	e.persistTurn(s, msg, nil)

	return msg, nil
}

// CreateResponseContext returns the conversation's current context
// snapshot.
func (e *Engine) CreateResponseContext(conversationID string) (*types.ConversationContext, error) {
	if err := e.checkRunning(); err != nil {
		return nil, err
	}
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}

	s := e.session(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := s.memory.Context()
	return &ctx, nil
}

// ProcessContext runs value arbitration over the current context and
// returns the full arbitration result for the response styler.
func (e *Engine) ProcessContext(conversationID string) (*Arbitration, error) {
	if err := e.checkRunning(); err != nil {
		return nil, err
	}
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}

	s := e.session(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.memory.Context()
	relevant := s.values.RelevantValues(&snapshot)
	tensions := s.values.IdentifyTensions(relevant)
	constraints, err := s.values.Constraints(&snapshot)
	if err != nil {
		return nil, fmt.Errorf("arbitrate values: %w", err)
	}

	patterns := s.tracker.RelevantPatterns(snapshot.PrimaryIntention(), snapshot.Entities)

	result := &Arbitration{
		Context:          &snapshot,
		RelevantValues:   relevant,
		Tensions:         tensions,
		Constraints:      constraints,
		RelevantPatterns: patterns,
	}

	e.publisher.Publish(notify.Event{
		Type:           notify.EventContextArbitrated,
		ConversationID: conversationID,
		Payload:        constraints,
	})

	return result, nil
}

// RecordOutcome logs a caller-reported interaction outcome (response
// sent, feedback received, error observed) into the reflection window.
func (e *Engine) RecordOutcome(conversationID string, outcome types.InteractionOutcome) error {
	if err := e.checkRunning(); err != nil {
		return err
	}
	if conversationID == "" {
		return fmt.Errorf("conversation id is required")
	}

	outcome.ConversationID = conversationID
	if outcome.Timestamp.IsZero() {
		outcome.Timestamp = e.clk.Now()
	}

	s := e.session(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logOutcome(outcome)
	if e.recorder != nil {
		key := fmt.Sprintf("%d-%s", outcome.Timestamp.UnixNano(), outcome.Kind)
		e.recorder.Record(types.RecordOutcome, conversationID, key, outcome)
	}
	return nil
}

// SetCustomPriority registers a per-conversation value priority
// override.
func (e *Engine) SetCustomPriority(conversationID, valueIDA, valueIDB, contextPattern, winnerID string) error {
	if err := e.checkRunning(); err != nil {
		return err
	}
	s := e.session(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.SetCustomPriority(valueIDA, valueIDB, contextPattern, winnerID)
}

// FocusOnTopic explicitly steers the conversation's attention to a
// topic.
func (e *Engine) FocusOnTopic(conversationID, topic string) error {
	if err := e.checkRunning(); err != nil {
		return err
	}
	s := e.session(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory.FocusOnTopic(topic)
	return nil
}

// Reset clears all state for one conversation.
func (e *Engine) Reset(conversationID string) error {
	if err := e.checkRunning(); err != nil {
		return err
	}
	s := e.session(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// Reflect runs one synchronous reflection pass over every live session.
// The periodic loop calls this on its interval; tests and operational
// tooling may call it directly.
func (e *Engine) Reflect(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, conversationID := range e.sessions.Keys() {
		s, ok := e.sessions.Peek(conversationID)
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.mu.Lock()
			insights := e.reflector.Reflect(s.outcomes)
			s.pendingInsights = append(s.pendingInsights, insights...)
			s.mu.Unlock()

			for _, insight := range insights {
				if e.recorder != nil {
					e.recorder.Record(types.RecordInsight, s.conversationID, insight.ID, insight)
				}
				e.publisher.Publish(notify.Event{
					Type:           notify.EventInsightGenerated,
					ConversationID: s.conversationID,
					Payload:        insight,
				})
			}
			return nil
		})
	}

	return g.Wait()
}

func (e *Engine) reflectLoop() {
	defer close(e.reflectDone)
	interval := time.Duration(e.cfg.Reflection.IntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.Reflect(context.Background()); err != nil {
				e.logger.Warn("reflection pass failed", zap.Error(err))
			}
		case <-e.reflectStop:
			return
		}
	}
}

// session returns the conversation's session, creating it on first use.
func (e *Engine) session(conversationID string) *session {
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()
	if s, ok := e.sessions.Get(conversationID); ok {
		return s
	}
	s := newSession(conversationID, e.cfg, e.clk, e.logger)
	e.sessions.Add(conversationID, s)
	return s
}

// persistTurn writes the turn's derived state through the recorder.
// Persistence is best-effort: failures are logged inside the recorder
// and never surface here.
func (e *Engine) persistTurn(s *session, msg *types.EnhancedMessage, mined []types.InteractionPattern) {
	if e.recorder == nil {
		return
	}
	for i := range msg.Entities {
		ent := msg.Entities[i]
		e.recorder.Record(types.RecordEntity, s.conversationID, ent.Key(), ent)
	}
	for i := range msg.Intentions {
		in := msg.Intentions[i]
		e.recorder.Record(types.RecordIntention, s.conversationID, in.ID, in)
	}
	for i := range mined {
		p := mined[i]
		e.recorder.Record(types.RecordPattern, s.conversationID, p.Signature, p)
	}
}

// truncate caps text at maxMessageBytes, backing off to the previous
// rune boundary so a multi-byte character is never split.
func truncate(text string) (string, bool) {
	if len(text) <= maxMessageBytes {
		return text, false
	}
	cut := maxMessageBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut], true
}

func (e *Engine) checkRunning() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.started {
		return fmt.Errorf("engine not started")
	}
	if e.shuttingDown {
		return fmt.Errorf("engine shutting down")
	}
	return nil
}
