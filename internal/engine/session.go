package engine

import (
	"sync"

	"go.uber.org/zap"

	"github.com/scrypster/attune/internal/clock"
	"github.com/scrypster/attune/internal/config"
	"github.com/scrypster/attune/internal/extract"
	"github.com/scrypster/attune/internal/memory"
	"github.com/scrypster/attune/internal/patterns"
	"github.com/scrypster/attune/internal/reflection"
	"github.com/scrypster/attune/internal/values"
	"github.com/scrypster/attune/pkg/types"
)

// session bundles the per-conversation state: working memory, intent
// detection, pattern mining, value arbitration, and the outcome log the
// reflection loop mines.
//
// All access goes through mu: the engine serializes every operation on a
// conversation (single-writer model), so the components themselves never
// need their own locking.
type session struct {
	mu sync.Mutex

	conversationID string
	cfg            *config.Config
	logger         *zap.Logger

	detector *extract.Detector
	memory   *memory.Memory
	tracker  *patterns.Tracker
	values   *values.Engine

	// outcomes is the bounded interaction log, oldest first.
	outcomes []types.InteractionOutcome

	// pendingInsights holds reflection insights queued between turns;
	// they are applied at the start of the next ProcessMessage so a
	// running turn never sees parameters change midway.
	pendingInsights []types.ReflectionInsight

	outcomeWindow int
}

func newSession(conversationID string, cfg *config.Config, clk clock.Clock, logger *zap.Logger) *session {
	return &session{
		conversationID: conversationID,
		cfg:            cfg,
		logger:         logger,
		detector:       extract.NewDetector(cfg.Intent, clk),
		memory:         memory.New(conversationID, cfg.Memory, clk, logger),
		tracker:        patterns.NewTracker(conversationID, cfg.Patterns, clk, logger),
		values:         values.NewEngine(conversationID, nil, cfg.Values, logger),
		outcomeWindow:  cfg.Reflection.WindowSize,
	}
}

// tunables lists the session components reflection insights can evolve.
func (s *session) tunables() []reflection.Tunable {
	return []reflection.Tunable{s.memory, s.tracker, s.values, s.detector}
}

// logOutcome appends to the bounded interaction log.
func (s *session) logOutcome(outcome types.InteractionOutcome) {
	s.outcomes = append(s.outcomes, outcome)
	if len(s.outcomes) > s.outcomeWindow {
		s.outcomes = s.outcomes[len(s.outcomes)-s.outcomeWindow:]
	}
}

// applyPendingInsights drains the queued insights into the components.
func (s *session) applyPendingInsights(logger *zap.Logger) {
	if len(s.pendingInsights) == 0 {
		return
	}
	insights := s.pendingInsights
	s.pendingInsights = nil
	if err := reflection.Apply(insights, s.tunables(), logger); err != nil {
		logger.Warn("insight application incomplete",
			zap.String("conversation_id", s.conversationID),
			zap.Error(err))
	}
}

// reset clears all per-conversation state while keeping the session
// registered. The value engine is rebuilt so custom priorities and
// evolved importance do not leak across resets.
func (s *session) reset() {
	s.detector.Reset()
	s.memory.Reset()
	s.tracker.Reset()
	s.values = values.NewEngine(s.conversationID, nil, s.cfg.Values, s.logger)
	s.outcomes = nil
	s.pendingInsights = nil
}
