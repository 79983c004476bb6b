package extract_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/scrypster/attune/internal/clock"
	"github.com/scrypster/attune/internal/config"
	"github.com/scrypster/attune/internal/extract"
	"github.com/scrypster/attune/pkg/types"
)

func newDetector(clk clock.Clock) *extract.Detector {
	return extract.NewDetector(config.Default().Intent, clk)
}

func hasIntent(intentions []types.Intention, t types.IntentionType) bool {
	for _, in := range intentions {
		if in.Type == t {
			return true
		}
	}
	return false
}

// TestDetectWeatherScenario: greeting + factual question in one message;
// the question must win primary election per the override rule.
func TestDetectWeatherScenario(t *testing.T) {
	d := newDetector(clock.System{})

	intentions := d.Detect("Hello! What's the weather in New York tomorrow?", nil)

	if !hasIntent(intentions, types.IntentGreeting) {
		t.Errorf("expected a greeting intention, got %+v", intentions)
	}
	if !hasIntent(intentions, types.IntentQuestionFactual) {
		t.Errorf("expected a factual-question intention, got %+v", intentions)
	}

	primary := d.Primary(intentions)
	if primary == nil || primary.Type != types.IntentQuestionFactual {
		t.Errorf("expected question-factual primary, got %+v", primary)
	}
}

// TestDetectNeverEmpty: detection always returns a non-empty list sorted
// descending by confidence, falling back to unknown.
func TestDetectNeverEmpty(t *testing.T) {
	d := newDetector(clock.System{})

	inputs := []string{
		"Hello there!",
		"Can you help me?",
		"qwerty zxcvb asdf",
		"",
	}

	for _, text := range inputs {
		intentions := d.Detect(text, nil)
		if len(intentions) == 0 {
			t.Fatalf("input %q: expected non-empty intentions", text)
		}
		for i := 1; i < len(intentions); i++ {
			if intentions[i].Confidence > intentions[i-1].Confidence {
				t.Errorf("input %q: intentions not sorted descending by confidence", text)
			}
		}
	}
}

func TestDetectUnknownFallback(t *testing.T) {
	cfg := config.Default().Intent
	d := extract.NewDetector(cfg, clock.System{})

	intentions := d.Detect("qwerty zxcvb asdf", nil)

	if len(intentions) != 1 || intentions[0].Type != types.IntentUnknown {
		t.Fatalf("expected single unknown intention, got %+v", intentions)
	}
	if intentions[0].Confidence != cfg.UnknownConfidence {
		t.Errorf("expected fallback confidence %f, got %f", cfg.UnknownConfidence, intentions[0].Confidence)
	}
}

// TestDetectTrailingQuestionMark: a trailing ? with no other question
// type detected yields a medium-confidence factual question.
func TestDetectTrailingQuestionMark(t *testing.T) {
	cfg := config.Default().Intent
	d := extract.NewDetector(cfg, clock.System{})

	intentions := d.Detect("The weather is nice there, right?", nil)

	found := false
	for _, in := range intentions {
		if in.Type == types.IntentQuestionFactual && in.Confidence == cfg.QuestionFallbackConfidence {
			found = true
		}
	}
	if !found {
		t.Errorf("expected trailing-? factual question at %f, got %+v", cfg.QuestionFallbackConfidence, intentions)
	}
}

func TestDetectRequestAction(t *testing.T) {
	d := newDetector(clock.System{})

	intentions := d.Detect("Can you help me?", nil)
	primary := d.Primary(intentions)

	if primary == nil || primary.Type != types.IntentRequestAction {
		t.Errorf("expected request-action primary, got %+v", primary)
	}
}

// TestPrimaryOverride: the action/question override only applies above
// the confidence threshold; low-confidence questions don't dominate.
func TestPrimaryOverride(t *testing.T) {
	d := newDetector(clock.System{})

	intentions := []types.Intention{
		{Type: types.IntentGreeting, Confidence: 0.8},
		{Type: types.IntentQuestionFactual, Confidence: 0.6},
	}
	primary := d.Primary(intentions)
	if primary.Type != types.IntentGreeting {
		t.Errorf("expected greeting primary (question below threshold), got %+v", primary)
	}

	intentions[1].Confidence = 0.75
	primary = d.Primary(intentions)
	if primary.Type != types.IntentQuestionFactual {
		t.Errorf("expected question primary (above threshold), got %+v", primary)
	}
}

// TestDetectRepeatKeepsMaxConfidence: re-detection never lowers a
// tracked intention's confidence.
func TestDetectRepeatKeepsMaxConfidence(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC))
	d := newDetector(clk)

	first := d.Detect("Can you help me with this please?", nil)
	var firstConf float64
	for _, in := range first {
		if in.Type == types.IntentRequestAction {
			firstConf = in.Confidence
		}
	}

	clk.Advance(time.Minute)
	second := d.Detect("help", nil)
	for _, in := range second {
		if in.Type == types.IntentRequestAction && in.Confidence < firstConf {
			t.Errorf("confidence decreased on re-detection: %f -> %f", firstConf, in.Confidence)
		}
	}
}

// TestIntentionAging: confidence decays multiplicatively in the stale
// band and intentions are purged past the expiry window.
func TestIntentionAging(t *testing.T) {
	cfg := config.Default().Intent
	clk := clock.NewManual(time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC))
	d := extract.NewDetector(cfg, clk)

	d.Detect("Can you help me?", nil)

	active := d.Active()
	if len(active) == 0 {
		t.Fatal("expected active intentions after detection")
	}
	before := active[0].Confidence

	// Inside the stale band: confidence decays by the configured factor
	// per access.
	clk.Advance(7 * time.Minute)
	stale := d.Active()
	if len(stale) == 0 {
		t.Fatal("expected intentions to survive the stale band")
	}
	want := before * cfg.StaleDecayFactor
	if diff := stale[0].Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected decayed confidence %f, got %f", want, stale[0].Confidence)
	}

	// Past the purge window: intentions are removed entirely.
	clk.Advance(10 * time.Minute)
	if purged := d.Active(); len(purged) != 0 {
		t.Errorf("expected all intentions purged, got %+v", purged)
	}
}

func TestDetectLinksEntities(t *testing.T) {
	d := newDetector(clock.System{})

	entities := []types.Entity{{ID: "ent-1", Type: types.EntityTypeLocation}}
	intentions := d.Detect("What's the weather in New York?", entities)

	for _, in := range intentions {
		if len(in.RelatedEntityIDs) == 0 || in.RelatedEntityIDs[0] != "ent-1" {
			t.Errorf("expected intention %s to link entity ent-1, got %+v", in.Type, in.RelatedEntityIDs)
		}
	}
}

func TestDetectorReset(t *testing.T) {
	d := newDetector(clock.System{})
	d.Detect("Can you help me?", nil)
	d.Reset()

	if active := d.Active(); len(active) != 0 {
		t.Errorf("expected no active intentions after reset, got %+v", active)
	}
}

// TestEntityLinksDedupedAndBounded: re-detections must not duplicate
// entity links, and a long-lived intention keeps only the most recent
// twenty.
func TestEntityLinksDedupedAndBounded(t *testing.T) {
	d := newDetector(clock.System{})

	entities := []types.Entity{{ID: "ent-ny", Type: types.EntityTypeLocation}}
	d.Detect("What's the weather in New York?", entities)
	intentions := d.Detect("What's the weather in New York?", entities)

	for _, in := range intentions {
		if len(in.RelatedEntityIDs) != 1 {
			t.Errorf("expected one linked entity for %s after re-detection, got %v",
				in.Type, in.RelatedEntityIDs)
		}
	}

	for i := 0; i < 50; i++ {
		fresh := []types.Entity{{ID: fmt.Sprintf("ent-%d", i), Type: types.EntityTypeLocation}}
		d.Detect("What's the weather in New York?", fresh)
	}
	for _, in := range d.Active() {
		if len(in.RelatedEntityIDs) > 20 {
			t.Errorf("entity links for %s grew to %d, want at most 20",
				in.Type, len(in.RelatedEntityIDs))
		}
	}
}
