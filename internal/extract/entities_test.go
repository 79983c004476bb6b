package extract_test

import (
	"testing"

	"github.com/scrypster/attune/internal/extract"
	"github.com/scrypster/attune/pkg/types"
)

func findByType(entities []types.Entity, entityType string) *types.Entity {
	for i := range entities {
		if entities[i].Type == entityType {
			return &entities[i]
		}
	}
	return nil
}

// TestRecognizeWeatherScenario covers the canonical scenario: a greeting
// plus a factual question must yield a location and a date-time entity.
func TestRecognizeWeatherScenario(t *testing.T) {
	r := extract.NewRecognizer()
	text := "Hello! What's the weather in New York tomorrow?"

	entities := r.Recognize(text)

	loc := findByType(entities, types.EntityTypeLocation)
	if loc == nil {
		t.Fatalf("expected a location entity, got %+v", entities)
	}
	if loc.NormalizedValue != "new york" {
		t.Errorf("expected location %q, got %q", "new york", loc.NormalizedValue)
	}
	// Gazetteer hit must win over the typed regex match on the same span.
	if loc.Confidence != 0.9 {
		t.Errorf("expected gazetteer confidence 0.9, got %f", loc.Confidence)
	}

	dt := findByType(entities, types.EntityTypeDateTime)
	if dt == nil {
		t.Fatalf("expected a date-time entity, got %+v", entities)
	}
	if dt.NormalizedValue != "tomorrow" {
		t.Errorf("expected date-time %q, got %q", "tomorrow", dt.NormalizedValue)
	}
}

// TestRecognizeSpanInvariants verifies that for any input every span
// satisfies 0 <= Start < End <= len(text) and spans never overlap.
func TestRecognizeSpanInvariants(t *testing.T) {
	r := extract.NewRecognizer()

	inputs := []string{
		"Hello! What's the weather in New York tomorrow?",
		"Dr. Smith works at Acme Corp in San Francisco.",
		"Remind me to buy milk at 5:30 pm on Friday.",
		"I love hiking and I need to plan the trip for 3 days.",
		"Tell me about machine learning and the meeting on January 15.",
		"",
		"    ",
		"no capitals no entities here",
	}

	for _, text := range inputs {
		entities := r.Recognize(text)
		prevEnd := -1
		for _, e := range entities {
			if e.StartIndex < 0 || e.StartIndex >= e.EndIndex || e.EndIndex > len(text) {
				t.Errorf("input %q: invalid span [%d,%d) for %q", text, e.StartIndex, e.EndIndex, e.RawValue)
			}
			if e.StartIndex < prevEnd {
				t.Errorf("input %q: overlapping span [%d,%d) for %q", text, e.StartIndex, e.EndIndex, e.RawValue)
			}
			prevEnd = e.EndIndex
			if e.RawValue != text[e.StartIndex:e.EndIndex] {
				t.Errorf("input %q: RawValue %q does not match span text %q", text, e.RawValue, text[e.StartIndex:e.EndIndex])
			}
		}
	}
}

func TestRecognizeEmptyInput(t *testing.T) {
	r := extract.NewRecognizer()
	if got := r.Recognize(""); len(got) != 0 {
		t.Errorf("expected no entities for empty input, got %+v", got)
	}
	if got := r.Recognize("   \t  "); len(got) != 0 {
		t.Errorf("expected no entities for blank input, got %+v", got)
	}
}

func TestRecognizeTypedMatchers(t *testing.T) {
	r := extract.NewRecognizer()

	cases := []struct {
		name       string
		text       string
		entityType string
		normalized string
	}{
		{"person_title", "I spoke with Dr. Smith about it.", types.EntityTypePerson, "smith"},
		{"duration", "It took 3 hours to finish.", types.EntityTypeDuration, "3 hours"},
		{"event", "The meeting went well.", types.EntityTypeEvent, "meeting"},
		{"task", "I need to finish the report today.", types.EntityTypeTask, "finish the report today"},
		{"preference", "I love italian food honestly.", types.EntityTypePreference, "italian food honestly"},
		{"datetime_iso", "The deadline is 2026-09-01 sadly.", types.EntityTypeDateTime, "2026-09-01"},
		{"org_gazetteer", "I work at google these days.", types.EntityTypeOrganization, "google"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entities := r.Recognize(tc.text)
			e := findByType(entities, tc.entityType)
			if e == nil {
				t.Fatalf("expected a %s entity in %q, got %+v", tc.entityType, tc.text, entities)
			}
			if e.NormalizedValue != tc.normalized {
				t.Errorf("expected normalized %q, got %q", tc.normalized, e.NormalizedValue)
			}
		})
	}
}

// TestRecognizeConceptFallback verifies capitalized phrases not covered
// by typed matchers fall back to concept entities at lower confidence.
func TestRecognizeConceptFallback(t *testing.T) {
	r := extract.NewRecognizer()

	entities := r.Recognize("We discussed Quantum Computing yesterday.")

	concept := findByType(entities, types.EntityTypeConcept)
	if concept == nil {
		t.Fatalf("expected a concept entity, got %+v", entities)
	}
	if concept.NormalizedValue != "quantum computing" {
		t.Errorf("expected %q, got %q", "quantum computing", concept.NormalizedValue)
	}
	if concept.Confidence != 0.6 {
		t.Errorf("expected fallback confidence 0.6, got %f", concept.Confidence)
	}
}

// TestRecognizeStopwordsNotConcepts verifies sentence starters don't
// leak through the fallback stage.
func TestRecognizeStopwordsNotConcepts(t *testing.T) {
	r := extract.NewRecognizer()

	for _, e := range r.Recognize("Hello! What a day.") {
		if e.Type == types.EntityTypeConcept {
			t.Errorf("unexpected concept entity %q", e.RawValue)
		}
	}
}
