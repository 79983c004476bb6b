// Package extract implements deterministic, rule-based extraction of
// entities and intentions from raw message text. There are no network or
// model calls: every detection is reproducible from a fixed battery of
// regular expressions, gazetteer lists, and keyword tables.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/scrypster/attune/pkg/types"
)

// Confidence levels per extraction stage. Gazetteer hits beat typed
// regex matches, which beat the generic concept fallback.
const (
	regexConfidence     = 0.8
	gazetteerConfidence = 0.9
	conceptConfidence   = 0.6
)

// typedMatcher is one regex in the fixed battery. When group is true the
// entity span is the first capture group rather than the whole match.
type typedMatcher struct {
	entityType string
	re         *regexp.Regexp
	group      bool
}

// The fixed matcher battery. Order does not matter: overlaps are
// resolved afterwards by confidence then span length.
var typedMatchers = []typedMatcher{
	{types.EntityTypePerson, regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr|Prof)\.? ([A-Z][a-z]+(?: [A-Z][a-z]+)?)`), true},
	{types.EntityTypePerson, regexp.MustCompile(`(?i)\bmy name is ([A-Z][a-z]+(?: [A-Z][a-z]+)?)`), true},

	{types.EntityTypeLocation, regexp.MustCompile(`\b(?:in|at|from|to|near) ([A-Z][a-z]+(?: [A-Z][a-z]+)*)`), true},

	{types.EntityTypeOrganization, regexp.MustCompile(`\b([A-Z][A-Za-z]+(?: [A-Z][A-Za-z]+)*) (?:Inc|Corp|Corporation|Ltd|LLC|GmbH)\b`), false},

	{types.EntityTypeDateTime, regexp.MustCompile(`(?i)\b(?:today|tomorrow|yesterday|tonight|this (?:morning|afternoon|evening|weekend)|next (?:week|month|year|monday|tuesday|wednesday|thursday|friday|saturday|sunday))\b`), false},
	{types.EntityTypeDateTime, regexp.MustCompile(`(?i)\b(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`), false},
	{types.EntityTypeDateTime, regexp.MustCompile(`(?i)\b(?:january|february|march|april|may|june|july|august|september|october|november|december) \d{1,2}(?:st|nd|rd|th)?\b`), false},
	{types.EntityTypeDateTime, regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`), false},
	{types.EntityTypeDateTime, regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}(?: ?[ap]m)?\b`), false},

	{types.EntityTypeDuration, regexp.MustCompile(`(?i)\b\d+ (?:seconds?|minutes?|hours?|days?|weeks?|months?|years?)\b`), false},
	{types.EntityTypeDuration, regexp.MustCompile(`(?i)\b(?:half an hour|all day|a few (?:minutes|hours|days))\b`), false},

	{types.EntityTypeProduct, regexp.MustCompile(`\b([A-Z][a-z]+ \d+(?:\.\d+)?(?: (?:Pro|Max|Mini|Plus|Ultra))?)\b`), false},

	{types.EntityTypeEvent, regexp.MustCompile(`(?i)\b(?:meeting|appointment|conference|birthday|wedding|interview|deadline|standup)\b`), false},

	{types.EntityTypeTopic, regexp.MustCompile(`(?i)\b(?:about|regarding|concerning) ([a-z]+(?: [a-z]+){0,2})`), true},

	{types.EntityTypeTask, regexp.MustCompile(`(?i)\b(?:need to|have to|must|remind me to) ([a-z]+(?: [a-z]+){0,3})`), true},

	{types.EntityTypePreference, regexp.MustCompile(`(?i)\bI (?:like|love|prefer|enjoy|hate|dislike) ([a-z]+(?: [a-z]+){0,3})`), true},
}

// conceptRe finds capitalized phrases for the generic fallback stage.
var conceptRe = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)*\b`)

// conceptStopwords filters sentence starters and function words out of
// the capitalized-phrase fallback. Lowercased single words only;
// multi-word phrases always pass.
var conceptStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "i": {}, "it": {}, "he": {}, "she": {},
	"we": {}, "they": {}, "you": {}, "my": {}, "your": {}, "this": {},
	"that": {}, "and": {}, "or": {}, "but": {}, "if": {}, "so": {},
	"not": {}, "is": {}, "are": {}, "do": {}, "does": {}, "can": {},
	"could": {}, "would": {}, "should": {}, "will": {}, "let": {},
	"hi": {}, "hello": {}, "hey": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "why": {}, "how": {}, "yes": {}, "no": {}, "ok": {},
	"okay": {}, "please": {}, "thanks": {}, "thank": {}, "sorry": {},
	"dr": {}, "mr": {}, "mrs": {}, "ms": {}, "prof": {},
}

// Recognizer recognizes typed entities in raw text. It is stateless and
// safe for concurrent use; all tables are built once at package init.
type Recognizer struct{}

// NewRecognizer returns an entity recognizer.
func NewRecognizer() *Recognizer {
	return &Recognizer{}
}

// Recognize returns the entities found in text, ordered by start offset,
// with non-overlapping spans satisfying 0 <= Start < End <= len(text).
//
// Empty or blank text yields an empty result, never an error: malformed
// input degrades, it does not fail the pipeline.
func (r *Recognizer) Recognize(text string) []types.Entity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var candidates []types.Entity

	// Stage 1: typed regex battery.
	for _, m := range typedMatchers {
		for _, idx := range m.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := idx[0], idx[1]
			if m.group && len(idx) >= 4 && idx[2] >= 0 {
				start, end = idx[2], idx[3]
			}
			if start >= end {
				continue
			}
			candidates = append(candidates, newCandidate(text, m.entityType, start, end, regexConfidence, "pattern"))
		}
	}

	// Stage 2: gazetteer lookups against static known-entity lists.
	for _, g := range gazetteers {
		for _, idx := range g.re.FindAllStringIndex(text, -1) {
			candidates = append(candidates, newCandidate(text, g.entityType, idx[0], idx[1], gazetteerConfidence, "gazetteer"))
		}
	}

	// Stage 3: generic concept fallback for capitalized phrases.
	for _, idx := range conceptRe.FindAllStringIndex(text, -1) {
		raw := text[idx[0]:idx[1]]
		if !strings.Contains(raw, " ") {
			if _, stop := conceptStopwords[strings.ToLower(raw)]; stop {
				continue
			}
		}
		candidates = append(candidates, newCandidate(text, types.EntityTypeConcept, idx[0], idx[1], conceptConfidence, "fallback"))
	}

	return resolveOverlaps(candidates)
}

// newCandidate builds an entity candidate for the given span.
func newCandidate(text, entityType string, start, end int, confidence float64, source string) types.Entity {
	raw := text[start:end]
	return types.Entity{
		ID:              uuid.New().String(),
		Type:            entityType,
		RawValue:        raw,
		NormalizedValue: types.NormalizeEntityValue(raw),
		Confidence:      confidence,
		StartIndex:      start,
		EndIndex:        end,
		Attributes:      map[string]string{"source": source},
	}
}

// resolveOverlaps keeps the best match per overlapping span: highest
// confidence wins, tie broken by longer span. Classic greedy interval
// scheduling after sorting by start offset.
func resolveOverlaps(candidates []types.Entity) []types.Entity {
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].StartIndex != candidates[j].StartIndex {
			return candidates[i].StartIndex < candidates[j].StartIndex
		}
		// Same start: better candidate first so the keeper wins below.
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return spanLen(candidates[i]) > spanLen(candidates[j])
	})

	kept := []types.Entity{candidates[0]}
	for _, cand := range candidates[1:] {
		last := &kept[len(kept)-1]
		if cand.StartIndex >= last.EndIndex {
			kept = append(kept, cand)
			continue
		}
		// Overlap: keep the higher confidence, tie-break longer span.
		if cand.Confidence > last.Confidence ||
			(cand.Confidence == last.Confidence && spanLen(cand) > spanLen(*last)) {
			*last = cand
		}
	}
	return kept
}

func spanLen(e types.Entity) int {
	return e.EndIndex - e.StartIndex
}
