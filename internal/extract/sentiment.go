package extract

import "strings"

// Sentiment lexicons. Deliberately small, auditable word lists; the
// rolling conversation sentiment only needs a coarse, consistent signal.
var (
	positiveWords = map[string]struct{}{
		"good": {}, "great": {}, "awesome": {}, "excellent": {},
		"wonderful": {}, "perfect": {}, "love": {}, "like": {},
		"happy": {}, "glad": {}, "thanks": {}, "thank": {},
		"helpful": {}, "nice": {}, "amazing": {}, "fantastic": {},
		"excited": {}, "best": {},
	}

	negativeWords = map[string]struct{}{
		"bad": {}, "terrible": {}, "awful": {}, "horrible": {},
		"hate": {}, "sad": {}, "angry": {}, "upset": {},
		"frustrated": {}, "worried": {}, "anxious": {}, "stressed": {},
		"wrong": {}, "useless": {}, "annoying": {}, "disappointed": {},
		"worst": {}, "broken": {},
	}
)

// Sentiment scores text in [-1,1] from the positive/negative word
// lexicons: (positives - negatives) / totalMatches. Text with no lexicon
// hits scores 0.
func Sentiment(text string) float64 {
	pos, neg := 0, 0
	for _, f := range strings.Fields(strings.ToLower(text)) {
		w := strings.Trim(f, ".,!?;:'\"()")
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return 0
	}
	return float64(pos-neg) / float64(total)
}
