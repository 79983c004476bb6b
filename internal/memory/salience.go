// Package memory implements per-conversation working memory: bounded
// recent-message, intention, and topic state, an entity table with
// salience decay, and the computed attention focus.
package memory

import (
	"math"
	"time"
)

const (
	// mentionSalienceBase is the salience assigned on an entity's first
	// mention.
	mentionSalienceBase = 0.6

	// mentionSalienceStep is added per additional mention, capped at 1.0.
	mentionSalienceStep = 0.1

	// decayIntervalMinutes is the granularity of the multiplicative
	// salience decay: one configured decay factor per elapsed minute.
	decayIntervalMinutes = 1.0
)

// mentionSalience returns the refreshed salience after the nth mention.
// More mentions push salience toward 1.0; the decay pass then erodes it
// between mentions, so the effective score combines frequency and
// recency.
func mentionSalience(mentionCount int) float64 {
	s := mentionSalienceBase + mentionSalienceStep*float64(mentionCount-1)
	return math.Min(s, 1.0)
}

// decayedSalience applies the per-pass multiplicative decay for the time
// elapsed since the last pass: salience * factor^(elapsedMinutes). The
// result is monotonically non-increasing in elapsed time for factor in
// (0,1].
func decayedSalience(salience, factor float64, elapsed time.Duration) float64 {
	minutes := elapsed.Minutes() / decayIntervalMinutes
	if minutes <= 0 {
		return salience
	}
	decayed := salience * math.Pow(factor, minutes)
	return math.Max(0.0, math.Min(decayed, 1.0))
}
