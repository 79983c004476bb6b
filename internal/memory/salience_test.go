package memory

import (
	"testing"
	"time"
)

func TestMentionSalienceGrowsAndCaps(t *testing.T) {
	prev := 0.0
	for n := 1; n <= 10; n++ {
		s := mentionSalience(n)
		if s < prev {
			t.Errorf("salience decreased with mention count: %f -> %f at n=%d", prev, s, n)
		}
		if s > 1.0 {
			t.Errorf("salience exceeded 1.0 at n=%d: %f", n, s)
		}
		prev = s
	}
	if mentionSalience(20) != 1.0 {
		t.Errorf("expected cap at 1.0, got %f", mentionSalience(20))
	}
}

func TestDecayedSalienceMonotone(t *testing.T) {
	cases := []struct {
		name    string
		elapsed []time.Duration
	}{
		{"minutes", []time.Duration{0, time.Minute, 5 * time.Minute, 30 * time.Minute}},
		{"hours", []time.Duration{time.Hour, 2 * time.Hour, 12 * time.Hour}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prev := 1.1
			for _, d := range tc.elapsed {
				s := decayedSalience(1.0, 0.95, d)
				if s > prev {
					t.Errorf("salience increased over time at elapsed=%v: %f -> %f", d, prev, s)
				}
				if s < 0 || s > 1 {
					t.Errorf("salience out of range at elapsed=%v: %f", d, s)
				}
				prev = s
			}
		})
	}
}

func TestDecayedSalienceZeroElapsed(t *testing.T) {
	if got := decayedSalience(0.8, 0.95, 0); got != 0.8 {
		t.Errorf("expected unchanged salience for zero elapsed time, got %f", got)
	}
}
