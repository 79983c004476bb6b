// Package config provides configuration management for Attune.
// It loads settings from environment variables with the ATTUNE_ prefix,
// optionally overlays a YAML file, and provides sensible defaults for
// every tunable.
//
// Out-of-range weights or caps are rejected by Validate at
// initialization time; per-message code never re-validates.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Attune engine.
type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Memory     MemoryConfig     `yaml:"memory"`
	Intent     IntentConfig     `yaml:"intent"`
	Patterns   PatternConfig    `yaml:"patterns"`
	Values     ValueConfig      `yaml:"values"`
	Reflection ReflectionConfig `yaml:"reflection"`
	Storage    StorageConfig    `yaml:"storage"`
	Broadcast  BroadcastConfig  `yaml:"broadcast"`
}

// EngineConfig contains session-container settings.
type EngineConfig struct {
	// MaxSessions bounds the per-conversation session map. Least
	// recently used sessions are evicted beyond this cap (default: 1024).
	MaxSessions int `yaml:"max_sessions"`
}

// MemoryConfig contains working-memory caps and decay settings.
type MemoryConfig struct {
	MaxRecentMessages   int `yaml:"max_recent_messages"`   // Recent-message ring size (default: 10)
	MaxRecentIntentions int `yaml:"max_recent_intentions"` // Recent-intentions cap (default: 5)
	MaxActiveTopics     int `yaml:"max_active_topics"`     // Active-topics cap (default: 8)
	MaxEntities         int `yaml:"max_entities"`          // Entity-table cap (default: 50)
	AttentionSize       int `yaml:"attention_size"`        // Top-N entities in the attention focus (default: 5)

	// EntityTTLMinutes purges entities not mentioned for this long
	// (default: 30).
	EntityTTLMinutes int `yaml:"entity_ttl_minutes"`

	// SalienceDecayFactor is the multiplicative salience decay applied
	// per cleanup pass (default: 0.95). Empirically chosen; kept as a
	// configurable default rather than a derived value.
	SalienceDecayFactor float64 `yaml:"salience_decay_factor"`

	// SalienceFloor evicts entities whose salience decays below it
	// (default: 0.05).
	SalienceFloor float64 `yaml:"salience_floor"`
}

// IntentConfig contains intention-detection and aging settings.
type IntentConfig struct {
	// StaleAfterMinutes: intentions unobserved longer than this decay on
	// access (default: 5).
	StaleAfterMinutes int `yaml:"stale_after_minutes"`

	// PurgeAfterMinutes: intentions unobserved longer than this are
	// purged (default: 10).
	PurgeAfterMinutes int `yaml:"purge_after_minutes"`

	// StaleDecayFactor is the multiplicative confidence decay applied
	// per access inside the stale window (default: 0.8).
	StaleDecayFactor float64 `yaml:"stale_decay_factor"`

	// UnknownConfidence is the fixed confidence of the unknown fallback
	// intention (default: 0.4).
	UnknownConfidence float64 `yaml:"unknown_confidence"`

	// QuestionFallbackConfidence is the confidence assigned to the
	// trailing-? factual-question fallback (default: 0.6).
	QuestionFallbackConfidence float64 `yaml:"question_fallback_confidence"`

	// OverrideThreshold: command/request-action and question intentions
	// above this confidence win primary election over higher-confidence
	// small talk (default: 0.7).
	OverrideThreshold float64 `yaml:"override_threshold"`
}

// PatternConfig contains pattern-mining thresholds.
type PatternConfig struct {
	HistorySize                int     `yaml:"history_size"`                  // Rolling event history cap (default: 100)
	SequenceMinOccurrences     int     `yaml:"sequence_min_occurrences"`      // Sequential miner threshold (default: 2)
	TemporalMinMessages        int     `yaml:"temporal_min_messages"`         // Messages per hour bucket (default: 3)
	FrequencyMinIntentions     int     `yaml:"frequency_min_intentions"`      // Intention occurrence threshold (default: 3)
	FrequencyMinShare          float64 `yaml:"frequency_min_share"`           // Intention share of user messages (default: 0.25)
	FrequencyMinEntityMentions int     `yaml:"frequency_min_entity_mentions"` // Entity mention threshold (default: 2)

	// RelevanceConfidenceFloor: when no pattern matches the current
	// intention or entities, only patterns above this confidence are
	// returned as relevant (default: 0.85).
	RelevanceConfidenceFloor float64 `yaml:"relevance_confidence_floor"`
}

// ValueConfig contains applicability-score weights and arbitration bands.
// The three weights must sum to 1.0.
type ValueConfig struct {
	ImportanceWeight    float64 `yaml:"importance_weight"`    // Weight of static importance (default: 0.5)
	ManifestationWeight float64 `yaml:"manifestation_weight"` // Weight of best manifestation match (default: 0.3)
	EnhancementWeight   float64 `yaml:"enhancement_weight"`   // Weight of the enhancement effect (default: 0.2)

	// RelevanceThreshold: a value is relevant when its applicability
	// exceeds this (default: 0.3).
	RelevanceThreshold float64 `yaml:"relevance_threshold"`

	// ApplicabilityGap: when two values' applicability differs by more
	// than this, the higher one wins outright (default: 0.3).
	ApplicabilityGap float64 `yaml:"applicability_gap"`

	// NearEqualBand: applicability within this band counts as near-equal
	// for priority-tension detection (default: 0.1).
	NearEqualBand float64 `yaml:"near_equal_band"`

	// ImportanceGap: importance difference beyond this marks a priority
	// tension when applicability is near-equal (default: 0.1).
	ImportanceGap float64 `yaml:"importance_gap"`

	// ApplicationTensionFloor: both values scoring applicability above
	// this marks an application tension (default: 0.7).
	ApplicationTensionFloor float64 `yaml:"application_tension_floor"`
}

// ReflectionConfig contains reflection-loop settings.
type ReflectionConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"` // Timer period (default: 15)
	WindowSize      int `yaml:"window_size"`      // Bounded log window scanned per pass (default: 200)

	FrequentIntentionMin int `yaml:"frequent_intention_min"` // Occurrences beyond which an intention is "frequent" (default: 3)
	RecurringErrorMin    int `yaml:"recurring_error_min"`    // Occurrences beyond which an error recurs (default: 2)
	NegativeFeedbackMin  int `yaml:"negative_feedback_min"`  // Occurrences beyond which feedback clusters (default: 2)

	HighLatencyMS int64   `yaml:"high_latency_ms"` // Mean response latency warning threshold (default: 2000)
	LowSentiment  float64 `yaml:"low_sentiment"`   // Mean feedback sentiment warning threshold (default: -0.3)
}

// StorageConfig contains the persistence boundary settings. Persistence
// is best-effort: an empty driver disables it entirely.
type StorageConfig struct {
	Driver    string `yaml:"driver"`     // "", "sqlite", or "postgres" (default: "")
	DSN       string `yaml:"dsn"`        // Driver-specific data source name
	QueueSize int    `yaml:"queue_size"` // Async recorder buffer (default: 256)
}

// BroadcastConfig contains cross-instance event broadcast settings.
type BroadcastConfig struct {
	Enabled         bool    `yaml:"enabled"`           // Enable the websocket hub (default: false)
	Addr            string  `yaml:"addr"`              // Hub listen address (default: 127.0.0.1:6373)
	EventsPerSecond float64 `yaml:"events_per_second"` // Outbound event rate limit (default: 20)
	Burst           int     `yaml:"burst"`             // Rate limiter burst (default: 40)
}

// Load builds a Config from environment variables with sensible defaults.
// All environment variables use the ATTUNE_ prefix. The result is
// validated; out-of-range settings fail fast here rather than at message
// time.
func Load() (*Config, error) {
	cfg := defaults()
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile builds a Config from defaults, overlays the YAML file at
// path, then applies environment variables on top (env wins). The result
// is validated.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the default configuration. It always validates.
func Default() *Config {
	return defaults()
}

func defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxSessions: 1024,
		},
		Memory: MemoryConfig{
			MaxRecentMessages:   10,
			MaxRecentIntentions: 5,
			MaxActiveTopics:     8,
			MaxEntities:         50,
			AttentionSize:       5,
			EntityTTLMinutes:    30,
			SalienceDecayFactor: 0.95,
			SalienceFloor:       0.05,
		},
		Intent: IntentConfig{
			StaleAfterMinutes:          5,
			PurgeAfterMinutes:          10,
			StaleDecayFactor:           0.8,
			UnknownConfidence:          0.4,
			QuestionFallbackConfidence: 0.6,
			OverrideThreshold:          0.7,
		},
		Patterns: PatternConfig{
			HistorySize:                100,
			SequenceMinOccurrences:     2,
			TemporalMinMessages:        3,
			FrequencyMinIntentions:     3,
			FrequencyMinShare:          0.25,
			FrequencyMinEntityMentions: 2,
			RelevanceConfidenceFloor:   0.85,
		},
		Values: ValueConfig{
			ImportanceWeight:        0.5,
			ManifestationWeight:     0.3,
			EnhancementWeight:       0.2,
			RelevanceThreshold:      0.3,
			ApplicabilityGap:        0.3,
			NearEqualBand:           0.1,
			ImportanceGap:           0.1,
			ApplicationTensionFloor: 0.7,
		},
		Reflection: ReflectionConfig{
			IntervalMinutes:      15,
			WindowSize:           200,
			FrequentIntentionMin: 3,
			RecurringErrorMin:    2,
			NegativeFeedbackMin:  2,
			HighLatencyMS:        2000,
			LowSentiment:         -0.3,
		},
		Storage: StorageConfig{
			Driver:    "",
			DSN:       "",
			QueueSize: 256,
		},
		Broadcast: BroadcastConfig{
			Enabled:         false,
			Addr:            "127.0.0.1:6373",
			EventsPerSecond: 20,
			Burst:           40,
		},
	}
}

// applyEnv overlays environment variables onto cfg. Only the settings
// most commonly changed per deployment are exposed through env; the full
// surface is available via YAML.
func applyEnv(cfg *Config) {
	cfg.Engine.MaxSessions = getEnvInt("ATTUNE_MAX_SESSIONS", cfg.Engine.MaxSessions)

	cfg.Memory.MaxEntities = getEnvInt("ATTUNE_MAX_ENTITIES", cfg.Memory.MaxEntities)
	cfg.Memory.MaxRecentMessages = getEnvInt("ATTUNE_MAX_RECENT_MESSAGES", cfg.Memory.MaxRecentMessages)
	cfg.Memory.EntityTTLMinutes = getEnvInt("ATTUNE_ENTITY_TTL_MINUTES", cfg.Memory.EntityTTLMinutes)
	cfg.Memory.SalienceDecayFactor = getEnvFloat("ATTUNE_SALIENCE_DECAY", cfg.Memory.SalienceDecayFactor)

	cfg.Intent.StaleDecayFactor = getEnvFloat("ATTUNE_INTENT_STALE_DECAY", cfg.Intent.StaleDecayFactor)
	cfg.Intent.OverrideThreshold = getEnvFloat("ATTUNE_INTENT_OVERRIDE_THRESHOLD", cfg.Intent.OverrideThreshold)

	cfg.Reflection.IntervalMinutes = getEnvInt("ATTUNE_REFLECTION_INTERVAL_MINUTES", cfg.Reflection.IntervalMinutes)

	cfg.Storage.Driver = getEnv("ATTUNE_STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.DSN = getEnv("ATTUNE_STORAGE_DSN", cfg.Storage.DSN)

	cfg.Broadcast.Enabled = getEnvBool("ATTUNE_BROADCAST_ENABLED", cfg.Broadcast.Enabled)
	cfg.Broadcast.Addr = getEnv("ATTUNE_BROADCAST_ADDR", cfg.Broadcast.Addr)
}

// Validate checks every cap and weight and returns a descriptive error
// for the first violation found. A Config that fails validation must not
// be used to build an engine.
func (c *Config) Validate() error {
	if c.Engine.MaxSessions <= 0 {
		return fmt.Errorf("config: engine.max_sessions must be positive, got %d", c.Engine.MaxSessions)
	}

	m := c.Memory
	for name, v := range map[string]int{
		"memory.max_recent_messages":   m.MaxRecentMessages,
		"memory.max_recent_intentions": m.MaxRecentIntentions,
		"memory.max_active_topics":     m.MaxActiveTopics,
		"memory.max_entities":          m.MaxEntities,
		"memory.attention_size":        m.AttentionSize,
		"memory.entity_ttl_minutes":    m.EntityTTLMinutes,
	} {
		if v <= 0 {
			return fmt.Errorf("config: %s must be positive, got %d", name, v)
		}
	}
	if m.SalienceDecayFactor <= 0 || m.SalienceDecayFactor > 1 {
		return fmt.Errorf("config: memory.salience_decay_factor must be in (0,1], got %g", m.SalienceDecayFactor)
	}
	if m.SalienceFloor < 0 || m.SalienceFloor >= 1 {
		return fmt.Errorf("config: memory.salience_floor must be in [0,1), got %g", m.SalienceFloor)
	}

	in := c.Intent
	if in.StaleAfterMinutes <= 0 || in.PurgeAfterMinutes <= in.StaleAfterMinutes {
		return fmt.Errorf("config: intent aging windows must satisfy 0 < stale < purge, got stale=%d purge=%d",
			in.StaleAfterMinutes, in.PurgeAfterMinutes)
	}
	if in.StaleDecayFactor <= 0 || in.StaleDecayFactor > 1 {
		return fmt.Errorf("config: intent.stale_decay_factor must be in (0,1], got %g", in.StaleDecayFactor)
	}
	for name, v := range map[string]float64{
		"intent.unknown_confidence":            in.UnknownConfidence,
		"intent.question_fallback_confidence":  in.QuestionFallbackConfidence,
		"intent.override_threshold":            in.OverrideThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("config: %s must be in [0,1], got %g", name, v)
		}
	}

	p := c.Patterns
	if p.HistorySize <= 0 {
		return fmt.Errorf("config: patterns.history_size must be positive, got %d", p.HistorySize)
	}
	if p.SequenceMinOccurrences < 2 {
		return fmt.Errorf("config: patterns.sequence_min_occurrences must be >= 2, got %d", p.SequenceMinOccurrences)
	}
	if p.FrequencyMinShare <= 0 || p.FrequencyMinShare > 1 {
		return fmt.Errorf("config: patterns.frequency_min_share must be in (0,1], got %g", p.FrequencyMinShare)
	}
	if p.RelevanceConfidenceFloor < 0 || p.RelevanceConfidenceFloor > 1 {
		return fmt.Errorf("config: patterns.relevance_confidence_floor must be in [0,1], got %g", p.RelevanceConfidenceFloor)
	}

	v := c.Values
	sum := v.ImportanceWeight + v.ManifestationWeight + v.EnhancementWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("config: values weights must sum to 1.0, got %g", sum)
	}
	for name, w := range map[string]float64{
		"values.importance_weight":         v.ImportanceWeight,
		"values.manifestation_weight":      v.ManifestationWeight,
		"values.enhancement_weight":        v.EnhancementWeight,
		"values.relevance_threshold":       v.RelevanceThreshold,
		"values.applicability_gap":         v.ApplicabilityGap,
		"values.near_equal_band":           v.NearEqualBand,
		"values.importance_gap":            v.ImportanceGap,
		"values.application_tension_floor": v.ApplicationTensionFloor,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("config: %s must be in [0,1], got %g", name, w)
		}
	}

	r := c.Reflection
	if r.IntervalMinutes <= 0 || r.WindowSize <= 0 {
		return fmt.Errorf("config: reflection interval and window must be positive, got interval=%d window=%d",
			r.IntervalMinutes, r.WindowSize)
	}
	if r.LowSentiment < -1 || r.LowSentiment > 1 {
		return fmt.Errorf("config: reflection.low_sentiment must be in [-1,1], got %g", r.LowSentiment)
	}

	switch c.Storage.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("config: storage.driver must be one of \"\", \"sqlite\", \"postgres\", got %q", c.Storage.Driver)
	}
	if c.Storage.QueueSize <= 0 {
		return fmt.Errorf("config: storage.queue_size must be positive, got %d", c.Storage.QueueSize)
	}

	if c.Broadcast.EventsPerSecond <= 0 || c.Broadcast.Burst <= 0 {
		return fmt.Errorf("config: broadcast rate settings must be positive, got rate=%g burst=%d",
			c.Broadcast.EventsPerSecond, c.Broadcast.Burst)
	}

	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. If the environment variable exists but cannot be parsed as an
// integer, it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. It recognizes "true", "1", "yes" as true and "false", "0", "no"
// as false.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
