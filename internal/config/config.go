// Package config provides configuration management for rollcall.
// It loads settings from environment variables with the ROLLCALL_ prefix
// and provides sensible defaults for all configuration options.
//
// The matcher thresholds (fuzzy score threshold and maximum edit distance)
// are deliberately exposed as two independent constants: a candidate
// qualifies on either, because the two signals catch different error
// classes (phonetic/structural typos vs. near-identical short strings).
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration settings for the rollcall application.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Matcher    MatcherConfig
	Confidence ConfidenceConfig
	Notify     NotifyConfig
	Security   SecurityConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 6464)
	Host string // Server host (default: 127.0.0.1)
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine type: sqlite, postgres (default: sqlite)
	DataPath      string // Path to data directory for sqlite (default: ./data)
	PostgresDSN   string // Postgres connection string when engine is postgres
}

// MatcherConfig contains similarity engine and resolver tunables.
type MatcherConfig struct {
	// ScoreThreshold is the minimum combined similarity score (0-100) for
	// a fuzzy candidate to qualify (default: 85).
	ScoreThreshold float64

	// MaxEditDistance is the maximum raw Levenshtein distance for a fuzzy
	// candidate to qualify independently of its score (default: 2).
	MaxEditDistance int

	// HighTierScore is the combined score above which a unique fuzzy match
	// is tiered high instead of medium (default: 90).
	HighTierScore float64

	// ReviewScore is the combined score below which a unique fuzzy match
	// still qualifies but is flagged for review (default: 85).
	ReviewScore float64

	// Combiner weights; must sum to 1.0.
	EditWeight     float64 // default: 0.30
	PhoneticWeight float64 // default: 0.25
	AliasWeight    float64 // default: 0.25
	TokenWeight    float64 // default: 0.20

	// NicknameTablePath points to a YAML nickname-equivalence file. Empty
	// means the built-in table is used.
	NicknameTablePath string
}

// ConfidenceConfig contains confidence scorer tunables.
type ConfidenceConfig struct {
	// AutoApproveThreshold: overall confidence at or above this value is
	// approved without a review task (default: 85).
	AutoApproveThreshold float64

	// CorrectionThreshold: overall confidence below this value flags the
	// record needs_correction on the next workflow transition (default: 60).
	CorrectionThreshold float64

	// Component weights; must sum to 1.0.
	ExtractionWeight float64 // default: 0.40
	MatchWeight      float64 // default: 0.35
	HistoricalWeight float64 // default: 0.25

	// AnomalyPenaltyMax is the maximum confidence penalty applied at
	// anomaly score 100 (default: 15).
	AnomalyPenaltyMax float64
}

// NotifyConfig contains notification sink configuration.
type NotifyConfig struct {
	Enabled bool   // Emit events for critical review tasks (default: true)
	SinkURL string // HTTP endpoint of the notification collaborator
}

// SecurityConfig contains HTTP surface protection settings.
type SecurityConfig struct {
	RateLimitPerSec float64 // Sustained requests per second (default: 50)
	RateLimitBurst  int     // Maximum burst size (default: 100)
	APIToken        string  // Optional bearer token for admin endpoints
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the ROLLCALL_ prefix.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("ROLLCALL_PORT", 6464),
			Host: getEnv("ROLLCALL_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			StorageEngine: getEnv("ROLLCALL_STORAGE_ENGINE", "sqlite"),
			DataPath:      getEnv("ROLLCALL_DATA_PATH", "./data"),
			PostgresDSN:   getEnv("ROLLCALL_POSTGRES_DSN", ""),
		},
		Matcher: MatcherConfig{
			ScoreThreshold:    getEnvFloat("ROLLCALL_MATCH_SCORE_THRESHOLD", 85),
			MaxEditDistance:   getEnvInt("ROLLCALL_MATCH_MAX_EDIT_DISTANCE", 2),
			HighTierScore:     getEnvFloat("ROLLCALL_MATCH_HIGH_TIER_SCORE", 90),
			ReviewScore:       getEnvFloat("ROLLCALL_MATCH_REVIEW_SCORE", 85),
			EditWeight:        getEnvFloat("ROLLCALL_MATCH_EDIT_WEIGHT", 0.30),
			PhoneticWeight:    getEnvFloat("ROLLCALL_MATCH_PHONETIC_WEIGHT", 0.25),
			AliasWeight:       getEnvFloat("ROLLCALL_MATCH_ALIAS_WEIGHT", 0.25),
			TokenWeight:       getEnvFloat("ROLLCALL_MATCH_TOKEN_WEIGHT", 0.20),
			NicknameTablePath: getEnv("ROLLCALL_NICKNAME_TABLE", ""),
		},
		Confidence: ConfidenceConfig{
			AutoApproveThreshold: getEnvFloat("ROLLCALL_CONF_AUTO_APPROVE", 85),
			CorrectionThreshold:  getEnvFloat("ROLLCALL_CONF_CORRECTION", 60),
			ExtractionWeight:     getEnvFloat("ROLLCALL_CONF_EXTRACTION_WEIGHT", 0.40),
			MatchWeight:          getEnvFloat("ROLLCALL_CONF_MATCH_WEIGHT", 0.35),
			HistoricalWeight:     getEnvFloat("ROLLCALL_CONF_HISTORICAL_WEIGHT", 0.25),
			AnomalyPenaltyMax:    getEnvFloat("ROLLCALL_CONF_ANOMALY_PENALTY_MAX", 15),
		},
		Notify: NotifyConfig{
			Enabled: getEnvBool("ROLLCALL_NOTIFY_ENABLED", true),
			SinkURL: getEnv("ROLLCALL_NOTIFY_SINK_URL", ""),
		},
		Security: SecurityConfig{
			RateLimitPerSec: getEnvFloat("ROLLCALL_RATE_LIMIT_PER_SEC", 50),
			RateLimitBurst:  getEnvInt("ROLLCALL_RATE_LIMIT_BURST", 100),
			APIToken:        getEnv("ROLLCALL_API_TOKEN", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints on the loaded configuration.
func (c *Config) Validate() error {
	if c.Matcher.MaxEditDistance < 0 {
		return fmt.Errorf("config: max edit distance must be >= 0, got %d", c.Matcher.MaxEditDistance)
	}

	if c.Matcher.ScoreThreshold < 0 || c.Matcher.ScoreThreshold > 100 {
		return fmt.Errorf("config: score threshold must be in [0,100], got %.1f", c.Matcher.ScoreThreshold)
	}

	weightSum := c.Matcher.EditWeight + c.Matcher.PhoneticWeight +
		c.Matcher.AliasWeight + c.Matcher.TokenWeight
	if weightSum < 0.999 || weightSum > 1.001 {
		return fmt.Errorf("config: matcher weights must sum to 1.0, got %.3f", weightSum)
	}

	confSum := c.Confidence.ExtractionWeight + c.Confidence.MatchWeight + c.Confidence.HistoricalWeight
	if confSum < 0.999 || confSum > 1.001 {
		return fmt.Errorf("config: confidence weights must sum to 1.0, got %.3f", confSum)
	}

	if c.Confidence.CorrectionThreshold > c.Confidence.AutoApproveThreshold {
		return fmt.Errorf("config: correction threshold %.1f exceeds auto-approve threshold %.1f",
			c.Confidence.CorrectionThreshold, c.Confidence.AutoApproveThreshold)
	}

	switch c.Storage.StorageEngine {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.StorageEngine)
	}

	if c.Storage.StorageEngine == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("config: postgres storage engine requires ROLLCALL_POSTGRES_DSN")
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

// getEnvFloat retrieves a float environment variable or returns a default
// value on absence or parse failure.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. It recognizes "true", "1", "yes" as true and "false", "0", "no" as
// false (case-insensitive).
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
