// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint for traces (optional, tracing no-ops if unset)

	// Security
	AdminToken   string // Admin API token (X-Admin-Token header)
	RateLimitRPS int

	// Lexicon
	LexiconPath string // Path to a lexicon YAML file (optional, uses embedded defaults if unset)

	// Fusion engine tunables. Empirically chosen defaults; override per
	// deployment, they carry no clinical validity claim.
	TextWeight       float64
	ImageWeight      float64
	BehavioralWeight float64
	EscalationSpread float64 // modality score gap that triggers escalation
	EscalationFloor  float64 // fraction of the loudest score the combined score is floored at

	// Image correction tunables
	CorrectionCloseCallRatio float64 // rule 1: runner-up within this fraction of the top score
	CorrectionWeakAngryMax   float64 // rule 2: top "angry" score below this
	CorrectionWeakHappyMin   float64 // rule 2: "happy" score above this
	CorrectionLowTopMax      float64 // rule 3: top score below this
	CorrectionLowHappyMin    float64 // rule 3: "happy" score above this

	// High-risk monitor tunables
	MonitorWindow    int // recent entries inspected
	MonitorThreshold int // high-stress entries that raise the flag
	SweepInterval    time.Duration

	// Commit retry policy
	CommitRetries    int
	CommitRetryDelay time.Duration
}

// Defaults
const (
	DefaultPort      = "8080"
	DefaultEnv       = "development"
	DefaultLogLevel  = "info"
	DefaultRateLimit = 100

	DefaultTextWeight       = 0.5
	DefaultImageWeight      = 0.3
	DefaultBehavioralWeight = 0.2
	DefaultEscalationSpread = 0.4
	DefaultEscalationFloor  = 0.5

	DefaultCloseCallRatio = 0.20
	DefaultWeakAngryMax   = 0.55
	DefaultWeakHappyMin   = 0.25
	DefaultLowTopMax      = 0.40
	DefaultLowHappyMin    = 0.20

	DefaultMonitorWindow    = 5
	DefaultMonitorThreshold = 3
	DefaultSweepInterval    = time.Minute

	DefaultCommitRetries    = 3
	DefaultCommitRetryDelay = 25 * time.Millisecond
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", DefaultPort),
		Env:          getEnv("ENV", DefaultEnv),
		LogLevel:     getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:  os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
		AdminToken:   os.Getenv("ADMIN_TOKEN"),
		RateLimitRPS: getEnvInt("RATE_LIMIT_RPS", DefaultRateLimit),
		LexiconPath:  os.Getenv("LEXICON_PATH"),

		TextWeight:       getEnvFloat("FUSION_TEXT_WEIGHT", DefaultTextWeight),
		ImageWeight:      getEnvFloat("FUSION_IMAGE_WEIGHT", DefaultImageWeight),
		BehavioralWeight: getEnvFloat("FUSION_BEHAVIORAL_WEIGHT", DefaultBehavioralWeight),
		EscalationSpread: getEnvFloat("FUSION_ESCALATION_SPREAD", DefaultEscalationSpread),
		EscalationFloor:  getEnvFloat("FUSION_ESCALATION_FLOOR", DefaultEscalationFloor),

		CorrectionCloseCallRatio: getEnvFloat("CORRECTION_CLOSE_CALL_RATIO", DefaultCloseCallRatio),
		CorrectionWeakAngryMax:   getEnvFloat("CORRECTION_WEAK_ANGRY_MAX", DefaultWeakAngryMax),
		CorrectionWeakHappyMin:   getEnvFloat("CORRECTION_WEAK_HAPPY_MIN", DefaultWeakHappyMin),
		CorrectionLowTopMax:      getEnvFloat("CORRECTION_LOW_TOP_MAX", DefaultLowTopMax),
		CorrectionLowHappyMin:    getEnvFloat("CORRECTION_LOW_HAPPY_MIN", DefaultLowHappyMin),

		MonitorWindow:    getEnvInt("MONITOR_WINDOW", DefaultMonitorWindow),
		MonitorThreshold: getEnvInt("MONITOR_THRESHOLD", DefaultMonitorThreshold),
		SweepInterval:    getEnvDuration("SWEEP_INTERVAL", DefaultSweepInterval),

		CommitRetries:    getEnvInt("COMMIT_RETRIES", DefaultCommitRetries),
		CommitRetryDelay: getEnvDuration("COMMIT_RETRY_DELAY", DefaultCommitRetryDelay),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent
func (c *Config) Validate() error {
	if c.IsProduction() && c.AdminToken == "" {
		return fmt.Errorf("ADMIN_TOKEN is required in production")
	}

	if c.TextWeight <= 0 && c.ImageWeight <= 0 {
		return fmt.Errorf("at least one of FUSION_TEXT_WEIGHT and FUSION_IMAGE_WEIGHT must be positive")
	}
	if c.EscalationSpread < 0 || c.EscalationSpread > 1 {
		return fmt.Errorf("FUSION_ESCALATION_SPREAD must be in [0,1]")
	}
	if c.EscalationFloor < 0 || c.EscalationFloor > 1 {
		return fmt.Errorf("FUSION_ESCALATION_FLOOR must be in [0,1]")
	}

	if c.MonitorWindow <= 0 {
		return fmt.Errorf("MONITOR_WINDOW must be positive")
	}
	if c.MonitorThreshold <= 0 || c.MonitorThreshold > c.MonitorWindow {
		return fmt.Errorf("MONITOR_THRESHOLD must be in [1, MONITOR_WINDOW]")
	}

	if c.CommitRetries < 1 {
		return fmt.Errorf("COMMIT_RETRIES must be at least 1")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
