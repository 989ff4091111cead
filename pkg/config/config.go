// Package config holds global settings for the Anomi backend.
// All settings can be configured via environment variables or
// programmatically.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds global settings for the Anomi backend.
type Config struct {
	// === Core Settings ===
	ListenPort   string // HTTP listen port (default: "5050")
	AuditLogPath string // Path to the attack audit log file (default: "attack_events.jsonl")
	MaxUploadMB  int    // Maximum batch upload size in megabytes (default: 50)

	// === Persistence ===
	// DatabaseURL selects the durable store. Empty means the in-memory
	// store (data survives only for the process lifetime).
	DatabaseURL string

	// === Rate Limiting ===
	// RedisAddr selects the shared limiter backend. Empty means the
	// in-process limiter.
	RedisAddr       string
	RateLimitMax    int           // Max ingest requests per window per IP (default: 1000)
	RateLimitWindow time.Duration // Limiter window (default: 60s)

	// === Agent Registry ===
	StalenessWindow   time.Duration // Heartbeats older than this report "stale" (default: 2m)
	EvictionThreshold time.Duration // Agents stale beyond this are omitted from listings (default: 5m)

	// === Live Stream ===
	LiveBufferSize  int // Shared live ring capacity (default: 500)
	SubscriberQueue int // Per-session pending batch queue depth (default: 16)

	// === Ensemble ===
	// MajorityThreshold is the number of attack votes that must be
	// strictly exceeded to flag a record. Zero means simple majority of
	// the members that scored.
	MajorityThreshold int
	BatchWorkers      int // Concurrent records per batch pass (default: 8)

	// === Optional Members ===
	EnableSemantics   bool   // Embedding-similarity member (requires Ollama)
	EnableTransformer bool   // ONNX text-classification member (requires local model)
	OllamaURL         string // Embedding endpoint for the semantic member
	SeedDir           string // Directory with YAML signature/exemplar seeds
}

// NewDefaultConfig creates a Config with sensible defaults.
// All settings can be overridden via environment variables.
func NewDefaultConfig() *Config {
	return &Config{
		ListenPort:   GetEnv("ANOMI_PORT", "5050"),
		AuditLogPath: GetEnv("ANOMI_AUDIT_LOG", "attack_events.jsonl"),
		MaxUploadMB:  GetEnvInt("ANOMI_MAX_UPLOAD_MB", 50),

		DatabaseURL: GetEnv("ANOMI_DATABASE_URL", ""),

		RedisAddr:       GetEnv("ANOMI_REDIS_ADDR", ""),
		RateLimitMax:    GetEnvInt("ANOMI_RATE_LIMIT_MAX", 1000),
		RateLimitWindow: time.Duration(GetEnvInt("ANOMI_RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,

		StalenessWindow:   time.Duration(GetEnvInt("ANOMI_AGENT_STALE_SECONDS", 120)) * time.Second,
		EvictionThreshold: time.Duration(GetEnvInt("ANOMI_AGENT_EVICT_SECONDS", 300)) * time.Second,

		LiveBufferSize:  clampInt(GetEnvInt("ANOMI_LIVE_BUFFER", 500), 1, 10000),
		SubscriberQueue: clampInt(GetEnvInt("ANOMI_SUBSCRIBER_QUEUE", 16), 1, 1024),

		MajorityThreshold: GetEnvInt("ANOMI_MAJORITY_THRESHOLD", 0),
		BatchWorkers:      clampInt(GetEnvInt("ANOMI_BATCH_WORKERS", 8), 1, 64),

		EnableSemantics:   GetEnvBool("ANOMI_ENABLE_SEMANTICS", false),
		EnableTransformer: GetEnvBool("ANOMI_ENABLE_TRANSFORMER", false),
		OllamaURL:         GetEnv("ANOMI_OLLAMA_URL", "http://localhost:11434"),
		SeedDir:           GetEnv("ANOMI_SEED_DIR", ""),
	}
}

// NewHighSensitivityConfig lowers the vote bar for deployments that
// prefer false positives over missed attacks.
func NewHighSensitivityConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.MajorityThreshold = 1
	return cfg
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var problems []string
	if c.RateLimitMax <= 0 {
		problems = append(problems, "ANOMI_RATE_LIMIT_MAX must be positive")
	}
	if c.StalenessWindow <= 0 {
		problems = append(problems, "ANOMI_AGENT_STALE_SECONDS must be positive")
	}
	if c.EvictionThreshold < c.StalenessWindow {
		problems = append(problems, "ANOMI_AGENT_EVICT_SECONDS must not be below the staleness window")
	}
	if c.MaxUploadMB <= 0 {
		problems = append(problems, "ANOMI_MAX_UPLOAD_MB must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// clampInt ensures a value is within bounds.
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// Helper functions for environment variable parsing.
// These are exported for use by other packages.

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

// GetEnvSlice returns a comma-separated list from an environment variable or a default value.
func GetEnvSlice(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		var parts []string
		for _, p := range strings.Split(v, ",") {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
