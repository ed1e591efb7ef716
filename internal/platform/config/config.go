// Package config builds service configuration from CANLAW_* environment
// variables so main stays lean. Empty DSN/URL/broker values mean the
// corresponding backend is not configured and the memory fallback is used.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Addr string

	PostgresDSN string
	RedisURL    string

	KafkaBrokers   []string
	AuditTopic     string
	AuditGroup     string
	RelayInterval  time.Duration
	RelayBatchSize int

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	LogLevel  string
	LogFormat string

	EvalParallelism int
	ScriptMaxSteps  uint64
	ScriptTimeout   time.Duration

	LockTTL      time.Duration
	SlotCacheTTL time.Duration

	SeedFile string
}

// FromEnv reads the environment with development defaults.
func FromEnv() Config {
	return Config{
		Addr: envString("CANLAW_ADDR", ":8080"),

		PostgresDSN: os.Getenv("CANLAW_POSTGRES_DSN"),
		RedisURL:    os.Getenv("CANLAW_REDIS_URL"),

		KafkaBrokers:   envList("CANLAW_KAFKA_BROKERS"),
		AuditTopic:     envString("CANLAW_AUDIT_TOPIC", "canlaw.audit.events"),
		AuditGroup:     envString("CANLAW_AUDIT_GROUP", "canlaw-audit-consumer"),
		RelayInterval:  envDuration("CANLAW_RELAY_INTERVAL", time.Second),
		RelayBatchSize: envInt("CANLAW_RELAY_BATCH_SIZE", 100),

		JWTSigningKey: envString("CANLAW_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     envString("CANLAW_JWT_ISSUER", "canlaw"),
		JWTAudience:   envString("CANLAW_JWT_AUDIENCE", "canlaw-api"),

		LogLevel:  envString("CANLAW_LOG_LEVEL", "info"),
		LogFormat: envString("CANLAW_LOG_FORMAT", "json"),

		EvalParallelism: envInt("CANLAW_EVAL_PARALLELISM", 4),
		ScriptMaxSteps:  envUint64("CANLAW_SCRIPT_MAX_STEPS", 500_000),
		ScriptTimeout:   envDuration("CANLAW_SCRIPT_TIMEOUT", 2*time.Second),

		LockTTL:      envDuration("CANLAW_LOCK_TTL", 30*time.Second),
		SlotCacheTTL: envDuration("CANLAW_SLOT_CACHE_TTL", 5*time.Minute),

		SeedFile: os.Getenv("CANLAW_SEED_FILE"),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envUint64(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
