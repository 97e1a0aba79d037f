// Package config loads this service's configuration from environment
// variables, following the teacher's own hand-rolled approach (typed
// getEnv*/default-value helpers) rather than a config library — the
// teacher never reaches for one for flat env vars either.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every ambient and domain setting this service reads
// from the environment at boot.
type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	VectorDB   VectorDBConfig
	LLM        LLMConfig
	WebSearch  WebSearchConfig
	Messaging  MessagingConfig
	Monitoring MonitoringConfig
}

// ServerConfig controls the gin HTTP surface.
type ServerConfig struct {
	Host              string
	Port              string
	RequestTimeout    time.Duration
	StreamIdleTimeout time.Duration
	LogLevel          string
}

// RedisConfig backs the tiered session/retrieval cache (C2).
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// VectorDBConfig selects C1's dense-vector backend. "memory" keeps
// everything in-process (tests, small deployments); any other value is
// treated as a Qdrant endpoint reached over gRPC.
type VectorDBConfig struct {
	Backend string // "memory" | "qdrant"
	Host    string
	Port    string
	APIKey  string
	UseTLS  bool
	Timeout time.Duration
}

// LLMConfig points at the external chat-completion provider used by
// every leaf node (simple/RAG/deep-research synthesis/image/tool).
type LLMConfig struct {
	Provider string // "openai" | "chutes" | "openrouter"
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// WebSearchConfig points at the external web-search API used by C4.
type WebSearchConfig struct {
	Provider string
	APIKey   string
	Timeout  time.Duration
}

// MessagingConfig selects the optional async backend for large
// knowledge-base ingestion; "inmemory" is the default and keeps
// ingestion on the request path's worker pool without an external broker.
type MessagingConfig struct {
	Backend string // "inmemory" | "kafka" | "rabbitmq"
	Brokers []string
	Topic   string
	Enabled bool
}

// MonitoringConfig controls OpenTelemetry tracing and Prometheus metrics.
type MonitoringConfig struct {
	TracingEnabled bool
	OTLPEndpoint   string
	MetricsPort    string
}

// Load builds a Config from the process environment, matching the
// defaults the original backend shipped with.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              getEnv("SERVER_HOST", "0.0.0.0"),
			Port:              getEnv("SERVER_PORT", "8080"),
			RequestTimeout:    getDurationEnv("REQUEST_TIMEOUT", 120*time.Second),
			StreamIdleTimeout: getDurationEnv("STREAM_IDLE_TIMEOUT", 30*time.Second),
			LogLevel:          getEnv("LOG_LEVEL", "info"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
		},
		VectorDB: VectorDBConfig{
			Backend: getEnv("VECTOR_STORE_BACKEND", "memory"),
			Host:    getEnv("QDRANT_HOST", "localhost"),
			Port:    getEnv("QDRANT_PORT", "6334"),
			APIKey:  getEnv("QDRANT_API_KEY", ""),
			UseTLS:  getBoolEnv("QDRANT_USE_TLS", false),
			Timeout: getDurationEnv("QDRANT_TIMEOUT", 10*time.Second),
		},
		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", "openai"),
			BaseURL:  getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:   getEnv("LLM_API_KEY", ""),
			Model:    getEnv("LLM_MODEL", "gpt-4o-mini"),
			Timeout:  getDurationEnv("LLM_TIMEOUT", 60*time.Second),
		},
		WebSearch: WebSearchConfig{
			Provider: getEnv("WEB_SEARCH_PROVIDER", "tavily"),
			APIKey:   getEnv("WEB_SEARCH_API_KEY", ""),
			Timeout:  getDurationEnv("WEB_SEARCH_TIMEOUT", 15*time.Second),
		},
		Messaging: MessagingConfig{
			Backend: getEnv("MESSAGING_BACKEND", "inmemory"),
			Brokers: getEnvSlice("MESSAGING_BROKERS", nil),
			Topic:   getEnv("MESSAGING_TOPIC", "kb-ingestion"),
			Enabled: getBoolEnv("MESSAGING_ENABLED", false),
		},
		Monitoring: MonitoringConfig{
			TracingEnabled: getBoolEnv("TRACING_ENABLED", false),
			OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4318"),
			MetricsPort:    getEnv("METRICS_PORT", "9090"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
