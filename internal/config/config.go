package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// HistoryBackendMemory keeps session history in process memory.
	HistoryBackendMemory = "memory"
	// HistoryBackendRedis keeps session history in Redis.
	HistoryBackendRedis = "redis"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Bot Framework credentials
	BotAppID       string
	BotAppPassword string

	// Override endpoints for the Bot Framework auth dependencies.
	// Empty values fall back to the Microsoft production endpoints.
	OpenIDConfigURL string
	OAuthTokenURL   string

	// Timeout applied to all outbound HTTP calls (JWK fetch, token
	// exchange, message delivery).
	HTTPTimeout time.Duration

	// External response engine
	AgentBaseURL string
	AgentAPIKey  string
	AgentTimeout time.Duration

	// Session history
	HistoryBackend string
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		BotAppID:        getEnv("APP_ID", ""),
		BotAppPassword:  getEnv("APP_PASSWORD", ""),
		OpenIDConfigURL: getEnv("BOT_OPENID_CONFIG_URL", ""),
		OAuthTokenURL:   getEnv("BOT_OAUTH_TOKEN_URL", ""),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 10*time.Second),
		AgentBaseURL:    getEnv("AGENT_BASE_URL", ""),
		AgentAPIKey:     getEnv("AGENT_API_KEY", ""),
		AgentTimeout:    getEnvAsDuration("AGENT_TIMEOUT", 30*time.Second),
		HistoryBackend:  strings.ToLower(strings.TrimSpace(getEnv("HISTORY_BACKEND", HistoryBackendMemory))),
		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
