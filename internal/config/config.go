package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LLM providers.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderSimulate  = "simulate"
)

type Config struct {
	Port                  int
	LogLevel              string
	LLMProvider           string
	GeminiAPIKey          string
	GeminiModel           string
	AnthropicAPIKey       string
	AnthropicModel        string
	MetricsSource         string
	PerTurnSuggestions    bool
	SuggestionConcurrency int
	LLMMaxRetry           time.Duration
	HeuristicSeed         int64
	DatabaseURL           string
	NatsURL               string
	NatsToken             string
	RedisURL              string
	CacheTTL              time.Duration
	APIToken              string
	SlackBotToken         string
	SlackChannel          string
}

func Load() Config {
	return Config{
		Port:                  envInt("PITCHCOACH_PORT", 8760),
		LogLevel:              envStr("LOG_LEVEL", "info"),
		LLMProvider:           strings.ToLower(envStr("LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey:          envStr("GEMINI_API_KEY", ""),
		GeminiModel:           envStr("GEMINI_MODEL", "gemini-1.5-flash"),
		AnthropicAPIKey:       envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:        envStr("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		MetricsSource:         strings.ToLower(envStr("METRICS_SOURCE", "model")),
		PerTurnSuggestions:    envBool("PER_TURN_SUGGESTIONS", true),
		SuggestionConcurrency: envInt("SUGGESTION_CONCURRENCY", 4),
		LLMMaxRetry:           envDuration("LLM_MAX_RETRY", 20*time.Second),
		HeuristicSeed:         int64(envInt("HEURISTIC_SEED", 0)),
		DatabaseURL:           envStr("DATABASE_URL", ""),
		NatsURL:               envStr("NATS_URL", ""),
		NatsToken:             envStr("NATS_TOKEN", ""),
		RedisURL:              envStr("REDIS_URL", ""),
		CacheTTL:              envDuration("CACHE_TTL", time.Hour),
		APIToken:              envStr("PITCHCOACH_API_TOKEN", ""),
		SlackBotToken:         envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:          envStr("SLACK_CHANNEL", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
