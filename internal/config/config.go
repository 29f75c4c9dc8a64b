package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// CollectorConfig bounds the provider pagination loop.
type CollectorConfig struct {
	BaseURL    string
	APIKey     string
	PageSize   int
	MaxResults int
	PageDelay  time.Duration
	Timeout    time.Duration
}

// QueueConfig tunes the background worker pool and retry policy.
type QueueConfig struct {
	Concurrency int
	JobsPerSec  float64
	MaxAttempts int
	BackoffBase time.Duration
	Retention   time.Duration
}

// Config aggregates application-wide configuration values.
type Config struct {
	DatabaseURL      string
	Port             string
	JWTSecret        string
	LogLevel         string
	LogFormat        string
	Collector        CollectorConfig
	Queue            QueueConfig
	RateLimitCollect RateLimitConfig
}

const (
	minPageSize   = 10
	maxPageSize   = 500
	minMaxResults = 100
	maxMaxResults = 20000
)

// Load reads configuration from environment variables and applies sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "dev-secret"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		Collector: CollectorConfig{
			BaseURL:    getEnv("HUNTER_BASE_URL", "https://api.hunter.io/v2"),
			APIKey:     os.Getenv("HUNTER_API_KEY"),
			PageSize:   clamp(getEnvInt("COLLECT_PAGE_SIZE", 100), minPageSize, maxPageSize),
			MaxResults: clamp(getEnvInt("COLLECT_MAX_RESULTS", 2000), minMaxResults, maxMaxResults),
			PageDelay:  parseDuration(getEnv("COLLECT_PAGE_DELAY", "150ms"), 150*time.Millisecond),
			Timeout:    parseDuration(getEnv("COLLECT_TIMEOUT", "10m"), 10*time.Minute),
		},
		Queue: QueueConfig{
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 4),
			JobsPerSec:  getEnvFloat("WORKER_JOB_RATE", 10),
			MaxAttempts: getEnvInt("JOB_MAX_ATTEMPTS", 5),
			BackoffBase: parseDuration(getEnv("JOB_BACKOFF_BASE", "5s"), 5*time.Second),
			Retention:   parseDuration(getEnv("JOB_RETENTION", "1h"), time.Hour),
		},
	}

	if cfg.Queue.Concurrency < 1 {
		cfg.Queue.Concurrency = 1
	}
	if cfg.Queue.MaxAttempts < 1 {
		cfg.Queue.MaxAttempts = 1
	}

	rl, err := parseRateLimit(getEnv("RATE_LIMIT_COLLECT", "10/min"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_COLLECT value: %w", err)
	}
	cfg.RateLimitCollect = rl

	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func parseDuration(input string, fallback time.Duration) time.Duration {
	if input == "0" {
		return 0
	}
	d, err := time.ParseDuration(input)
	if err != nil {
		return fallback
	}
	return d
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
