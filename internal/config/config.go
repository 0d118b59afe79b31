package config

// Package config loads engine configuration from the environment with safe
// defaults. All timing knobs default to the backend's expected values.

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultBaseURL        = "http://127.0.0.1:5000/api"
	DefaultPartSize       = int64(4 << 20)
	DefaultConcurrency    = 3
	DefaultRetryAttempts  = 3
	DefaultRetryDelay     = 400 * time.Millisecond
	DefaultPollInterval   = time.Second
	DefaultRequestTimeout = 60 * time.Second

	MaxConcurrency = 10
)

// Config holds engine settings.
type Config struct {
	BaseURL        string
	PartSize       int64
	Concurrency    int
	RetryAttempts  int
	RetryDelay     time.Duration
	PollInterval   time.Duration
	RequestTimeout time.Duration
	AutoTranscode  bool
	AutoProcess    bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		BaseURL:        getEnv("INSIGHT_BASE_URL", DefaultBaseURL),
		PartSize:       getEnvInt64("INSIGHT_PART_SIZE", DefaultPartSize),
		Concurrency:    getEnvInt("INSIGHT_CONCURRENCY", DefaultConcurrency),
		RetryAttempts:  getEnvInt("INSIGHT_RETRY_ATTEMPTS", DefaultRetryAttempts),
		RetryDelay:     getEnvDuration("INSIGHT_RETRY_DELAY", DefaultRetryDelay),
		PollInterval:   getEnvDuration("INSIGHT_POLL_INTERVAL", DefaultPollInterval),
		RequestTimeout: getEnvDuration("INSIGHT_REQUEST_TIMEOUT", DefaultRequestTimeout),
		AutoTranscode:  getEnvBool("INSIGHT_AUTO_TRANSCODE", true),
		AutoProcess:    getEnvBool("INSIGHT_AUTO_PROCESS", false),
	}
	cfg.clamp()
	return cfg
}

// clamp keeps out-of-range values usable rather than failing startup.
func (c *Config) clamp() {
	if c.PartSize <= 0 {
		c.PartSize = DefaultPartSize
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Concurrency > MaxConcurrency {
		c.Concurrency = MaxConcurrency
	}
	if c.RetryAttempts < 1 {
		c.RetryAttempts = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
