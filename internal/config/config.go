/**
 * Configuration for the Recognition Worker
 *
 * Loads configuration from environment variables.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration (queue + result cache)
	RedisURL string

	// PostgreSQL configuration (request outcome store)
	DatabaseURL string

	// Engine configuration
	TesseractPath string
	VisionOCRURL  string

	// Orchestration defaults
	QualityThreshold  float64
	ProcessingTimeout int // milliseconds, shared deadline per request
	ParallelMode      bool
	PreferredEngines  []string
	FallbackEngines   []string

	// Cache configuration
	CacheTTLSeconds int
	CacheKeyPrefix  string

	// Worker configuration
	QueueName         string
	WorkerConcurrency int

	// Node environment
	Environment string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		TesseractPath:     getEnvOrDefault("TESSERACT_PATH", "/usr/bin/tesseract"),
		VisionOCRURL:      getEnvOrDefault("VISION_OCR_URL", ""),
		QualityThreshold:  getEnvAsFloatOrDefault("QUALITY_THRESHOLD", 0.7),
		ProcessingTimeout: getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 30000), // 30 seconds
		ParallelMode:      getEnvAsBoolOrDefault("PARALLEL_MODE", false),
		PreferredEngines:  getEnvAsListOrDefault("PREFERRED_ENGINES", nil),
		FallbackEngines:   getEnvAsListOrDefault("FALLBACK_ENGINES", nil),
		CacheTTLSeconds:   getEnvAsIntOrDefault("CACHE_TTL_SECONDS", 86400), // 24 hours
		CacheKeyPrefix:    getEnvOrDefault("CACHE_KEY_PREFIX", "recognition:cache:"),
		QueueName:         getEnvOrDefault("QUEUE_NAME", "recognition"),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 10),
		Environment:       getEnvOrDefault("ENVIRONMENT", "development"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		return fmt.Errorf("QUALITY_THRESHOLD must be between 0.0 and 1.0, got %f", c.QualityThreshold)
	}

	if c.ProcessingTimeout < 1000 || c.ProcessingTimeout > 600000 { // 1s to 10 minutes
		return fmt.Errorf("PROCESSING_TIMEOUT must be between 1000 and 600000 ms, got %d", c.ProcessingTimeout)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.CacheTTLSeconds < 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must not be negative, got %d", c.CacheTTLSeconds)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsListOrDefault gets environment variable as a comma-separated list
func getEnvAsListOrDefault(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
