// Package config handles environment variable loading for ports, database strings, etc.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the application.
type Config struct {
	// Database connection string
	DatabaseURL string

	// HTTP server port for the API
	HTTPPort int

	// Shared secret guarding the /internal endpoints
	SystemSecret string

	// Notifier-specific configuration
	NotifierConcurrency  int
	NotifierPollInterval time.Duration
	NotifierMaxBackoff   time.Duration

	// How often the notifier scans for due reminders
	ReminderScanInterval time.Duration

	// OTLP collector endpoint for traces
	OTELEndpoint string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbUrl := os.Getenv("DATABASE_URL")
	if dbUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	systemSecret := os.Getenv("SYSTEM_SECRET")
	if systemSecret == "" {
		return nil, fmt.Errorf("SYSTEM_SECRET is required")
	}

	port := 6171 // Default
	if portStr := os.Getenv("PORT"); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		port = p
	}

	concurrency := 4 // Default
	if s := os.Getenv("NOTIFIER_CONCURRENCY"); s != "" {
		c, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTIFIER_CONCURRENCY: %w", err)
		}
		concurrency = c
	}

	pollInterval := 1 * time.Second
	if s := os.Getenv("NOTIFIER_POLL_INTERVAL"); s != "" {
		pi, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTIFIER_POLL_INTERVAL: %w", err)
		}
		pollInterval = pi
	}

	maxBackoff := 30 * time.Second
	if s := os.Getenv("NOTIFIER_MAX_BACKOFF"); s != "" {
		mb, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTIFIER_MAX_BACKOFF: %w", err)
		}
		maxBackoff = mb
	}

	scanInterval := 1 * time.Minute
	if s := os.Getenv("REMINDER_SCAN_INTERVAL"); s != "" {
		si, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid REMINDER_SCAN_INTERVAL: %w", err)
		}
		scanInterval = si
	}

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "localhost:4317"
	}

	return &Config{
		DatabaseURL:          dbUrl,
		HTTPPort:             port,
		SystemSecret:         systemSecret,
		NotifierConcurrency:  concurrency,
		NotifierPollInterval: pollInterval,
		NotifierMaxBackoff:   maxBackoff,
		ReminderScanInterval: scanInterval,
		OTELEndpoint:         otelEndpoint,
	}, nil
}
