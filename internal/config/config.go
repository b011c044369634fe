package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	RedisURL    string
	AMQPURL     string
	JWTSecret   string
	JWTExpiry   time.Duration
	LogLevel    string

	// HeartbeatInterval is how often a healthy reporter pings.
	HeartbeatInterval time.Duration
	// ExpiryWindow is how long after the last heartbeat an actor flips
	// offline. Must exceed the interval to absorb jitter and network delay.
	ExpiryWindow time.Duration
	// SweepInterval is the cadence of the background expiry sweep. Must not
	// exceed the expiry window.
	SweepInterval time.Duration
}

func LoadConfig() (*Config, error) {
	jwtExpiry, err := getDuration("JWT_EXPIRY", "24h")
	if err != nil {
		return nil, err
	}
	heartbeatInterval, err := getDuration("HEARTBEAT_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}
	expiryWindow, err := getDuration("EXPIRY_WINDOW", "90s")
	if err != nil {
		return nil, err
	}
	sweepInterval, err := getDuration("SWEEP_INTERVAL", "")
	if err != nil {
		return nil, err
	}
	if sweepInterval == 0 {
		// One third of the window keeps the worst-case detection delay well
		// inside a single expiry window.
		sweepInterval = expiryWindow / 3
	}
	if sweepInterval < time.Second {
		sweepInterval = time.Second
	}

	cfg := &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		AMQPURL:           os.Getenv("AMQP_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		JWTExpiry:         jwtExpiry,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		HeartbeatInterval: heartbeatInterval,
		ExpiryWindow:      expiryWindow,
		SweepInterval:     sweepInterval,
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.ExpiryWindow <= cfg.HeartbeatInterval {
		return nil, errors.New("EXPIRY_WINDOW must be greater than HEARTBEAT_INTERVAL")
	}
	if cfg.SweepInterval > cfg.ExpiryWindow {
		return nil, errors.New("SWEEP_INTERVAL must not exceed EXPIRY_WINDOW")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnv(key, defaultValue)
	if value == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return d, nil
}
