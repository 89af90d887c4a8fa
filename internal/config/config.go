package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration.
type Config struct {
	ServerPort   int
	DatabasePath string
	JWTSecret    string        // Signing secret for issued tokens; must be non-empty
	TokenTTL     time.Duration // Lifetime of issued tokens
	SeedDevUser  bool          // Opt-in creation of a default dev user at startup
}

// ErrMissingSecret is returned when JWT_SECRET is unset or empty. An empty
// signing secret would make every issued token forgeable, so startup aborts.
var ErrMissingSecret = errors.New("JWT_SECRET must be set to a non-empty value")

// Load loads configuration from environment variables or sets defaults.
func Load() (*Config, error) {
	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT %q: %w", portStr, err)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, ErrMissingSecret
	}

	ttlStr := getEnv("TOKEN_TTL", "20s")
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL %q: %w", ttlStr, err)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive, got %q", ttlStr)
	}

	seed, err := strconv.ParseBool(getEnv("SEED_DEV_USER", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEED_DEV_USER: %w", err)
	}

	return &Config{
		ServerPort:   port,
		DatabasePath: getEnv("DATABASE_PATH", "./authgate.db"),
		JWTSecret:    secret,
		TokenTTL:     ttl,
		SeedDevUser:  seed,
	}, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
