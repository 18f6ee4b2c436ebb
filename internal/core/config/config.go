// Package config provides configuration management for logspec commands and services.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds configuration for the rule engine, services and logging.
type Config struct {
	Rules  RulesConfig
	Server ServerConfig
	Log    LogConfig
}

// RulesConfig selects the rule table and how it is compiled.
type RulesConfig struct {
	TablePath string   // empty means the embedded default table
	Inference string   // "similarity" or "none"
	DenyList  []string // nil means rules.DefaultDenyList
}

// ServerConfig holds gRPC and HTTP listener settings.
type ServerConfig struct {
	Host           string
	GRPCPort       int
	HTTPPort       int // 0 disables the HTTP listener
	RequestTimeout time.Duration
	MaxBatchSize   int
}

// LogConfig selects logrus level and formatter.
type LogConfig struct {
	Level  string
	Format string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Rules: RulesConfig{
			Inference: "similarity",
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			GRPCPort:       50061,
			HTTPPort:       8080,
			RequestTimeout: 30 * time.Second,
			MaxBatchSize:   10000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// HMACSecrets extracts API key secrets from environment variables.
// Supports LS_HMAC_SECRET (single) and LS_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	add := func(name, val string) error {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if _, exists := secrets[secretID]; exists {
			return fmt.Errorf("duplicate secret_id '%s' found in environment variables (check LS_HMAC_SECRET and LS_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
		return nil
	}

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv("LS_HMAC_SECRET"); val != "" {
		if err := add("LS_HMAC_SECRET", val); err != nil {
			return nil, err
		}
	}

	// Numbered secrets keep old and new keys valid during rotation
	for i := 1; ; i++ {
		key := fmt.Sprintf("LS_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		if err := add(key, val); err != nil {
			return nil, err
		}
	}

	return secrets, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}
	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(secret) < 32 {
		return "", nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(secret))
	}

	return secretID, secret, nil
}
