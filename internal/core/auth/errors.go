package auth

import "errors"

// Authentication errors.
// Unauthenticated for missing/invalid (doesn't confirm key existence).
// PermissionDenied for revoked (confirms key exists but blocked).
// Unavailable for database failures.
var (
	ErrMissingKey       = errors.New("API key required in x-api-key metadata")
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	ErrUnknownKey       = errors.New("unknown secret ID")
	ErrInvalidKey       = errors.New("invalid API key")
	ErrKeyRevoked       = errors.New("API key has been revoked")
	ErrKeyNotFound      = errors.New("API key not found or already revoked")
	ErrDatabase         = errors.New("database error")
)
