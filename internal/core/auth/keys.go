package auth

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// APIKey is the stored form of a key. The key itself is never stored.
type APIKey struct {
	ID         string       `db:"api_key_id"`
	Label      string       `db:"label"`
	SecretID   string       `db:"secret_id"`
	CreatedAt  time.Time    `db:"created_at"`
	LastUsedAt sql.NullTime `db:"last_used_at"`
	RevokedAt  sql.NullTime `db:"revoked_at"`
}

// IssuedKey is returned once at creation; Key cannot be recovered later.
type IssuedKey struct {
	ID  string
	Key string
}

// IssueKey creates a key signed with the secret registered under secretID.
func (a *Authenticator) IssueKey(secretID, label string) (IssuedKey, error) {
	secret, ok := a.secrets[secretID]
	if !ok {
		return IssuedKey{}, fmt.Errorf("%w: %s", ErrUnknownKey, secretID)
	}
	if label == "" {
		return IssuedKey{}, fmt.Errorf("label is required")
	}

	randomData, err := NewRandomData()
	if err != nil {
		return IssuedKey{}, err
	}
	key := FormatAPIKey(secretID, randomData)
	id := uuid.Must(uuid.NewV7()).String()

	_, err = a.queries.Exec("insert-api-key", id, label, secretID, ComputeHMAC(secret, key), a.now())
	if err != nil {
		return IssuedKey{}, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return IssuedKey{ID: id, Key: key}, nil
}

// RevokeKey marks a key revoked. Revoking twice returns ErrKeyNotFound.
func (a *Authenticator) RevokeKey(id string) error {
	res, err := a.queries.Exec("revoke-api-key", a.now(), id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// ListKeys returns all keys, oldest first.
func (a *Authenticator) ListKeys() ([]APIKey, error) {
	keys := []APIKey{}
	if err := a.queries.Select("list-api-keys", &keys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return keys, nil
}
