// Package auth provides HMAC-based API key authentication for the gRPC and
// HTTP surfaces. Only rule reloads are guarded; classification is open.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// MetadataKey carries the API key in gRPC metadata; HeaderKey in HTTP.
const (
	MetadataKey = "x-api-key"
	HeaderKey   = "X-API-Key"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

const principalKey = contextKey("principal")

// Principal identifies the API key behind an authenticated call.
type Principal struct {
	KeyID string `db:"api_key_id"`
	Label string `db:"label"`
}

// Queries interface defines database operations needed for authentication.
// Implemented by *db.Queries.
type Queries interface {
	Get(name string, dest interface{}, args ...interface{}) error
	Select(name string, dest interface{}, args ...interface{}) error
	Exec(name string, args ...interface{}) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds in-memory secret map for O(1) lookup and queries for key verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	now     func() time.Time
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries) *Authenticator {
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether keys can be verified at all.
func (a *Authenticator) Enabled() bool {
	return a != nil && len(a.secrets) > 0 && a.queries != nil
}

// Authenticate validates apiKey and returns the key's principal.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (Principal, error) {
	if apiKey == "" {
		return Principal{}, ErrMissingKey
	}

	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return Principal{}, err
	}

	// O(1) lookup of HMAC secret using secret_id from key format
	secret, ok := a.secrets[secretID]
	if !ok {
		return Principal{}, ErrUnknownKey
	}

	computedHash := ComputeHMAC(secret, apiKey)

	// key_hash is unique, so at most one row matches
	var row struct {
		Principal
		RevokedAt  sql.NullTime `db:"revoked_at"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}
	err = a.queries.Get("get-api-key-by-hash", &row, computedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return Principal{}, ErrInvalidKey
	}
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if row.RevokedAt.Valid {
		return Principal{}, ErrKeyRevoked
	}

	// Throttled to one write per minute per key
	now := a.now()
	if !row.LastUsedAt.Valid || now.Sub(row.LastUsedAt.Time) > time.Minute {
		_, _ = a.queries.Exec("update-last-used", now, row.KeyID)
	}

	return row.Principal, nil
}

// Code maps an authentication error to a gRPC status code.
func Code(err error) codes.Code {
	switch {
	case errors.Is(err, ErrKeyRevoked):
		return codes.PermissionDenied
	case errors.Is(err, ErrDatabase):
		return codes.Unavailable
	default:
		return codes.Unauthenticated
	}
}

// HTTPStatus maps an authentication error to an HTTP status code.
func HTTPStatus(err error) int {
	switch Code(err) {
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}

// UnaryInterceptor authenticates calls to the listed full method names
// ("/logspec.v1.LogspecService/ReloadRules"); other methods pass through.
func (a *Authenticator) UnaryInterceptor(protected ...string) grpc.UnaryServerInterceptor {
	guarded := make(map[string]bool, len(protected))
	for _, m := range protected {
		guarded[m] = true
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !guarded[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get(MetadataKey)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		p, err := a.Authenticate(ctx, apiKeys[0])
		if err != nil {
			return nil, status.Error(Code(err), err.Error())
		}

		return handler(WithPrincipal(ctx, p), req)
	}
}

// Middleware authenticates HTTP requests via the X-API-Key header.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.Authenticate(r.Context(), r.Header.Get(HeaderKey))
		if err != nil {
			http.Error(w, err.Error(), HTTPStatus(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the authenticated principal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
