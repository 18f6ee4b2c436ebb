package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/solatis/logspec/internal/core/auth"
	"github.com/solatis/logspec/internal/types"
	"google.golang.org/grpc/codes"
)

// ErrInvalidRequest indicates a malformed request body or missing field.
var ErrInvalidRequest = errors.New("invalid request")

// Code maps err to a gRPC status code. Validation errors map to
// InvalidArgument, disabled reload to FailedPrecondition, auth errors via
// auth.Code, database errors to Unavailable.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, types.ErrBatchTooLarge),
		errors.Is(err, types.ErrRuleTableTooLarge),
		errors.Is(err, types.ErrRecordFileTooLarge),
		errors.Is(err, types.ErrTooManyFields),
		errors.Is(err, types.ErrMissingColumn),
		errors.Is(err, types.ErrEmptyInput):
		return codes.InvalidArgument
	case errors.Is(err, types.ErrReloadDisabled):
		return codes.FailedPrecondition
	case errors.Is(err, auth.ErrDatabase):
		return codes.Unavailable
	case errors.Is(err, auth.ErrMissingKey),
		errors.Is(err, auth.ErrInvalidKeyFormat),
		errors.Is(err, auth.ErrUnknownKey),
		errors.Is(err, auth.ErrInvalidKey),
		errors.Is(err, auth.ErrKeyRevoked):
		return auth.Code(err)
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}

// HTTPStatus maps err to the HTTP equivalent of Code.
func HTTPStatus(err error) int {
	switch Code(err) {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		if errors.Is(err, types.ErrRuleTableTooLarge) || errors.Is(err, types.ErrRecordFileTooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Canceled:
		// nginx's "client closed request"
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func trimKey(s string) string {
	return strings.TrimSpace(s)
}
