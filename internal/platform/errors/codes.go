// Package errors provides structured error handling with i18n support.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeValidation indicates missing or malformed caller input.
	CodeValidation Code = "VALIDATION"
	// CodeDuplicateName indicates a team name collision with any existing team.
	CodeDuplicateName Code = "DUPLICATE_NAME"
	// CodeDuplicateRequest indicates a pending request or invitation for the
	// same (user, team) pair already exists.
	CodeDuplicateRequest Code = "DUPLICATE_REQUEST"
	// CodeLimitExceeded indicates the per-team historical join request cap was hit.
	CodeLimitExceeded Code = "LIMIT_EXCEEDED"
	// CodeCapacityExceeded indicates the team is already at its configured maximum size.
	CodeCapacityExceeded Code = "CAPACITY_EXCEEDED"
	// CodeStateConflict indicates the operation is invalid for the current
	// entity status, including lost concurrent races.
	CodeStateConflict Code = "STATE_CONFLICT"
	// CodePermission indicates the actor lacks the required role or ownership.
	CodePermission Code = "PERMISSION_DENIED"
	// CodeNotFound indicates the referenced record is missing or not visible
	// to the actor.
	CodeNotFound Code = "NOT_FOUND"
	// CodeTransient indicates a storage conflict that persisted after a retry;
	// the caller may try again.
	CodeTransient Code = "TRANSIENT"
)

// GRPCCode maps a domain error code to its gRPC status code.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeValidation:
		return codes.InvalidArgument
	case CodeDuplicateName, CodeDuplicateRequest:
		return codes.AlreadyExists
	case CodeLimitExceeded:
		return codes.ResourceExhausted
	case CodeCapacityExceeded, CodeStateConflict:
		return codes.FailedPrecondition
	case CodePermission:
		return codes.PermissionDenied
	case CodeNotFound:
		return codes.NotFound
	case CodeTransient:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// HTTPStatus maps a domain error code to the status used by the JSON API.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeDuplicateName, CodeDuplicateRequest:
		return http.StatusConflict
	case CodeLimitExceeded, CodeCapacityExceeded, CodeStateConflict:
		return http.StatusConflict
	case CodePermission:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
