package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorKind classifies a failure for the adapters. The zero value is internal.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindState
	KindAuth
	KindForbidden
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindState:
		return "state"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Stable machine-readable error codes returned to API clients.
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeNotFound              = "NOT_FOUND"
	CodeConflict              = "CONFLICT"
	CodeInsufficientStock     = "INSUFFICIENT_STOCK"
	CodeProductInactive       = "PRODUCT_INACTIVE"
	CodeAlreadyVoided         = "ALREADY_VOIDED"
	CodeCrateTrackingDisabled = "CRATE_TRACKING_DISABLED"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeInternal              = "INTERNAL_ERROR"
)

// Error is a domain failure whose message is safe to show to the caller.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, format string, args ...any) error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) error {
	return newError(KindValidation, CodeValidation, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return newError(KindNotFound, CodeNotFound, format, args...)
}

func Conflictf(format string, args ...any) error {
	return newError(KindConflict, CodeConflict, format, args...)
}

// Statef reports an operation that is invalid for the entity's current state.
func Statef(code, format string, args ...any) error {
	return newError(KindState, code, format, args...)
}

func Authf(format string, args ...any) error {
	return newError(KindAuth, CodeUnauthorized, format, args...)
}

func Forbiddenf(format string, args ...any) error {
	return newError(KindForbidden, CodeForbidden, format, args...)
}

// AsError unwraps err to a domain error, if there is one in the chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf returns the kind of err. Errors that are not domain errors are internal.
func KindOf(err error) ErrorKind {
	if de, ok := AsError(err); ok {
		return de.Kind
	}
	return KindInternal
}

// isUniqueViolation reports whether err is a Postgres unique_violation, optionally
// restricted to one constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
