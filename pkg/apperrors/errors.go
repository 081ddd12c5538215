// Package apperrors defines the typed error kinds shared by every service in
// the engine. Domain code returns these; the HTTP boundary in pkg/api is the
// only place that translates them into status codes.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors compared with errors.Is by callers and by the HTTP boundary.
var (
	// ErrNotFound is returned when an addressed row does not exist. Never
	// synthesized: a miss is always reported, never silently created.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when a unique constraint would be violated.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrVersionConflict is returned by optimistic-lock checks (governance
	// audit, pipeline-run upsert) when the caller's expected version is stale.
	ErrVersionConflict = errors.New("version conflict")

	// ErrIdempotentReplay is not a failure: it signals that a request with a
	// previously-seen idempotency key is returning its stored prior outcome.
	ErrIdempotentReplay = errors.New("idempotent replay")
)

// ValidationError wraps field-specific validation failures (400s).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %q: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InfrastructureError wraps a downstream provider failure (embedding, LLM,
// rerank, fetch) that survived retries. Cause is always chained for logging.
type InfrastructureError struct {
	Kind  string // e.g. "embedding-failed", "search-error", "content-fetch-failed"
	Cause error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *InfrastructureError) Unwrap() error { return e.Cause }

// NewInfrastructureError builds an InfrastructureError of the given kind.
func NewInfrastructureError(kind string, cause error) error {
	return &InfrastructureError{Kind: kind, Cause: cause}
}

// DatabaseError wraps a transport/integrity failure from the storage layer.
type DatabaseError struct {
	Op    string
	Cause error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Op, e.Cause)
}

func (e *DatabaseError) Unwrap() error { return e.Cause }

// NewDatabaseError builds a DatabaseError.
func NewDatabaseError(op string, cause error) error {
	return &DatabaseError{Op: op, Cause: cause}
}

// Code returns the SCREAMING_SNAKE machine code for the error-response
// shape. The HTTP boundary uses this directly; it never duplicates the
// mapping logic.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidationError(err):
		return "INVALID_ARGUMENT"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrVersionConflict):
		return "VERSION_CONFLICT"
	case errors.Is(err, ErrAlreadyExists):
		return "ALREADY_EXISTS"
	default:
		var infra *InfrastructureError
		if errors.As(err, &infra) {
			switch infra.Kind {
			case "embedding-failed":
				return "EMBEDDING_FAILED"
			case "search-error":
				return "SEARCH_ERROR"
			case "content-fetch-failed":
				return "CONTENT_FETCH_FAILED"
			case "content-extraction-failed":
				return "CONTENT_EXTRACTION_FAILED"
			default:
				return "INTERNAL_ERROR"
			}
		}
		var dbErr *DatabaseError
		if errors.As(err, &dbErr) {
			return "DATABASE_ERROR"
		}
		return "INTERNAL_ERROR"
	}
}
