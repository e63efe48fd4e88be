package errors

import (
	"errors"
	"fmt"
)

// Domain sentinels. Callers branch on these with errors.Is; the HTTP
// layer maps them to status codes and machine-readable reason strings.
var (
	// ErrInvalidBounds indicates non-numeric, out-of-range or inverted
	// bounding-box parameters. Surfaced to the caller, never retried.
	ErrInvalidBounds = errors.New("invalid bounding box")

	// ErrNodeNotFound indicates no graph node exists within the maximum
	// snap radius of a requested coordinate.
	ErrNodeNotFound = errors.New("no graph node near coordinate")

	// ErrNoPathFound indicates the search exhausted the queue without
	// reaching the destination. Distinct from ErrNodeNotFound so callers
	// can message "no node nearby" vs "no route between these points".
	ErrNoPathFound = errors.New("no path between endpoints")

	// ErrIngestionFailed indicates an external fetch or bulk-write
	// failure during graph import. The import aborts as a whole.
	ErrIngestionFailed = errors.New("graph ingestion failed")
)

// ErrorType categorizes an error for logging and propagation policy.
type ErrorType int

const (
	// TypeValidation covers invalid caller input.
	TypeValidation ErrorType = iota
	// TypeRouting covers snap and search failures.
	TypeRouting
	// TypeIngestion covers import pipeline failures.
	TypeIngestion
	// TypeStore covers graph/issue store failures.
	TypeStore
	// TypeCache covers cache-layer failures; these degrade to direct
	// store queries rather than failing the request.
	TypeCache
	// TypeExternal covers external map-data provider failures.
	TypeExternal
)

// Error is a typed error carrying its category and an optional cause.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same category.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Wrap annotates an error with a category and message. Returns nil for a
// nil cause so call sites can wrap unconditionally.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: errType, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, errType ErrorType, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: errType, Message: fmt.Sprintf(format, args...), Cause: err}
}

// IngestionError wraps an import failure so that errors.Is(err,
// ErrIngestionFailed) holds regardless of the root cause.
func IngestionError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrIngestionFailed, message, err)
}

// GetType returns the category of an error, defaulting to TypeStore for
// foreign errors since those are typically connectivity failures.
func GetType(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return TypeStore
}
