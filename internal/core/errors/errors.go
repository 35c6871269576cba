package errors

import (
	"errors"
	"fmt"
)

const (
	HttpInternalError     = "internal_error"
	HttpInvalidJsonError  = "invalid_json"
	HttpInvalidStateError = "invalid_state"
	HttpPayloadTooLarge   = "payload_too_large"
)

// ErrorResponse is the error response body for bridge errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// Pipeline failure taxonomy. Every per-record failure maps to one of these
// and is handled at the task queue boundary; none reaches the caller.
var (
	ErrInvalidKey          = errors.New("invalid property key")
	ErrInvalidPropertyType = errors.New("invalid property type")
	ErrSuppressed          = errors.New("event suppressed by policy")
	ErrIdentityConflict    = errors.New("login id already applied")
	ErrEnrichment          = errors.New("enrichment step failed")
)

// ValidationError describes a rejected key or value. It unwraps to
// ErrInvalidKey or ErrInvalidPropertyType.
type ValidationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Reason)
	}
	return fmt.Sprintf("%v: key '%s': %s", e.Err, e.Key, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Details returns the structured fields for API error responses.
func (e *ValidationError) Details() map[string]interface{} {
	d := map[string]interface{}{"reason": e.Reason}
	if e.Key != "" {
		d["key"] = e.Key
	}
	return d
}

func NewInvalidKeyError(key, reason string) *ValidationError {
	return &ValidationError{Key: key, Reason: reason, Err: ErrInvalidKey}
}

func NewInvalidTypeError(key, reason string) *ValidationError {
	return &ValidationError{Key: key, Reason: reason, Err: ErrInvalidPropertyType}
}

// Suppressed wraps ErrSuppressed with the name of the vetoed event and the
// party that vetoed it.
func Suppressed(event, by string) error {
	return fmt.Errorf("%w: %s rejected by %s", ErrSuppressed, event, by)
}

// Class names the taxonomy bucket of err, used for logging and metrics.
func Class(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ve):
		return "validation"
	case errors.Is(err, ErrInvalidKey), errors.Is(err, ErrInvalidPropertyType):
		return "validation"
	case errors.Is(err, ErrSuppressed):
		return "suppressed"
	case errors.Is(err, ErrIdentityConflict):
		return "identity_conflict"
	case errors.Is(err, ErrEnrichment):
		return "enrichment"
	default:
		return "internal"
	}
}
