// Package errors provides standardized error handling patterns for Symbiont
// components. It includes error classification, failure-kind tagging for the
// messaging taxonomy, and helper functions for consistent error wrapping
// across the system.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Kind identifies where in the messaging pipeline a failure originated.
// Decode failures are logged and dropped, timeout and remote failures are
// surfaced to the request/reply caller, validation failures are rejected
// before any bus interaction.
type Kind int

const (
	// KindUnknown is the zero value for errors without a pipeline kind.
	KindUnknown Kind = iota
	// KindDecode marks a malformed envelope.
	KindDecode
	// KindTransport marks a bus connection or publish failure.
	KindTransport
	// KindTimeout marks an elapsed request/reply deadline.
	KindTimeout
	// KindRemote marks a failure the replying service reported in its own
	// envelope error field.
	KindRemote
	// KindValidation marks caller-supplied input failing a precondition.
	KindValidation
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindRemote:
		return "remote"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Component lifecycle errors
	ErrAlreadyStarted = errors.New("component already started")
	ErrNotStarted     = errors.New("component not started")
	ErrAlreadyStopped = errors.New("component already stopped")
	ErrShuttingDown   = errors.New("component is shutting down")
	ErrStopTimeout    = errors.New("stop timed out before handlers finished")

	// Connection and messaging errors
	ErrNoConnection       = errors.New("no connection available")
	ErrConnectionLost     = errors.New("connection lost")
	ErrConnectionTimeout  = errors.New("connection timeout")
	ErrSubscriptionFailed = errors.New("subscription failed")
	ErrRequestTimeout     = errors.New("request timed out")

	// Data processing errors
	ErrInvalidData   = errors.New("invalid data format")
	ErrParsingFailed = errors.New("parsing failed")
	ErrEmptyPayload  = errors.New("empty payload")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNotFound           = errors.New("not found")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	// Circuit breaker errors
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// ClassifiedError wraps an error with its classification and pipeline kind
type ClassifiedError struct {
	Class     ErrorClass
	Kind      Kind
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// KindOf returns the pipeline kind of an error, or KindUnknown when the
// error carries none. Context deadline errors map to KindTimeout so that
// callers racing a timer need no special casing.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) && ce.Kind != KindUnknown {
		return ce.Kind
	}

	if errors.Is(err, ErrRequestTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, ErrNoConnection) || errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrCircuitOpen) {
		return KindTransport
	}
	if errors.Is(err, ErrParsingFailed) || errors.Is(err, ErrInvalidData) {
		return KindDecode
	}

	return KindUnknown
}

// IsTimeout reports whether a request/reply deadline elapsed.
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}

// IsTransport reports whether the bus itself failed.
func IsTransport(err error) bool {
	return KindOf(err) == KindTransport
}

// IsDecode reports whether a payload could not be decoded.
func IsDecode(err error) bool {
	return KindOf(err) == KindDecode
}

// IsRemote reports whether the replying service reported the failure itself.
func IsRemote(err error) bool {
	return KindOf(err) == KindRemote
}

// IsValidation reports whether caller input failed a precondition.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsTransient checks if an error is transient and may be retried by a caller
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection",
		"network",
		"temporary",
		"unavailable",
		"busy",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrMissingConfig)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrInvalidData) || errors.Is(err, ErrParsingFailed)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	if IsTransient(err) {
		return ErrorTransient
	}
	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}

	// Default to transient for unknown errors to allow retry by callers
	return ErrorTransient
}

// newClassified creates a new classified error.
// This is an internal helper - use the Wrap* functions instead.
func newClassified(class ErrorClass, kind Kind, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Kind:      kind,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, KindOf(err), wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, KindOf(err), wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, KindOf(err), wrappedErr, component, method, wrappedErr.Error())
}

// WrapKind wraps an error with an explicit pipeline kind. The class follows
// the kind: validation and decode failures are invalid, everything else is
// transient.
func WrapKind(kind Kind, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	class := ErrorTransient
	if kind == KindValidation || kind == KindDecode {
		class = ErrorInvalid
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(class, kind, wrappedErr, component, method, wrappedErr.Error())
}

// NewValidation builds a validation error for a rejected input field.
func NewValidation(component, field, reason string) error {
	err := fmt.Errorf("%s: %s", field, reason)
	return newClassified(ErrorInvalid, KindValidation, err, component, "Validate", err.Error())
}

// NewRemote builds a remote error from a reply envelope's error field,
// prefixed with the hop that produced it.
func NewRemote(hop, message string) error {
	err := fmt.Errorf("%s: %s", hop, message)
	return newClassified(ErrorTransient, KindRemote, err, hop, "Request", err.Error())
}
