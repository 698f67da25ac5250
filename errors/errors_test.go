package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindDecode, "decode"},
		{KindTransport, "transport"},
		{KindTimeout, "timeout"},
		{KindRemote, "remote"},
		{KindValidation, "validation"},
		{KindUnknown, "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if got := test.kind.String(); got != test.expected {
				t.Errorf("expected %s, got %s", test.expected, got)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"nil error", nil, KindUnknown},
		{"request timeout", ErrRequestTimeout, KindTimeout},
		{"context deadline", context.DeadlineExceeded, KindTimeout},
		{"no connection", ErrNoConnection, KindTransport},
		{"circuit open", ErrCircuitOpen, KindTransport},
		{"parsing failed", ErrParsingFailed, KindDecode},
		{"plain error", fmt.Errorf("something else"), KindUnknown},
		{"wrapped timeout", fmt.Errorf("outer: %w", ErrRequestTimeout), KindTimeout},
		{
			"classified remote",
			&ClassifiedError{Kind: KindRemote, Err: fmt.Errorf("upstream said no")},
			KindRemote,
		},
		{
			"classified validation",
			NewValidation("Gateway", "url", "must not be empty"),
			KindValidation,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := KindOf(test.err); got != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, got, test.err)
			}
		})
	}
}

func TestKindPredicates(t *testing.T) {
	timeoutErr := WrapKind(KindTimeout, ErrRequestTimeout, "Reply", "Request", "await reply")
	remoteErr := NewRemote("embedding resolution", "model unavailable")
	validationErr := NewValidation("Gateway", "top_k", "must be positive")
	decodeErr := WrapKind(KindDecode, ErrParsingFailed, "Dispatch", "handle", "decode envelope")

	if !IsTimeout(timeoutErr) {
		t.Error("expected IsTimeout for timeout-kind error")
	}
	if !IsRemote(remoteErr) {
		t.Error("expected IsRemote for remote-kind error")
	}
	if !IsValidation(validationErr) {
		t.Error("expected IsValidation for validation-kind error")
	}
	if !IsDecode(decodeErr) {
		t.Error("expected IsDecode for decode-kind error")
	}
	if IsTimeout(remoteErr) || IsRemote(timeoutErr) {
		t.Error("kinds must not overlap")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"storage unavailable", ErrStorageUnavailable, true},
		{"circuit open", ErrCircuitOpen, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"network error", fmt.Errorf("network connection failed"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid config", ErrInvalidConfig, true},
		{"missing config", ErrMissingConfig, true},
		{"connection timeout", ErrConnectionTimeout, false},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsFatal(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	base := fmt.Errorf("boom")
	wrapped := Wrap(base, "VectorMemory", "handleSearch", "query store")

	expected := "VectorMemory.handleSearch: query store failed: boom"
	if wrapped.Error() != expected {
		t.Errorf("expected %q, got %q", expected, wrapped.Error())
	}
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error must unwrap to the base error")
	}
	if Wrap(nil, "a", "b", "c") != nil {
		t.Error("wrapping nil must return nil")
	}
}

func TestWrapTransientPreservesKind(t *testing.T) {
	wrapped := WrapTransient(ErrRequestTimeout, "Reply", "Request", "await reply")

	var ce *ClassifiedError
	if !errors.As(wrapped, &ce) {
		t.Fatal("expected a ClassifiedError")
	}
	if ce.Class != ErrorTransient {
		t.Errorf("expected transient class, got %v", ce.Class)
	}
	if ce.Kind != KindTimeout {
		t.Errorf("expected timeout kind carried through wrapping, got %v", ce.Kind)
	}
}

func TestWrapKindClasses(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected ErrorClass
	}{
		{KindValidation, ErrorInvalid},
		{KindDecode, ErrorInvalid},
		{KindTimeout, ErrorTransient},
		{KindTransport, ErrorTransient},
		{KindRemote, ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.kind.String(), func(t *testing.T) {
			err := WrapKind(test.kind, fmt.Errorf("base"), "c", "m", "a")
			var ce *ClassifiedError
			if !errors.As(err, &ce) {
				t.Fatal("expected a ClassifiedError")
			}
			if ce.Class != test.expected {
				t.Errorf("expected class %v for kind %v, got %v", test.expected, test.kind, ce.Class)
			}
		})
	}
}

func TestNewRemote(t *testing.T) {
	err := NewRemote("vector search", "collection missing")
	if !IsRemote(err) {
		t.Error("expected remote kind")
	}
	expected := "vector search: collection missing"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil defaults to transient", nil, ErrorTransient},
		{"transient error", ErrConnectionLost, ErrorTransient},
		{"fatal error", ErrInvalidConfig, ErrorFatal},
		{"unknown defaults to transient", fmt.Errorf("mystery"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.err); got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}
