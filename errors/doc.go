// Package errors provides standardized error handling patterns for Symbiont components.
//
// # Overview
//
// The errors package implements a three-class error classification system for
// distributed messaging pipelines: Transient (temporary, retryable by a
// caller), Invalid (bad input, non-retryable), and Fatal (unrecoverable, stop
// processing). On top of the class axis, errors carry a pipeline Kind that
// identifies where in the messaging flow a failure originated: Decode,
// Transport, Timeout, Remote, or Validation.
//
// The two axes serve different consumers. The class drives handling policy
// (retry, reject, stop), while the kind drives surfacing policy: decode
// failures are logged and the message dropped, timeout and remote failures
// are returned to the request/reply caller with the hop that produced them,
// and validation failures are rejected before any bus interaction.
//
// The classification integrates with Go's standard error handling patterns,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Wrap errors with context following the "component.method: action failed"
// pattern:
//
//	if err := store.Upsert(ctx, points); err != nil {
//	    return errors.WrapTransient(err, "VectorMemory", "handleDocument", "upsert points")
//	}
//
// Tag errors with a pipeline kind where the origin matters to the caller:
//
//	if err := json.Unmarshal(data, &task); err != nil {
//	    return errors.WrapKind(errors.KindDecode, err, "Dispatch", "handle", "decode envelope")
//	}
//
// Check the kind at the boundary that must react to it:
//
//	if errors.IsTimeout(err) {
//	    // deadline elapsed, present as a user-visible timeout
//	}
package errors
