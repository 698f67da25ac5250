// Package retry provides exponential backoff retry logic for transient failures.
//
// Do runs a function until it succeeds, the attempt budget is spent, or the
// context ends. DoWithResult does the same for functions that return a value.
// Errors wrapped with NonRetryable stop the loop immediately.
//
// Three presets cover the common cases: DefaultConfig for normal operations,
// Quick for component startup, and Persistent for critical resources that
// must eventually come up.
//
//	cfg := retry.Quick()
//	err := retry.Do(ctx, cfg, func() error {
//	    return bus.Publish(ctx, subject, data)
//	})
package retry
