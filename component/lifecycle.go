package component

import (
	"context"
	"time"
)

// Component is the minimal contract every worker and service satisfies.
type Component interface {
	Name() string
}

// Runner is a component with a start/stop lifecycle. The supervisor creates
// a child context per component and passes it to Start; the component never
// stores the context itself. Stop bounds teardown with the given timeout.
type Runner interface {
	Component
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// IsRunner checks if a component supports lifecycle management.
func IsRunner(comp Component) bool {
	_, ok := comp.(Runner)
	return ok
}
