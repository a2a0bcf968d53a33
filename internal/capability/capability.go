// Package capability defines the pluggable action surface of the assistant.
// A capability wraps one action the executor can invoke; the registry is the
// lookup table the executor resolves action names through.
package capability

import "context"

// Metadata describes a capability to the registry.
type Metadata struct {
	// ID is the action name, globally unique within a registry.
	ID          string
	Version     string
	Description string
	// Dependencies lists capability IDs that must already be registered
	// before this one may be.
	Dependencies []string
}

// Capability executes a single named action. Implementations must observe
// ctx cancellation on anything that blocks.
type Capability interface {
	Metadata() Metadata
	Execute(ctx context.Context, params map[string]any) (map[string]any, error)
}

// HealthChecker is optionally implemented by capabilities that can probe
// their backing service. The registry runs the check at registration time.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
