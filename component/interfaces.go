package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component represents a lifecycle-managed client such as a store backend.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start connects the component and prepares it for use.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component and releases resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}

// Description is a one-line self report used by the CLI status output.
type Description struct {
	// Name is the human-readable display name. Component.Name() is used when empty.
	Name string
	// Type categorizes the component: "docstore", "blob", ...
	Type string
	// Details is a short summary such as "redis localhost:6379 db=0".
	Details string
}

// Describable is optionally implemented by Components to describe themselves.
type Describable interface {
	Describe() Description
}
