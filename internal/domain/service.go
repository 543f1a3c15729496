package domain

import "strings"

// ServiceDescriptor pairs a human-facing label with the unit name the host's
// service manager recognizes. Descriptors are fixed at process start.
type ServiceDescriptor struct {
	// Label is the display key used in API responses.
	// Example: "3CX SBC"
	Label string `json:"label" yaml:"label"`

	// Identifier is passed to the service manager.
	// Example: "3cxsbc"
	Identifier string `json:"identifier" yaml:"identifier"`
}

// ServiceState is the result of a live status probe. It is never cached.
type ServiceState string

const (
	StateActive   ServiceState = "active"
	StateInactive ServiceState = "inactive"
	StateFailed   ServiceState = "failed"
	StateUnknown  ServiceState = "unknown"
)

// ParseServiceState maps the service manager's is-active output onto the
// four known states. Anything unrecognized is unknown.
func ParseServiceState(raw string) ServiceState {
	switch ServiceState(strings.ToLower(strings.TrimSpace(raw))) {
	case StateActive:
		return StateActive
	case StateInactive:
		return StateInactive
	case StateFailed:
		return StateFailed
	default:
		return StateUnknown
	}
}
