package domain

import "time"

const (
	// Unknown replaces a hostname or IP address that could not be probed.
	Unknown = "Unknown"
	// Unavailable replaces a temperature that could not be read.
	Unavailable = "Unavailable"
)

// SystemSnapshot is one point-in-time composite of host metrics and service
// states. It is rebuilt on every status request.
type SystemSnapshot struct {
	Hostname      string                  `json:"hostname"`
	IP            string                  `json:"ip"`
	CPU           float64                 `json:"cpu"`
	RAM           float64                 `json:"ram"`
	Disk          float64                 `json:"disk"`
	Temperature   string                  `json:"temp"`
	Services      map[string]ServiceState `json:"services"`
	AgentStatus   ServiceState            `json:"agent_status,omitempty"`
	AlertsEnabled bool                    `json:"alerts_enabled"`
	CollectedAt   time.Time               `json:"collected_at"`
}
