package domain

import "time"

// ProvisioningState holds the endpoint and credential last supplied by an
// operator. Every provisioning call replaces it as a whole.
type ProvisioningState struct {
	FQDN   string `json:"fqdn"`
	AuthID string `json:"auth_id"`
}

// Redacted hides the credential for display.
func (p ProvisioningState) Redacted() ProvisioningState {
	if p.AuthID != "" {
		p.AuthID = "***REDACTED***"
	}
	return p
}

// ProvisioningOutcome records how the most recent installer run ended.
type ProvisioningOutcome struct {
	Action     ProvisionAction `json:"action"`
	FQDN       string          `json:"fqdn"`
	Success    bool            `json:"success"`
	Detail     string          `json:"detail,omitempty"`
	Superseded bool            `json:"superseded,omitempty"` // skipped, a newer request replaced it
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// ProvisioningInfo is the read-only view served to operators. AuthID is
// always redacted.
type ProvisioningInfo struct {
	FQDN          string               `json:"fqdn"`
	AuthID        string               `json:"auth_id"`
	ProvisionedAt *time.Time           `json:"provisioned_at,omitempty"`
	LastOutcome   *ProvisioningOutcome `json:"last_outcome,omitempty"`
}
