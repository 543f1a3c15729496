package state

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/pimon/internal/domain"
)

// Store holds the process-wide mutable state of the device: the alert flag
// and the provisioning parameters. Nothing here survives a restart.
type Store struct {
	mu              sync.RWMutex
	alertsEnabled   bool
	alertsChangedAt time.Time
	provisioning    domain.ProvisioningState
	provisionedAt   time.Time
	lastOutcome     *domain.ProvisioningOutcome
}

// NewStore creates a store with alerts enabled.
func NewStore() *Store {
	return &Store{
		alertsEnabled: true,
	}
}

// ToggleAlerts flips the alert flag and returns the new value.
func (s *Store) ToggleAlerts() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alertsEnabled = !s.alertsEnabled
	s.alertsChangedAt = time.Now()
	return s.alertsEnabled
}

// AlertsEnabled returns the current alert flag.
func (s *Store) AlertsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.alertsEnabled
}

// AlertsChangedAt returns when the flag was last flipped (zero if never).
func (s *Store) AlertsChangedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.alertsChangedAt
}

// SetProvisioning replaces the provisioning state as a whole.
func (s *Store) SetProvisioning(p domain.ProvisioningState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.provisioning = p
	s.provisionedAt = time.Now()
}

// Provisioning returns a copy of the provisioning state.
func (s *Store) Provisioning() domain.ProvisioningState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.provisioning
}

// ProvisionedAt returns when the provisioning state was last written.
func (s *Store) ProvisionedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.provisionedAt
}

// RecordOutcome stores the result of the latest installer run.
func (s *Store) RecordOutcome(o domain.ProvisioningOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastOutcome = &o
}

// LastOutcome returns the latest installer result, if any.
func (s *Store) LastOutcome() (domain.ProvisioningOutcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastOutcome == nil {
		return domain.ProvisioningOutcome{}, false
	}
	return *s.lastOutcome, true
}
