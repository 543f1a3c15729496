package state

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/pimon/internal/domain"
)

func TestAlertsStartEnabled(t *testing.T) {
	s := NewStore()
	assert.True(t, s.AlertsEnabled())
	assert.True(t, s.AlertsChangedAt().IsZero())
}

func TestToggleAlertsTwiceRestoresInitial(t *testing.T) {
	s := NewStore()
	initial := s.AlertsEnabled()

	first := s.ToggleAlerts()
	second := s.ToggleAlerts()

	assert.Equal(t, !initial, first)
	assert.Equal(t, initial, second)
	assert.Equal(t, initial, s.AlertsEnabled())
	assert.False(t, s.AlertsChangedAt().IsZero())
}

func TestConcurrentTogglesDoNotLoseUpdates(t *testing.T) {
	s := NewStore()

	const n = 1000 // even, so the flag must end where it started
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			s.ToggleAlerts()
		}()
	}
	wg.Wait()

	assert.True(t, s.AlertsEnabled())
}

func TestSetProvisioningOverwrites(t *testing.T) {
	s := NewStore()
	s.SetProvisioning(domain.ProvisioningState{FQDN: "a.example.com", AuthID: "one"})
	s.SetProvisioning(domain.ProvisioningState{FQDN: "b.example.com"})

	assert.Equal(t, domain.ProvisioningState{FQDN: "b.example.com"}, s.Provisioning())
	assert.False(t, s.ProvisionedAt().IsZero())
}

func TestConcurrentSetProvisioningNeverMixesFields(t *testing.T) {
	s := NewStore()

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n * 2)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			s.SetProvisioning(domain.ProvisioningState{
				FQDN:   fmt.Sprintf("host-%d.example.com", i),
				AuthID: fmt.Sprintf("secret-%d", i),
			})
		}()
		go func() {
			defer wg.Done()
			p := s.Provisioning()
			if p.FQDN == "" {
				return
			}
			var a, b int
			_, errA := fmt.Sscanf(p.FQDN, "host-%d.example.com", &a)
			_, errB := fmt.Sscanf(p.AuthID, "secret-%d", &b)
			if assert.NoError(t, errA) && assert.NoError(t, errB) {
				assert.Equal(t, a, b)
			}
		}()
	}
	wg.Wait()
}

func TestLastOutcome(t *testing.T) {
	s := NewStore()

	_, ok := s.LastOutcome()
	assert.False(t, ok)

	s.RecordOutcome(domain.ProvisioningOutcome{Action: domain.ProvisionInstall, FQDN: "x", Success: true})
	got, ok := s.LastOutcome()
	require.True(t, ok)
	assert.True(t, got.Success)
	assert.Equal(t, domain.ProvisionInstall, got.Action)
}
