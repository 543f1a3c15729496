package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseServiceAction(t *testing.T) {
	tests := []struct {
		raw     string
		want    ServiceAction
		wantErr bool
	}{
		{raw: "start", want: ActionStart},
		{raw: "STOP", want: ActionStop},
		{raw: " restart ", want: ActionRestart},
		{raw: "enable", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseServiceAction(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAction)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseProvisionAction(t *testing.T) {
	a, err := ParseProvisionAction("install")
	assert.NoError(t, err)
	assert.Equal(t, ProvisionInstall, a)

	a, err = ParseProvisionAction("Update")
	assert.NoError(t, err)
	assert.Equal(t, ProvisionUpdate, a)

	_, err = ParseProvisionAction("uninstall")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestParseServiceState(t *testing.T) {
	assert.Equal(t, StateActive, ParseServiceState("active\n"))
	assert.Equal(t, StateInactive, ParseServiceState("inactive"))
	assert.Equal(t, StateFailed, ParseServiceState(" failed "))
	assert.Equal(t, StateUnknown, ParseServiceState("reloading"))
	assert.Equal(t, StateUnknown, ParseServiceState(""))
}

func TestProvisioningStateRedacted(t *testing.T) {
	p := ProvisioningState{FQDN: "host.example.com", AuthID: "secret123"}
	r := p.Redacted()
	assert.Equal(t, "host.example.com", r.FQDN)
	assert.NotContains(t, r.AuthID, "secret")
	assert.Equal(t, "secret123", p.AuthID, "original untouched")
	assert.Empty(t, ProvisioningState{}.Redacted().AuthID)
}
