package telemetry

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/pimon/internal/domain"
	"github.com/MrSnakeDoc/pimon/internal/executor"
	"github.com/MrSnakeDoc/pimon/internal/power"
)

var (
	_ executor.Observer = (*Metrics)(nil)
	_ power.Recorder    = (*Metrics)(nil)
)

func TestObserveSnapshot(t *testing.T) {
	m := New()

	m.ObserveSnapshot(domain.SystemSnapshot{
		CPU:           12.5,
		RAM:           40,
		Disk:          71.2,
		AlertsEnabled: true,
		Services: map[string]domain.ServiceState{
			"SSH":     domain.StateActive,
			"Cockpit": domain.StateFailed,
		},
	})

	assert.Equal(t, 12.5, testutil.ToFloat64(m.cpu))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.ram))
	assert.Equal(t, 71.2, testutil.ToFloat64(m.disk))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alerts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.serviceUp.WithLabelValues("SSH")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.serviceUp.WithLabelValues("Cockpit")))

	m.SetAlerts(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.alerts))
}

func TestActionCounters(t *testing.T) {
	m := New()

	m.RecordPowerAction(domain.PowerReboot, true)
	m.RecordPowerAction(domain.PowerReboot, false)
	m.RecordPowerAction(domain.PowerReboot, false)
	m.RecordServiceControl(domain.ActionRestart, true)
	m.RecordProvision(domain.ProvisionInstall, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.powerActions.WithLabelValues("reboot", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.powerActions.WithLabelValues("reboot", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.serviceControls.WithLabelValues("restart", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.provisionRuns.WithLabelValues("install", "failure")))
}

func TestObserveCommandUsesBaseName(t *testing.T) {
	m := New()

	m.ObserveCommand("/usr/bin/systemctl", 20*time.Millisecond, true)
	m.ObserveCommand("systemctl", 30*time.Millisecond, false)

	assert.Equal(t, 1, testutil.CollectAndCount(m.execDuration))
}

func TestHandlerServesExposition(t *testing.T) {
	m := New()
	m.RecordPowerAction(domain.PowerShutdown, true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pimon_power_actions_total{action="shutdown",result="success"} 1`)
	assert.Contains(t, string(body), "pimon_build_info")
}
