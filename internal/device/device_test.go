package device

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/pimon/internal/domain"
	"github.com/MrSnakeDoc/pimon/internal/events"
	"github.com/MrSnakeDoc/pimon/internal/executor"
	"github.com/MrSnakeDoc/pimon/internal/executor/executortest"
	"github.com/MrSnakeDoc/pimon/internal/logger"
	"github.com/MrSnakeDoc/pimon/internal/metrics"
	"github.com/MrSnakeDoc/pimon/internal/power"
	"github.com/MrSnakeDoc/pimon/internal/provision"
	"github.com/MrSnakeDoc/pimon/internal/services"
	"github.com/MrSnakeDoc/pimon/internal/sources/registry"
	"github.com/MrSnakeDoc/pimon/internal/telemetry"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixedCollector struct{}

func (fixedCollector) Collect(context.Context) metrics.Reading {
	return metrics.Reading{Hostname: "pi", IP: "10.0.0.2", CPU: 5, RAM: 10, Disk: 20, Temperature: domain.Unavailable}
}

type fixture struct {
	dev     *Device
	fake    *executortest.Fake
	pub     *recordingPublisher
	metrics *telemetry.Metrics
}

func newFixture(t *testing.T, handler func(executor.Command) executor.Result) fixture {
	t.Helper()

	reg, err := services.NewRegistry(registry.Defaults())
	require.NoError(t, err)

	f := fixture{
		fake:    &executortest.Fake{Handler: handler},
		pub:     &recordingPublisher{},
		metrics: telemetry.New(),
	}
	f.dev = New(Config{
		Name:      "pi",
		Executor:  f.fake,
		Registry:  reg,
		Collector: fixedCollector{},
		Logger:    logger.NewNop(),
		Events:    f.pub,
		Metrics:   f.metrics,
	})
	return f
}

func TestToggleAlerts(t *testing.T) {
	f := newFixture(t, nil)

	assert.True(t, f.dev.AlertsEnabled())
	assert.False(t, f.dev.ToggleAlerts(context.Background()))
	assert.True(t, f.dev.ToggleAlerts(context.Background()))
	assert.True(t, f.dev.AlertsEnabled())
	assert.Equal(t, []string{events.TypeAlertsToggled, events.TypeAlertsToggled}, f.pub.types())
}

func TestSnapshotReflectsAlertsAndAgent(t *testing.T) {
	f := newFixture(t, executortest.Match(map[string]executor.Result{
		"systemctl is-active -- 3cxsbc": executortest.Succeed("active\n"),
		"systemctl is-active -- ssh":    executortest.Fail(3, ""),
	}))
	f.dev.ToggleAlerts(context.Background())

	snap := f.dev.Snapshot(context.Background())

	assert.False(t, snap.AlertsEnabled)
	assert.Equal(t, domain.StateActive, snap.AgentStatus)
	assert.Equal(t, domain.StateActive, snap.Services["3CX SBC"])
	assert.Equal(t, domain.StateUnknown, snap.Services["SSH"], "empty stdout maps to unknown")
	assert.Len(t, snap.Services, 3)
}

func TestControlServiceValidation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.dev.ControlService(context.Background(), "ssh", "reload")
	assert.ErrorIs(t, err, domain.ErrInvalidAction)

	_, err = f.dev.ControlService(context.Background(), "nginx", "start")
	assert.ErrorIs(t, err, services.ErrUnknownService)

	assert.Empty(t, f.fake.Calls())
	assert.Empty(t, f.pub.types())
}

func TestControlServiceRecordsOutcome(t *testing.T) {
	f := newFixture(t, executortest.Match(map[string]executor.Result{
		"systemctl stop": executortest.Fail(1, "Access denied"),
	}))

	got, err := f.dev.ControlService(context.Background(), "ssh", "restart")
	require.NoError(t, err)
	assert.Equal(t, "Restarted ssh", got)

	got, err = f.dev.ControlService(context.Background(), "cockpit", "stop")
	require.NoError(t, err)
	assert.Equal(t, "Failed to stop cockpit", got)

	assert.Equal(t, []string{events.TypeServiceControl, events.TypeServiceControl}, f.pub.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ServiceControls().WithLabelValues("restart", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ServiceControls().WithLabelValues("stop", "failure")))
}

func TestPowerActions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, f.dev.ScheduleReboot(ctx, -1), power.ErrNegativeDelay)
	assert.Empty(t, f.fake.Calls())

	require.NoError(t, f.dev.ScheduleReboot(ctx, 10))
	f.dev.Reboot(ctx)
	f.dev.Shutdown(ctx)

	assert.Equal(t, []string{"shutdown -r +10", "reboot", "shutdown -h now"}, f.fake.CallLines())
	assert.Len(t, f.pub.types(), 3)
}

func TestProvisionInBackground(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.dev.Provision(ctx, "install", "host.example.com", "secret123"))
	require.NoError(t, f.dev.Wait(ctx))

	info := f.dev.ProvisioningInfo()
	assert.Equal(t, "host.example.com", info.FQDN)
	assert.Equal(t, "***REDACTED***", info.AuthID)
	require.NotNil(t, info.ProvisionedAt)
	require.NotNil(t, info.LastOutcome)
	assert.True(t, info.LastOutcome.Success)
	assert.Equal(t, domain.ProvisionInstall, info.LastOutcome.Action)

	assert.ElementsMatch(t, []string{events.TypeProvisionQueued, events.TypeProvisionDone}, f.pub.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ProvisionRuns().WithLabelValues("install", "success")))
}

func TestProvisionValidation(t *testing.T) {
	f := newFixture(t, nil)

	assert.ErrorIs(t, f.dev.Provision(context.Background(), "uninstall", "h", "a"), domain.ErrInvalidAction)
	assert.ErrorIs(t, f.dev.Provision(context.Background(), "update", "", "a"), provision.ErrMissingField)

	info := f.dev.ProvisioningInfo()
	assert.Empty(t, info.FQDN)
	assert.Nil(t, info.LastOutcome)
	assert.Empty(t, f.fake.Calls())
}

func TestServicesKeepsRegistryOrder(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, registry.Defaults(), f.dev.Services())
}
