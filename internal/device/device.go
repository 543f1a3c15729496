// Package device is the single service context: it owns the mutable state
// and every controller, and is the only thing transports talk to.
package device

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/pimon/internal/domain"
	"github.com/MrSnakeDoc/pimon/internal/events"
	"github.com/MrSnakeDoc/pimon/internal/executor"
	"github.com/MrSnakeDoc/pimon/internal/logger"
	"github.com/MrSnakeDoc/pimon/internal/metrics"
	"github.com/MrSnakeDoc/pimon/internal/power"
	"github.com/MrSnakeDoc/pimon/internal/provision"
	"github.com/MrSnakeDoc/pimon/internal/services"
	"github.com/MrSnakeDoc/pimon/internal/state"
	"github.com/MrSnakeDoc/pimon/internal/status"
	"github.com/MrSnakeDoc/pimon/internal/telemetry"
)

const publishTimeout = 2 * time.Second

// Config assembles a Device.
type Config struct {
	Name      string // reported as the event source
	Executor  executor.Executor
	Registry  *services.Registry
	Collector status.Collector
	Logger    logger.Logger
	Events    events.Publisher   // nil disables publishing
	Metrics   *telemetry.Metrics // nil disables counters
	Provision provision.Options
	// AgentService is the identifier reported as agent_status; defaults to
	// the provisioned package name.
	AgentService string
}

// Device exposes every operation of the agent.
type Device struct {
	name       string
	log        logger.Logger
	store      *state.Store
	services   *services.Controller
	power      *power.Controller
	provisions *provision.Manager
	status     *status.Aggregator
	events     events.Publisher
	metrics    *telemetry.Metrics
}

// New builds the state store and every controller around it.
func New(cfg Config) *Device {
	d := &Device{
		name:    cfg.Name,
		log:     cfg.Logger,
		store:   state.NewStore(),
		events:  cfg.Events,
		metrics: cfg.Metrics,
	}
	if d.events == nil {
		d.events = events.Noop{}
	}

	var recorder power.Recorder
	var observer status.Observer
	if d.metrics != nil {
		recorder = d.metrics
		observer = d.metrics
	}

	d.services = services.NewController(cfg.Registry, cfg.Executor, cfg.Logger.With(logger.String("component", "services")))
	d.power = power.NewController(cfg.Executor, cfg.Logger.With(logger.String("component", "power")), recorder)

	provOpts := cfg.Provision
	onFinish := provOpts.OnFinish
	provOpts.OnFinish = func(o domain.ProvisioningOutcome) {
		d.provisionFinished(o)
		if onFinish != nil {
			onFinish(o)
		}
	}
	d.provisions = provision.NewManager(d.store, cfg.Executor, cfg.Logger.With(logger.String("component", "provision")), provOpts)

	agent := cfg.AgentService
	if agent == "" {
		agent = provOpts.Package
		if agent == "" {
			agent = provision.DefaultPackage
		}
	}
	d.status = status.NewAggregator(cfg.Collector, d.services, cfg.Registry.Descriptors(), d.store, cfg.Logger,
		status.Options{AgentService: agent, Observer: observer})

	return d
}

// Snapshot builds a fresh status snapshot.
func (d *Device) Snapshot(ctx context.Context) domain.SystemSnapshot {
	return d.status.Snapshot(ctx)
}

// Services lists the registered descriptors in registry order.
func (d *Device) Services() []domain.ServiceDescriptor {
	return d.services.Registry().Descriptors()
}

// ToggleAlerts flips the alert flag and returns the new value.
func (d *Device) ToggleAlerts(ctx context.Context) bool {
	enabled := d.store.ToggleAlerts()
	d.log.Info("alerts toggled", logger.Bool("alerts_enabled", enabled))
	if d.metrics != nil {
		d.metrics.SetAlerts(enabled)
	}
	d.publish(ctx, events.TypeAlertsToggled, map[string]any{"alerts_enabled": enabled})
	return enabled
}

func (d *Device) AlertsEnabled() bool {
	return d.store.AlertsEnabled()
}

// ControlService validates and applies a lifecycle action. Validation
// failures come back as errors; command failures as a result string.
func (d *Device) ControlService(ctx context.Context, identifier, rawAction string) (string, error) {
	action, err := domain.ParseServiceAction(rawAction)
	if err != nil {
		return "", err
	}
	result, err := d.services.Control(ctx, identifier, action)
	if err != nil {
		return "", err
	}

	success := !services.Failed(result)
	if d.metrics != nil {
		d.metrics.RecordServiceControl(action, success)
	}
	d.publish(ctx, events.TypeServiceControl, map[string]any{
		"service": identifier,
		"action":  string(action),
		"success": success,
		"result":  result,
	})
	return result, nil
}

func (d *Device) Reboot(ctx context.Context) {
	d.power.RebootNow(ctx)
	d.publish(ctx, events.TypePowerAction, map[string]any{"action": string(domain.PowerReboot)})
}

func (d *Device) Shutdown(ctx context.Context) {
	d.power.ShutdownNow(ctx)
	d.publish(ctx, events.TypePowerAction, map[string]any{"action": string(domain.PowerShutdown)})
}

// ScheduleReboot rejects negative delays with power.ErrNegativeDelay.
func (d *Device) ScheduleReboot(ctx context.Context, minutes int) error {
	if err := d.power.ScheduleReboot(ctx, minutes); err != nil {
		return err
	}
	d.publish(ctx, events.TypePowerAction, map[string]any{
		"action":  string(domain.PowerScheduleReboot),
		"minutes": minutes,
	})
	return nil
}

// Provision records the parameters and starts the installer in the
// background. The outcome lands in ProvisioningInfo once the run ends.
func (d *Device) Provision(ctx context.Context, rawAction, fqdn, authID string) error {
	action, err := domain.ParseProvisionAction(rawAction)
	if err != nil {
		return err
	}
	if err := d.provisions.Dispatch(ctx, action, fqdn, authID); err != nil {
		return err
	}
	d.publish(ctx, events.TypeProvisionQueued, map[string]any{
		"action": string(action),
		"fqdn":   fqdn,
	})
	return nil
}

// ProvisioningInfo returns the current parameters with the auth id redacted.
func (d *Device) ProvisioningInfo() domain.ProvisioningInfo {
	p := d.store.Provisioning().Redacted()
	info := domain.ProvisioningInfo{FQDN: p.FQDN, AuthID: p.AuthID}
	if at := d.store.ProvisionedAt(); !at.IsZero() {
		info.ProvisionedAt = &at
	}
	if o, ok := d.store.LastOutcome(); ok {
		info.LastOutcome = &o
	}
	return info
}

// Wait blocks until background provisioning runs finish or ctx ends.
func (d *Device) Wait(ctx context.Context) error {
	return d.provisions.Wait(ctx)
}

func (d *Device) provisionFinished(o domain.ProvisioningOutcome) {
	if d.metrics != nil {
		d.metrics.RecordProvision(o.Action, o.Success)
	}
	d.publish(context.Background(), events.TypeProvisionDone, map[string]any{
		"action":  string(o.Action),
		"fqdn":    o.FQDN,
		"success": o.Success,
		"detail":  o.Detail,
	})
}

// publish is best effort: a bus outage never fails an operator action.
func (d *Device) publish(ctx context.Context, eventType string, data map[string]any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := d.events.Publish(ctx, events.New(eventType, d.name, data)); err != nil {
		d.log.Warn("event publish failed",
			logger.String("type", eventType),
			logger.Error(err))
	}
}

var _ status.Collector = (*metrics.Collector)(nil)
