// Package status composes live probes into a SystemSnapshot.
package status

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/pimon/internal/domain"
	"github.com/MrSnakeDoc/pimon/internal/logger"
	"github.com/MrSnakeDoc/pimon/internal/metrics"
)

// Collector produces host readings.
type Collector interface {
	Collect(ctx context.Context) metrics.Reading
}

// StateQuerier reports the run state of one service.
type StateQuerier interface {
	QueryState(ctx context.Context, identifier string) domain.ServiceState
}

// AlertSource reports the alert flag.
type AlertSource interface {
	AlertsEnabled() bool
}

// Observer sees every snapshot the aggregator builds.
type Observer interface {
	ObserveSnapshot(s domain.SystemSnapshot)
}

// Options configures an Aggregator.
type Options struct {
	// AgentService is the identifier reported as agent_status. Empty skips it.
	AgentService string
	Observer     Observer
	Now          func() time.Time
}

// Aggregator builds snapshots. It holds no state of its own and caches
// nothing, so it is safe to call at any rate.
type Aggregator struct {
	collector   Collector
	services    StateQuerier
	descriptors []domain.ServiceDescriptor
	alerts      AlertSource
	log         logger.Logger
	opts        Options
}

// NewAggregator creates an aggregator over the given ordered descriptors.
func NewAggregator(collector Collector, services StateQuerier, descriptors []domain.ServiceDescriptor, alerts AlertSource, log logger.Logger, opts Options) *Aggregator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator{
		collector:   collector,
		services:    services,
		descriptors: descriptors,
		alerts:      alerts,
		log:         log,
		opts:        opts,
	}
}

// Snapshot runs every probe once. A failed probe only degrades its own field.
func (a *Aggregator) Snapshot(ctx context.Context) domain.SystemSnapshot {
	start := a.opts.Now()
	reading := a.collector.Collect(ctx)

	states := make(map[string]domain.ServiceState, len(a.descriptors))
	for _, d := range a.descriptors {
		states[d.Label] = a.services.QueryState(ctx, d.Identifier)
	}

	snap := domain.SystemSnapshot{
		Hostname:      reading.Hostname,
		IP:            reading.IP,
		CPU:           reading.CPU,
		RAM:           reading.RAM,
		Disk:          reading.Disk,
		Temperature:   reading.Temperature,
		Services:      states,
		AlertsEnabled: a.alerts.AlertsEnabled(),
		CollectedAt:   a.opts.Now().UTC(),
	}
	if a.opts.AgentService != "" {
		snap.AgentStatus = a.services.QueryState(ctx, a.opts.AgentService)
	}

	if a.opts.Observer != nil {
		a.opts.Observer.ObserveSnapshot(snap)
	}
	a.log.Debug("snapshot collected",
		logger.Int("services", len(states)),
		logger.Duration("elapsed", snap.CollectedAt.Sub(start.UTC())))
	return snap
}
