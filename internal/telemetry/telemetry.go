// Package telemetry exposes device gauges and action counters to Prometheus.
package telemetry

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrSnakeDoc/pimon/internal/domain"
	"github.com/MrSnakeDoc/pimon/internal/version"
)

const namespace = "pimon"

// Metrics owns a private registry so tests and multiple instances never
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	cpu, ram, disk  prometheus.Gauge
	alerts          prometheus.Gauge
	serviceUp       *prometheus.GaugeVec
	powerActions    *prometheus.CounterVec
	serviceControls *prometheus.CounterVec
	provisionRuns   *prometheus.CounterVec
	execDuration    *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cpu: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cpu_percent",
			Help: "CPU utilization observed by the last status snapshot.",
		}),
		ram: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ram_percent",
			Help: "Memory utilization observed by the last status snapshot.",
		}),
		disk: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "disk_percent",
			Help: "Root filesystem utilization observed by the last status snapshot.",
		}),
		alerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "alerts_enabled",
			Help: "1 when operator alerts are enabled.",
		}),
		serviceUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "service_active",
			Help: "1 when the service was active in the last status snapshot.",
		}, []string{"service"}),
		powerActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "power_actions_total",
			Help: "Power actions dispatched, by action and result.",
		}, []string{"action", "result"}),
		serviceControls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "service_controls_total",
			Help: "Service lifecycle actions dispatched, by action and result.",
		}, []string{"action", "result"}),
		provisionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "provision_runs_total",
			Help: "Provisioning runs, by action and result.",
		}, []string{"action", "result"}),
		execDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "executor_duration_seconds",
			Help:    "Duration of external commands.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300, 900},
		}, []string{"command"}),
	}

	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "build_info",
		Help:        "Build metadata.",
		ConstLabels: prometheus.Labels{"version": version.Version, "commit": version.Commit},
	})
	buildInfo.Set(1)

	m.registry.MustRegister(
		m.cpu, m.ram, m.disk, m.alerts, m.serviceUp,
		m.powerActions, m.serviceControls, m.provisionRuns, m.execDuration,
		buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSnapshot mirrors a status snapshot into the gauges.
func (m *Metrics) ObserveSnapshot(s domain.SystemSnapshot) {
	m.cpu.Set(s.CPU)
	m.ram.Set(s.RAM)
	m.disk.Set(s.Disk)
	m.alerts.Set(boolValue(s.AlertsEnabled))
	for label, st := range s.Services {
		m.serviceUp.WithLabelValues(label).Set(boolValue(st == domain.StateActive))
	}
}

// SetAlerts updates the alerts gauge outside of a snapshot.
func (m *Metrics) SetAlerts(enabled bool) {
	m.alerts.Set(boolValue(enabled))
}

// ObserveCommand implements executor.Observer. Only the binary name is used
// as a label to keep cardinality bounded.
func (m *Metrics) ObserveCommand(name string, elapsed time.Duration, _ bool) {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	m.execDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// RecordPowerAction implements power.Recorder.
func (m *Metrics) RecordPowerAction(action domain.PowerAction, success bool) {
	m.powerActions.WithLabelValues(string(action), result(success)).Inc()
}

func (m *Metrics) RecordServiceControl(action domain.ServiceAction, success bool) {
	m.serviceControls.WithLabelValues(string(action), result(success)).Inc()
}

func (m *Metrics) RecordProvision(action domain.ProvisionAction, success bool) {
	m.provisionRuns.WithLabelValues(string(action), result(success)).Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ServiceControls exposes the service control counter for assertions.
func (m *Metrics) ServiceControls() *prometheus.CounterVec { return m.serviceControls }

// ProvisionRuns exposes the provisioning counter for assertions.
func (m *Metrics) ProvisionRuns() *prometheus.CounterVec { return m.provisionRuns }
