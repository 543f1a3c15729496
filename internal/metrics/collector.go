// Package metrics samples host resource usage for status snapshots.
package metrics

import (
	"context"
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/MrSnakeDoc/pimon/internal/domain"
	"github.com/MrSnakeDoc/pimon/internal/executor"
	"github.com/MrSnakeDoc/pimon/internal/logger"
)

const (
	DefaultSampleWindow = time.Second
	DefaultDiskPath     = "/"
)

// Reading is one pass over every probe. Percent fields are in [0,100].
type Reading struct {
	Hostname    string
	IP          string
	CPU         float64
	RAM         float64
	Disk        float64
	Temperature string
}

// Options configures a Collector.
type Options struct {
	SampleWindow time.Duration
	DiskPath     string
}

// Collector probes the host. Each probe is a swappable function so tests can
// run without touching the real machine.
type Collector struct {
	log          logger.Logger
	exec         executor.Executor
	sampleWindow time.Duration
	diskPath     string

	cpuPercent   func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	memory       func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage    func(ctx context.Context, path string) (*disk.UsageStat, error)
	interfaces   func(ctx context.Context) (psnet.InterfaceStatList, error)
	sensors      func(ctx context.Context) ([]host.TemperatureStat, error)
	hostname     func() (string, error)
	fqdnResolver func(ctx context.Context, short string) (string, error)
}

// NewCollector wires the collector to gopsutil and the executor.
func NewCollector(exec executor.Executor, log logger.Logger, opts Options) *Collector {
	if opts.SampleWindow <= 0 {
		opts.SampleWindow = DefaultSampleWindow
	}
	if opts.DiskPath == "" {
		opts.DiskPath = DefaultDiskPath
	}
	return &Collector{
		log:          log,
		exec:         exec,
		sampleWindow: opts.SampleWindow,
		diskPath:     opts.DiskPath,
		cpuPercent:   cpu.PercentWithContext,
		memory:       mem.VirtualMemoryWithContext,
		diskUsage:    disk.UsageWithContext,
		interfaces:   psnet.InterfacesWithContext,
		sensors:      host.SensorsTemperaturesWithContext,
		hostname:     os.Hostname,
		fqdnResolver: resolveFQDN,
	}
}

// Collect runs every probe. It never fails: a broken probe yields its
// sentinel value and a log line.
func (c *Collector) Collect(ctx context.Context) Reading {
	return Reading{
		Hostname:    c.Hostname(ctx),
		IP:          c.IP(ctx),
		CPU:         c.CPU(ctx),
		RAM:         c.RAM(ctx),
		Disk:        c.Disk(ctx),
		Temperature: c.Temperature(ctx),
	}
}

// CPU blocks for the sampling window and returns aggregate utilization.
func (c *Collector) CPU(ctx context.Context) float64 {
	values, err := c.cpuPercent(ctx, c.sampleWindow, false)
	if err != nil || len(values) == 0 {
		c.log.Warn("cpu probe failed", logger.Error(err))
		return 0
	}
	return percent(values[0])
}

func (c *Collector) RAM(ctx context.Context) float64 {
	vm, err := c.memory(ctx)
	if err != nil || vm == nil {
		c.log.Warn("memory probe failed", logger.Error(err))
		return 0
	}
	return percent(vm.UsedPercent)
}

func (c *Collector) Disk(ctx context.Context) float64 {
	usage, err := c.diskUsage(ctx, c.diskPath)
	if err != nil || usage == nil {
		c.log.Warn("disk probe failed",
			logger.String("path", c.diskPath),
			logger.Error(err))
		return 0
	}
	return percent(usage.UsedPercent)
}

// Hostname prefers the fully qualified name and falls back to the short one.
func (c *Collector) Hostname(ctx context.Context) string {
	short, err := c.hostname()
	if err != nil || short == "" {
		c.log.Warn("hostname probe failed", logger.Error(err))
		return domain.Unknown
	}
	fqdn, err := c.fqdnResolver(ctx, short)
	if err != nil || fqdn == "" {
		return short
	}
	return fqdn
}

// IP returns the first IPv4 address of an interface that is up and is
// neither loopback nor a container bridge.
func (c *Collector) IP(ctx context.Context) string {
	ifaces, err := c.interfaces(ctx)
	if err != nil {
		c.log.Warn("interface probe failed", logger.Error(err))
		return domain.Unknown
	}
	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") || isContainerInterface(iface.Name) {
			continue
		}
		for _, addr := range iface.Addrs {
			ip, _, err := net.ParseCIDR(addr.Addr)
			if err != nil {
				ip = net.ParseIP(addr.Addr)
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if v4 := ip.To4(); v4 != nil {
				return v4.String()
			}
		}
	}
	return domain.Unknown
}

// firmwareProbeTimeout keeps a hung vcgencmd from stalling /status.
const firmwareProbeTimeout = 2 * time.Second

// Temperature asks the firmware first, then the kernel sensors.
func (c *Collector) Temperature(ctx context.Context) string {
	res := c.exec.Run(ctx, executor.Command{
		Name:    "vcgencmd",
		Args:    []string{"measure_temp"},
		Timeout: firmwareProbeTimeout,
	})
	if res.Succeeded() {
		if t, ok := parseMeasureTemp(res.Stdout); ok {
			return t
		}
	}

	temps, err := c.sensors(ctx)
	if err != nil && len(temps) == 0 {
		c.log.Debug("temperature sensors unavailable", logger.Error(err))
		return domain.Unavailable
	}
	for _, t := range temps {
		if t.Temperature > 0 {
			return fmt.Sprintf("%.1f'C", t.Temperature)
		}
	}
	return domain.Unavailable
}

// parseMeasureTemp turns "temp=48.3'C" into "48.3'C".
func parseMeasureTemp(out string) (string, bool) {
	out = strings.TrimSpace(out)
	value, ok := strings.CutPrefix(out, "temp=")
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func percent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return math.Round(v*10) / 10
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}

func isContainerInterface(name string) bool {
	for _, prefix := range []string{"docker", "br-", "veth", "virbr", "cni", "flannel"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// resolveFQDN resolves short and reverse-maps the first address, keeping the
// answer only if it is dotted.
func resolveFQDN(ctx context.Context, short string) (string, error) {
	if strings.Contains(short, ".") {
		return short, nil
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, short)
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		names, err := net.DefaultResolver.LookupAddr(ctx, addr)
		if err != nil {
			continue
		}
		for _, name := range names {
			name = strings.TrimSuffix(name, ".")
			if strings.Contains(name, ".") && !strings.HasPrefix(name, "localhost") {
				return name, nil
			}
		}
	}
	return "", fmt.Errorf("no fqdn for %s", short)
}
