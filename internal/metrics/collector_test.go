package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/pimon/internal/domain"
	"github.com/MrSnakeDoc/pimon/internal/executor"
	"github.com/MrSnakeDoc/pimon/internal/executor/executortest"
	"github.com/MrSnakeDoc/pimon/internal/logger"
)

var errProbe = errors.New("probe failed")

func newTestCollector(fake *executortest.Fake) *Collector {
	c := NewCollector(fake, logger.NewNop(), Options{SampleWindow: 10 * time.Millisecond})
	c.cpuPercent = func(context.Context, time.Duration, bool) ([]float64, error) { return []float64{12.34}, nil }
	c.memory = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{UsedPercent: 45.67}, nil
	}
	c.diskUsage = func(context.Context, string) (*disk.UsageStat, error) {
		return &disk.UsageStat{UsedPercent: 70.01}, nil
	}
	c.interfaces = func(context.Context) (psnet.InterfaceStatList, error) {
		return psnet.InterfaceStatList{
			{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
			{Name: "docker0", Flags: []string{"up"}, Addrs: psnet.InterfaceAddrList{{Addr: "172.17.0.1/16"}}},
			{Name: "eth0", Flags: []string{"up"}, Addrs: psnet.InterfaceAddrList{{Addr: "fe80::1/64"}, {Addr: "192.168.1.20/24"}}},
		}, nil
	}
	c.sensors = func(context.Context) ([]host.TemperatureStat, error) { return nil, errProbe }
	c.hostname = func() (string, error) { return "pi", nil }
	c.fqdnResolver = func(context.Context, string) (string, error) { return "pi.lan.example", nil }
	return c
}

func TestCollectHealthyHost(t *testing.T) {
	fake := &executortest.Fake{Handler: executortest.Match(map[string]executor.Result{
		"vcgencmd measure_temp": executortest.Succeed("temp=48.3'C\n"),
	})}
	c := newTestCollector(fake)

	r := c.Collect(context.Background())

	assert.Equal(t, Reading{
		Hostname:    "pi.lan.example",
		IP:          "192.168.1.20",
		CPU:         12.3,
		RAM:         45.7,
		Disk:        70.0,
		Temperature: "48.3'C",
	}, r)
}

func TestCollectDegradesPerProbe(t *testing.T) {
	fake := &executortest.Fake{Handler: func(executor.Command) executor.Result {
		return executortest.Broken(executortest.ErrNotFound)
	}}
	c := newTestCollector(fake)
	c.cpuPercent = func(context.Context, time.Duration, bool) ([]float64, error) { return nil, errProbe }
	c.memory = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, errProbe }
	c.interfaces = func(context.Context) (psnet.InterfaceStatList, error) { return nil, errProbe }
	c.hostname = func() (string, error) { return "", errProbe }

	r := c.Collect(context.Background())

	assert.Equal(t, domain.Unknown, r.Hostname)
	assert.Equal(t, domain.Unknown, r.IP)
	assert.Zero(t, r.CPU)
	assert.Zero(t, r.RAM)
	assert.Equal(t, 70.0, r.Disk, "disk probe is unaffected by the others")
	assert.Equal(t, domain.Unavailable, r.Temperature)
}

func TestHostnameFallsBackToShortName(t *testing.T) {
	c := newTestCollector(&executortest.Fake{})
	c.fqdnResolver = func(context.Context, string) (string, error) { return "", errProbe }

	assert.Equal(t, "pi", c.Hostname(context.Background()))
}

func TestTemperatureFallsBackToSensors(t *testing.T) {
	fake := &executortest.Fake{Handler: func(executor.Command) executor.Result {
		return executortest.Broken(executortest.ErrNotFound)
	}}
	c := newTestCollector(fake)
	c.sensors = func(context.Context) ([]host.TemperatureStat, error) {
		return []host.TemperatureStat{{SensorKey: "cpu_thermal", Temperature: 51.26}}, nil
	}

	assert.Equal(t, "51.3'C", c.Temperature(context.Background()))
}

func TestTemperatureFirmwareProbeIsBoundedTightly(t *testing.T) {
	fake := &executortest.Fake{Handler: executortest.Match(map[string]executor.Result{
		"vcgencmd": executortest.Broken(context.DeadlineExceeded),
	})}
	c := newTestCollector(fake)
	c.sensors = func(context.Context) ([]host.TemperatureStat, error) {
		return []host.TemperatureStat{{SensorKey: "cpu_thermal", Temperature: 47}}, nil
	}

	assert.Equal(t, "47.0'C", c.Temperature(context.Background()))

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, firmwareProbeTimeout, calls[0].Timeout)
	assert.Less(t, calls[0].Timeout, executor.DefaultTimeout)
}

func TestTemperatureIgnoresGarbledFirmwareOutput(t *testing.T) {
	fake := &executortest.Fake{Handler: executortest.Match(map[string]executor.Result{
		"vcgencmd": executortest.Succeed("VCHI initialization failed"),
	})}
	c := newTestCollector(fake)

	assert.Equal(t, domain.Unavailable, c.Temperature(context.Background()))
}

func TestIPWithoutUsableInterface(t *testing.T) {
	c := newTestCollector(&executortest.Fake{})
	c.interfaces = func(context.Context) (psnet.InterfaceStatList, error) {
		return psnet.InterfaceStatList{
			{Name: "eth0", Flags: []string{"broadcast"}, Addrs: psnet.InterfaceAddrList{{Addr: "10.0.0.2/24"}}},
			{Name: "wlan0", Flags: []string{"up"}, Addrs: psnet.InterfaceAddrList{{Addr: "fe80::2/64"}}},
		}, nil
	}

	assert.Equal(t, domain.Unknown, c.IP(context.Background()))
}

func TestPercentClampsAndRounds(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: -3, want: 0},
		{in: 0, want: 0},
		{in: 33.333, want: 33.3},
		{in: 99.96, want: 100},
		{in: 140, want: 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, percent(tt.in), "percent(%v)", tt.in)
	}
}

func TestParseMeasureTemp(t *testing.T) {
	got, ok := parseMeasureTemp("temp=48.3'C\n")
	assert.True(t, ok)
	assert.Equal(t, "48.3'C", got)

	_, ok = parseMeasureTemp("error")
	assert.False(t, ok)
}
