package deps

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/pimon/internal/domain"
	"github.com/MrSnakeDoc/pimon/internal/httpserver/mw"
	"github.com/MrSnakeDoc/pimon/internal/logger"
)

// Device is the subset of *device.Device the handlers call.
type Device interface {
	Snapshot(ctx context.Context) domain.SystemSnapshot
	Services() []domain.ServiceDescriptor
	ToggleAlerts(ctx context.Context) bool
	AlertsEnabled() bool
	ControlService(ctx context.Context, identifier, action string) (string, error)
	Reboot(ctx context.Context)
	Shutdown(ctx context.Context)
	ScheduleReboot(ctx context.Context, minutes int) error
	Provision(ctx context.Context, action, fqdn, authID string) error
	ProvisioningInfo() domain.ProvisioningInfo
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	Device       Device
	Metrics      http.Handler       // served on /metrics (nil = route disabled)
	Ready        func() error       // readiness probe (nil = always ready)
	AllowedCIDRS []string           // networks allowed to call control routes
	TrustProxy   bool               // true if running behind a trusted reverse proxy
	RateLimit    mw.RateLimitConfig // per-IP limit on control routes
}
