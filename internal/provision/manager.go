// Package provision installs or updates the third-party agent with an
// operator-supplied endpoint and credential.
package provision

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/pimon/internal/domain"
	"github.com/MrSnakeDoc/pimon/internal/executor"
	"github.com/MrSnakeDoc/pimon/internal/logger"
	"github.com/MrSnakeDoc/pimon/internal/state"
)

// ErrMissingField is returned when fqdn or auth id is empty.
var ErrMissingField = errors.New("fqdn and authid are required")

const (
	DefaultPackage  = "3cxsbc"
	DefaultSetupURL = "https://downloads-global.3cx.com/downloads/sbc/3cxsbcsetup.sh"
	DefaultPort     = 5001
	DefaultTimeout  = 15 * time.Minute
)

// DefaultInstaller downloads the setup script and runs it. User values only
// reach it through the environment, never through the script text.
var DefaultInstaller = []string{
	"bash", "-c",
	`bash -c "$(curl -sSL "$PIMON_SETUP_URL")" -- --provisioning-url "$PIMON_PROVISIONING_URL"`,
}

// Options configures the installer invocation.
type Options struct {
	Package   string        // package removed before installing
	SetupURL  string        // exported as PIMON_SETUP_URL
	Installer []string      // argv of the installer
	Port      int           // provisioning endpoint port
	Timeout   time.Duration // bound for a single installer run
	OnFinish  func(domain.ProvisioningOutcome)
}

func (o *Options) setDefaults() {
	if o.Package == "" {
		o.Package = DefaultPackage
	}
	if o.SetupURL == "" {
		o.SetupURL = DefaultSetupURL
	}
	if len(o.Installer) == 0 {
		o.Installer = DefaultInstaller
	}
	if o.Port <= 0 {
		o.Port = DefaultPort
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
}

// Manager owns the provisioning flow. Installer runs are serialized so two
// installs never overlap on the host, and a run whose parameters were
// replaced before it started is skipped, so the last install always
// targets the stored state.
type Manager struct {
	store  *state.Store
	exec   executor.Executor
	logger logger.Logger
	opts   Options

	genMu sync.Mutex
	gen   uint64 // bumped with every state write, guarded by genMu

	runMu sync.Mutex
	wg    sync.WaitGroup
}

// NewManager creates a provisioning manager.
func NewManager(store *state.Store, exec executor.Executor, log logger.Logger, opts Options) *Manager {
	opts.setDefaults()
	return &Manager{
		store:  store,
		exec:   exec,
		logger: log,
		opts:   opts,
	}
}

type request struct {
	action domain.ProvisionAction
	state  domain.ProvisioningState
	gen    uint64
}

// Provision records the parameters and runs the installer synchronously.
func (m *Manager) Provision(ctx context.Context, action domain.ProvisionAction, fqdn, authID string) (domain.ProvisioningOutcome, error) {
	req, err := m.prepare(action, fqdn, authID)
	if err != nil {
		return domain.ProvisioningOutcome{}, err
	}
	return m.run(ctx, req), nil
}

// Dispatch records the parameters and runs the installer in the background.
// The run outlives ctx's cancellation but not the executor timeout.
func (m *Manager) Dispatch(ctx context.Context, action domain.ProvisionAction, fqdn, authID string) error {
	req, err := m.prepare(action, fqdn, authID)
	if err != nil {
		return err
	}

	runCtx := context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(runCtx, req)
	}()
	return nil
}

// Wait blocks until dispatched runs finish or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// prepare validates input and overwrites the provisioning state. The state
// is written before the installer runs, whatever the installer does later.
func (m *Manager) prepare(action domain.ProvisionAction, fqdn, authID string) (request, error) {
	action, err := domain.ParseProvisionAction(string(action))
	if err != nil {
		return request{}, err
	}
	// Blank values are rejected but never rewritten: the state holds exactly
	// what the operator sent.
	if strings.TrimSpace(fqdn) == "" || strings.TrimSpace(authID) == "" {
		return request{}, ErrMissingField
	}

	st := domain.ProvisioningState{FQDN: fqdn, AuthID: authID}

	m.genMu.Lock()
	m.gen++
	gen := m.gen
	m.store.SetProvisioning(st)
	m.genMu.Unlock()

	return request{action: action, state: st, gen: gen}, nil
}

func (m *Manager) current(gen uint64) bool {
	m.genMu.Lock()
	defer m.genMu.Unlock()
	return m.gen == gen
}

func (m *Manager) run(ctx context.Context, req request) domain.ProvisioningOutcome {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	outcome := domain.ProvisioningOutcome{
		Action:    req.action,
		FQDN:      req.state.FQDN,
		StartedAt: time.Now(),
	}

	if !m.current(req.gen) {
		outcome.FinishedAt = outcome.StartedAt
		outcome.Superseded = true
		m.logger.Info("provisioning superseded by a newer request",
			logger.String("action", string(req.action)),
			logger.String("fqdn", req.state.FQDN))
		return outcome
	}

	m.logger.Info("provisioning started",
		logger.String("action", string(req.action)),
		logger.String("fqdn", req.state.FQDN))

	// A missing previous install is not an error.
	removal := m.exec.Run(ctx, executor.Command{
		Name:       "apt-get",
		Args:       []string{"remove", "-y", m.opts.Package},
		Privileged: true,
	})
	if !removal.Succeeded() {
		m.logger.Debug("previous install not removed",
			logger.String("package", m.opts.Package),
			logger.String("detail", removal.Detail))
	}

	provisioningURL := ProvisioningURL(req.state.FQDN, req.state.AuthID, m.opts.Port)
	res := m.exec.Run(ctx, executor.Command{
		Name: m.opts.Installer[0],
		Args: m.opts.Installer[1:],
		Env: []string{
			"PIMON_PROVISION_ACTION=" + string(req.action),
			"PIMON_SETUP_URL=" + m.opts.SetupURL,
			"PIMON_PROVISIONING_URL=" + provisioningURL,
			"PIMON_FQDN=" + req.state.FQDN,
			"PIMON_AUTH_ID=" + req.state.AuthID,
		},
		Privileged: true,
		Timeout:    m.opts.Timeout,
	})

	outcome.FinishedAt = time.Now()
	outcome.Success = res.Succeeded()
	if !res.Succeeded() {
		outcome.Detail = res.Detail
		m.logger.Error("provisioning failed",
			logger.String("action", string(req.action)),
			logger.String("fqdn", req.state.FQDN),
			logger.Int("exit_code", res.ExitCode),
			logger.String("detail", res.Detail))
	} else {
		m.logger.Info("provisioning finished",
			logger.String("action", string(req.action)),
			logger.String("fqdn", req.state.FQDN),
			logger.Duration("elapsed", outcome.FinishedAt.Sub(outcome.StartedAt)))
	}

	m.store.RecordOutcome(outcome)
	if m.opts.OnFinish != nil {
		m.opts.OnFinish(outcome)
	}
	return outcome
}

// ProvisioningURL builds https://<fqdn>:<port>?auth=<authID>.
func ProvisioningURL(fqdn, authID string, port int) string {
	u := url.URL{
		Scheme:   "https",
		Host:     net.JoinHostPort(fqdn, strconv.Itoa(port)),
		RawQuery: url.Values{"auth": []string{authID}}.Encode(),
	}
	return u.String()
}

// String describes the manager configuration for startup logs.
func (m *Manager) String() string {
	return fmt.Sprintf("package=%s port=%d timeout=%s", m.opts.Package, m.opts.Port, m.opts.Timeout)
}
