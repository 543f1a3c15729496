package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/pimon/internal/domain"
	"github.com/MrSnakeDoc/pimon/internal/executor"
	"github.com/MrSnakeDoc/pimon/internal/logger"
)

const systemctl = "systemctl"

// Controller queries and changes service run state through the executor.
type Controller struct {
	registry *Registry
	exec     executor.Executor
	logger   logger.Logger
}

// NewController creates a controller bound to a registry.
func NewController(registry *Registry, exec executor.Executor, log logger.Logger) *Controller {
	return &Controller{
		registry: registry,
		exec:     exec,
		logger:   log,
	}
}

const failurePrefix = "Failed to "

// Failed reports whether a Control result describes a failed command.
func Failed(result string) bool { return strings.HasPrefix(result, failurePrefix) }

// Registry returns the registry the controller validates against.
func (c *Controller) Registry() *Registry { return c.registry }

// QueryState probes a service. It never fails: a probe that cannot run
// reports unknown.
func (c *Controller) QueryState(ctx context.Context, identifier string) domain.ServiceState {
	res := c.exec.Run(ctx, executor.Command{
		Name: systemctl,
		Args: []string{"is-active", "--", identifier},
	})
	if res.Err != nil {
		c.logger.Debug("service probe failed",
			logger.String("service", identifier),
			logger.Error(res.Err))
		return domain.StateUnknown
	}
	// is-active exits non-zero for inactive and failed units; stdout still
	// carries the state.
	return domain.ParseServiceState(res.Stdout)
}

// Control applies action to a registered service and returns a
// human-readable result. Only validation problems are returned as errors;
// a command that fails is an ordinary outcome reported in the string.
func (c *Controller) Control(ctx context.Context, identifier string, action domain.ServiceAction) (string, error) {
	if _, err := domain.ParseServiceAction(string(action)); err != nil {
		return "", err
	}
	if _, ok := c.registry.Lookup(identifier); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownService, identifier)
	}

	// Once dispatched, the command runs to completion or to the executor
	// timeout, whatever happens to the caller.
	res := c.exec.Run(context.WithoutCancel(ctx), executor.Command{
		Name:       systemctl,
		Args:       []string{string(action), "--", identifier},
		Privileged: true,
	})
	if !res.Succeeded() {
		c.logger.Warn("service control failed",
			logger.String("service", identifier),
			logger.String("action", string(action)),
			logger.Int("exit_code", res.ExitCode),
			logger.String("detail", res.Detail))
		return fmt.Sprintf("%s%s %s", failurePrefix, action, identifier), nil
	}

	c.logger.Info("service control succeeded",
		logger.String("service", identifier),
		logger.String("action", string(action)))
	return fmt.Sprintf("%s %s", action.PastTense(), identifier), nil
}
