// Package power issues reboot and shutdown requests to the host. Scheduling
// is delegated to shutdown(8); nothing here keeps a timer.
package power

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/MrSnakeDoc/pimon/internal/domain"
	"github.com/MrSnakeDoc/pimon/internal/executor"
	"github.com/MrSnakeDoc/pimon/internal/logger"
)

// ErrNegativeDelay rejects a scheduled reboot with minutes < 0.
var ErrNegativeDelay = errors.New("reboot delay must be a non-negative number of minutes")

// Recorder is notified of every dispatched power action.
type Recorder interface {
	RecordPowerAction(action domain.PowerAction, success bool)
}

// Controller dispatches power actions. Failures are logged and recorded but
// not returned: the caller gets an acknowledgment either way.
type Controller struct {
	exec     executor.Executor
	logger   logger.Logger
	recorder Recorder
}

// NewController creates a power controller. recorder may be nil.
func NewController(exec executor.Executor, log logger.Logger, recorder Recorder) *Controller {
	return &Controller{
		exec:     exec,
		logger:   log,
		recorder: recorder,
	}
}

// RebootNow asks the host to reboot immediately.
func (c *Controller) RebootNow(ctx context.Context) {
	c.dispatch(ctx, domain.PowerReboot, executor.Command{Name: "reboot", Privileged: true})
}

// ShutdownNow asks the host to power off immediately.
func (c *Controller) ShutdownNow(ctx context.Context) {
	c.dispatch(ctx, domain.PowerShutdown, executor.Command{
		Name:       "shutdown",
		Args:       []string{"-h", "now"},
		Privileged: true,
	})
}

// ScheduleReboot hands a delayed reboot to the host scheduler. Negative
// delays are rejected before anything runs.
func (c *Controller) ScheduleReboot(ctx context.Context, minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeDelay, minutes)
	}
	c.dispatch(ctx, domain.PowerScheduleReboot, executor.Command{
		Name:       "shutdown",
		Args:       []string{"-r", "+" + strconv.Itoa(minutes)},
		Privileged: true,
	})
	return nil
}

func (c *Controller) dispatch(ctx context.Context, action domain.PowerAction, cmd executor.Command) {
	c.logger.Info("dispatching power action",
		logger.String("action", string(action)),
		logger.String("command", cmd.String()))

	// The caller going away must not kill a half-issued power command.
	res := c.exec.Run(context.WithoutCancel(ctx), cmd)
	if c.recorder != nil {
		c.recorder.RecordPowerAction(action, res.Succeeded())
	}
	if !res.Succeeded() {
		c.logger.Error("power action failed",
			logger.String("action", string(action)),
			logger.Int("exit_code", res.ExitCode),
			logger.String("detail", res.Detail))
	}
}
