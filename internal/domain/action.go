package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAction is returned when a request names an action outside the
// permitted vocabulary.
var ErrInvalidAction = errors.New("invalid action")

// ServiceAction is a lifecycle verb accepted by the service controller.
type ServiceAction string

const (
	ActionStart   ServiceAction = "start"
	ActionStop    ServiceAction = "stop"
	ActionRestart ServiceAction = "restart"
)

// ParseServiceAction validates raw against the allowed service actions.
func ParseServiceAction(raw string) (ServiceAction, error) {
	switch a := ServiceAction(strings.ToLower(strings.TrimSpace(raw))); a {
	case ActionStart, ActionStop, ActionRestart:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q (want start, stop or restart)", ErrInvalidAction, raw)
	}
}

// PastTense returns the capitalized verb used in success messages.
func (a ServiceAction) PastTense() string {
	switch a {
	case ActionStart:
		return "Started"
	case ActionStop:
		return "Stopped"
	case ActionRestart:
		return "Restarted"
	default:
		return string(a)
	}
}

// ProvisionAction selects between a first install and an update of the agent.
type ProvisionAction string

const (
	ProvisionInstall ProvisionAction = "install"
	ProvisionUpdate  ProvisionAction = "update"
)

// ParseProvisionAction validates raw against the allowed provisioning actions.
func ParseProvisionAction(raw string) (ProvisionAction, error) {
	switch a := ProvisionAction(strings.ToLower(strings.TrimSpace(raw))); a {
	case ProvisionInstall, ProvisionUpdate:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q (want install or update)", ErrInvalidAction, raw)
	}
}

// PowerAction labels power requests in logs, metrics and events.
type PowerAction string

const (
	PowerReboot         PowerAction = "reboot"
	PowerShutdown       PowerAction = "shutdown"
	PowerScheduleReboot PowerAction = "schedule_reboot"
)
