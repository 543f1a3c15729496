// Package events publishes device activity to an external bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeAlertsToggled   = "alerts.toggled"
	TypeServiceControl  = "service.control"
	TypePowerAction     = "power.action"
	TypeProvisionQueued = "provision.queued"
	TypeProvisionDone   = "provision.finished"
)

// Event is the envelope written to the bus.
type Event struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Time   time.Time      `json:"time"`
	Device string         `json:"device"`
	Data   map[string]any `json:"data,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType, device string, data map[string]any) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   eventType,
		Time:   time.Now().UTC(),
		Device: device,
		Data:   data,
	}
}

func (e Event) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", e.Type, err)
	}
	return b, nil
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
