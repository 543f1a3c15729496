package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/MrSnakeDoc/pimon/internal/logger"
	"github.com/MrSnakeDoc/pimon/internal/version"
)

var errNATSClosed = errors.New("nats connection closed")

// natsDrainTimeout bounds how long Close waits for buffered events.
const natsDrainTimeout = 5 * time.Second

// NATS publishes events on a subject.
type NATS struct {
	nc      *nats.Conn
	subject string
	closed  chan struct{}
}

// NewNATS connects and keeps reconnecting forever in the background.
func NewNATS(url, subject string, log logger.Logger) (*NATS, error) {
	if subject == "" {
		return nil, fmt.Errorf("nats events backend: subject is required")
	}
	closed := make(chan struct{})
	nc, err := nats.Connect(url,
		nats.Name(version.UserAgent("agent")),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", logger.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", logger.String("url", nc.ConnectedUrl()))
		}),
		nats.DrainTimeout(natsDrainTimeout),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &NATS{nc: nc, subject: subject, closed: closed}, nil
}

func (n *NATS) Publish(_ context.Context, e Event) error {
	if n.nc == nil || n.nc.IsClosed() {
		return errNATSClosed
	}
	payload, err := e.Marshal()
	if err != nil {
		return err
	}
	if err := n.nc.Publish(n.subject, payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", e.Type, err)
	}
	return nil
}

// Close drains the connection, so events already handed to Publish are
// flushed to the server, and returns once the connection is closed.
func (n *NATS) Close() error {
	if n.nc == nil {
		return nil
	}
	if err := n.nc.Drain(); err != nil {
		n.nc.Close()
		if errors.Is(err, nats.ErrConnectionClosed) {
			return nil
		}
		return fmt.Errorf("nats drain: %w", err)
	}
	select {
	case <-n.closed:
		return nil
	case <-time.After(natsDrainTimeout + time.Second):
		n.nc.Close()
		return fmt.Errorf("nats drain: %w", nats.ErrDrainTimeout)
	}
}
