package client

import (
	"context"
	"math"
	"time"

	"github.com/MrSnakeDoc/pimon/internal/domain"
)

const (
	DefaultFastInterval = 500 * time.Millisecond
	DefaultSlowInterval = 2 * time.Second
	DefaultCPUThreshold = 5.0
)

// StatusSource is what the poller pulls from.
type StatusSource interface {
	Status(ctx context.Context) (domain.SystemSnapshot, error)
}

// Poller pulls snapshots repeatedly, speeding up while CPU usage moves.
type Poller struct {
	Source       StatusSource
	FastInterval time.Duration
	SlowInterval time.Duration
	CPUThreshold float64

	// OnSnapshot and OnError are called from the polling goroutine.
	OnSnapshot func(domain.SystemSnapshot)
	OnError    func(error)

	lastCPU float64 // starts at zero
}

func (p *Poller) setDefaults() {
	if p.FastInterval <= 0 {
		p.FastInterval = DefaultFastInterval
	}
	if p.SlowInterval <= 0 {
		p.SlowInterval = DefaultSlowInterval
	}
	if p.CPUThreshold <= 0 {
		p.CPUThreshold = DefaultCPUThreshold
	}
}

// NextDelay picks the delay after a snapshot reporting cpu. A jump of at
// least CPUThreshold points against the last remembered value selects the
// fast interval and becomes the new reference; smaller drifts do not move
// the reference.
func (p *Poller) NextDelay(cpu float64) time.Duration {
	p.setDefaults()
	if math.Abs(cpu-p.lastCPU) >= p.CPUThreshold {
		p.lastCPU = cpu
		return p.FastInterval
	}
	return p.SlowInterval
}

// Run polls until ctx is done. A failed poll is reported and retried after
// the slow interval.
func (p *Poller) Run(ctx context.Context) error {
	p.setDefaults()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		delay := p.SlowInterval
		snap, err := p.Source.Status(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if p.OnError != nil {
				p.OnError(err)
			}
		default:
			if p.OnSnapshot != nil {
				p.OnSnapshot(snap)
			}
			delay = p.NextDelay(snap.CPU)
		}
		timer.Reset(delay)
	}
}
