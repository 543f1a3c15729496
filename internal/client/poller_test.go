package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/pimon/internal/domain"
)

func TestNextDelay(t *testing.T) {
	p := &Poller{}

	steps := []struct {
		cpu  float64
		want time.Duration
	}{
		{cpu: 2, want: DefaultSlowInterval},   // |2-0| < 5, reference stays 0
		{cpu: 4.9, want: DefaultSlowInterval}, // still under the threshold against 0
		{cpu: 5, want: DefaultFastInterval},   // reference becomes 5
		{cpu: 9, want: DefaultSlowInterval},
		{cpu: 9.9, want: DefaultSlowInterval}, // drift does not move the reference
		{cpu: 10, want: DefaultFastInterval},  // |10-5| >= 5
		{cpu: 3, want: DefaultFastInterval},   // drops count too
	}
	for i, s := range steps {
		assert.Equal(t, s.want, p.NextDelay(s.cpu), "step %d cpu=%v", i, s.cpu)
	}
}

type scriptedSource struct {
	mu    sync.Mutex
	cpus  []float64
	calls int
	fail  bool
}

func (s *scriptedSource) Status(context.Context) (domain.SystemSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return domain.SystemSnapshot{}, errors.New("connection refused")
	}
	cpu := s.cpus[len(s.cpus)-1]
	if s.calls <= len(s.cpus) {
		cpu = s.cpus[s.calls-1]
	}
	return domain.SystemSnapshot{CPU: cpu}, nil
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &scriptedSource{cpus: []float64{10, 20, 30, 40, 50}}
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var seen []float64
	p := &Poller{
		Source:       src,
		FastInterval: time.Millisecond,
		SlowInterval: time.Hour,
		OnSnapshot: func(s domain.SystemSnapshot) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, s.CPU)
			if len(seen) == 5 {
				cancel()
			}
		},
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop")
	}
	mu.Lock()
	defer mu.Unlock()
	// Every step moves CPU by 10 points, so the hour-long slow interval is
	// never used.
	require.Len(t, seen, 5)
	assert.Equal(t, []float64{10, 20, 30, 40, 50}, seen)
}

func TestRunReportsErrors(t *testing.T) {
	src := &scriptedSource{fail: true}
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	p := &Poller{
		Source:       src,
		SlowInterval: time.Hour,
		OnError: func(err error) {
			errs <- err
			cancel()
		},
	}

	go func() { _ = p.Run(ctx) }()

	select {
	case err := <-errs:
		assert.EqualError(t, err, "connection refused")
	case <-time.After(5 * time.Second):
		t.Fatal("error not reported")
	}
}
