package registry

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// State is the registration lifecycle phase of a process.
type State string

const (
	StateUnregistered  State = "unregistered"
	StateRegistering   State = "registering"
	StateRegistered    State = "registered"
	StateDeregistering State = "deregistering"
)

// Lifecycle owns the single registration a process holds: it registers the
// instance at startup, keeps it alive with a fixed-cadence heartbeat loop,
// and deregisters on shutdown. Registration and heartbeat failures are
// logged and swallowed; the process keeps serving either way.
type Lifecycle struct {
	client   *Client
	instance Instance
	interval time.Duration
	logger   hclog.Logger

	// tick produces the heartbeat channel plus a stop function. Tests
	// inject a manual channel for deterministic cadence.
	tick func(time.Duration) (<-chan time.Time, func())

	mu    sync.Mutex
	state State
	wg    sync.WaitGroup
}

// NewLifecycle creates a lifecycle for one instance identity.
func NewLifecycle(client *Client, inst Instance, interval time.Duration, logger hclog.Logger) *Lifecycle {
	return &Lifecycle{
		client:   client,
		instance: inst,
		interval: interval,
		logger:   logger,
		state:    StateUnregistered,
		tick: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// State reports the current lifecycle phase.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lifecycle) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Start registers the instance and launches the heartbeat loop. A failed
// registration is logged, not returned: the service runs in a best-effort
// registered state and the next heartbeat may still land.
func (l *Lifecycle) Start(ctx context.Context) {
	l.setState(StateRegistering)
	if err := l.client.Register(ctx, l.instance); err != nil {
		l.logger.Error("service registration failed", "error", err)
	} else {
		l.logger.Info("service registered",
			"service", l.instance.ServiceName, "ip", l.instance.IP, "port", l.instance.Port)
	}
	l.setState(StateRegistered)

	l.wg.Add(1)
	go l.heartbeatLoop(ctx)
}

// Stop waits for the heartbeat loop to exit and deregisters the instance.
// The context passed to Start must already be cancelled. Deregistration is
// best-effort: a failure is logged and the registry is left to expire the
// instance via missed heartbeats.
func (l *Lifecycle) Stop(ctx context.Context) {
	l.wg.Wait()

	l.setState(StateDeregistering)
	if err := l.client.Deregister(ctx, l.instance); err != nil {
		l.logger.Warn("service deregistration failed", "error", err)
	} else {
		l.logger.Info("service deregistered", "service", l.instance.ServiceName)
	}
	l.setState(StateUnregistered)
}

// heartbeatLoop beats on a fixed cadence until ctx is cancelled. Failures
// do not change the cadence; there is no backoff.
func (l *Lifecycle) heartbeatLoop(ctx context.Context) {
	defer l.wg.Done()

	ticks, stop := l.tick(l.interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			if err := l.client.Heartbeat(ctx, l.instance); err != nil {
				l.logger.Warn("heartbeat failed", "error", err)
				continue
			}
			l.logger.Debug("heartbeat sent", "service", l.instance.ServiceName)
		}
	}
}
