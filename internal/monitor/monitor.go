// Package monitor runs the poll, classify and remediate loop against one
// router.
package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tonyperkins/homelab/internal/addr"
	"github.com/tonyperkins/homelab/internal/gateway"
	"github.com/tonyperkins/homelab/internal/remediate"
)

// Options controls pacing. Zero values take the defaults noted below.
type Options struct {
	CheckInterval    time.Duration // 300s
	ErrorCooldown    time.Duration // 60s, replaces CheckInterval after a crashed cycle
	ReauthPause      time.Duration // between Close and Authenticate; zero means none
	FailureThreshold int           // 3

	Policy remediate.Policy

	// Sleep is used for every wait, including the remediation policy's
	// unless it sets its own. Nil means remediate.Sleep.
	Sleep remediate.Sleeper
}

func (o Options) withDefaults() Options {
	if o.CheckInterval <= 0 {
		o.CheckInterval = 300 * time.Second
	}
	if o.ErrorCooldown <= 0 {
		o.ErrorCooldown = 60 * time.Second
	}
	if o.ReauthPause < 0 {
		o.ReauthPause = 0
	}
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = 3
	}
	if o.Sleep == nil {
		o.Sleep = remediate.Sleep
	}
	if o.Policy.Sleep == nil {
		o.Policy.Sleep = o.Sleep
	}
	return o
}

// Snapshot is a point-in-time copy of the monitor's state.
type Snapshot struct {
	State               State
	LastKnownIP         string
	ConsecutiveFailures int
}

// Monitor owns the client for the lifetime of Run.
type Monitor struct {
	client gateway.Client
	opts   Options
	log    *logrus.Entry

	mu       sync.Mutex
	state    State
	lastIP   string
	failures int
}

// New creates a monitor; it performs no I/O.
func New(client gateway.Client, opts Options, log *logrus.Entry) *Monitor {
	return &Monitor{
		client: client,
		opts:   opts.withDefaults(),
		log:    log,
	}
}

// Snapshot returns the current state. Safe to call from any goroutine.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{State: m.state, LastKnownIP: m.lastIP, ConsecutiveFailures: m.failures}
}

// Run logs in and then polls until ctx is cancelled. Only the initial login
// can make it fail; a cancelled context is a clean stop and returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.client.Close()

	m.log.Info("Starting WAN IP monitor")
	m.log.Infof("Check interval: %s", m.opts.CheckInterval)
	m.log.Infof("Max reconnect attempts: %d", m.opts.Policy.MaxAttempts)

	if err := m.client.Authenticate(ctx); err != nil {
		m.log.WithError(err).Error("Failed initial login")
		return fmt.Errorf("monitor: initial login: %w", err)
	}
	m.transition(StateAuthenticated)

	for {
		wait := m.opts.CheckInterval
		if err := m.safeCycle(ctx); err != nil {
			m.log.WithError(err).Errorf("Monitor cycle failed, cooling down for %s", m.opts.ErrorCooldown)
			wait = m.opts.ErrorCooldown
		}
		if ctx.Err() != nil {
			break
		}
		m.log.Debugf("Next check in %s", wait)
		if err := m.opts.Sleep(ctx, wait); err != nil {
			break
		}
	}
	m.log.Info("Monitor stopped")
	return nil
}

// safeCycle runs one cycle and turns a panic into an error.
func (m *Monitor) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.WithField("stack", string(debug.Stack())).Errorf("Unexpected panic: %v", r)
			err = fmt.Errorf("monitor: cycle panic: %v", r)
		}
	}()
	m.cycle(ctx)
	return nil
}

func (m *Monitor) cycle(ctx context.Context) {
	m.transition(StateObserving)

	ip, err := m.client.ReadWANAddress(ctx)
	switch {
	case ctx.Err() != nil:
		return
	case err != nil:
		n := m.fail()
		m.log.WithError(err).Warnf("Could not retrieve WAN IP (%d consecutive failures)", n)
	default:
		m.observe(ctx, ip)
	}

	if m.Snapshot().ConsecutiveFailures >= m.opts.FailureThreshold {
		m.reauthenticate(ctx)
	}
}

func (m *Monitor) observe(ctx context.Context, ip string) {
	switch addr.Classify(ip) {
	case addr.Public:
		m.mu.Lock()
		changed := ip != m.lastIP
		m.lastIP = ip
		m.failures = 0
		m.mu.Unlock()
		if changed {
			m.log.Infof("Current WAN IP: %s (public)", ip)
		} else {
			m.log.Debugf("WAN IP unchanged: %s", ip)
		}

	case addr.Private:
		m.log.Warnf("Detected private IP: %s - initiating reconnection", ip)
		m.transition(StateRemediating)
		out := remediate.Run(ctx, m.client, m.opts.Policy, m.log.WithField("phase", "remediate"))
		switch {
		case out.Succeeded:
			m.mu.Lock()
			m.lastIP = out.FinalAddress
			m.failures = 0
			m.mu.Unlock()
			m.log.Infof("Successfully obtained public IP: %s", out.FinalAddress)
		case out.Interrupted != nil:
			m.log.Info("Reconnection interrupted")
		default:
			n := m.fail()
			m.log.WithError(out.Err()).Errorf("Failed to obtain public IP (%d consecutive failures)", n)
		}
		m.transition(StateObserving)

	default:
		n := m.fail()
		m.log.Warnf("Unparseable WAN IP %q (%d consecutive failures)", ip, n)
	}
}

// reauthenticate rebuilds the session after repeated failures. A failed
// login is logged and polling continues.
func (m *Monitor) reauthenticate(ctx context.Context) {
	m.transition(StateDegraded)
	m.log.Warn("Too many consecutive failures, re-authenticating")

	if err := m.client.Close(); err != nil {
		m.log.WithError(err).Debug("Close before re-authentication failed")
	}
	if err := m.opts.Sleep(ctx, m.opts.ReauthPause); err != nil {
		return
	}
	if err := m.client.Authenticate(ctx); err != nil {
		m.log.WithError(err).Error("Re-authentication failed")
		return
	}
	m.mu.Lock()
	m.failures = 0
	m.mu.Unlock()
	m.transition(StateAuthenticated)
	m.log.Info("Re-authenticated")
}

func (m *Monitor) fail() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
	return m.failures
}

func (m *Monitor) transition(to State) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.mu.Unlock()
	if from == to {
		return
	}
	if !ValidTransition(from, to) {
		m.log.Warnf("Unexpected state transition %s -> %s", from, to)
		return
	}
	m.log.WithFields(logrus.Fields{"from": from, "to": to}).Debug("State transition")
}
