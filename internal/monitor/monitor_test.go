package monitor

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonyperkins/homelab/internal/gateway"
	"github.com/tonyperkins/homelab/internal/gateway/gatewaytest"
	"github.com/tonyperkins/homelab/internal/remediate"
)

const (
	checkInterval = 300 * time.Second
	cooldown      = 61 * time.Second
	reauthPause   = 7 * time.Second
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// clock is a Sleeper that never blocks. It cancels the run after the
// given number of check-interval waits, i.e. after that many cycles.
type clock struct {
	mu     sync.Mutex
	cycles int
	cancel context.CancelFunc
	waits  []time.Duration
}

func (c *clock) sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	if d == checkInterval || d == cooldown {
		c.cycles--
		if c.cycles <= 0 {
			c.cancel()
		}
	}
	c.mu.Unlock()
	return ctx.Err()
}

func (c *clock) count(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.waits {
		if w == d {
			n++
		}
	}
	return n
}

func run(t *testing.T, fake *gatewaytest.Fake, cycles int) (*Monitor, *clock, error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	clk := &clock{cycles: cycles, cancel: cancel}
	m := New(fake, Options{
		CheckInterval:    checkInterval,
		ErrorCooldown:    cooldown,
		ReauthPause:      reauthPause,
		FailureThreshold: 3,
		Policy: remediate.Policy{
			MaxAttempts:       3,
			ReconnectWait:     5 * time.Second,
			StabilizationWait: 30 * time.Second,
			RetryBackoff:      60 * time.Second,
		},
		Sleep: clk.sleep,
	}, testLogger())

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	select {
	case err := <-done:
		return m, clk, err
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
		return nil, nil, nil
	}
}

func TestRunInitialLoginFailure(t *testing.T) {
	fake := &gatewaytest.Fake{AuthErrs: []error{gateway.ErrAuthenticationFailed}}
	m, _, err := run(t, fake, 1)

	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrAuthenticationFailed)
	_, reads, closes := fake.Counts()
	assert.Zero(t, reads)
	assert.Equal(t, 1, closes)
	assert.Equal(t, StateUnauthenticated, m.Snapshot().State)
}

func TestRunPublicAddress(t *testing.T) {
	fake := &gatewaytest.Fake{Reads: gatewaytest.IPs("203.0.113.9")}
	m, clk, err := run(t, fake, 2)

	require.NoError(t, err)
	snap := m.Snapshot()
	assert.Equal(t, "203.0.113.9", snap.LastKnownIP)
	assert.Zero(t, snap.ConsecutiveFailures)
	assert.Equal(t, StateObserving, snap.State)
	assert.Empty(t, fake.ToggleLog())
	assert.Equal(t, 2, clk.count(checkInterval))
	_, _, closes := fake.Counts()
	assert.Equal(t, 1, closes, "client is closed on exit")
}

func TestThreeReadFailuresReauthenticateOnce(t *testing.T) {
	fake := &gatewaytest.Fake{Reads: []gatewaytest.Read{
		{Err: gateway.ErrTransport},
		{Err: gateway.ErrTransport},
		{Err: gateway.ErrNotFound},
		{IP: "198.51.100.4"},
	}}
	m, clk, err := run(t, fake, 5)

	require.NoError(t, err)
	auth, reads, closes := fake.Counts()
	assert.Equal(t, 2, auth, "initial login plus exactly one re-authentication")
	assert.Equal(t, 5, reads)
	assert.Equal(t, 2, closes)
	assert.Equal(t, 1, clk.count(reauthPause))
	assert.Equal(t, "198.51.100.4", m.Snapshot().LastKnownIP)
	assert.Zero(t, m.Snapshot().ConsecutiveFailures)
}

func TestPublicReadResetsFailureStreak(t *testing.T) {
	fake := &gatewaytest.Fake{Reads: []gatewaytest.Read{
		{Err: gateway.ErrTransport},
		{Err: gateway.ErrTransport},
		{IP: "203.0.113.9"},
		{Err: gateway.ErrTransport},
		{Err: gateway.ErrTransport},
		{IP: "203.0.113.9"},
	}}
	m, _, err := run(t, fake, 6)

	require.NoError(t, err)
	auth, _, _ := fake.Counts()
	assert.Equal(t, 1, auth)
	assert.Zero(t, m.Snapshot().ConsecutiveFailures)
}

func TestFailedReauthenticationKeepsPolling(t *testing.T) {
	fake := &gatewaytest.Fake{
		Reads:    []gatewaytest.Read{{Err: gateway.ErrTransport}},
		AuthErrs: []error{nil, gateway.ErrAuthenticationFailed, nil},
	}
	m, _, err := run(t, fake, 4)

	require.NoError(t, err)
	auth, reads, _ := fake.Counts()
	assert.Equal(t, 4, reads)
	// Login, failed re-login after read 3, re-login after read 4.
	assert.Equal(t, 3, auth)
	assert.Zero(t, m.Snapshot().ConsecutiveFailures)
}

func TestPrivateAddressRemediatedAtThirdAttempt(t *testing.T) {
	fake := &gatewaytest.Fake{Reads: gatewaytest.IPs("10.0.0.5", "10.0.0.5", "10.0.0.5", "203.0.113.9")}
	m, clk, err := run(t, fake, 1)

	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", m.Snapshot().LastKnownIP)
	assert.Zero(t, m.Snapshot().ConsecutiveFailures)
	assert.Equal(t, []bool{false, true, false, true, false, true}, fake.ToggleLog())
	assert.Equal(t, 2, clk.count(60*time.Second))
}

func TestExhaustedRemediationCountsAsOneFailure(t *testing.T) {
	fake := &gatewaytest.Fake{Reads: gatewaytest.IPs("172.16.0.9")}
	m, _, err := run(t, fake, 1)

	require.NoError(t, err)
	snap := m.Snapshot()
	assert.Equal(t, 1, snap.ConsecutiveFailures)
	assert.Empty(t, snap.LastKnownIP)
	assert.Len(t, fake.ToggleLog(), 6)
}

func TestPanicInCycleCoolsDown(t *testing.T) {
	fake := &gatewaytest.Fake{
		Reads: gatewaytest.IPs("203.0.113.9"),
		OnRead: func(n int) {
			if n == 1 {
				panic("boom")
			}
		},
	}
	m, clk, err := run(t, fake, 2)

	require.NoError(t, err)
	assert.Equal(t, 1, clk.count(cooldown))
	assert.Equal(t, 1, clk.count(checkInterval))
	assert.Equal(t, "203.0.113.9", m.Snapshot().LastKnownIP)
}

func TestRunStopsOnCancel(t *testing.T) {
	fake := &gatewaytest.Fake{Reads: gatewaytest.IPs("203.0.113.9")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := New(fake, Options{}, testLogger())
	require.NoError(t, m.Run(ctx))
	_, _, closes := fake.Counts()
	assert.Equal(t, 1, closes)
}

func TestValidTransition(t *testing.T) {
	allowed := [][2]State{
		{StateUnauthenticated, StateAuthenticated},
		{StateAuthenticated, StateObserving},
		{StateObserving, StateRemediating},
		{StateRemediating, StateObserving},
		{StateObserving, StateDegraded},
		{StateRemediating, StateDegraded},
		{StateDegraded, StateAuthenticated},
		{StateDegraded, StateObserving},
		{StateObserving, StateObserving},
	}
	for _, tr := range allowed {
		assert.True(t, ValidTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	forbidden := [][2]State{
		{StateUnauthenticated, StateObserving},
		{StateAuthenticated, StateRemediating},
		{StateRemediating, StateAuthenticated},
		{StateDegraded, StateRemediating},
		{State(42), StateObserving},
	}
	for _, tr := range forbidden {
		assert.False(t, ValidTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
	assert.Equal(t, "Unknown(42)", State(42).String())
}
