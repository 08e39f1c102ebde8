// Package remediate flaps a router's WAN port until it holds a public
// address or the attempt budget runs out.
package remediate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tonyperkins/homelab/internal/addr"
	"github.com/tonyperkins/homelab/internal/gateway"
)

// ErrExhausted is returned by Outcome.Err when every attempt left the WAN
// on a private (or unreadable) address.
var ErrExhausted = errors.New("remediation exhausted")

// enableGrace bounds the re-enable command issued after the context has
// been cancelled, so a shutdown never leaves the WAN port down.
const enableGrace = 30 * time.Second

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Policy is the remediation budget and pacing.
type Policy struct {
	MaxAttempts       int
	ReconnectWait     time.Duration // port down -> port up
	StabilizationWait time.Duration // port up -> read address
	RetryBackoff      time.Duration // between attempts, never after the last

	Sleep Sleeper // nil means Sleep
}

// DefaultPolicy matches the configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		ReconnectWait:     5 * time.Second,
		StabilizationWait: 30 * time.Second,
		RetryBackoff:      60 * time.Second,
	}
}

// Attempt records one disable/enable/read cycle.
type Attempt struct {
	Index   int // 1-based
	Err     error
	Address string
	Class   addr.Classification
}

// Outcome is the result of Run.
type Outcome struct {
	Succeeded    bool
	FinalAddress string
	Attempts     []Attempt

	// Interrupted is the context error that stopped the loop early.
	Interrupted error
}

// Err is nil on success, wraps ErrExhausted when the budget ran out and
// wraps the context error when the loop was interrupted.
func (o Outcome) Err() error {
	switch {
	case o.Succeeded:
		return nil
	case o.Interrupted != nil:
		return fmt.Errorf("remediation interrupted after %d attempts: %w", len(o.Attempts), o.Interrupted)
	default:
		return fmt.Errorf("%w after %d attempts", ErrExhausted, len(o.Attempts))
	}
}

// Run performs up to p.MaxAttempts attempts and stops at the first one that
// yields a public address.
func Run(ctx context.Context, client gateway.Client, p Policy, log *logrus.Entry) Outcome {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Sleep == nil {
		p.Sleep = Sleep
	}

	log.Warnf("Starting WAN reconnection process (max %d attempts)", p.MaxAttempts)

	var out Outcome
	for i := 1; i <= p.MaxAttempts; i++ {
		alog := log.WithField("attempt", fmt.Sprintf("%d/%d", i, p.MaxAttempts))
		alog.Info("Attempting to obtain a public IP")

		a := attempt(ctx, client, p, alog)
		a.Index = i
		out.Attempts = append(out.Attempts, a)

		if a.Err == nil && a.Class == addr.Public {
			alog.Infof("Success! Got public IP: %s", a.Address)
			out.Succeeded = true
			out.FinalAddress = a.Address
			return out
		}
		if a.Address != "" {
			out.FinalAddress = a.Address
		}
		if err := ctx.Err(); err != nil {
			out.Interrupted = err
			return out
		}

		if i < p.MaxAttempts {
			alog.Infof("Waiting %s before next attempt", p.RetryBackoff)
			if err := p.Sleep(ctx, p.RetryBackoff); err != nil {
				out.Interrupted = err
				return out
			}
		}
	}

	log.Errorf("Failed to obtain public IP after %d attempts", p.MaxAttempts)
	return out
}

func attempt(ctx context.Context, client gateway.Client, p Policy, log *logrus.Entry) Attempt {
	log.Info("Disconnecting WAN port")
	if err := client.SetWANPortEnabled(ctx, false); err != nil {
		log.WithError(err).Error("Failed to disconnect WAN port")
		return Attempt{Err: fmt.Errorf("disable wan port: %w", err)}
	}

	waitErr := p.Sleep(ctx, p.ReconnectWait)

	// The port is down; bring it back even when shutting down.
	enableCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		enableCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), enableGrace)
		defer cancel()
	}
	log.Info("Reconnecting WAN port")
	if err := client.SetWANPortEnabled(enableCtx, true); err != nil {
		log.WithError(err).Error("Failed to reconnect WAN port")
		return Attempt{Err: fmt.Errorf("enable wan port: %w", err)}
	}
	if waitErr != nil {
		return Attempt{Err: waitErr}
	}

	log.Infof("Waiting %s for connection to stabilize", p.StabilizationWait)
	if err := p.Sleep(ctx, p.StabilizationWait); err != nil {
		return Attempt{Err: err}
	}

	ip, err := client.ReadWANAddress(ctx)
	if err != nil {
		log.WithError(err).Warn("Could not read WAN IP after reconnect")
		return Attempt{Err: fmt.Errorf("read wan address: %w", err)}
	}
	class := addr.Classify(ip)
	if class != addr.Public {
		log.Warnf("Still have private IP: %s", ip)
	}
	return Attempt{Address: ip, Class: class}
}
