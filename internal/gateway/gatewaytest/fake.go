// Package gatewaytest provides a scripted gateway.Client for tests.
package gatewaytest

import (
	"context"
	"sync"

	"github.com/tonyperkins/homelab/internal/gateway"
)

// Read is one scripted ReadWANAddress result.
type Read struct {
	IP  string
	Err error
}

// Fake is a gateway.Client whose answers come from scripts. When Reads or
// AuthErrs runs out its last entry repeats. Empty AuthErrs and a nil
// ToggleErrs mean success; empty Reads makes every read fail with
// gateway.ErrNotFound.
type Fake struct {
	mu sync.Mutex

	Reads      []Read
	AuthErrs   []error
	ToggleErrs map[int]error // keyed by 1-based SetWANPortEnabled call number

	// OnRead runs before every read with the 1-based call number.
	OnRead func(n int)

	AuthCalls  int
	ReadCalls  int
	CloseCalls int
	Toggles    []bool
}

var _ gateway.Client = (*Fake)(nil)

func (f *Fake) Authenticate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AuthCalls++
	return pick(f.AuthErrs, f.AuthCalls)
}

func (f *Fake) ReadWANAddress(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.ReadCalls++
	n := f.ReadCalls
	hook := f.OnRead
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Reads) == 0 {
		return "", gateway.ErrNotFound
	}
	r := f.Reads[min(n, len(f.Reads))-1]
	return r.IP, r.Err
}

func (f *Fake) SetWANPortEnabled(_ context.Context, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Toggles = append(f.Toggles, enabled)
	return f.ToggleErrs[len(f.Toggles)]
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CloseCalls++
	return nil
}

// Counts returns the call counters under the lock.
func (f *Fake) Counts() (auth, reads, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.AuthCalls, f.ReadCalls, f.CloseCalls
}

// ToggleLog returns a copy of the SetWANPortEnabled arguments so far.
func (f *Fake) ToggleLog() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.Toggles...)
}

func pick(errs []error, n int) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[min(n, len(errs))-1]
}

// IPs scripts a sequence of successful reads.
func IPs(ips ...string) []Read {
	out := make([]Read, len(ips))
	for i, ip := range ips {
		out[i] = Read{IP: ip}
	}
	return out
}
