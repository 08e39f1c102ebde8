// Package probe runs the one-shot connection test behind "wanguard check".
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tonyperkins/homelab/internal/addr"
	"github.com/tonyperkins/homelab/internal/gateway"
)

// ErrProbeFailed is returned by Results.Err when a step failed.
var ErrProbeFailed = errors.New("connection check failed")

// Step is one stage of the check. Later steps assume earlier ones passed.
type Step struct {
	Name string
	Run  func(ctx context.Context) (detail string, err error)
}

// Result is the outcome of one step.
type Result struct {
	Name    string
	Detail  string
	Err     error
	Elapsed time.Duration
}

// OK reports whether the step passed.
func (r Result) OK() bool { return r.Err == nil }

// Results is the ordered outcome of a run.
type Results []Result

// Err returns nil if every step passed.
func (rs Results) Err() error {
	for _, r := range rs {
		if r.Err != nil {
			return fmt.Errorf("%w: %s: %v", ErrProbeFailed, r.Name, r.Err)
		}
	}
	return nil
}

// Run executes steps in order and stops at the first failure. report, if
// non-nil, is called before each step starts (with an empty Result carrying
// only the name) and after it ends.
func Run(ctx context.Context, steps []Step, report func(r Result, done bool)) Results {
	var out Results
	for _, s := range steps {
		if report != nil {
			report(Result{Name: s.Name}, false)
		}
		start := time.Now()
		detail, err := s.Run(ctx)
		r := Result{Name: s.Name, Detail: detail, Err: err, Elapsed: time.Since(start)}
		out = append(out, r)
		if report != nil {
			report(r, true)
		}
		if err != nil || ctx.Err() != nil {
			break
		}
	}
	return out
}

// ControllerSteps checks the controller transport end to end.
func ControllerSteps(c *gateway.ControllerClient, baseURL string) []Step {
	return []Step{
		{
			Name: "Controller reachable",
			Run: func(ctx context.Context) (string, error) {
				status, err := c.Info(ctx)
				if err != nil {
					return "", err
				}
				if status >= http.StatusInternalServerError {
					return "", fmt.Errorf("%s answered HTTP %d", baseURL, status)
				}
				return fmt.Sprintf("%s (HTTP %d)", baseURL, status), nil
			},
		},
		{
			Name: "Login",
			Run: func(ctx context.Context) (string, error) {
				return "", c.Authenticate(ctx)
			},
		},
		{
			Name: "Controller and site",
			Run: func(context.Context) (string, error) {
				cid, sid := c.Identifiers()
				if !c.Ready() {
					names := make([]string, 0, len(c.Sites()))
					for _, s := range c.Sites() {
						names = append(names, s.Name)
					}
					return "", fmt.Errorf("controller %q site %q unresolved (sites: %s): %w",
						cid, sid, strings.Join(names, ", "), gateway.ErrNotReady)
				}
				return fmt.Sprintf("controller %s, site %s", cid, sid), nil
			},
		},
		{
			Name: "Gateway status",
			Run: func(ctx context.Context) (string, error) {
				ds, err := c.Device(ctx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%s %s (status %s)", ds.Name, ds.Model, ds.Status), nil
			},
		},
		wanStep(c),
	}
}

// CLISteps checks the SSH transport.
func CLISteps(c *gateway.CLIClient, host string) []Step {
	return []Step{
		{
			Name: "SSH login",
			Run: func(ctx context.Context) (string, error) {
				if err := c.Authenticate(ctx); err != nil {
					return "", err
				}
				return host, nil
			},
		},
		{
			Name: "CLI dialect",
			Run: func(context.Context) (string, error) {
				return c.Dialect().Name, nil
			},
		},
		wanStep(c),
	}
}

func wanStep(c gateway.Client) Step {
	return Step{
		Name: "WAN address",
		Run: func(ctx context.Context) (string, error) {
			ip, err := c.ReadWANAddress(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s (%s)", ip, addr.Classify(ip)), nil
		},
	}
}
