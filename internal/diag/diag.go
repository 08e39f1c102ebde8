// Package diag implements the environment checks behind "wanguard doctor".
package diag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/endobit/oui"

	"github.com/tonyperkins/homelab/internal/addr"
	"github.com/tonyperkins/homelab/internal/config"
	"github.com/tonyperkins/homelab/internal/gateway"
)

// Status is the verdict of one check.
type Status int

const (
	Pass Status = iota
	Warn
	Fail
	Skip
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "PASS"
	case Warn:
		return "WARN"
	case Fail:
		return "FAIL"
	case Skip:
		return "SKIP"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Finding is what a check reports.
type Finding struct {
	Check   string
	Status  Status
	Summary string
	Details []string // extra lines such as problems found
	Hints   []string // what the user can do about it
}

// Env is what the checks inspect. Reach and Login are nil when the
// configuration could not be loaded.
type Env struct {
	ConfigPath string
	Config     *config.Config
	ConfigErr  error

	// Reach tests network reachability of the router or controller.
	Reach func(ctx context.Context) (string, error)
	// Login authenticates and closes the session again.
	Login func(ctx context.Context) error
}

// Check is one named diagnostic.
type Check struct {
	Name string
	Run  func(ctx context.Context, env *Env) Finding
}

// Checks returns the diagnostics in the order they are reported.
func Checks() []Check {
	return []Check{
		{"Configuration file", checkConfig},
		{"Required fields", checkPlaceholders},
		{"Log directory", checkLogDir},
		{"Connectivity", checkReach},
		{"Authentication", checkLogin},
		{"Device MAC address", checkMAC},
		{"Address classifier", checkClassifier},
	}
}

// Run executes every check. It never stops early.
func Run(ctx context.Context, env *Env, report func(Finding)) []Finding {
	var out []Finding
	for _, c := range Checks() {
		f := c.Run(ctx, env)
		f.Check = c.Name
		out = append(out, f)
		if report != nil {
			report(f)
		}
	}
	return out
}

// Summary counts findings per status.
func Summary(fs []Finding) map[Status]int {
	m := make(map[Status]int)
	for _, f := range fs {
		m[f.Status]++
	}
	return m
}

// Failed reports whether any finding is a failure.
func Failed(fs []Finding) bool {
	return Summary(fs)[Fail] > 0
}

func skip(reason string) Finding { return Finding{Status: Skip, Summary: reason} }

func checkConfig(_ context.Context, env *Env) Finding {
	if env.ConfigErr == nil && env.Config != nil {
		if old := env.Config.LegacySections(); len(old) > 0 {
			return Finding{
				Status:  Warn,
				Summary: env.ConfigPath + " uses the old layout (" + strings.Join(old, ", ") + ")",
				Hints:   []string{"Rename omada to controller (controller_url to url) and er707 to ssh (ssh_port to port)"},
			}
		}
		return Finding{Status: Pass, Summary: env.ConfigPath + " loaded and valid"}
	}
	if errors.Is(env.ConfigErr, os.ErrNotExist) {
		return Finding{
			Status:  Fail,
			Summary: env.ConfigPath + " not found",
			Hints: []string{
				"Copy config.example.yaml to config.yaml",
				"Edit config.yaml with your settings",
			},
		}
	}
	f := Finding{Status: Fail, Summary: "configuration is invalid"}
	var cerr *config.Error
	if errors.As(env.ConfigErr, &cerr) && len(cerr.Problems) > 0 {
		f.Details = cerr.Problems
	} else if env.ConfigErr != nil {
		f.Details = []string{env.ConfigErr.Error()}
	}
	return f
}

func checkPlaceholders(_ context.Context, env *Env) Finding {
	if env.Config == nil {
		return skip("no configuration loaded")
	}
	missing := env.Config.Placeholders()
	if len(missing) == 0 {
		return Finding{Status: Pass, Summary: "all required fields configured"}
	}
	return Finding{
		Status:  Warn,
		Summary: fmt.Sprintf("%d unconfigured fields", len(missing)),
		Details: missing,
		Hints: []string{
			"Update these fields in config.yaml",
			fmt.Sprintf("Passwords may come from %s or %s instead", config.EnvControllerPassword, config.EnvSSHPassword),
		},
	}
}

func checkLogDir(_ context.Context, env *Env) Finding {
	file := config.Default().Logging.File
	if env.Config != nil && env.Config.Logging.File != "" {
		file = env.Config.Logging.File
	}
	dir := filepath.Dir(file)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Finding{Status: Fail, Summary: "could not create " + dir, Details: []string{err.Error()}}
	}
	probe, err := os.CreateTemp(dir, ".wanguard-write-test-*")
	if err != nil {
		return Finding{Status: Fail, Summary: "cannot write to " + dir, Details: []string{err.Error()}}
	}
	probe.Close()
	os.Remove(probe.Name())
	return Finding{Status: Pass, Summary: dir + " is writable"}
}

func checkReach(ctx context.Context, env *Env) Finding {
	if env.Reach == nil {
		return skip("no configuration loaded")
	}
	detail, err := env.Reach(ctx)
	if err != nil {
		return Finding{
			Status:  Fail,
			Summary: "router or controller unreachable",
			Details: []string{err.Error()},
			Hints: []string{
				"Check the URL or host and port",
				"Check that the controller is running",
				"Check firewall rules between this host and the router",
				"For self-signed certificates set verify_ssl: false",
			},
		}
	}
	return Finding{Status: Pass, Summary: detail}
}

func checkLogin(ctx context.Context, env *Env) Finding {
	if env.Login == nil || env.Config == nil {
		return skip("no configuration loaded")
	}
	if env.Config.MissingPassword() {
		return skip("credentials not configured")
	}
	err := env.Login(ctx)
	switch {
	case err == nil:
		return Finding{Status: Pass, Summary: "authentication successful"}
	case gateway.IsAuthFailure(err):
		return Finding{
			Status:  Fail,
			Summary: "login rejected",
			Details: []string{err.Error()},
			Hints:   []string{"Check the username and password", "Check that the account is not locked"},
		}
	default:
		return Finding{Status: Fail, Summary: "login failed", Details: []string{err.Error()}}
	}
}

func checkMAC(_ context.Context, env *Env) Finding {
	if env.Config == nil {
		return skip("no configuration loaded")
	}
	if env.Config.Transport == string(gateway.TransportSSH) {
		return skip("not used by the ssh transport")
	}
	mac := env.Config.Device.MACAddress
	if mac == "" || mac == config.PlaceholderMAC {
		return skip("MAC address not configured")
	}
	if !config.ValidMAC(mac) {
		return Finding{
			Status:  Fail,
			Summary: fmt.Sprintf("invalid MAC address %q", mac),
			Hints:   []string{"Expected XX-XX-XX-XX-XX-XX or XX:XX:XX:XX:XX:XX, e.g. A1-B2-C3-D4-E5-F6"},
		}
	}
	return Finding{Status: Pass, Summary: fmt.Sprintf("%s (%s)", gateway.NormalizeMAC(mac), Vendor(mac))}
}

// Vendor returns the manufacturer registered for the MAC's OUI prefix, or
// "Unknown".
func Vendor(mac string) string {
	if v := oui.Vendor(mac); v != "" {
		return v
	}
	return "Unknown"
}

// classifierCases is the self-test table, including the range edges.
var classifierCases = []struct {
	ip   string
	want addr.Classification
}{
	{"192.168.1.100", addr.Private},
	{"10.0.0.1", addr.Private},
	{"172.16.0.1", addr.Private},
	{"172.31.255.255", addr.Private},
	{"172.15.255.255", addr.Public},
	{"172.32.0.0", addr.Public},
	{"8.8.8.8", addr.Public},
	{"107.217.163.105", addr.Public},
	{"not-an-ip", addr.Invalid},
}

func checkClassifier(context.Context, *Env) Finding {
	var wrong []string
	for _, c := range classifierCases {
		if got := addr.Classify(c.ip); got != c.want {
			wrong = append(wrong, fmt.Sprintf("%s: got %s, want %s", c.ip, got, c.want))
		}
	}
	if len(wrong) > 0 {
		return Finding{Status: Fail, Summary: "classifier disagrees with RFC 1918", Details: wrong}
	}
	return Finding{Status: Pass, Summary: fmt.Sprintf("%d sample addresses classified correctly", len(classifierCases))}
}
