// Package config loads the monitor's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/tonyperkins/homelab/internal/gateway"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "config.yaml"

// Environment variables that override secrets from the file.
const (
	EnvControllerPassword = "WANGUARD_CONTROLLER_PASSWORD"
	EnvSSHPassword        = "WANGUARD_SSH_PASSWORD"
	EnvSNMPCommunity      = "WANGUARD_SNMP_COMMUNITY"
)

// Values shipped in the example configuration.
const (
	PlaceholderPassword = "your_password_here"
	PlaceholderMAC      = "00-00-00-00-00-00"
)

// Config represents the main configuration
type Config struct {
	Transport  string     `yaml:"transport"` // "controller" or "ssh"
	Controller Controller `yaml:"controller"`
	Device     Device     `yaml:"device"`
	SSH        SSH        `yaml:"ssh"`
	Monitoring Monitoring `yaml:"monitoring"`
	Logging    Logging    `yaml:"logging"`
	SNMP       SNMP       `yaml:"snmp"`

	legacy []string
}

// Controller is the management controller's REST endpoint and login.
type Controller struct {
	URL       string `yaml:"url"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	SiteName  string `yaml:"site_name"`
	VerifySSL bool   `yaml:"verify_ssl"`
}

// Device identifies the gateway within the controller.
type Device struct {
	MACAddress string `yaml:"mac_address"`
	WANPortID  int    `yaml:"wan_port_id"`
}

// SSH is the direct-to-router transport.
type SSH struct {
	Host              string   `yaml:"host"`
	Port              int      `yaml:"port"`
	Username          string   `yaml:"username"`
	Password          string   `yaml:"password"`
	WANInterface      string   `yaml:"wan_interface"`
	Dialect           string   `yaml:"dialect"`
	KnownHosts        string   `yaml:"known_hosts,omitempty"`
	HostKeyAlgorithms []string `yaml:"host_key_algorithms,omitempty"`

	// CommandTimeoutSeconds bounds each command run on the router.
	CommandTimeoutSeconds int `yaml:"command_timeout_seconds"`
}

// Monitoring holds the loop pacing, all in whole seconds.
type Monitoring struct {
	CheckIntervalSeconds     int `yaml:"check_interval_seconds"`
	ReconnectWaitSeconds     int `yaml:"reconnect_wait_seconds"`
	MaxReconnectAttempts     int `yaml:"max_reconnect_attempts"`
	StabilizationWaitSeconds int `yaml:"stabilization_wait_seconds"`
	RetryBackoffSeconds      int `yaml:"retry_backoff_seconds"`
	ErrorCooldownSeconds     int `yaml:"error_cooldown_seconds"`
	FailureThreshold         int `yaml:"failure_threshold"`
	ReauthPauseSeconds       int `yaml:"reauth_pause_seconds"`
	RequestTimeoutSeconds    int `yaml:"request_timeout_seconds"`
}

// Logging configures the log sink.
type Logging struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"` // "text" or "json"
}

// SNMP is only used by the snmp probe command.
type SNMP struct {
	Target         string `yaml:"target"`
	Community      string `yaml:"community"`
	Port           int    `yaml:"port"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ErrConfig is wrapped by every error Load returns.
var ErrConfig = errors.New("configuration error")

// Error lists everything wrong with a configuration file.
type Error struct {
	Path     string
	Problems []string
	Err      error // underlying read or parse error, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "config %s", e.Path)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Problems) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Problems, "; "))
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfig, e.Err}
	}
	return []error{ErrConfig}
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	return &Config{
		Transport: string(gateway.TransportController),
		Controller: Controller{
			SiteName:  "Default",
			VerifySSL: true,
		},
		SSH: SSH{
			Port:         22,
			WANInterface: "wan1",
			Dialect:      gateway.DialectOmada,

			CommandTimeoutSeconds: 30,
		},
		Monitoring: Monitoring{
			CheckIntervalSeconds:     300,
			ReconnectWaitSeconds:     5,
			MaxReconnectAttempts:     3,
			StabilizationWaitSeconds: 30,
			RetryBackoffSeconds:      60,
			ErrorCooldownSeconds:     60,
			FailureThreshold:         3,
			ReauthPauseSeconds:       5,
			RequestTimeoutSeconds:    10,
		},
		Logging: Logging{
			Level:  "info",
			File:   "logs/wan_monitor.log",
			Format: "text",
		},
		SNMP: SNMP{
			Port:           161,
			TimeoutSeconds: 5,
		},
	}
}

// LoadDotEnv loads dir/.env into the process environment if it exists.
// Variables already set are not overwritten.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return &Error{Path: path, Err: err}
	}
	return nil
}

// Load reads, defaults, overrides from the environment and validates the
// configuration at path. Missing passwords are not an error here; see
// MissingPassword.
func Load(path string) (*Config, error) {
	path, err := expandHome(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("failed to read config: %w", err)}
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("failed to parse config: %w", err)}
	}
	cfg.applyLegacy(data)
	cfg.applyEnv()

	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, &Error{Path: path, Problems: problems}
	}
	return cfg, nil
}

func expandHome(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}
	return path, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvControllerPassword); ok && v != "" {
		c.Controller.Password = v
	}
	if v, ok := os.LookupEnv(EnvSSHPassword); ok && v != "" {
		c.SSH.Password = v
	}
	if v, ok := os.LookupEnv(EnvSNMPCommunity); ok && v != "" {
		c.SNMP.Community = v
	}
}

var macRe = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)

// ValidMAC reports whether mac is six hex pairs separated by dashes or colons.
func ValidMAC(mac string) bool {
	return macRe.MatchString(mac)
}

// Validate returns every problem found; nil means the configuration is usable.
func (c *Config) Validate() []string {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch gateway.Transport(c.Transport) {
	case gateway.TransportController:
		if c.Controller.URL == "" {
			add("controller.url is required")
		} else if u, err := url.Parse(c.Controller.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("controller.url %q must be an http(s) URL", c.Controller.URL)
		}
		if c.Controller.Username == "" {
			add("controller.username is required")
		}
		if c.Device.MACAddress == "" {
			add("device.mac_address is required")
		} else if !ValidMAC(c.Device.MACAddress) {
			add("device.mac_address %q must look like A1-B2-C3-D4-E5-F6", c.Device.MACAddress)
		}
		if c.Device.WANPortID < 0 {
			add("device.wan_port_id must not be negative")
		}
	case gateway.TransportSSH:
		if c.SSH.Host == "" {
			add("ssh.host is required")
		}
		if c.SSH.Username == "" {
			add("ssh.username is required")
		}
		if c.SSH.Port < 1 || c.SSH.Port > 65535 {
			add("ssh.port %d is out of range", c.SSH.Port)
		}
		if err := gateway.ValidateInterface(c.SSH.WANInterface); err != nil {
			add("ssh.wan_interface: %v", err)
		}
		if c.SSH.CommandTimeoutSeconds <= 0 {
			add("ssh.command_timeout_seconds must be positive")
		}
		if !slices.Contains(gateway.DialectNames(), strings.ToLower(c.SSH.Dialect)) {
			add("ssh.dialect %q must be one of %s", c.SSH.Dialect, strings.Join(gateway.DialectNames(), ", "))
		}
	default:
		add("transport %q must be %q or %q", c.Transport, gateway.TransportController, gateway.TransportSSH)
	}

	m := c.Monitoring
	positive := map[string]int{
		"monitoring.check_interval_seconds":  m.CheckIntervalSeconds,
		"monitoring.max_reconnect_attempts":  m.MaxReconnectAttempts,
		"monitoring.failure_threshold":       m.FailureThreshold,
		"monitoring.request_timeout_seconds": m.RequestTimeoutSeconds,
		"monitoring.error_cooldown_seconds":  m.ErrorCooldownSeconds,
	}
	nonNegative := map[string]int{
		"monitoring.reconnect_wait_seconds":     m.ReconnectWaitSeconds,
		"monitoring.stabilization_wait_seconds": m.StabilizationWaitSeconds,
		"monitoring.retry_backoff_seconds":      m.RetryBackoffSeconds,
		"monitoring.reauth_pause_seconds":       m.ReauthPauseSeconds,
	}
	for _, k := range sortedKeys(positive) {
		if positive[k] <= 0 {
			add("%s must be positive", k)
		}
	}
	for _, k := range sortedKeys(nonNegative) {
		if nonNegative[k] < 0 {
			add("%s must not be negative", k)
		}
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level: %v", err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		add("logging.format %q must be text or json", c.Logging.Format)
	}
	return problems
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MissingPassword reports whether the selected transport has no password.
func (c *Config) MissingPassword() bool {
	if c.Transport == string(gateway.TransportSSH) {
		return c.SSH.Password == ""
	}
	return c.Controller.Password == ""
}

// SetPassword stores a password for the selected transport.
func (c *Config) SetPassword(p string) {
	if c.Transport == string(gateway.TransportSSH) {
		c.SSH.Password = p
		return
	}
	c.Controller.Password = p
}

type field struct {
	name  string
	value string
}

// Placeholders lists required fields that are empty or still hold the
// example configuration's values.
func (c *Config) Placeholders() []string {
	fields := []field{
		{"controller.url", c.Controller.URL},
		{"controller.username", c.Controller.Username},
		{"controller.password", c.Controller.Password},
		{"device.mac_address", c.Device.MACAddress},
	}
	if c.Transport == string(gateway.TransportSSH) {
		fields = []field{
			{"ssh.host", c.SSH.Host},
			{"ssh.username", c.SSH.Username},
			{"ssh.password", c.SSH.Password},
		}
	}

	var out []string
	for _, f := range fields {
		if f.value == "" || f.value == PlaceholderPassword || f.value == PlaceholderMAC {
			out = append(out, f.name)
		}
	}
	return out
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// CheckInterval is the pause between monitor cycles.
func (m Monitoring) CheckInterval() time.Duration { return seconds(m.CheckIntervalSeconds) }

// ReconnectWait is how long the WAN port stays down during an attempt.
func (m Monitoring) ReconnectWait() time.Duration { return seconds(m.ReconnectWaitSeconds) }

func (m Monitoring) StabilizationWait() time.Duration { return seconds(m.StabilizationWaitSeconds) }
func (m Monitoring) RetryBackoff() time.Duration      { return seconds(m.RetryBackoffSeconds) }
func (m Monitoring) ErrorCooldown() time.Duration     { return seconds(m.ErrorCooldownSeconds) }
func (m Monitoring) ReauthPause() time.Duration       { return seconds(m.ReauthPauseSeconds) }
func (m Monitoring) RequestTimeout() time.Duration    { return seconds(m.RequestTimeoutSeconds) }

// CommandTimeout bounds one CLI command.
func (s SSH) CommandTimeout() time.Duration { return seconds(s.CommandTimeoutSeconds) }

// Timeout is the SNMP request timeout.
func (s SNMP) Timeout() time.Duration { return seconds(s.TimeoutSeconds) }
