package gateway

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tonyperkins/homelab/internal/addr"
)

// CLIOptions configures a CLIClient.
type CLIOptions struct {
	Host         string // for log context only; the Dialer knows where to go
	WANInterface string // e.g. "wan1"
	Dialect      string // omada, mikrotik, edgeos or auto
	Dial         Dialer
}

// CLIClient drives the router over its SSH command line. There is no
// structured status; addresses are scraped from command output.
type CLIClient struct {
	opts    CLIOptions
	log     *logrus.Entry
	shell   Shell
	dialect Dialect
}

// minUsefulOutput is the length below which command output is treated as
// "the router did not understand that command".
const minUsefulOutput = 10

// ipPatterns is tried in order against the chosen command's output.
var ipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)inet\s+(\d+\.\d+\.\d+\.\d+)`),
	regexp.MustCompile(`(?i)IP Address:\s*(\d+\.\d+\.\d+\.\d+)`),
	regexp.MustCompile(`(?i)ipv4:\s*(\d+\.\d+\.\d+\.\d+)`),
	regexp.MustCompile(`(?i)address\s+(\d+\.\d+\.\d+\.\d+)`),
	regexp.MustCompile(`(?i)ip:\s*(\d+\.\d+\.\d+\.\d+)`),
	regexp.MustCompile(`(\d+\.\d+\.\d+\.\d+)/\d+`),
}

// NewCLIClient validates the options; it performs no I/O.
func NewCLIClient(opts CLIOptions, log *logrus.Entry) (*CLIClient, error) {
	if opts.WANInterface == "" {
		opts.WANInterface = "wan1"
	}
	if err := ValidateInterface(opts.WANInterface); err != nil {
		return nil, err
	}
	if opts.Dial == nil {
		return nil, errors.New("cli client: no dialer")
	}
	if opts.Dialect == "" {
		opts.Dialect = DialectOmada
	}
	c := &CLIClient{
		opts: opts,
		log:  log.WithFields(logrus.Fields{"transport": TransportSSH, "host": opts.Host}),
	}
	if !strings.EqualFold(opts.Dialect, DialectAuto) {
		d, err := LookupDialect(opts.Dialect)
		if err != nil {
			return nil, err
		}
		c.dialect = d
	}
	return c, nil
}

// Dialect returns the dialect in use; empty until detected when set to auto.
func (c *CLIClient) Dialect() Dialect {
	return c.dialect
}

// Authenticate opens a fresh SSH session, closing any previous one.
func (c *CLIClient) Authenticate(ctx context.Context) error {
	c.Close()

	shell, err := c.opts.Dial(ctx)
	if err != nil {
		if IsAuthFailure(err) {
			c.log.Error("SSH authentication failed - check username/password")
			return fmt.Errorf("ssh login %s: %w", c.opts.Host, err)
		}
		return fmt.Errorf("ssh login %s: %w: %w", c.opts.Host, err, ErrTransport)
	}
	c.shell = shell
	c.log.Infof("Successfully connected to %s", c.opts.Host)

	if c.dialect.Name == "" {
		c.dialect = DetectDialect(ctx, shell.ServerVersion(), shell.Exec)
		c.log.WithField("dialect", c.dialect.Name).Info("Detected CLI dialect")
	}
	return nil
}

// ReadWANAddress runs the dialect's diagnostic commands until one produces
// meaningful output, then scrapes the first usable address from it.
func (c *CLIClient) ReadWANAddress(ctx context.Context) (string, error) {
	if c.shell == nil {
		return "", fmt.Errorf("read wan address: not connected: %w", ErrNotReady)
	}

	var (
		output     string
		transports int
		lastErr    error
	)
	cmds := render(c.dialect.Read, c.opts.WANInterface)
	for _, cmd := range cmds {
		c.log.Debugf("Trying command: %s", cmd)
		out, err := c.shell.Exec(ctx, cmd)
		if err != nil && !isCommandFailure(err) {
			transports++
			lastErr = err
			continue
		}
		if len(strings.TrimSpace(out)) > minUsefulOutput {
			c.log.Debugf("Command %q returned %d bytes", cmd, len(out))
			output = out
			break
		}
	}

	if output == "" {
		if transports == len(cmds) {
			return "", fmt.Errorf("read wan address: %w: %w", lastErr, ErrTransport)
		}
		return "", fmt.Errorf("read wan address: no command produced interface information: %w", ErrNotFound)
	}

	if ip := scrapeAddress(output); ip != "" {
		c.log.Debugf("Found WAN IP: %s", ip)
		return ip, nil
	}
	c.log.Infof("Could not parse IP from output:\n%s", output)
	return "", fmt.Errorf("read wan address: no address in output: %w", ErrNotFound)
}

// SetWANPortEnabled runs the dialect's disable or enable sequence. Success
// is assumed when every command runs without a transport error.
func (c *CLIClient) SetWANPortEnabled(ctx context.Context, enabled bool) error {
	if c.shell == nil {
		return fmt.Errorf("set wan port: not connected: %w", ErrNotReady)
	}
	seq := c.dialect.Disable
	if enabled {
		seq = c.dialect.Enable
	}
	for _, cmd := range render(seq, c.opts.WANInterface) {
		out, err := c.shell.Exec(ctx, cmd)
		if err != nil && !isCommandFailure(err) {
			return fmt.Errorf("set wan port enable=%t: %q: %w: %w", enabled, cmd, err, ErrTransport)
		}
		if err != nil {
			c.log.WithError(err).Debugf("Command %q returned non-zero status", cmd)
		}
		c.log.Debugf("Command %q: %.100s", cmd, out)
	}
	if enabled {
		c.log.Info("WAN interface re-enabled")
	} else {
		c.log.Info("WAN interface disabled")
	}
	return nil
}

// Close shuts the SSH session.
func (c *CLIClient) Close() error {
	if c.shell == nil {
		return nil
	}
	err := c.shell.Close()
	c.shell = nil
	c.log.Debug("SSH connection closed")
	return err
}

// scrapeAddress tries ipPatterns in order and returns the first match that
// is neither unspecified nor loopback.
func scrapeAddress(output string) string {
	for _, re := range ipPatterns {
		for _, m := range re.FindAllStringSubmatch(output, -1) {
			if addr.IsUsable(m[1]) {
				return m[1]
			}
		}
	}
	return ""
}

// isCommandFailure reports whether err is the remote command exiting
// non-zero rather than the transport breaking. The router still answered.
func isCommandFailure(err error) bool {
	var exit interface{ ExitStatus() int }
	return errors.As(err, &exit)
}
