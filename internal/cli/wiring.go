package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/tonyperkins/homelab/internal/config"
	"github.com/tonyperkins/homelab/internal/gateway"
	"github.com/tonyperkins/homelab/internal/logging"
	"github.com/tonyperkins/homelab/internal/monitor"
	"github.com/tonyperkins/homelab/internal/remediate"
	"github.com/tonyperkins/homelab/internal/ssh"
)

const keepaliveInterval = 30 * time.Second

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath
}

// loadConfig reads .env and the config file. With askPassword set, a
// missing password is prompted for on a terminal.
func loadConfig(askPassword bool) (*config.Config, error) {
	if err := config.LoadDotEnv("."); err != nil {
		return nil, err
	}
	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if askPassword && cfg.MissingPassword() {
		label := fmt.Sprintf("Password for %s@%s", cfg.Controller.Username, cfg.Controller.URL)
		env := config.EnvControllerPassword
		if cfg.Transport == string(gateway.TransportSSH) {
			label = fmt.Sprintf("Password for %s@%s", cfg.SSH.Username, cfg.SSH.Host)
			env = config.EnvSSHPassword
		}
		p, err := promptPassword(label)
		if err != nil {
			return nil, &config.Error{Path: path, Problems: []string{
				fmt.Sprintf("no password configured; set it in the file or in %s", env),
			}, Err: err}
		}
		cfg.SetPassword(p)
	}
	return cfg, nil
}

func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal")
	}
	fmt.Fprintf(os.Stderr, "%s: ", label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// newLogger builds the process logger. console may be io.Discard for
// commands that draw their own output.
func newLogger(cfg *config.Config, console io.Writer) (*logrus.Logger, io.Closer, error) {
	return logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		File:    cfg.Logging.File,
		Console: console,
	})
}

// newClient builds the gateway client for the configured transport.
func newClient(cfg *config.Config, log *logrus.Entry) (gateway.Client, error) {
	switch gateway.Transport(cfg.Transport) {
	case gateway.TransportController:
		return newControllerClient(cfg, log), nil
	case gateway.TransportSSH:
		return newCLIClient(cfg, log)
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

func newControllerClient(cfg *config.Config, log *logrus.Entry) *gateway.ControllerClient {
	return gateway.NewControllerClient(gateway.ControllerOptions{
		BaseURL:   cfg.Controller.URL,
		Username:  cfg.Controller.Username,
		Password:  cfg.Controller.Password,
		SiteName:  cfg.Controller.SiteName,
		DeviceMAC: cfg.Device.MACAddress,
		PortID:    cfg.Device.WANPortID,
		VerifySSL: cfg.Controller.VerifySSL,
		Timeout:   cfg.Monitoring.RequestTimeout(),
	}, log)
}

func newCLIClient(cfg *config.Config, log *logrus.Entry) (*gateway.CLIClient, error) {
	return gateway.NewCLIClient(gateway.CLIOptions{
		Host:         cfg.SSH.Host,
		WANInterface: cfg.SSH.WANInterface,
		Dialect:      cfg.SSH.Dialect,
		Dial:         sshDialer(sshOptions(cfg), log),
	}, log)
}

func sshOptions(cfg *config.Config) ssh.Options {
	return ssh.Options{
		Host:              cfg.SSH.Host,
		Port:              strconv.Itoa(cfg.SSH.Port),
		User:              cfg.SSH.Username,
		Password:          cfg.SSH.Password,
		HostKeyAlgorithms: cfg.SSH.HostKeyAlgorithms,
		KnownHosts:        cfg.SSH.KnownHosts,
		Timeout:           cfg.Monitoring.RequestTimeout(),
		CommandTimeout:    cfg.SSH.CommandTimeout(),
	}
}

// sshDialer reuses one ssh.Client so first-use host keys stay pinned
// across reconnects.
func sshDialer(opts ssh.Options, log *logrus.Entry) gateway.Dialer {
	client := ssh.NewClient(log)
	return func(ctx context.Context) (gateway.Shell, error) {
		if err := client.Connect(ctx, opts); err != nil {
			return nil, dialError(err)
		}
		client.StartKeepalive(keepaliveInterval)
		return client, nil
	}
}

// dialError translates ssh errors into the gateway taxonomy.
func dialError(err error) error {
	if errors.Is(err, ssh.ErrAuthFailed) {
		return fmt.Errorf("%w: %w", err, gateway.ErrAuthenticationFailed)
	}
	return err
}

func monitorOptions(cfg *config.Config) monitor.Options {
	m := cfg.Monitoring
	return monitor.Options{
		CheckInterval:    m.CheckInterval(),
		ErrorCooldown:    m.ErrorCooldown(),
		ReauthPause:      m.ReauthPause(),
		FailureThreshold: m.FailureThreshold,
		Policy: remediate.Policy{
			MaxAttempts:       m.MaxReconnectAttempts,
			ReconnectWait:     m.ReconnectWait(),
			StabilizationWait: m.StabilizationWait(),
			RetryBackoff:      m.RetryBackoff(),
		},
	}
}

// reachFunc tests network reachability for the doctor.
func reachFunc(cfg *config.Config) func(ctx context.Context) (string, error) {
	if cfg.Transport == string(gateway.TransportSSH) {
		address := net.JoinHostPort(cfg.SSH.Host, strconv.Itoa(cfg.SSH.Port))
		return func(ctx context.Context) (string, error) {
			d := net.Dialer{Timeout: cfg.Monitoring.RequestTimeout()}
			conn, err := d.DialContext(ctx, "tcp", address)
			if err != nil {
				return "", err
			}
			conn.Close()
			return address + " accepts connections", nil
		}
	}
	client := newControllerClient(cfg, logging.Discard())
	return func(ctx context.Context) (string, error) {
		status, err := client.Info(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s is reachable (HTTP %d)", cfg.Controller.URL, status), nil
	}
}
