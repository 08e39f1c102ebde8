// Package ssh is the SSH transport used by the gateway CLI client.
package ssh

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

var (
	// ErrAuthFailed means the server rejected the credentials.
	ErrAuthFailed = errors.New("ssh: authentication rejected")
	// ErrHostKeyMismatch means the server presented a different key than before.
	ErrHostKeyMismatch = errors.New("ssh: host key mismatch")
)

const (
	defaultTimeout        = 10 * time.Second
	defaultCommandTimeout = 30 * time.Second
)

// Options describes one router login.
type Options struct {
	Host     string
	Port     string
	User     string
	Password string

	// HostKeyAlgorithms restricts negotiation, e.g. to ssh-rsa for older
	// firmware. Empty means the library defaults.
	HostKeyAlgorithms []string

	// KnownHosts is an OpenSSH known_hosts file. Empty means trust on
	// first use, remembered for the life of the Client.
	KnownHosts string

	Timeout time.Duration

	// CommandTimeout bounds each Exec. Zero means 30s.
	CommandTimeout time.Duration
}

// Address returns host:port.
func (o Options) Address() string {
	port := o.Port
	if port == "" {
		port = "22"
	}
	return net.JoinHostPort(o.Host, port)
}

// Client manages an SSH connection to a router. It handles password
// authentication, host key verification and keepalive. A closed Client
// may be connected again; first-use host keys survive reconnects.
type Client struct {
	log        *logrus.Entry
	conn       *gossh.Client
	addr       string
	mu         sync.RWMutex
	connected  bool
	ctx        context.Context
	cancel     context.CancelFunc
	cmdTimeout time.Duration
	knownHosts map[string]gossh.PublicKey
}

// NewClient creates a new SSH client with an empty first-use key store.
func NewClient(log *logrus.Entry) *Client {
	return &Client{
		log:        log,
		knownHosts: make(map[string]gossh.PublicKey),
	}
}

// Connect dials and authenticates. The dial and the handshake together are
// bounded by opts.Timeout.
func (c *Client) Connect(ctx context.Context, opts Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return fmt.Errorf("ssh: already connected to %s", c.addr)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	addr := opts.Address()

	hostKeys, err := c.hostKeyCallback(opts)
	if err != nil {
		return err
	}
	config := &gossh.ClientConfig{
		User: opts.User,
		Auth: []gossh.AuthMethod{
			gossh.Password(opts.Password),
			gossh.KeyboardInteractive(answerPassword(opts.Password)),
		},
		HostKeyCallback: hostKeys,
		Timeout:         opts.Timeout,
	}
	if len(opts.HostKeyAlgorithms) > 0 {
		config.HostKeyAlgorithms = opts.HostKeyAlgorithms
	}

	dialer := net.Dialer{Timeout: opts.Timeout}
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("ssh: connect to %s: %w", addr, err)
	}
	_ = nc.SetDeadline(time.Now().Add(opts.Timeout))
	sc, chans, reqs, err := gossh.NewClientConn(nc, addr, config)
	if err != nil {
		nc.Close()
		return classifyDialError(addr, err)
	}
	_ = nc.SetDeadline(time.Time{})

	connCtx, cancel := context.WithCancel(context.Background())
	c.conn = gossh.NewClient(sc, chans, reqs)
	c.addr = addr
	c.connected = true
	c.ctx = connCtx
	c.cancel = cancel
	c.cmdTimeout = opts.CommandTimeout

	c.log.WithField("server", string(c.conn.ServerVersion())).Debugf("SSH session to %s established", addr)
	return nil
}

// answerPassword satisfies routers that only offer keyboard-interactive.
func answerPassword(password string) gossh.KeyboardInteractiveChallenge {
	return func(_, _ string, questions []string, _ []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range answers {
			answers[i] = password
		}
		return answers, nil
	}
}

// classifyDialError separates credential rejection from everything else.
// The ssh library reports it only as text.
func classifyDialError(addr string, err error) error {
	if errors.Is(err, ErrHostKeyMismatch) || strings.Contains(err.Error(), ErrHostKeyMismatch.Error()) {
		return fmt.Errorf("ssh: connect to %s: %w: %w", addr, err, ErrHostKeyMismatch)
	}
	if strings.Contains(err.Error(), "unable to authenticate") {
		return fmt.Errorf("ssh: connect to %s: %w: %w", addr, err, ErrAuthFailed)
	}
	return fmt.Errorf("ssh: connect to %s: %w", addr, err)
}

// hostKeyCallback verifies against opts.KnownHosts when set. Otherwise the
// first key seen for a host is accepted and stored, and later connections
// must present the same key.
func (c *Client) hostKeyCallback(opts Options) (gossh.HostKeyCallback, error) {
	if opts.KnownHosts != "" {
		check, err := knownhosts.New(opts.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("ssh: load known hosts %s: %w", opts.KnownHosts, err)
		}
		return func(hostname string, remote net.Addr, key gossh.PublicKey) error {
			err := check(hostname, remote, key)
			var keyErr *knownhosts.KeyError
			if errors.As(err, &keyErr) && len(keyErr.Want) > 0 {
				return fmt.Errorf("%w for %s: %v", ErrHostKeyMismatch, hostname, err)
			}
			return err
		}, nil
	}

	host := opts.Host
	return func(hostname string, remote net.Addr, key gossh.PublicKey) error {
		stored, seen := c.knownHosts[host]
		if !seen {
			c.knownHosts[host] = key
			c.log.Infof("Host key for %s (%s): %s", host, key.Type(), gossh.FingerprintSHA256(key))
			return nil
		}

		// Constant-time comparison of the marshalled keys.
		if key.Type() != stored.Type() ||
			subtle.ConstantTimeCompare(key.Marshal(), stored.Marshal()) != 1 {
			return fmt.Errorf(
				"%w for %s -- possible MITM attack (expected %s, got %s)",
				ErrHostKeyMismatch,
				host,
				gossh.FingerprintSHA256(stored),
				gossh.FingerprintSHA256(key),
			)
		}
		return nil
	}, nil
}

// IsConnected reports whether the client has an active SSH connection.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// ServerVersion returns the SSH banner string from the remote server.
// Returns an empty string if not connected.
func (c *Client) ServerVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return ""
	}
	return string(c.conn.ServerVersion())
}

// Close shuts down the SSH connection. It is safe to call repeatedly.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.connected = false

	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("ssh: close connection to %s: %w", c.addr, err)
		}
	}
	return nil
}

// StartKeepalive sends periodic keepalive requests over the SSH connection.
// After 3 consecutive failures it marks the connection as disconnected.
// The goroutine exits when the connection is closed. Must be called after
// Connect.
func (c *Client) StartKeepalive(interval time.Duration) {
	c.mu.RLock()
	ctx := c.ctx
	conn := c.conn
	c.mu.RUnlock()
	if ctx == nil || conn == nil {
		return
	}

	go func() {
		failures := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// "keepalive@openssh.com" is widely supported; a refusal
				// still proves the peer is alive.
				_, _, err := conn.SendRequest("keepalive@openssh.com", true, nil)
				if err == nil {
					failures = 0
					continue
				}
				failures++
				c.log.WithError(err).Debug("SSH keepalive failed")
				if failures >= 3 {
					c.mu.Lock()
					if c.conn == conn {
						c.connected = false
					}
					c.mu.Unlock()
					c.log.Warn("SSH keepalive lost, connection marked down")
					return
				}
			}
		}
	}()
}
